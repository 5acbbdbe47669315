package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"tilenorm/internal/ledger"
	"tilenorm/internal/workerpool"
	"tilenorm/internal/workflow"
)

// column describes one table column. tone, when set, picks the colour of
// each cell from its text.
type column struct {
	title string
	right bool
	tone  func(string) text.Colors
}

func col(title string) column       { return column{title: title} }
func numCol(title string) column    { return column{title: title, right: true} }
func statusCol(title string) column { return column{title: title, tone: statusTone} }

// renderTable draws rows under columns. Short rows are padded; cells beyond
// the last column are dropped. Tones apply only when color is set.
func renderTable(columns []column, rows [][]string, color bool) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.title
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if c.right {
			configs[i].Align = text.AlignRight
		}
		if color && c.tone != nil {
			configs[i].Transformer = toneTransformer(c.tone)
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range r {
			r[i] = ""
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}
	return tw.Render()
}

// renderKeyValues renders a two-column label/value table.
func renderKeyValues(rows [][]string) string {
	return renderTable([]column{col("Field"), numCol("Value")}, rows, false)
}

func toneTransformer(tone func(string) text.Colors) text.Transformer {
	return func(val any) string {
		s, _ := val.(string)
		if colors := tone(s); len(colors) > 0 {
			return colors.Sprint(s)
		}
		return s
	}
}

// statusTone colours check results, run states and patch outcomes.
func statusTone(s string) text.Colors {
	switch s {
	case "ok", ledger.StatusCompleted, string(workerpool.Success):
		return text.Colors{text.FgGreen}
	case ledger.StatusRunning, workflow.PlanFailureKind:
		return text.Colors{text.FgYellow}
	case "FAIL", ledger.StatusFailed,
		string(workerpool.DecodeFailure), string(workerpool.TransformFailure), string(workerpool.WriteFailure):
		return text.Colors{text.FgRed}
	}
	return nil
}
