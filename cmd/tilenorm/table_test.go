package main

import (
	"strings"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"

	"tilenorm/internal/ledger"
	"tilenorm/internal/workerpool"
	"tilenorm/internal/workflow"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]column{col("Name"), numCol("Count"), col("Note")}, [][]string{{"a", "1"}, {"b", "22", "x", "dropped"}}, false)
	requireContains(t, out, "Name")
	requireContains(t, out, "22")
	if strings.Contains(out, "dropped") {
		t.Fatalf("extra cell rendered:\n%s", out)
	}
	if got := renderTable(nil, [][]string{{"a"}}, false); got != "" {
		t.Fatalf("expected empty output without columns, got %q", got)
	}
}

func TestRenderTableColorsStatusColumns(t *testing.T) {
	rows := [][]string{{"Source directory", "ok"}, {"Reference image 1", "FAIL"}}
	columns := []column{col("Check"), statusCol("Status")}

	plain := renderTable(columns, rows, false)
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("plain table contains escape codes:\n%s", plain)
	}

	colored := renderTable(columns, rows, true)
	requireContains(t, colored, text.Colors{text.FgGreen}.Sprint("ok"))
	requireContains(t, colored, text.Colors{text.FgRed}.Sprint("FAIL"))
	if strings.Contains(colored, text.Colors{text.FgGreen}.Sprint("Source directory")) {
		t.Fatal("plain column was coloured")
	}
}

func TestStatusTone(t *testing.T) {
	tests := []struct {
		value string
		want  text.Color
	}{
		{"ok", text.FgGreen},
		{ledger.StatusCompleted, text.FgGreen},
		{string(workerpool.Success), text.FgGreen},
		{ledger.StatusRunning, text.FgYellow},
		{workflow.PlanFailureKind, text.FgYellow},
		{"FAIL", text.FgRed},
		{ledger.StatusFailed, text.FgRed},
		{string(workerpool.DecodeFailure), text.FgRed},
		{string(workerpool.WriteFailure), text.FgRed},
	}
	for _, tt := range tests {
		got := statusTone(tt.value)
		if len(got) != 1 || got[0] != tt.want {
			t.Fatalf("statusTone(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
	if got := statusTone("/some/path.png"); got != nil {
		t.Fatalf("unexpected tone for plain text: %v", got)
	}
}
