package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tilenorm/internal/config"
	"tilenorm/internal/workerpool"
	"tilenorm/internal/workflow"
)

type runFlags struct {
	methods         []string
	patchLocation   string
	normLocation    string
	referenceImages []string
	workers         int
	pattern         string
	useStandardizer bool
	singleWorker    bool
	seed            int64
	noProgress      bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Normalize every patch not yet present in the destination tree",
		Long: `Normalize a patch tree.

Every image nested at the pattern depth below the source root is
normalized with a randomly chosen (method, reference) pair and written to
the mirrored path below the destination root. Patches whose output already
exists are skipped, so an interrupted run resumes by running again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, flags)
			if err := cfg.Resolve(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			var observer workflow.Observer
			if !flags.noProgress && interactive(cmd.ErrOrStderr()) {
				observer = &barObserver{out: cmd.ErrOrStderr()}
			} else {
				observer = newLogObserver(logger)
			}

			summary, runErr := workflow.NewManager(cfg,
				workflow.WithLogger(logger),
				workflow.WithObserver(observer),
			).Run(cmd.Context())
			if summary.RunID != "" {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return runErr
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&flags.methods, "methods", nil, "Normalization methods (reinhard, macenko, vahadane)")
	f.StringVar(&flags.patchLocation, "patch-location", "", "Source root containing the patch tree")
	f.StringVar(&flags.normLocation, "norm-location", "", "Destination root for normalized patches")
	f.StringSliceVar(&flags.referenceImages, "reference-image", nil, "Reference image (repeatable)")
	f.IntVar(&flags.workers, "num-patch-workers", 0, "Worker count (0 = one per CPU)")
	f.StringVar(&flags.pattern, "patch-pattern", "", "Slash-separated nesting labels, e.g. annotation/subtype/slide")
	f.BoolVar(&flags.useStandardizer, "use-standardizer", false, "Apply luminosity standardization")
	f.BoolVar(&flags.singleWorker, "single-worker", false, "Process patches with one worker")
	f.Int64Var(&flags.seed, "seed", 0, "Seed for sparse stain fitting")
	f.BoolVar(&flags.noProgress, "no-progress", false, "Log progress lines instead of drawing a bar")

	return cmd
}

// applyRunFlags copies explicitly set flags over the file configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, flags runFlags) {
	changed := cmd.Flags().Changed
	if changed("methods") {
		cfg.Normalize.Methods = flags.methods
	}
	if changed("patch-location") {
		cfg.Paths.SourceDir = flags.patchLocation
	}
	if changed("norm-location") {
		cfg.Paths.DestDir = flags.normLocation
	}
	if changed("reference-image") {
		cfg.Normalize.ReferenceImages = flags.referenceImages
	}
	if changed("num-patch-workers") {
		cfg.Workers.Count = flags.workers
	}
	if changed("patch-pattern") {
		cfg.Normalize.PatchPattern = flags.pattern
	}
	if changed("use-standardizer") {
		cfg.Normalize.UseStandardizer = flags.useStandardizer
	}
	if changed("single-worker") {
		cfg.Workers.Single = flags.singleWorker
	}
	if changed("seed") {
		cfg.Normalize.Seed = flags.seed
	}
}

func printSummary(out io.Writer, s workflow.Summary) {
	rows := [][]string{
		{"Run", shortRunID(s.RunID)},
		{"Discovered", count(s.Discovered)},
		{"Already present", count(s.AlreadyPresent)},
		{"Planned", count(s.Planned)},
		{"Written", count(s.Written)},
	}
	for _, kind := range workerpool.Kinds {
		if !kind.Failed() {
			continue
		}
		rows = append(rows, []string{"Failed (" + strings.ReplaceAll(string(kind), "_failure", "") + ")", count(s.Failed[kind])})
	}
	if s.PlanErrors > 0 {
		rows = append(rows, []string{"Failed (plan)", count(s.PlanErrors)})
	}
	rows = append(rows,
		[]string{"Bytes written", bytesLabel(s.BytesWritten)},
		[]string{"Bank fallback", yesNo(s.Fallback)},
		[]string{"Workers", count(s.Workers)},
		[]string{"Chunks", count(len(s.ChunkSizes))},
		[]string{"Duration", durationLabel(s.Duration)},
	)
	if s.Canceled {
		rows = append(rows, []string{"Canceled", "yes"})
	}
	fmt.Fprintln(out, renderKeyValues(rows))
}
