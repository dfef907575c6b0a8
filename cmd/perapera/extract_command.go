package main

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"perapera/internal/document"
	"perapera/internal/preflight"
	"perapera/internal/services"
	"perapera/internal/workflow"
)

type assetResultView struct {
	Name       string  `json:"name"`
	Outcome    string  `json:"outcome"`
	Kind       string  `json:"kind,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Path       string  `json:"path,omitempty"`
	Units      int     `json:"units"`
	Matched    int     `json:"matched"`
	DurationMS float64 `json:"duration_ms"`
}

type batchSummaryView struct {
	RunID      string            `json:"run_id"`
	Type       string            `json:"type"`
	Mode       string            `json:"mode"`
	Success    int               `json:"success"`
	Skipped    int               `json:"skipped"`
	Failed     int               `json:"failed"`
	DurationMS float64           `json:"duration_ms"`
	Results    []assetResultView `json:"results"`
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var (
		assetType string
		name      string
		group     string
		id        string
		update    bool
		overwrite bool
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract assets into workspace documents",
		Long: "Extract assets of one type into workspace documents.\n\n" +
			"Existing documents are skipped unless --update (re-extract and carry\n" +
			"translations forward) or --overwrite (re-extract and discard them) is set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(document.Types, assetType) {
				return fmt.Errorf("unsupported --type %q (expected one of %s)", assetType, strings.Join(document.Types, ", "))
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if failed := preflight.Failed(preflight.Required(cfg)); len(failed) > 0 {
				return fmt.Errorf("%s: %s", failed[0].Name, failed[0].Detail)
			}
			if workers <= 0 {
				workers = cfg.Download.Workers
			}
			mode := workflow.ModeSkip
			switch {
			case update:
				mode = workflow.ModeUpdate
			case overwrite:
				mode = workflow.ModeOverwrite
			}

			return ctx.withPipeline(cmd.Context(), func(p *workflow.Pipeline) error {
				names := []string{name}
				if name == "" {
					selected, err := p.Select(cmd.Context(), assetType, group, id)
					if err != nil {
						return err
					}
					names = selected
				}
				if len(names) == 0 {
					fmt.Fprintln(cmd.ErrOrStderr(), "No assets found to process with the given criteria.")
					return nil
				}

				req := workflow.BatchRequest{Type: assetType, Names: names, Mode: mode, Workers: workers}
				if !ctx.jsonOutput() && cfg.Download.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
					bar := progressbar.NewOptions(len(names),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionSetDescription("extracting "+assetType),
						progressbar.OptionShowCount(),
						progressbar.OptionThrottle(100*time.Millisecond),
						progressbar.OptionClearOnFinish(),
					)
					defer func() { _ = bar.Finish() }()
					req.OnResult = func(workflow.AssetResult) { _ = bar.Add(1) }
				}

				summary, runErr := p.RunBatch(cmd.Context(), req)
				if summary != nil {
					if err := renderBatchSummary(cmd, ctx.jsonOutput(), summary, mode); err != nil {
						return err
					}
				}
				if runErr != nil {
					return runErr
				}
				if summary.Failed > 0 {
					return fmt.Errorf("%d of %d assets failed", summary.Failed, len(summary.Results))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&assetType, "type", "t", "", "Asset type ("+strings.Join(document.Types, ", ")+")")
	cmd.Flags().StringVar(&name, "name", "", "Process a single asset name (ignores --group and --id)")
	cmd.Flags().StringVarP(&group, "group", "g", "", "Filter by group id (character or event id)")
	cmd.Flags().StringVarP(&id, "id", "i", "", "Filter by story id or index")
	cmd.Flags().BoolVar(&update, "update", false, "Re-extract and merge with existing translations")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Re-extract and discard existing translations")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel workers (default download.workers)")
	cmd.MarkFlagsMutuallyExclusive("update", "overwrite")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func renderBatchSummary(cmd *cobra.Command, asJSON bool, summary *workflow.BatchSummary, mode workflow.Mode) error {
	view := batchSummaryView{
		RunID:      summary.RunID,
		Type:       summary.Type,
		Mode:       mode.String(),
		Success:    summary.Success,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		DurationMS: durationMS(summary.Duration),
		Results:    make([]assetResultView, 0, len(summary.Results)),
	}
	for _, res := range summary.Results {
		view.Results = append(view.Results, assetResultView{
			Name:       res.Name,
			Outcome:    string(res.Outcome),
			Kind:       res.Kind,
			Reason:     res.Reason,
			Path:       res.Path,
			Units:      res.Units,
			Matched:    res.Matched,
			DurationMS: durationMS(res.Duration),
		})
	}
	if asJSON {
		return writeJSON(cmd, view)
	}

	var rows [][]string
	for _, res := range summary.Results {
		if res.Outcome != services.OutcomeFailed {
			continue
		}
		rows = append(rows, []string{res.Name, res.Kind, res.Reason})
	}
	if len(rows) > 0 {
		printTable(cmd, []string{"Failed asset", "Kind", "Reason"}, rows, nil)
	}
	printTable(cmd,
		[]string{"Outcome", "Assets"},
		[][]string{
			{"Successful", strconv.Itoa(summary.Success)},
			{"Skipped", strconv.Itoa(summary.Skipped)},
			{"Failed", strconv.Itoa(summary.Failed)},
		},
		[]columnAlignment{alignLeft, alignRight},
		"Total", strconv.Itoa(len(summary.Results)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s) finished in %s\n", summary.RunID, mode, summary.Duration.Round(time.Millisecond))
	return nil
}

func durationMS(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
