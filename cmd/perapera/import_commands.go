package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"perapera/internal/config"
	"perapera/internal/textdata"
	"perapera/internal/translation"
	"perapera/internal/workspace"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var (
		hachimi bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "import <source_dir>",
		Short: "Import translations from another project into the workspace",
		Long: `Copy translated documents from another project's localized data directory
into the workspace at the paths their asset names map to.

With --hachimi the source is a Hachimi localized_data tree instead: table
dictionaries and story files only fill entries that are still untranslated.
Dump the dictionaries with "dump --template" before merging them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.workspaceStore()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			src := args[0]
			out := cmd.OutOrStdout()

			if hachimi {
				summary, err := translation.MergeHachimi(cmd.Context(), store, src, dryRun, logger)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, summary)
				}
				names := make([]string, 0, len(summary.Dictionaries))
				for name := range summary.Dictionaries {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					rows = append(rows, []string{name, strconv.Itoa(summary.Dictionaries[name])})
				}
				if len(rows) > 0 {
					printTable(cmd, []string{"Dictionary", "Filled"}, rows, nil)
				}
				fmt.Fprintf(out, "%sFilled %d dictionary entries; merged %d of %d matching stories (%d skipped)\n",
					dryRunPrefix(dryRun), summary.Entries, summary.StoriesMerged, summary.StoriesFound, summary.Skipped)
				return nil
			}

			summary, err := translation.ImportProject(cmd.Context(), store, src, dryRun, logger)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, summary)
			}
			if len(summary.Entries) > 0 {
				rows := make([][]string, 0, len(summary.Entries))
				for _, entry := range summary.Entries {
					rows = append(rows, []string{entry.Source, entry.Target})
				}
				printTable(cmd, []string{"Source", "Workspace path"}, rows, nil)
			}
			fmt.Fprintf(out, "%sImported %d of %d files (%d skipped)\n",
				dryRunPrefix(dryRun), summary.Imported, summary.Scanned, summary.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&hachimi, "hachimi", false, "Source is a Hachimi localized_data directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	return cmd
}

func newAutofillCommand(ctx *commandContext) *cobra.Command {
	var (
		duplicates bool
		pieces     bool
		dict       string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "autofill",
		Short: "Fill untranslated dictionary entries from existing translations",
		Long: `Fill empty entries of the text_data dictionary in place.

--duplicates reuses the translation of any entry whose master source text is
the same. --pieces names character pieces after the translated character name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !duplicates && !pieces {
				return errors.New("choose at least one of --duplicates or --pieces")
			}
			var summaries []*translation.FillSummary
			run := func(cfg *config.Config, texts *textdata.Store) error {
				path := strings.TrimSpace(dict)
				if path == "" {
					path = filepath.Join(cfg.Paths.WorkspaceDir, "text_data"+workspace.DictionarySuffix)
				}
				if pieces {
					summary, err := translation.FillPieces(path, dryRun)
					if err != nil {
						return err
					}
					summaries = append(summaries, summary)
				}
				if duplicates {
					summary, err := translation.FillDuplicates(cmd.Context(), path, texts, dryRun)
					if err != nil {
						return err
					}
					summaries = append(summaries, summary)
				}
				return nil
			}
			var err error
			if duplicates {
				err = ctx.withMaster(cmd.Context(), run)
			} else {
				var cfg *config.Config
				if cfg, err = ctx.ensureConfig(); err == nil {
					err = run(cfg, nil)
				}
			}
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				return writeJSON(cmd, summaries)
			}
			for _, s := range summaries {
				fmt.Fprintf(cmd.OutOrStdout(), "%sFilled %d entries of %s from %d known translations\n",
					dryRunPrefix(s.DryRun), s.Filled, s.Path, s.Unique)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&duplicates, "duplicates", false, "Reuse translations of identical source text")
	cmd.Flags().BoolVar(&pieces, "pieces", false, "Name character pieces after translated character names")
	cmd.Flags().StringVar(&dict, "dict", "", "Dictionary to fill (default: text_data_dict.json in the workspace)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	return cmd
}

func dryRunPrefix(dryRun bool) string {
	if dryRun {
		return "[dry run] "
	}
	return ""
}
