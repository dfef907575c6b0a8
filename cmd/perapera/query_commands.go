package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"perapera/internal/contentstore"
	"perapera/internal/document"
	"perapera/internal/workflow"
)

func newQueryCommand(ctx *commandContext) *cobra.Command {
	var (
		character string
		assetType string
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Find story or home assets by character or event name",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPipeline(cmd.Context(), func(p *workflow.Pipeline) error {
				matches, err := p.QueryCharacter(cmd.Context(), assetType, character)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if matches == nil {
						matches = []workflow.QueryMatch{}
					}
					return writeJSON(cmd, matches)
				}
				if len(matches) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s assets found for %q\n", assetType, character)
					return nil
				}
				rows := make([][]string, 0, len(matches))
				for _, m := range matches {
					rows = append(rows, []string{m.AssetName, m.Group, m.GroupName})
				}
				printTable(cmd, []string{"Asset", "Group", "Name"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&character, "character", "", "Name or part of a name to search for")
	cmd.Flags().StringVarP(&assetType, "type", "t", document.TypeStory, "Asset type (story or home)")
	_ = cmd.MarkFlagRequired("character")
	return cmd
}

func newDumpCommand(ctx *commandContext) *cobra.Command {
	var (
		table    string
		out      string
		template bool
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Dump a master database table to nested JSON",
		Long: `Dump a master table to <out>/<table>_dict.json, keyed by every column but
the last. With --template the values are left empty so the file can serve as
a translation dictionary for "import --hachimi" and "autofill --duplicates".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dir := strings.TrimSpace(out)
			if dir == "" {
				dir = cfg.Paths.WorkspaceDir
			}
			return ctx.withPipeline(cmd.Context(), func(p *workflow.Pipeline) error {
				written, err := p.DumpTable(cmd.Context(), table, dir, template)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]string{"table": table, "path": written})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dumped %s to %s\n", table, written)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "text_data", "Master table to dump")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination directory (default: workspace directory)")
	cmd.Flags().BoolVar(&template, "template", false, "Write empty values as a translation dictionary")
	return cmd
}

type exportView struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"blake3"`
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		out      string
		category string
	)

	cmd := &cobra.Command{
		Use:   "export <asset>",
		Short: "Copy the raw local content of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			switch contentstore.Category(category) {
			case contentstore.CategoryBundle, contentstore.CategoryGeneric:
			default:
				return fmt.Errorf("unsupported --category %q (expected bundle or generic)", category)
			}
			dest := out
			if dest == "" {
				dest = path.Base(name)
			}
			if info, err := os.Stat(dest); err == nil && info.IsDir() {
				dest = filepath.Join(dest, path.Base(name))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("inspect %s: %w", dest, err)
			}

			return ctx.withPipeline(cmd.Context(), func(p *workflow.Pipeline) error {
				copied, err := p.Export(cmd.Context(), name, category, dest)
				if err != nil {
					return err
				}
				view := exportView{Name: name, Path: dest, Size: copied.Size, Digest: copied.Digest}
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s (%s)\n", name, dest, humanize.Bytes(uint64(copied.Size)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination file or directory (default: asset base name)")
	cmd.Flags().StringVar(&category, "category", string(contentstore.CategoryBundle), "Download category (bundle or generic)")
	return cmd
}
