package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type findView struct {
	Path       string `json:"path"`
	AssetName  string `json:"asset_name"`
	BlockIndex int    `json:"block_index"`
	Field      string `json:"field"`
	Text       string `json:"text"`
}

func newFindCommand(ctx *commandContext) *cobra.Command {
	var assetType string

	cmd := &cobra.Command{
		Use:   "find <term>",
		Short: "Search workspace documents for text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.workspaceStore()
			if err != nil {
				return err
			}
			matches, err := store.Find(cmd.Context(), args[0], assetType)
			if err != nil {
				return err
			}
			views := make([]findView, 0, len(matches))
			for _, m := range matches {
				views = append(views, findView{Path: m.Path, AssetName: m.AssetName, BlockIndex: m.BlockIndex, Field: m.Field, Text: m.Text})
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, views)
			}
			if len(views) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No matches for %q\n", args[0])
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{v.Path, strconv.Itoa(v.BlockIndex), v.Field, v.Text})
			}
			printTable(cmd, []string{"Document", "Block", "Field", "Text"}, rows, []columnAlignment{alignLeft, alignRight})
			return nil
		},
	}
	cmd.Flags().StringVarP(&assetType, "type", "t", "", "Restrict to one asset type")
	return cmd
}

type validateView struct {
	Path                string `json:"path"`
	AssetName           string `json:"asset_name,omitempty"`
	Type                string `json:"type,omitempty"`
	Units               int    `json:"units"`
	Untranslated        []int  `json:"untranslated"`
	UntranslatedChoices int    `json:"untranslated_choices"`
	UntranslatedTitle   bool   `json:"untranslated_title"`
	Complete            bool   `json:"complete"`
	Error               string `json:"error,omitempty"`
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var (
		assetType string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Report untranslated text in workspace documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.workspaceStore()
			if err != nil {
				return err
			}
			reports, err := store.Validate(cmd.Context(), assetType)
			if err != nil {
				return err
			}

			complete := 0
			views := make([]validateView, 0, len(reports))
			for _, r := range reports {
				view := validateView{
					Path:                r.Path,
					AssetName:           r.AssetName,
					Type:                r.Type,
					Units:               r.Units,
					Untranslated:        r.Untranslated,
					UntranslatedChoices: r.UntranslatedChoices,
					UntranslatedTitle:   r.UntranslatedTitle,
					Complete:            r.Complete(),
				}
				if view.Untranslated == nil {
					view.Untranslated = []int{}
				}
				if r.Err != nil {
					view.Error = r.Err.Error()
				}
				if view.Complete {
					complete++
				}
				views = append(views, view)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, views)
			}

			var rows [][]string
			for _, v := range views {
				if v.Complete && !all {
					continue
				}
				status := fmt.Sprintf("%d/%d", v.Units-len(v.Untranslated), v.Units)
				if v.Error != "" {
					status = "unreadable"
				}
				rows = append(rows, []string{v.Path, status, strconv.Itoa(v.UntranslatedChoices), yesNo(v.UntranslatedTitle)})
			}
			if len(rows) > 0 {
				printTable(cmd, []string{"Document", "Translated", "Open choices", "Open title"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d documents complete\n", complete, len(views))
			return nil
		},
	}
	cmd.Flags().StringVarP(&assetType, "type", "t", "", "Restrict to one asset type")
	cmd.Flags().BoolVar(&all, "all", false, "List complete documents too")
	return cmd
}
