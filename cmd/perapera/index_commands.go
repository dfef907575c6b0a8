package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"perapera/internal/assetindex"
	"perapera/internal/config"
	"perapera/internal/contentstore"
	"perapera/internal/logging"
)

func newNamesCommand(ctx *commandContext) *cobra.Command {
	var assetType string

	cmd := &cobra.Command{
		Use:   "names [pattern]",
		Short: "List asset names from the index",
		Long:  "List asset names matching a GLOB pattern, or every name of --type.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if assetType == "" && len(args) == 0 {
				return errors.New("a pattern or --type is required")
			}
			return ctx.withIndex(cmd.Context(), func(_ *config.Config, idx *assetindex.Index) error {
				var (
					names []string
					err   error
				)
				if assetType != "" {
					names, err = idx.ListType(cmd.Context(), assetType)
				} else {
					names, err = idx.ListNames(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if names == nil {
						names = []string{}
					}
					return writeJSON(cmd, names)
				}
				out := cmd.OutOrStdout()
				for _, name := range names {
					fmt.Fprintln(out, name)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%d assets\n", len(names))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&assetType, "type", "t", "", "List every asset of this type")
	return cmd
}

type resolveView struct {
	Name        string `json:"name"`
	ContentHash string `json:"content_hash"`
	CipherKey   int64  `json:"cipher_key"`
	Encrypted   bool   `json:"encrypted"`
	Platform    string `json:"platform"`
	LocalPath   string `json:"local_path"`
	Present     bool   `json:"present"`
	Size        int64  `json:"size,omitempty"`
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <name>",
		Short: "Show the index record and local file of an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withIndex(cmd.Context(), func(cfg *config.Config, idx *assetindex.Index) error {
				rec, err := idx.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				store := contentstore.New(cfg, idx.Platform(), logging.NewNop())
				view := resolveView{
					Name:        rec.Name,
					ContentHash: rec.ContentHash,
					CipherKey:   rec.CipherKey,
					Encrypted:   rec.Encrypted(),
					Platform:    idx.Platform(),
					LocalPath:   store.LocalPath(rec.ContentHash),
				}
				if info, err := os.Stat(view.LocalPath); err == nil {
					view.Present = true
					view.Size = info.Size()
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, view)
				}

				size := "-"
				if view.Present {
					size = humanize.Bytes(uint64(view.Size))
				}
				printTable(cmd, []string{"Field", "Value"}, [][]string{
					{"Name", view.Name},
					{"Hash", view.ContentHash},
					{"Cipher key", strconv.FormatInt(view.CipherKey, 10)},
					{"Encrypted", yesNo(view.Encrypted)},
					{"Platform", view.Platform},
					{"Local path", view.LocalPath},
					{"Present", yesNo(view.Present)},
					{"Size", size},
				}, nil)
				return nil
			})
		},
	}
}
