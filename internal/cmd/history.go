package cmd

import (
	"fmt"

	"github.com/router-for-me/linkmark/internal/bookmark"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var withDefaults bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently used categories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newServices(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			list, err := rt.history.Load(cmd.Context())
			if err != nil {
				return err
			}
			if withDefaults {
				list = bookmark.Suggestions(list, opts.cfg.Bookmark.DefaultCategories)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				_, _ = fmt.Fprintln(out, "No categories used yet.")
				return nil
			}
			for _, c := range list {
				_, _ = fmt.Fprintln(out, c)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withDefaults, "suggestions", false, "append the configured default categories")
	return cmd
}
