package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in user and configured endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newServices(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Backend: %s\n", opts.cfg.BookmarksURL())
			_, _ = fmt.Fprintf(out, "Store:   %s\n", opts.cfg.Store.Type)

			sess, err := rt.sessions.Load(cmd.Context())
			if err != nil {
				return err
			}
			if sess == nil {
				_, _ = fmt.Fprintln(out, "Not signed in.")
				return errNotSignedIn
			}
			_, _ = fmt.Fprintf(out, "Signed in as %s <%s>\n", sess.UserInfo.DisplayName(), sess.UserInfo.Email)
			return nil
		},
	}
}
