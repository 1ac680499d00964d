package cmd

import (
	"errors"
	"fmt"

	"github.com/router-for-me/linkmark/internal/session"
	"github.com/spf13/cobra"
)

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and revoke the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newServices(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			err = rt.sessions.Logout(cmd.Context())
			var authErr *session.AuthError
			if errors.As(err, &authErr) && authErr.Message == session.MsgRevokeFailed {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), session.MsgRevokeFailed)
				err = nil
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
