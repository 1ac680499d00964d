package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *options) *cobra.Command {
	var (
		noBrowser    bool
		callbackPort int
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your Google account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if noBrowser {
				cfg.OAuth.NoBrowser = true
			}
			if callbackPort > 0 {
				cfg.OAuth.CallbackPort = callbackPort
			}

			rt, err := newServices(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer rt.Close()
			out := cmd.OutOrStdout()
			rt.google.Out = out
			rt.google.Prompt = linePrompt(cmd.InOrStdin(), out)

			sess, err := rt.sessions.Authenticate(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "Signed in as %s <%s>\n", sess.UserInfo.DisplayName(), sess.UserInfo.Email)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the sign-in URL instead of opening a browser")
	cmd.Flags().IntVar(&callbackPort, "oauth-callback-port", 0, "override the local OAuth callback port")
	return cmd
}
