package cmd

import (
	"fmt"

	"github.com/router-for-me/linkmark/internal/api"
	"github.com/spf13/cobra"
)

func newMockBackendCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "mock-backend",
		Short: "Run an in-memory bookmark backend for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set api-base-url: http://%s/api to use this backend.\n", addr)
			return api.NewServer(opts.cfg.Debug).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", api.DefaultAddr, "listen address")
	return cmd
}
