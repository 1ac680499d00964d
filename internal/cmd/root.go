// Package cmd implements the linkmark command line: the bookmark popup plus
// scriptable login, logout, save, status and history commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/router-for-me/linkmark/internal/auth/google"
	"github.com/router-for-me/linkmark/internal/bookmark"
	"github.com/router-for-me/linkmark/internal/buildinfo"
	"github.com/router-for-me/linkmark/internal/config"
	"github.com/router-for-me/linkmark/internal/logging"
	"github.com/router-for-me/linkmark/internal/session"
	"github.com/router-for-me/linkmark/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess      = 0
	ExitCodeError        = 1
	ExitCodeAuthRequired = 2
	ExitCodeAuthFailed   = 3
)

// errNotSignedIn is returned by commands that need a stored session.
var errNotSignedIn = errors.New("not signed in, run `linkmark login` first")

// errNoPage wraps failures to read the active tab.
var errNoPage = errors.New(bookmark.MsgNoPageInfo)

type options struct {
	configPath string
	debug      bool
	cfg        *config.Config
}

// NewRootCmd builds the command tree. Without a subcommand it opens the popup.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "linkmark",
		Short: "Save the page you are reading as a categorized bookmark",
		Long: `linkmark signs you in with Google, reads the active browser tab and posts
it to your LinkMark backend under a category you choose.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPopup(cmd, opts)
		},
	}
	root.SetVersionTemplate(`{{printf "linkmark version %s\n" .Version}}`)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.linkmark/config.yaml)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newPopupCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newSaveCmd(opts),
		newStatusCmd(opts),
		newHistoryCmd(opts),
		newMockBackendCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads the configuration and points logging at stderr. A missing default
// config file is fine; a missing file named by --config is not.
func (o *options) load(cmd *cobra.Command) error {
	path, optional := o.configPath, false
	if path == "" {
		path, optional = config.DefaultConfigPath(), true
	}
	cfg, err := config.LoadConfigOptional(path, optional)
	if err != nil {
		return err
	}
	if o.debug {
		cfg.Debug = true
	}
	o.cfg = cfg
	if err = logging.ConfigureLogOutput(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}
	util.SetLogLevel(cfg)
	log.Debugf("using config %s (store=%s, tab=%s)", path, cfg.Store.Type, cfg.Tab.Source)
	return nil
}

// Execute runs the CLI and exits with a code derived from the error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		log.Debugf("command failed: %v", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps errors to exit codes for scripting.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, errNotSignedIn), errors.Is(err, google.ErrInteractionRequired):
		return ExitCodeAuthRequired
	}
	var authErr *session.AuthError
	if errors.As(err, &authErr) && authErr.Op == "authenticate" {
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}

// userMessage returns the static message shown for err.
func userMessage(err error) string {
	var (
		authErr       *session.AuthError
		saveErr       *bookmark.SaveError
		validationErr *bookmark.ValidationError
	)
	switch {
	case errors.Is(err, errNoPage):
		return bookmark.MsgNoPageInfo
	case errors.As(err, &validationErr):
		return validationErr.Message
	case errors.As(err, &saveErr):
		return bookmark.MsgSaveFailed
	case errors.As(err, &authErr):
		if google.IsAuthenticationError(authErr.Err) || google.IsOAuthError(authErr.Err) {
			return authErr.Message + " " + google.GetUserFriendlyMessage(authErr.Err)
		}
		return authErr.Message
	}
	return err.Error()
}
