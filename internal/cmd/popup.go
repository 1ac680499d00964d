package cmd

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/router-for-me/linkmark/internal/logging"
	"github.com/router-for-me/linkmark/internal/popup"
	"github.com/router-for-me/linkmark/internal/store"
	"github.com/router-for-me/linkmark/internal/tab"
	"github.com/router-for-me/linkmark/internal/watcher"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newPopupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "popup",
		Short: "Open the bookmark popup (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPopup(cmd, opts)
		},
	}
}

// runPopup starts the terminal popup. Logs go to the log file (or nowhere) and the
// status bar so they never draw over the UI.
func runPopup(cmd *cobra.Command, opts *options) error {
	cfg := opts.cfg
	if err := logging.ConfigureLogOutput(cfg, io.Discard); err != nil {
		return err
	}
	hook := popup.NewLogHook(64)
	log.AddHook(hook)
	popup.SetLocale(cfg.Locale)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	rt.google.Out = io.Discard

	src, err := tab.New(cfg.Tab.Source, cfg.Tab.ChromeURL)
	if err != nil {
		return err
	}

	deps := popup.Deps{
		Sessions:          rt.sessions,
		Bookmarks:         rt.bookmarks,
		History:           rt.history,
		Tabs:              src,
		DefaultCategories: cfg.Bookmark.DefaultCategories,
		Hook:              hook,
	}
	if path := store.StatePath(cfg); path != "" {
		if w, errWatch := watcher.NewWatcher(path); errWatch != nil {
			log.Warnf("state watcher unavailable: %v", errWatch)
		} else if errStart := w.Start(ctx); errStart != nil {
			log.Warnf("state watcher unavailable: %v", errStart)
			_ = w.Stop()
		} else {
			deps.Changes = w.Changes()
			defer func() { _ = w.Stop() }()
		}
	}

	app := popup.NewApp(ctx, deps)
	return popup.Run(app, cmd.OutOrStdout(), func(p *tea.Program) {
		rt.google.OnAuthURL = func(authURL string) {
			p.Send(popup.AuthURLMsg(authURL))
		}
	})
}
