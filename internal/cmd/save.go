package cmd

import (
	"fmt"
	"time"

	"github.com/router-for-me/linkmark/internal/bookmark"
	"github.com/router-for-me/linkmark/internal/tab"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSaveCmd(opts *options) *cobra.Command {
	var (
		category string
		notes    string
		page     tab.Tab
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save the active tab, or the page given by --url, as a bookmark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bookmark.Validate(category); err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := newServices(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			sess, err := rt.sessions.Load(ctx)
			if err != nil {
				return err
			}
			if sess == nil {
				return errNotSignedIn
			}

			var src tab.Source = tab.StaticSource{Tab: page}
			if page.URL == "" {
				if src, err = tab.New(opts.cfg.Tab.Source, opts.cfg.Tab.ChromeURL); err != nil {
					return err
				}
			}
			active, err := src.ActiveTab(ctx)
			if err != nil {
				return fmt.Errorf("%w: %w", errNoPage, err)
			}

			token, err := rt.sessions.AccessToken(ctx)
			if err != nil {
				return err
			}
			rec := bookmark.NewRecord(*active, category, notes, sess.UserInfo.Email, time.Now())
			if err = rt.bookmarks.Save(ctx, token, rec); err != nil {
				return err
			}
			if _, err = rt.history.Add(ctx, rec.Category); err != nil {
				log.WithError(err).WithField("category", rec.Category).Warn("updating category history failed")
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Bookmark saved successfully!")
			_, _ = fmt.Fprintf(out, "  %s\n  %s\n  category: %s\n", rec.Title, rec.URL, rec.Category)
			return nil
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "bookmark category (required)")
	cmd.Flags().StringVarP(&notes, "notes", "n", "", "optional notes")
	cmd.Flags().StringVar(&page.URL, "url", "", "page URL instead of the active tab")
	cmd.Flags().StringVar(&page.Title, "title", "", "page title, used with --url")
	cmd.Flags().StringVar(&page.FavIconURL, "favicon", "", "favicon URL, used with --url")
	return cmd
}
