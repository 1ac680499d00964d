package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/router-for-me/linkmark/internal/auth/google"
	"github.com/router-for-me/linkmark/internal/bookmark"
	"github.com/router-for-me/linkmark/internal/config"
	"github.com/router-for-me/linkmark/internal/session"
	"github.com/router-for-me/linkmark/internal/store"
	"github.com/router-for-me/linkmark/internal/util"
	log "github.com/sirupsen/logrus"
)

// services wires the components one command invocation needs.
type services struct {
	cfg        *config.Config
	httpClient *http.Client
	store      store.Store
	google     *google.GoogleAuth
	sessions   *session.Manager
	bookmarks  *bookmark.Client
	history    *bookmark.History
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	httpClient := util.NewHTTPClient(cfg)
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	identity, err := google.NewGoogleAuth(cfg, httpClient)
	if err != nil {
		if errClose := st.Close(); errClose != nil {
			log.Warnf("closing %s store: %v", cfg.Store.Type, errClose)
		}
		return nil, err
	}
	return &services{
		cfg:        cfg,
		httpClient: httpClient,
		store:      st,
		google:     identity,
		sessions:   session.NewManager(identity, st, httpClient, cfg.ProfileURL),
		bookmarks:  bookmark.NewClient(cfg, httpClient),
		history:    bookmark.NewHistory(st, cfg.Bookmark.MaxHistory),
	}, nil
}

func (r *services) Close() {
	if err := r.store.Close(); err != nil {
		log.Warnf("closing %s store: %v", r.cfg.Store.Type, err)
	}
}

// linePrompt reads one line from in after printing prompt to out.
func linePrompt(in io.Reader, out io.Writer) func(string) (string, error) {
	reader := bufio.NewReader(in)
	return func(prompt string) (string, error) {
		_, _ = fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
}
