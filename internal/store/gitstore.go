package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	log "github.com/sirupsen/logrus"
)

// GitStoreConfig configures the git-backed store. Without Remote the repository
// is local only and changes are committed but never pushed.
type GitStoreConfig struct {
	RepoDir  string
	Remote   string
	Username string
	Password string
}

// GitStore keeps state.json in a git working tree; every Set and Clear is a commit.
type GitStore struct {
	documentStore
	repoDir string
}

// NewGitStore clones, initializes or opens the repository in cfg.RepoDir.
func NewGitStore(cfg GitStoreConfig) (*GitStore, error) {
	repoDir := strings.TrimSpace(cfg.RepoDir)
	if repoDir == "" {
		return nil, fmt.Errorf("git store: repository directory not configured")
	}
	if abs, err := filepath.Abs(repoDir); err == nil {
		repoDir = abs
	}
	b := &gitBackend{
		file:     fileBackend{path: filepath.Join(repoDir, StateFileName)},
		repoDir:  repoDir,
		remote:   strings.TrimSpace(cfg.Remote),
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
	}
	if err := b.ensureRepository(); err != nil {
		return nil, err
	}
	return &GitStore{documentStore: documentStore{name: "git", backend: b}, repoDir: repoDir}, nil
}

// Path returns the state file inside the working tree.
func (s *GitStore) Path() string { return filepath.Join(s.repoDir, StateFileName) }

type gitBackend struct {
	file     fileBackend
	repoDir  string
	remote   string
	username string
	password string
}

func (b *gitBackend) auth() transport.AuthMethod {
	if b.username == "" && b.password == "" {
		return nil
	}
	user := b.username
	if user == "" {
		user = "git"
	}
	return &http.BasicAuth{Username: user, Password: b.password}
}

func (b *gitBackend) ensureRepository() error {
	gitDir := filepath.Join(b.repoDir, ".git")
	_, errStat := os.Stat(gitDir)
	switch {
	case errors.Is(errStat, fs.ErrNotExist):
		if err := os.MkdirAll(b.repoDir, 0o700); err != nil {
			return fmt.Errorf("git store: create repo dir: %w", err)
		}
		if b.remote == "" {
			if _, err := git.PlainInit(b.repoDir, false); err != nil {
				return fmt.Errorf("git store: init repo: %w", err)
			}
			return nil
		}
		_, errClone := git.PlainClone(b.repoDir, &git.CloneOptions{Auth: b.auth(), URL: b.remote})
		if errClone == nil {
			return nil
		}
		if !errors.Is(errClone, transport.ErrEmptyRemoteRepository) {
			return fmt.Errorf("git store: clone remote: %w", errClone)
		}
		_ = os.RemoveAll(gitDir)
		repo, err := git.PlainInit(b.repoDir, false)
		if err != nil {
			return fmt.Errorf("git store: init empty repo: %w", err)
		}
		if _, err = repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{b.remote}}); err != nil && !errors.Is(err, git.ErrRemoteExists) {
			return fmt.Errorf("git store: configure remote: %w", err)
		}
		return nil
	case errStat != nil:
		return fmt.Errorf("git store: stat repo: %w", errStat)
	}

	if b.remote == "" {
		return nil
	}
	repo, err := git.PlainOpen(b.repoDir)
	if err != nil {
		return fmt.Errorf("git store: open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git store: worktree: %w", err)
	}
	if errPull := worktree.Pull(&git.PullOptions{Auth: b.auth(), RemoteName: "origin"}); errPull != nil {
		switch {
		case errors.Is(errPull, git.NoErrAlreadyUpToDate),
			errors.Is(errPull, git.ErrUnstagedChanges),
			errors.Is(errPull, git.ErrNonFastForwardUpdate),
			errors.Is(errPull, plumbing.ErrReferenceNotFound),
			errors.Is(errPull, transport.ErrEmptyRemoteRepository):
			// Local state wins over divergent or empty remotes.
		default:
			return fmt.Errorf("git store: pull: %w", errPull)
		}
	}
	return nil
}

func (b *gitBackend) read(ctx context.Context) ([]byte, error) {
	return b.file.read(ctx)
}

func (b *gitBackend) write(ctx context.Context, doc []byte) error {
	if err := b.file.write(ctx, doc); err != nil {
		return err
	}
	return b.commitAndPush("Update linkmark state")
}

func (b *gitBackend) remove(ctx context.Context) error {
	if _, err := os.Stat(b.file.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := b.file.remove(ctx); err != nil {
		return err
	}
	return b.commitAndPush("Clear linkmark state")
}

func (b *gitBackend) close() error { return nil }

func (b *gitBackend) commitAndPush(message string) error {
	repo, err := git.PlainOpen(b.repoDir)
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if _, err = worktree.Add(StateFileName); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("add %s: %w", StateFileName, err)
		}
		if _, errRemove := worktree.Remove(StateFileName); errRemove != nil && !errors.Is(errRemove, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", StateFileName, errRemove)
		}
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "LinkMark", Email: "linkmark@local", When: time.Now()},
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return fmt.Errorf("commit: %w", err)
	}
	if b.remote == "" {
		return nil
	}
	if err = repo.Push(&git.PushOptions{Auth: b.auth()}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", err)
	}
	log.Debugf("git store: pushed %q", message)
	return nil
}
