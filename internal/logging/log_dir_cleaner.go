package logging

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const logDirCleanerInterval = time.Minute

// dirCleaner keeps the total size of *.log files in a directory under a limit,
// oldest first, never touching the file currently written to.
type dirCleaner struct {
	dir       string
	maxBytes  int64
	protected string
	done      chan struct{}
}

func startDirCleaner(dir string, maxBytes int64, protected string) *dirCleaner {
	dir = strings.TrimSpace(dir)
	if dir == "" || maxBytes <= 0 {
		return nil
	}
	c := &dirCleaner{
		dir:       filepath.Clean(dir),
		maxBytes:  maxBytes,
		protected: protected,
		done:      make(chan struct{}),
	}
	if c.protected != "" {
		c.protected = filepath.Clean(c.protected)
	}
	go c.run()
	return c
}

func (c *dirCleaner) stop() {
	if c != nil {
		close(c.done)
	}
}

func (c *dirCleaner) run() {
	ticker := time.NewTicker(logDirCleanerInterval)
	defer ticker.Stop()
	for {
		removed, err := c.sweep()
		if err != nil {
			log.WithError(err).Warn("logging: log directory sweep failed")
		} else if removed > 0 {
			log.Debugf("logging: removed %d old log file(s)", removed)
		}
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
	}
}

type sizedFile struct {
	path    string
	size    int64
	modTime time.Time
}

// sweep removes the oldest log files until the directory fits maxBytes.
func (c *dirCleaner) sweep() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var files []sizedFile
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || !isLogFileName(entry.Name()) {
			continue
		}
		info, errInfo := entry.Info()
		if errInfo != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, sizedFile{filepath.Join(c.dir, entry.Name()), info.Size(), info.ModTime()})
		total += info.Size()
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	removed := 0
	for _, f := range files {
		if total <= c.maxBytes {
			break
		}
		if f.path == c.protected {
			continue
		}
		if errRemove := os.Remove(f.path); errRemove != nil {
			log.WithError(errRemove).Warnf("logging: failed to remove %s", filepath.Base(f.path))
			continue
		}
		total -= f.size
		removed++
	}
	return removed, nil
}

// isLogFileName matches linkmark.log and lumberjack backups such as linkmark-2026-03-02T10-00-00.000.log.gz.
func isLogFileName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".log") || strings.HasSuffix(lower, ".log.gz")
}
