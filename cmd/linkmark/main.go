// Package main is the entry point of the linkmark bookmark client.
package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/router-for-me/linkmark/internal/buildinfo"
	"github.com/router-for-me/linkmark/internal/cmd"
	"github.com/router-for-me/linkmark/internal/logging"
	log "github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	// Load environment variables from .env if present.
	if wd, err := os.Getwd(); err == nil {
		if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}
	cmd.Execute()
}
