// Package browser opens URLs in the user's default web browser.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

var linuxOpeners = []string{"xdg-open", "x-www-browser", "www-browser", "sensible-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens url with open-golang and falls back to a platform command.
func OpenURL(url string) error {
	err := open.Start(url)
	if err == nil {
		log.Debug("Opened URL with open-golang")
		return nil
	}
	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openURLPlatformSpecific(url)
}

func openURLPlatformSpecific(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd":
		name := firstInPath(linuxOpeners)
		if name == "" {
			return fmt.Errorf("no suitable browser found")
		}
		cmd = exec.Command(name, url)
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	log.Debugf("Running command: %s %v", cmd.Path, cmd.Args[1:])
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// IsAvailable reports whether a browser opener exists. It never launches anything.
// On Linux a display is also required.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin":
		return firstInPath([]string{"open"}) != ""
	case "windows":
		return firstInPath([]string{"rundll32"}) != ""
	case "linux", "freebsd", "openbsd":
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return false
		}
		return firstInPath(linuxOpeners) != ""
	default:
		return false
	}
}

func firstInPath(names []string) string {
	for _, name := range names {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	return ""
}
