package util

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// IsRemoteSession reports whether the process runs inside an SSH session, where the
// loopback OAuth callback is not reachable from the user's browser without a tunnel.
func IsRemoteSession() bool {
	for _, key := range []string{"SSH_CONNECTION", "SSH_CLIENT", "SSH_TTY"} {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			return true
		}
	}
	return false
}

// outboundIP returns the local address used for outbound traffic.
// No packets are sent; dialing UDP only selects a route.
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Warnf("Failed to close UDP connection: %v", closeErr)
		}
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("could not assert UDP address type")
	}
	return localAddr.IP.String(), nil
}

// PrintSSHTunnelInstructions writes the ssh -L command that forwards the OAuth
// callback port from the user's machine to this host.
func PrintSSHTunnelInstructions(w io.Writer, port int) {
	host, err := outboundIP()
	if err != nil {
		log.Debugf("outbound IP lookup failed: %v", err)
		host = "<this-host>"
	}
	border := strings.Repeat("=", 80)
	_, _ = fmt.Fprintln(w, "To sign in from a remote machine, forward the callback port first.")
	_, _ = fmt.Fprintln(w, border)
	_, _ = fmt.Fprintln(w, "  Run on your local machine (NOT this host):")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "  ssh -L %d:127.0.0.1:%d <user>@%s -p 22\n", port, port, host)
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "  Change '-p 22' if the SSH port differs.")
	_, _ = fmt.Fprintln(w, border)
}
