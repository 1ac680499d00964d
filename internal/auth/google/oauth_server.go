package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const callbackPath = "/oauth2callback"

const successHTML = `<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>LinkMark</title></head>
<body style="font-family:sans-serif;text-align:center;padding-top:4em">
<h1>Signed in to LinkMark</h1><p>You can close this window and return to the terminal.</p>
</body></html>`

// callbackServer is the loopback HTTP server that receives the authorization redirect.
type callbackServer struct {
	server   *http.Server
	listener net.Listener
	results  chan *CallbackResult
	errs     chan error
	mu       sync.Mutex
	running  bool
}

// startCallbackServer listens on 127.0.0.1:port. Port 0 picks a free port.
func startCallbackServer(port int) (*callbackServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, NewAuthenticationError(ErrPortInUse, err)
		}
		return nil, NewAuthenticationError(ErrServerStartFailed, err)
	}

	s := &callbackServer{
		listener: listener,
		results:  make(chan *CallbackResult, 1),
		errs:     make(chan error, 1),
		running:  true,
	}
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, s.handleCallback)
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if errServe := s.server.Serve(listener); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			select {
			case s.errs <- NewAuthenticationError(ErrServerStartFailed, errServe):
			default:
			}
		}
	}()
	return s, nil
}

// redirectURL is the value registered as the OAuth redirect_uri.
func (s *callbackServer) redirectURL() string {
	return fmt.Sprintf("http://localhost:%d%s", s.listener.Addr().(*net.TCPAddr).Port, callbackPath)
}

func (s *callbackServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	query := r.URL.Query()
	result := &CallbackResult{
		Code:             query.Get("code"),
		State:            query.Get("state"),
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
	switch {
	case result.Error != "":
		log.Warnf("OAuth error received: %s", result.Error)
		http.Error(w, fmt.Sprintf("Sign-in failed: %s", result.Error), http.StatusBadRequest)
	case result.Code == "":
		result.Error = "no_code"
		http.Error(w, "No authorization code received", http.StatusBadRequest)
	default:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(successHTML))
	}
	select {
	case s.results <- result:
	default:
		log.Debug("OAuth callback already received, ignoring duplicate")
	}
}

// stop shuts the server down; it is safe to call more than once.
func (s *callbackServer) stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Debugf("OAuth callback server shutdown: %v", err)
	}
}
