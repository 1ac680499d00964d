package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/router-for-me/linkmark/internal/buildinfo"
	"github.com/router-for-me/linkmark/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy configures the provided HTTP client with the proxy URL.
// It supports SOCKS5, HTTP, and HTTPS proxies. An empty or unparsable URL leaves
// the client untouched.
func SetProxy(proxyURL string, httpClient *http.Client) *http.Client {
	proxyURL = strings.TrimSpace(proxyURL)
	if proxyURL == "" {
		return httpClient
	}
	var transport *http.Transport
	parsed, errParse := url.Parse(proxyURL)
	if errParse == nil {
		if parsed.Scheme == "socks5" {
			var proxyAuth *proxy.Auth
			if parsed.User != nil {
				username := parsed.User.Username()
				password, _ := parsed.User.Password()
				proxyAuth = &proxy.Auth{User: username, Password: password}
			}
			dialer, errSOCKS5 := proxy.SOCKS5("tcp", parsed.Host, proxyAuth, proxy.Direct)
			if errSOCKS5 != nil {
				log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
				return httpClient
			}
			transport = &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				},
			}
		} else if parsed.Scheme == "http" || parsed.Scheme == "https" {
			transport = &http.Transport{Proxy: http.ProxyURL(parsed)}
		}
	}
	if transport != nil {
		httpClient.Transport = &userAgentTransport{base: transport}
	}
	return httpClient
}

// NewHTTPClient returns a client honoring the configured proxy and request timeout.
func NewHTTPClient(cfg *config.Config) *http.Client {
	client := &http.Client{Transport: &userAgentTransport{base: http.DefaultTransport}}
	if cfg == nil {
		return client
	}
	client.Timeout = cfg.RequestTimeout
	return SetProxy(cfg.ProxyURL, client)
}

// userAgentTransport stamps outbound requests with the linkmark User-Agent.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", buildinfo.UserAgent())
	}
	return t.base.RoundTrip(req)
}
