package google

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// generateState returns a random hex state for CSRF protection.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CallbackResult holds the parameters Google appends to the redirect URL.
type CallbackResult struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// ParseCallback extracts OAuth parameters from a pasted redirect URL. Bare
// query strings ("code=...&state=...") and host-relative URLs are accepted.
// It returns nil, nil for blank input so a prompt can keep waiting.
func ParseCallback(input string) (*CallbackResult, error) {
	candidate := strings.TrimSpace(input)
	if candidate == "" {
		return nil, nil
	}
	if !strings.Contains(candidate, "://") {
		switch {
		case strings.HasPrefix(candidate, "?"):
			candidate = "http://localhost" + candidate
		case strings.ContainsAny(candidate, "/?#:"):
			candidate = "http://" + candidate
		case strings.Contains(candidate, "="):
			candidate = "http://localhost/?" + candidate
		default:
			return nil, fmt.Errorf("invalid callback URL")
		}
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return nil, err
	}

	values := parsed.Query()
	if parsed.Fragment != "" {
		if frag, errFrag := url.ParseQuery(parsed.Fragment); errFrag == nil {
			for k, v := range frag {
				if values.Get(k) == "" {
					values[k] = v
				}
			}
		}
	}
	result := &CallbackResult{
		Code:             strings.TrimSpace(values.Get("code")),
		State:            strings.TrimSpace(values.Get("state")),
		Error:            strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}
	if result.Error == "" && result.ErrorDescription != "" {
		result.Error, result.ErrorDescription = result.ErrorDescription, ""
	}
	if result.Code == "" && result.Error == "" {
		return nil, fmt.Errorf("callback URL missing code")
	}
	return result, nil
}
