// Package session owns the signed-in state of LinkMark: it runs the identity
// flow, fetches the Google profile, and persists or clears the Session record.
package session

import "strings"

// UserInfo is the subset of the Google profile LinkMark keeps.
type UserInfo struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// DisplayName returns the profile name, or "User" when Google returned none.
func (u UserInfo) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	return "User"
}

// Session is the persisted sign-in record. Its fields are written and cleared together.
type Session struct {
	AccessToken     string   `json:"accessToken"`
	UserInfo        UserInfo `json:"userInfo"`
	IsAuthenticated bool     `json:"isAuthenticated"`
}
