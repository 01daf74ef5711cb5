package model

import (
	"slices"
	"time"
)

// AccessToken is a stored personal access token. Only the digest of the
// secret is persisted.
type AccessToken struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	TokenHash  string     `json:"-"`
	Scopes     []string   `json:"abilities"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewAccessToken is returned exactly once, right after issuing. PlainText
// cannot be recovered from storage afterwards.
type NewAccessToken struct {
	AccessToken
	PlainText string
}

// Caller is the identity resolved from a presented bearer token.
type Caller struct {
	User    *User
	TokenID int64
	Scopes  []string
}

// Can reports whether the caller's token carries the scope. "*" grants all.
func (c *Caller) Can(scope string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Scopes, "*") || slices.Contains(c.Scopes, scope)
}
