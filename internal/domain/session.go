// Package domain contains entities without logic, just meta-data.
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

const (
	MinSessionNameLen = 3
	MaxSessionNameLen = 50
)

var objectIDPattern = regexp.MustCompile(`^[a-fA-F0-9]{24}$`)

// Session is the persisted study-session record. Participants is the durable
// membership (joined and not left); live presence is tracked separately by
// the room registry and the two views may diverge.
type Session struct {
	ID           string    `json:"id"`
	Name         string    `json:"sessionName"`
	CreatorID    string    `json:"creatorId"`
	Description  string    `json:"description,omitempty"`
	Active       bool      `json:"isActive"`
	MicOnly      bool      `json:"micOnly"`
	Participants []string  `json:"participants"`
	RaisedHands  []string  `json:"raisedHands"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// SessionPatch holds the updatable fields. A nil field is left unchanged.
type SessionPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p SessionPatch) Empty() bool {
	return p.Title == nil && p.Description == nil
}

// SessionFilter narrows a session listing.
type SessionFilter struct {
	CreatorID string
	Active    *bool
}

// NewObjectID returns a 24-hex identifier (12 random bytes).
func NewObjectID() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// IsValidID reports whether id is a well-formed 24-hex object identifier.
func IsValidID(id string) bool {
	return objectIDPattern.MatchString(id)
}

// ValidateSessionName trims the name and enforces the 3-50 char rule.
func ValidateSessionName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if len(trimmed) < MinSessionNameLen || len(trimmed) > MaxSessionNameLen {
		return "", &ValidationError{Field: "sessionName", Reason: "must be between 3 and 50 characters"}
	}
	return trimmed, nil
}
