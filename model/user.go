package model

import "strings"

const anonymousName = "Anonymous"

// Identity is the calling user as vouched for by the identity provider.
// Every workflow operation receives it explicitly.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// NewIdentity trims the display name and falls back to "Anonymous".
func NewIdentity(id, displayName string) Identity {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = anonymousName
	}
	return Identity{ID: id, DisplayName: name}
}

// Counts feeds the badges on the profile screen.
type Counts struct {
	PendingIncoming int `json:"pendingIncoming"` // interested requests on my listings
	PendingOutgoing int `json:"pendingOutgoing"` // my own interested requests
}
