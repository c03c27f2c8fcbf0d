// Package events publishes workflow transitions for downstream consumers
// such as push notifications.
package events

import (
	"context"
	"time"
)

type Type string

const (
	MatchRequested   Type = "match.requested"
	MatchApproved    Type = "match.approved"
	MatchRejected    Type = "match.rejected"
	ListingCompleted Type = "listing.completed"
	ListingCancelled Type = "listing.cancelled"
	ListingDeleted   Type = "listing.deleted"
	MessagePosted    Type = "message.posted"
)

// Event is one applied transition. Recipients are the user ids that should hear about it.
type Event struct {
	Type       Type      `json:"type"`
	ListingID  string    `json:"listingId"`
	MatchID    string    `json:"matchId,omitempty"`
	ActorID    string    `json:"actorId"`
	Recipients []string  `json:"recipients,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }
