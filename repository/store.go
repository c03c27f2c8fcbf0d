// Package repository persists listings, requests and request messages.
//
// Every implementation honours the same contract: missing documents return
// model.ErrNotFound, a failed precondition returns model.ErrConflict and
// backend failures are wrapped in model.ErrStoreUnavailable.
package repository

import (
	"context"
	"fmt"

	"foodshare-api/model"
)

// ErrDuplicateMatch is returned by CreateMatch together with the existing
// active request when the seeker already has one for the listing.
var ErrDuplicateMatch = fmt.Errorf("%w: an active request already exists for this listing", model.ErrConflict)

// DefaultListLimit is the largest page any list query returns.
const DefaultListLimit = 100

// Page selects one slice of a newest-first listing query. After is the last
// listing of the previous page; nil starts at the newest listing.
// Limit is capped at DefaultListLimit.
type Page struct {
	Limit int
	After *model.FoodListing
}

// Next returns the page that follows batch, or false when batch was the last one.
func (p Page) Next(batch []model.FoodListing) (Page, bool) {
	if len(batch) == 0 || len(batch) < limitOrDefault(p.Limit) {
		return p, false
	}
	return Page{Limit: p.Limit, After: &batch[len(batch)-1]}, true
}

type ListingStore interface {
	// CreateListing assigns ID and timestamps and returns the stored listing.
	CreateListing(ctx context.Context, l *model.FoodListing) (*model.FoodListing, error)
	GetListing(ctx context.Context, id string) (*model.FoodListing, error)
	// UpdateListingContentIf rewrites the content fields when pre holds.
	UpdateListingContentIf(ctx context.Context, id string, pre model.Precondition, in model.ListingInput) (*model.FoodListing, error)
	// UpdateListingStatusIf is the compare-and-set primitive behind every listing transition.
	UpdateListingStatusIf(ctx context.Context, id string, pre model.Precondition, change model.StatusChange) (*model.FoodListing, error)
	DeleteListingIf(ctx context.Context, id string, pre model.Precondition) error

	// The list queries return one page, newest first with ties broken by ID.
	ListAvailable(ctx context.Context, page Page) ([]model.FoodListing, error)
	ListByCreator(ctx context.Context, creatorID string, page Page) ([]model.FoodListing, error)
	ListReservedBy(ctx context.Context, userID string, page Page) ([]model.FoodListing, error)
}

// MatchFilter selects requests by equality on each non-empty field.
type MatchFilter struct {
	ListingID string
	GiverID   string
	SeekerID  string
	Status    model.MatchStatus
	Limit     int
}

// Matches reports whether m passes the filter.
func (f MatchFilter) Matches(m *model.MatchRequest) bool {
	return (f.ListingID == "" || m.ListingID == f.ListingID) &&
		(f.GiverID == "" || m.GiverID == f.GiverID) &&
		(f.SeekerID == "" || m.SeekerID == f.SeekerID) &&
		(f.Status == "" || m.Status == f.Status)
}

type MatchStore interface {
	// CreateMatch stores a new request unless the seeker already holds a
	// non-rejected one for the same listing (ErrDuplicateMatch + existing).
	CreateMatch(ctx context.Context, m *model.MatchRequest) (*model.MatchRequest, error)
	GetMatch(ctx context.Context, id string) (*model.MatchRequest, error)
	UpdateMatchStatusIf(ctx context.Context, id string, expected, next model.MatchStatus) (*model.MatchRequest, error)
	// ListMatches returns matching requests, newest first.
	ListMatches(ctx context.Context, f MatchFilter) ([]model.MatchRequest, error)
	CountMatches(ctx context.Context, f MatchFilter) (int, error)
}

type MessageStore interface {
	AddMessage(ctx context.Context, matchID string, msg *model.Message) (*model.Message, error)
	// ListMessages returns the conversation oldest first.
	ListMessages(ctx context.Context, matchID string, limit int) ([]model.Message, error)
}

// Store is the full persistence collaborator.
type Store interface {
	ListingStore
	MatchStore
	MessageStore
	Ping(ctx context.Context) error
	Close() error
}

func limitOrDefault(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", model.ErrNotFound, kind, id)
}

func conflict(kind, id string) error {
	return fmt.Errorf("%w: %s %s was modified concurrently", model.ErrConflict, kind, id)
}
