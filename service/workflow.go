package service

import (
	"context"
	"errors"
	"log"
	"time"

	"foodshare-api/events"
	"foodshare-api/model"
	"foodshare-api/repository"
)

const compensationTimeout = 10 * time.Second

// Workflow drives requests and reservations. The listing and the request are
// separate documents; every transition that touches both applies the listing
// compare-and-set first and reverts it if the request write fails.
type Workflow struct {
	listings  repository.ListingStore
	matches   repository.MatchStore
	publisher events.Publisher
	now       func() time.Time
}

func NewWorkflow(listings repository.ListingStore, matches repository.MatchStore, publisher events.Publisher) *Workflow {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Workflow{
		listings:  listings,
		matches:   matches,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestListing records the actor's interest in a listing. A repeated call
// returns the request that already exists unless a cancelled reservation
// abandoned it.
func (w *Workflow) RequestListing(ctx context.Context, actor model.Identity, listingID string) (*model.MatchRequest, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	l, err := w.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.CreatorID == actor.ID {
		return nil, ErrOwnListing
	}
	if l.Status != model.ListingAvailable {
		return nil, ErrListingNotAvailable
	}

	m, err := w.matches.CreateMatch(ctx, model.NewMatchRequest(l, actor))
	if errors.Is(err, repository.ErrDuplicateMatch) {
		var replaced bool
		if m, replaced, err = w.replaceAbandoned(ctx, l, actor, m); err != nil || !replaced {
			return m, err
		}
	}
	if err != nil {
		return nil, err
	}

	w.publish(ctx, events.Event{
		Type: events.MatchRequested, ListingID: l.ID, MatchID: m.ID,
		ActorID: actor.ID, Recipients: []string{l.CreatorID},
	})
	return m, nil
}

// replaceAbandoned handles a repeated request. An approved request whose
// reservation was cancelled is declined and replaced by a fresh one; any other
// existing request is returned as it is.
func (w *Workflow) replaceAbandoned(ctx context.Context, l *model.FoodListing, actor model.Identity, existing *model.MatchRequest) (*model.MatchRequest, bool, error) {
	if existing.Status != model.MatchApproved {
		return existing, false, nil
	}
	held, err := w.reservationHeld(ctx, existing)
	if err != nil {
		return nil, false, err
	}
	if held {
		return existing, false, nil
	}
	_, err = w.matches.UpdateMatchStatusIf(ctx, existing.ID, model.MatchApproved, model.MatchRejected)
	if err != nil && !errors.Is(err, model.ErrConflict) {
		return nil, false, err
	}

	m, err := w.matches.CreateMatch(ctx, model.NewMatchRequest(l, actor))
	if errors.Is(err, repository.ErrDuplicateMatch) {
		return m, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// reservationHeld reports whether the listing behind an approved request is
// still held for its seeker. An approved request whose hold was cancelled is
// abandoned and never holds the listing again.
func (w *Workflow) reservationHeld(ctx context.Context, m *model.MatchRequest) (bool, error) {
	l, err := w.listings.GetListing(ctx, m.ListingID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return l.Status != model.ListingAvailable && l.ReservedBy != nil && *l.ReservedBy == m.SeekerID, nil
}

// Approve reserves the listing for the request's seeker. At most one of any
// number of concurrent approvals on the same listing succeeds; the others get
// ErrListingTaken and change nothing.
func (w *Workflow) Approve(ctx context.Context, actor model.Identity, requestID string) (*model.MatchRequest, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	m, err := w.matches.GetMatch(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if m.GiverID != actor.ID {
		return nil, ErrNotGiver
	}

	seeker := model.Identity{ID: m.SeekerID, DisplayName: m.SeekerDisplayName}

	switch m.Status {
	case model.MatchInterested:
	case model.MatchApproved:
		held, err := w.reservationHeld(ctx, m)
		if err != nil {
			return nil, err
		}
		if !held {
			return nil, ErrRequestNotPending
		}
		return m, nil
	default:
		return nil, ErrRequestNotPending
	}

	if _, err := w.reserve(ctx, m.ListingID, seeker); err != nil {
		return nil, err
	}

	approved, err := w.matches.UpdateMatchStatusIf(ctx, m.ID, model.MatchInterested, model.MatchApproved)
	if err != nil {
		w.revert(ctx, "approve", m.ListingID,
			model.Precondition{Status: model.ListingReserved, ReservedBy: seeker.ID}, model.Release())
		return nil, err
	}

	w.publish(ctx, events.Event{
		Type: events.MatchApproved, ListingID: m.ListingID, MatchID: m.ID,
		ActorID: actor.ID, Recipients: []string{m.SeekerID},
	})
	return approved, nil
}

func (w *Workflow) reserve(ctx context.Context, listingID string, seeker model.Identity) (*model.FoodListing, error) {
	l, err := w.listings.UpdateListingStatusIf(ctx, listingID,
		model.Precondition{Status: model.ListingAvailable}, model.ReserveFor(seeker))
	if errors.Is(err, model.ErrConflict) {
		return nil, ErrListingTaken
	}
	return l, err
}

// Reject declines an interested request, or an approved one whose reservation
// was cancelled. Rejecting a rejected request is a no-op.
func (w *Workflow) Reject(ctx context.Context, actor model.Identity, requestID string) (*model.MatchRequest, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	m, err := w.matches.GetMatch(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if m.GiverID != actor.ID {
		return nil, ErrNotGiver
	}
	switch m.Status {
	case model.MatchRejected:
		return m, nil
	case model.MatchInterested:
	case model.MatchApproved:
		held, err := w.reservationHeld(ctx, m)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, ErrRequestNotPending
		}
	default:
		return nil, ErrRequestNotPending
	}

	rejected, err := w.matches.UpdateMatchStatusIf(ctx, m.ID, m.Status, model.MatchRejected)
	if errors.Is(err, model.ErrConflict) {
		current, getErr := w.matches.GetMatch(ctx, m.ID)
		if getErr == nil && current.Status == model.MatchRejected {
			return current, nil
		}
		return nil, ErrRequestNotPending
	}
	if err != nil {
		return nil, err
	}

	w.publish(ctx, events.Event{
		Type: events.MatchRejected, ListingID: m.ListingID, MatchID: m.ID,
		ActorID: actor.ID, Recipients: []string{m.SeekerID},
	})
	return rejected, nil
}

// CompletePickup finalizes a reserved listing together with the approved request behind it.
func (w *Workflow) CompletePickup(ctx context.Context, actor model.Identity, listingID string) (*model.FoodListing, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	l, err := w.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !l.IsParty(actor.ID) {
		return nil, ErrNotParty
	}
	switch l.Status {
	case model.ListingCompleted:
		return l, nil
	case model.ListingAvailable:
		return nil, ErrListingNotReserved
	}
	if err := l.CheckReservation(); err != nil {
		return nil, err
	}

	seeker := model.Identity{ID: *l.ReservedBy}
	if l.ReservedByDisplayName != nil {
		seeker.DisplayName = *l.ReservedByDisplayName
	}

	approved, err := w.matches.ListMatches(ctx, repository.MatchFilter{
		ListingID: l.ID, SeekerID: seeker.ID, Status: model.MatchApproved, Limit: 1,
	})
	if err != nil {
		return nil, err
	}

	done, err := w.listings.UpdateListingStatusIf(ctx, l.ID,
		model.Precondition{Status: model.ListingReserved, ReservedBy: seeker.ID}, model.Complete())
	if err != nil {
		return nil, err
	}

	if len(approved) > 0 {
		m := approved[0]
		if _, err := w.matches.UpdateMatchStatusIf(ctx, m.ID, model.MatchApproved, model.MatchCompleted); err != nil {
			w.revert(ctx, "complete", l.ID,
				model.Precondition{Status: model.ListingCompleted, ReservedBy: seeker.ID}, model.ReserveFor(seeker))
			return nil, err
		}
	} else {
		log.Printf("[WORKFLOW] listing %s completed without an approved request for %s", l.ID, seeker.ID)
	}

	w.publish(ctx, events.Event{
		Type: events.ListingCompleted, ListingID: l.ID,
		ActorID: actor.ID, Recipients: otherParty(l, actor.ID),
	})
	return done, nil
}

// CancelReservation returns a reserved listing to available. The approved
// request keeps its status but is abandoned: it cannot hold the listing again
// and the giver may reject it.
func (w *Workflow) CancelReservation(ctx context.Context, actor model.Identity, listingID string) (*model.FoodListing, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	l, err := w.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	switch l.Status {
	case model.ListingCompleted:
		return nil, ErrListingCompleted
	case model.ListingAvailable:
		return w.alreadyCancelled(ctx, actor, l)
	}
	if !l.IsParty(actor.ID) {
		return nil, ErrNotParty
	}
	if err := l.CheckReservation(); err != nil {
		return nil, err
	}

	recipients := otherParty(l, actor.ID)
	released, err := w.listings.UpdateListingStatusIf(ctx, l.ID,
		model.Precondition{Status: model.ListingReserved, ReservedBy: *l.ReservedBy}, model.Release())
	if err != nil {
		return nil, err
	}

	w.publish(ctx, events.Event{
		Type: events.ListingCancelled, ListingID: l.ID,
		ActorID: actor.ID, Recipients: recipients,
	})
	return released, nil
}

// alreadyCancelled treats cancelling an available listing as a retry when the
// actor could have cancelled it.
func (w *Workflow) alreadyCancelled(ctx context.Context, actor model.Identity, l *model.FoodListing) (*model.FoodListing, error) {
	if l.CreatorID == actor.ID {
		return l, nil
	}
	n, err := w.matches.CountMatches(ctx, repository.MatchFilter{
		ListingID: l.ID, SeekerID: actor.ID, Status: model.MatchApproved,
	})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return l, nil
	}
	return nil, ErrListingNotReserved
}

// DeleteListing removes an available listing and declines the requests still open on it.
func (w *Workflow) DeleteListing(ctx context.Context, actor model.Identity, listingID string) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	l, err := w.listings.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if l.CreatorID != actor.ID {
		return ErrNotCreator
	}
	if l.Status != model.ListingAvailable {
		return ErrListingNotAvailable
	}

	if err := w.listings.DeleteListingIf(ctx, l.ID, model.Precondition{Status: model.ListingAvailable}); err != nil {
		return err
	}

	// The listing was available, so every approved request on it is abandoned.
	requests, err := w.matches.ListMatches(ctx, repository.MatchFilter{ListingID: l.ID})
	if err != nil {
		log.Printf("[WORKFLOW] listing %s deleted, could not load pending requests: %v", l.ID, err)
	}
	seekers := make([]string, 0, len(requests))
	for _, m := range requests {
		if m.Status != model.MatchInterested && m.Status != model.MatchApproved {
			continue
		}
		if _, err := w.matches.UpdateMatchStatusIf(ctx, m.ID, m.Status, model.MatchRejected); err != nil {
			log.Printf("[WORKFLOW] listing %s deleted, request %s left pending: %v", l.ID, m.ID, err)
			continue
		}
		seekers = append(seekers, m.SeekerID)
	}

	w.publish(ctx, events.Event{
		Type: events.ListingDeleted, ListingID: l.ID,
		ActorID: actor.ID, Recipients: seekers,
	})
	return nil
}

// revert undoes a listing transition whose request half failed. It runs
// detached from the caller's cancellation.
func (w *Workflow) revert(ctx context.Context, op, listingID string, pre model.Precondition, change model.StatusChange) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if _, err := w.listings.UpdateListingStatusIf(ctx, listingID, pre, change); err != nil {
		log.Printf("[WORKFLOW] %s: reverting listing %s to %s failed: %v", op, listingID, change.Status, err)
		return
	}
	log.Printf("[WORKFLOW] %s: listing %s reverted to %s", op, listingID, change.Status)
}

func (w *Workflow) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = w.now()
	if err := w.publisher.Publish(ctx, e); err != nil {
		log.Printf("[WORKFLOW] publish %s for listing %s failed: %v", e.Type, e.ListingID, err)
	}
}

func otherParty(l *model.FoodListing, actorID string) []string {
	if actorID != l.CreatorID {
		return []string{l.CreatorID}
	}
	if l.ReservedBy != nil {
		return []string{*l.ReservedBy}
	}
	return nil
}
