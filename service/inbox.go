package service

import (
	"context"
	"fmt"
	"log"
	"sort"

	"foodshare-api/events"
	"foodshare-api/model"
	"foodshare-api/repository"

	"golang.org/x/sync/errgroup"
)

// Inbox serves the request lists, badge counts and the per-request chat.
type Inbox struct {
	matches   repository.MatchStore
	messages  repository.MessageStore
	publisher events.Publisher
}

func NewInbox(matches repository.MatchStore, messages repository.MessageStore, publisher events.Publisher) *Inbox {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Inbox{matches: matches, messages: messages, publisher: publisher}
}

// IncomingRequests lists requests on actor's listings, newest first. An empty status means all.
func (in *Inbox) IncomingRequests(ctx context.Context, actor model.Identity, status model.MatchStatus) ([]model.MatchRequest, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return in.matches.ListMatches(ctx, repository.MatchFilter{GiverID: actor.ID, Status: status})
}

// OutgoingRequests lists actor's own requests, newest first.
func (in *Inbox) OutgoingRequests(ctx context.Context, actor model.Identity, status model.MatchStatus) ([]model.MatchRequest, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return in.matches.ListMatches(ctx, repository.MatchFilter{SeekerID: actor.ID, Status: status})
}

func (in *Inbox) Counts(ctx context.Context, actor model.Identity) (model.Counts, error) {
	var counts model.Counts
	if err := checkActor(actor); err != nil {
		return counts, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := in.matches.CountMatches(gctx, repository.MatchFilter{GiverID: actor.ID, Status: model.MatchInterested})
		counts.PendingIncoming = n
		return err
	})
	g.Go(func() error {
		n, err := in.matches.CountMatches(gctx, repository.MatchFilter{SeekerID: actor.ID, Status: model.MatchInterested})
		counts.PendingOutgoing = n
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Counts{}, err
	}
	return counts, nil
}

// Chats lists approved requests where actor is either side, newest first.
func (in *Inbox) Chats(ctx context.Context, actor model.Identity) ([]model.Chat, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}

	var asGiver, asSeeker []model.MatchRequest
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		asGiver, err = in.matches.ListMatches(gctx, repository.MatchFilter{GiverID: actor.ID, Status: model.MatchApproved})
		return err
	})
	g.Go(func() (err error) {
		asSeeker, err = in.matches.ListMatches(gctx, repository.MatchFilter{SeekerID: actor.ID, Status: model.MatchApproved})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	chats := make([]model.Chat, 0, len(asGiver)+len(asSeeker))
	for _, m := range append(asGiver, asSeeker...) {
		chats = append(chats, model.Chat{
			MatchID:         m.ID,
			ListingID:       m.ListingID,
			ListingTitle:    m.ListingTitle,
			ListingImageRef: m.ListingImageRef,
			Name:            m.Counterpart(actor.ID),
			IsGiver:         m.GiverID == actor.ID,
			Status:          m.Status,
			CreatedAt:       m.CreatedAt,
		})
	}
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
	return chats, nil
}

// openConversation loads the request and checks that actor may use its chat.
func (in *Inbox) openConversation(ctx context.Context, actor model.Identity, requestID string) (*model.MatchRequest, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	m, err := in.matches.GetMatch(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !m.IsParticipant(actor.ID) {
		return nil, ErrNotParticipant
	}
	if m.Status != model.MatchApproved && m.Status != model.MatchCompleted {
		return nil, ErrChatClosed
	}
	return m, nil
}

func (in *Inbox) PostMessage(ctx context.Context, actor model.Identity, requestID, text string) (*model.Message, error) {
	text, err := model.ValidateMessageText(text)
	if err != nil {
		return nil, err
	}
	m, err := in.openConversation(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}

	msg, err := in.messages.AddMessage(ctx, m.ID, &model.Message{
		SenderID:          actor.ID,
		SenderDisplayName: actor.DisplayName,
		Text:              text,
	})
	if err != nil {
		return nil, err
	}

	recipient := m.GiverID
	if actor.ID == m.GiverID {
		recipient = m.SeekerID
	}
	e := events.Event{
		Type: events.MessagePosted, ListingID: m.ListingID, MatchID: m.ID,
		ActorID: actor.ID, Recipients: []string{recipient}, OccurredAt: msg.CreatedAt,
	}
	if err := in.publisher.Publish(ctx, e); err != nil {
		log.Printf("[INBOX] publish %s for request %s failed: %v", e.Type, m.ID, err)
	}
	return msg, nil
}

// Messages returns the conversation oldest first.
func (in *Inbox) Messages(ctx context.Context, actor model.Identity, requestID string, limit int) ([]model.Message, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", model.ErrValidation)
	}
	m, err := in.openConversation(ctx, actor, requestID)
	if err != nil {
		return nil, err
	}
	return in.messages.ListMessages(ctx, m.ID, limit)
}
