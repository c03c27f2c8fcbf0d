package repository

import (
	"context"
	"errors"
	"slices"
	"time"

	"foodshare-api/model"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
)

func decodeMatch(doc *firestore.DocumentSnapshot) (*model.MatchRequest, error) {
	var m model.MatchRequest
	if err := doc.DataTo(&m); err != nil {
		return nil, err
	}
	m.ID = doc.Ref.ID
	return &m, nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*model.Message, error) {
	var msg model.Message
	if err := doc.DataTo(&msg); err != nil {
		return nil, err
	}
	msg.ID = doc.Ref.ID
	msg.MatchID = doc.Ref.Parent.Parent.ID
	return &msg, nil
}

// CreateMatch looks for an active request of the same seeker and creates the
// new one in the same transaction.
func (s *FirestoreStore) CreateMatch(ctx context.Context, m *model.MatchRequest) (*model.MatchRequest, error) {
	var existing *model.MatchRequest
	ref := s.matches().NewDoc()

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing = nil
		q := s.matches().
			Where("foodId", "==", m.ListingID).
			Where("seekerId", "==", m.SeekerID)
		found, err := collect(tx.Documents(q), decodeMatch)
		if err != nil {
			return err
		}
		for i := range found {
			if found[i].Active() {
				existing = &found[i]
				return ErrDuplicateMatch
			}
		}
		doc := *m
		doc.CreatedAt, doc.UpdatedAt = time.Time{}, time.Time{}
		return tx.Create(ref, doc)
	})
	if errors.Is(err, ErrDuplicateMatch) {
		return existing, ErrDuplicateMatch
	}
	if err != nil {
		return nil, storeErr("create request", err)
	}
	return s.GetMatch(ctx, ref.ID)
}

func (s *FirestoreStore) GetMatch(ctx context.Context, id string) (*model.MatchRequest, error) {
	doc, err := s.matches().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("request", id)
		}
		return nil, storeErr("get request", err)
	}
	m, err := decodeMatch(doc)
	if err != nil {
		return nil, storeErr("decode request", err)
	}
	return m, nil
}

func (s *FirestoreStore) UpdateMatchStatusIf(ctx context.Context, id string, expected, next model.MatchStatus) (*model.MatchRequest, error) {
	var out *model.MatchRequest
	ref := s.matches().Doc(id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return notFound("request", id)
			}
			return err
		}
		m, err := decodeMatch(doc)
		if err != nil {
			return err
		}
		if m.Status != expected {
			return conflict("request", id)
		}
		m.Status = next
		m.UpdatedAt = time.Now().UTC()
		out = m
		return tx.Update(ref, []firestore.Update{
			{Path: "status", Value: next},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return nil, storeErr("update request status", err)
	}
	return out, nil
}

func (s *FirestoreStore) matchQuery(f MatchFilter) firestore.Query {
	q := s.matches().Query
	if f.ListingID != "" {
		q = q.Where("foodId", "==", f.ListingID)
	}
	if f.GiverID != "" {
		q = q.Where("giverId", "==", f.GiverID)
	}
	if f.SeekerID != "" {
		q = q.Where("seekerId", "==", f.SeekerID)
	}
	if f.Status != "" {
		q = q.Where("status", "==", string(f.Status))
	}
	return q
}

func (s *FirestoreStore) ListMatches(ctx context.Context, f MatchFilter) ([]model.MatchRequest, error) {
	q := s.matchQuery(f).
		OrderBy("createdAt", firestore.Desc).
		Limit(limitOrDefault(f.Limit))
	out, err := collect(q.Documents(ctx), decodeMatch)
	return out, storeErr("list requests", err)
}

// CountMatches uses a server-side aggregation so badge counts do not read documents.
func (s *FirestoreStore) CountMatches(ctx context.Context, f MatchFilter) (int, error) {
	q := s.matchQuery(f)
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, storeErr("count requests", err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, nil
	}
	return int(v.GetIntegerValue()), nil
}

func (s *FirestoreStore) AddMessage(ctx context.Context, matchID string, msg *model.Message) (*model.Message, error) {
	if _, err := s.matches().Doc(matchID).Get(ctx); err != nil {
		if isNotFound(err) {
			return nil, notFound("request", matchID)
		}
		return nil, storeErr("get request", err)
	}

	doc := *msg
	doc.CreatedAt = time.Time{}
	ref, _, err := s.messages(matchID).Add(ctx, doc)
	if err != nil {
		return nil, storeErr("add message", err)
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, storeErr("get message", err)
	}
	out, err := decodeMessage(snap)
	if err != nil {
		return nil, storeErr("decode message", err)
	}
	return out, nil
}

// ListMessages reads the newest limit messages and returns them oldest first.
func (s *FirestoreStore) ListMessages(ctx context.Context, matchID string, limit int) ([]model.Message, error) {
	q := s.messages(matchID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limitOrDefault(limit))
	out, err := collect(q.Documents(ctx), decodeMessage)
	if err != nil {
		return nil, storeErr("list messages", err)
	}
	slices.Reverse(out)
	return out, nil
}
