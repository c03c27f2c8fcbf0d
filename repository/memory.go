package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"foodshare-api/model"

	"github.com/google/uuid"
)

type memMatch struct {
	seq   int64
	match model.MatchRequest
}

// MemoryStore keeps everything in process. It serves tests and STORE_BACKEND=memory.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	listings map[string]*model.FoodListing
	matches  map[string]*memMatch
	messages map[string][]model.Message
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: make(map[string]*model.FoodListing),
		matches:  make(map[string]*memMatch),
		messages: make(map[string][]model.Message),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the timestamp source; tests use it for deterministic ordering.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }
func (s *MemoryStore) Close() error                   { return nil }

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) CreateListing(ctx context.Context, l *model.FoodListing) (*model.FoodListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *l
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.listings[stored.ID] = &stored

	out := stored
	return &out, nil
}

func (s *MemoryStore) GetListing(ctx context.Context, id string) (*model.FoodListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.listings[id]
	if !ok {
		return nil, notFound("listing", id)
	}
	out := *rec
	return &out, nil
}

func (s *MemoryStore) UpdateListingContentIf(ctx context.Context, id string, pre model.Precondition, in model.ListingInput) (*model.FoodListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.listings[id]
	if !ok {
		return nil, notFound("listing", id)
	}
	if !pre.Holds(rec) {
		return nil, conflict("listing", id)
	}
	in.Apply(rec)
	rec.UpdatedAt = s.now()

	out := *rec
	return &out, nil
}

func (s *MemoryStore) UpdateListingStatusIf(ctx context.Context, id string, pre model.Precondition, change model.StatusChange) (*model.FoodListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.listings[id]
	if !ok {
		return nil, notFound("listing", id)
	}
	if !pre.Holds(rec) {
		return nil, conflict("listing", id)
	}
	change.Apply(rec, s.now())

	out := *rec
	return &out, nil
}

func (s *MemoryStore) DeleteListingIf(ctx context.Context, id string, pre model.Precondition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.listings[id]
	if !ok {
		return notFound("listing", id)
	}
	if !pre.Holds(rec) {
		return conflict("listing", id)
	}
	delete(s.listings, id)
	return nil
}

func (s *MemoryStore) ListAvailable(ctx context.Context, page Page) ([]model.FoodListing, error) {
	return s.listListings(ctx, page, func(l *model.FoodListing) bool {
		return l.Status == model.ListingAvailable
	})
}

func (s *MemoryStore) ListByCreator(ctx context.Context, creatorID string, page Page) ([]model.FoodListing, error) {
	return s.listListings(ctx, page, func(l *model.FoodListing) bool {
		return l.CreatorID == creatorID
	})
}

func (s *MemoryStore) ListReservedBy(ctx context.Context, userID string, page Page) ([]model.FoodListing, error) {
	return s.listListings(ctx, page, func(l *model.FoodListing) bool {
		return l.ReservedBy != nil && *l.ReservedBy == userID
	})
}

// newerListing orders by creation time, then ID, both descending.
func newerListing(a, b *model.FoodListing) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func (s *MemoryStore) listListings(ctx context.Context, page Page, keep func(*model.FoodListing) bool) ([]model.FoodListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*model.FoodListing, 0, len(s.listings))
	for _, rec := range s.listings {
		if page.After != nil && !newerListing(page.After, rec) {
			continue
		}
		if keep(rec) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return newerListing(recs[i], recs[j]) })

	limit := limitOrDefault(page.Limit)
	out := make([]model.FoodListing, 0, min(limit, len(recs)))
	for _, rec := range recs {
		if len(out) == limit {
			break
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *MemoryStore) CreateMatch(ctx context.Context, m *model.MatchRequest) (*model.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.matches {
		if rec.match.ListingID == m.ListingID && rec.match.SeekerID == m.SeekerID && rec.match.Active() {
			existing := rec.match
			return &existing, ErrDuplicateMatch
		}
	}

	stored := *m
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now()
	stored.UpdatedAt = stored.CreatedAt
	s.matches[stored.ID] = &memMatch{seq: s.nextSeq(), match: stored}

	out := stored
	return &out, nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, id string) (*model.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.matches[id]
	if !ok {
		return nil, notFound("request", id)
	}
	out := rec.match
	return &out, nil
}

func (s *MemoryStore) UpdateMatchStatusIf(ctx context.Context, id string, expected, next model.MatchStatus) (*model.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.matches[id]
	if !ok {
		return nil, notFound("request", id)
	}
	if rec.match.Status != expected {
		return nil, conflict("request", id)
	}
	rec.match.Status = next
	rec.match.UpdatedAt = s.now()

	out := rec.match
	return &out, nil
}

func (s *MemoryStore) ListMatches(ctx context.Context, f MatchFilter) ([]model.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*memMatch, 0)
	for _, rec := range s.matches {
		if f.Matches(&rec.match) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if !a.match.CreatedAt.Equal(b.match.CreatedAt) {
			return a.match.CreatedAt.After(b.match.CreatedAt)
		}
		return a.seq > b.seq
	})

	limit := limitOrDefault(f.Limit)
	out := make([]model.MatchRequest, 0, min(limit, len(recs)))
	for _, rec := range recs {
		if len(out) == limit {
			break
		}
		out = append(out, rec.match)
	}
	return out, nil
}

func (s *MemoryStore) CountMatches(ctx context.Context, f MatchFilter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, rec := range s.matches {
		if f.Matches(&rec.match) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) AddMessage(ctx context.Context, matchID string, msg *model.Message) (*model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.matches[matchID]; !ok {
		return nil, notFound("request", matchID)
	}
	stored := *msg
	stored.ID = uuid.NewString()
	stored.MatchID = matchID
	stored.CreatedAt = s.now()
	s.messages[matchID] = append(s.messages[matchID], stored)

	out := stored
	return &out, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, matchID string, limit int) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[matchID]
	limit = limitOrDefault(limit)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
