package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"foodshare-api/model"
	"foodshare-api/proximity"
	"foodshare-api/repository"
)

type ListingService struct {
	listings       repository.ListingStore
	radiusKm       float64
	discoveryLimit int
}

func NewListingService(listings repository.ListingStore, defaultRadiusKm float64, discoveryLimit int) *ListingService {
	if defaultRadiusKm <= 0 {
		defaultRadiusKm = proximity.DefaultRadiusKm
	}
	if discoveryLimit <= 0 {
		discoveryLimit = repository.DefaultListLimit
	}
	return &ListingService{listings: listings, radiusKm: defaultRadiusKm, discoveryLimit: discoveryLimit}
}

func (s *ListingService) CreateListing(ctx context.Context, actor model.Identity, in model.ListingInput) (*model.FoodListing, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	l := &model.FoodListing{
		CreatorID:          actor.ID,
		CreatorDisplayName: actor.DisplayName,
		Status:             model.ListingAvailable,
	}
	in.Apply(l)
	return s.listings.CreateListing(ctx, l)
}

// UpdateListing replaces the content of an available listing owned by actor.
func (s *ListingService) UpdateListing(ctx context.Context, actor model.Identity, id string, in model.ListingInput) (*model.FoodListing, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	l, err := s.listings.GetListing(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.CreatorID != actor.ID {
		return nil, ErrNotCreator
	}
	if l.Status != model.ListingAvailable {
		return nil, ErrListingNotAvailable
	}
	return s.listings.UpdateListingContentIf(ctx, id, model.Precondition{Status: model.ListingAvailable}, in)
}

func (s *ListingService) GetListing(ctx context.Context, id string) (*model.FoodListing, error) {
	return s.listings.GetListing(ctx, id)
}

// MaxSearchLength bounds the discovery text filter.
const MaxSearchLength = 100

// maxDiscoveryScan bounds how many available listings one discovery reads.
const maxDiscoveryScan = 20 * repository.DefaultListLimit

// DiscoverQuery describes the caller's position and filters. A nil Location
// disables ranking; a non-empty ViewerID hides the viewer's own listings.
type DiscoverQuery struct {
	Location *model.Coordinates
	RadiusKm float64
	Limit    int
	Category model.Category
	Search   string
	ViewerID string
}

func (q *DiscoverQuery) validate() error {
	switch {
	case q.Location != nil && !q.Location.Valid():
		return fmt.Errorf("%w: coordinates out of range", model.ErrValidation)
	case q.RadiusKm < 0 || math.IsNaN(q.RadiusKm):
		return fmt.Errorf("%w: radius must not be negative", model.ErrValidation)
	case q.Category != "" && !q.Category.Valid():
		return fmt.Errorf("%w: invalid category %q", model.ErrValidation, q.Category)
	case utf8.RuneCountInString(q.Search) > MaxSearchLength:
		return fmt.Errorf("%w: search must be at most %d characters", model.ErrValidation, MaxSearchLength)
	}
	return nil
}

// keep applies the viewer, category and text filters to one page of listings.
func (q *DiscoverQuery) keep(listings []model.FoodListing) []model.FoodListing {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]model.FoodListing, 0, len(listings))
	for _, l := range listings {
		switch {
		case q.ViewerID != "" && l.CreatorID == q.ViewerID:
		case q.Category != "" && l.Category != q.Category:
		case search != "" &&
			!strings.Contains(strings.ToLower(l.Title), search) &&
			!strings.Contains(strings.ToLower(l.Description), search):
		default:
			out = append(out, l)
		}
	}
	return out
}

// Discover ranks available listings around the caller. It reads newest first,
// page by page, until enough listings pass the filters and the radius, then
// returns the nearest of them.
func (s *ListingService) Discover(ctx context.Context, q DiscoverQuery) ([]proximity.Ranked, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	radius := q.RadiusKm
	if radius == 0 {
		radius = s.radiusKm
	}
	limit := q.Limit
	if limit <= 0 || limit > s.discoveryLimit {
		limit = s.discoveryLimit
	}

	ranked := make([]proximity.Ranked, 0, limit)
	page := repository.Page{Limit: repository.DefaultListLimit}
	for scanned := 0; scanned < maxDiscoveryScan; {
		batch, err := s.listings.ListAvailable(ctx, page)
		if err != nil {
			return nil, err
		}
		scanned += len(batch)
		ranked = append(ranked, proximity.Filter(q.Location, q.keep(batch), radius)...)
		if len(ranked) >= limit {
			break
		}
		next, more := page.Next(batch)
		if !more {
			break
		}
		page = next
	}

	proximity.SortNearest(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// MyListings lists one page of what actor has posted, newest first.
func (s *ListingService) MyListings(ctx context.Context, actor model.Identity, page repository.Page) ([]model.FoodListing, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.listings.ListByCreator(ctx, actor.ID, page)
}

// MyPickups lists one page of what actor has reserved or already picked up.
func (s *ListingService) MyPickups(ctx context.Context, actor model.Identity, page repository.Page) ([]model.FoodListing, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	return s.listings.ListReservedBy(ctx, actor.ID, page)
}

// PageAfter builds a page that resumes after the listing with id afterID.
// An empty afterID starts at the newest listing.
func (s *ListingService) PageAfter(ctx context.Context, limit int, afterID string) (repository.Page, error) {
	page := repository.Page{Limit: limit}
	if limit < 0 {
		return page, fmt.Errorf("%w: limit must not be negative", model.ErrValidation)
	}
	if afterID == "" {
		return page, nil
	}
	after, err := s.listings.GetListing(ctx, afterID)
	if errors.Is(err, model.ErrNotFound) {
		return page, fmt.Errorf("%w: unknown cursor %q", model.ErrValidation, afterID)
	}
	if err != nil {
		return page, err
	}
	page.After = after
	return page, nil
}
