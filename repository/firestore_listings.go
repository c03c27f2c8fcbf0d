package repository

import (
	"context"
	"time"

	"foodshare-api/model"

	"cloud.google.com/go/firestore"
)

func decodeListing(doc *firestore.DocumentSnapshot) (*model.FoodListing, error) {
	var l model.FoodListing
	if err := doc.DataTo(&l); err != nil {
		return nil, err
	}
	l.ID = doc.Ref.ID
	return &l, nil
}

func (s *FirestoreStore) CreateListing(ctx context.Context, l *model.FoodListing) (*model.FoodListing, error) {
	ref := s.listings().NewDoc()
	doc := *l
	doc.CreatedAt, doc.UpdatedAt = time.Time{}, time.Time{}
	if _, err := ref.Create(ctx, doc); err != nil {
		return nil, storeErr("create listing", err)
	}
	return s.GetListing(ctx, ref.ID)
}

func (s *FirestoreStore) GetListing(ctx context.Context, id string) (*model.FoodListing, error) {
	doc, err := s.listings().Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("listing", id)
		}
		return nil, storeErr("get listing", err)
	}
	l, err := decodeListing(doc)
	if err != nil {
		return nil, storeErr("decode listing", err)
	}
	return l, nil
}

// conditional reads the listing inside tx, checks pre and hands it to write.
func (s *FirestoreStore) conditional(ctx context.Context, op, id string, pre model.Precondition,
	write func(tx *firestore.Transaction, ref *firestore.DocumentRef, l *model.FoodListing) error) error {
	ref := s.listings().Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return notFound("listing", id)
			}
			return err
		}
		l, err := decodeListing(doc)
		if err != nil {
			return err
		}
		if !pre.Holds(l) {
			return conflict("listing", id)
		}
		return write(tx, ref, l)
	})
	return storeErr(op, err)
}

func (s *FirestoreStore) UpdateListingContentIf(ctx context.Context, id string, pre model.Precondition, in model.ListingInput) (*model.FoodListing, error) {
	var out *model.FoodListing
	err := s.conditional(ctx, "update listing", id, pre, func(tx *firestore.Transaction, ref *firestore.DocumentRef, l *model.FoodListing) error {
		in.Apply(l)
		l.UpdatedAt = time.Now().UTC()
		out = l
		return tx.Update(ref, []firestore.Update{
			{Path: "title", Value: in.Title},
			{Path: "description", Value: in.Description},
			{Path: "priceCents", Value: in.PriceCents},
			{Path: "originalPriceCents", Value: in.OriginalPriceCents},
			{Path: "category", Value: in.Category},
			{Path: "storageCondition", Value: in.StorageCondition},
			{Path: "packageStatus", Value: in.PackageStatus},
			{Path: "expiryLabel", Value: in.ExpiryLabel},
			{Path: "location", Value: in.Location},
			{Path: "imageRef", Value: in.ImageRef},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func statusUpdates(change model.StatusChange) []firestore.Update {
	updates := []firestore.Update{
		{Path: "status", Value: change.Status},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	switch change.Status {
	case model.ListingAvailable:
		updates = append(updates,
			firestore.Update{Path: "reservedBy", Value: nil},
			firestore.Update{Path: "reservedByUsername", Value: nil},
		)
	case model.ListingReserved:
		updates = append(updates,
			firestore.Update{Path: "reservedBy", Value: change.ReservedBy},
			firestore.Update{Path: "reservedByUsername", Value: change.ReservedByDisplayName},
		)
	}
	return updates
}

func (s *FirestoreStore) UpdateListingStatusIf(ctx context.Context, id string, pre model.Precondition, change model.StatusChange) (*model.FoodListing, error) {
	var out *model.FoodListing
	err := s.conditional(ctx, "update listing status", id, pre, func(tx *firestore.Transaction, ref *firestore.DocumentRef, l *model.FoodListing) error {
		change.Apply(l, time.Now().UTC())
		out = l
		return tx.Update(ref, statusUpdates(change))
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FirestoreStore) DeleteListingIf(ctx context.Context, id string, pre model.Precondition) error {
	return s.conditional(ctx, "delete listing", id, pre, func(tx *firestore.Transaction, ref *firestore.DocumentRef, _ *model.FoodListing) error {
		return tx.Delete(ref)
	})
}

// listPage orders newest first with the document ID as tie-breaker so a page
// can resume after the last listing of the previous one.
func (s *FirestoreStore) listPage(ctx context.Context, op string, q firestore.Query, page Page) ([]model.FoodListing, error) {
	q = q.OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc)
	if page.After != nil {
		q = q.StartAfter(page.After.CreatedAt, page.After.ID)
	}
	out, err := collect(q.Limit(limitOrDefault(page.Limit)).Documents(ctx), decodeListing)
	return out, storeErr(op, err)
}

func (s *FirestoreStore) ListAvailable(ctx context.Context, page Page) ([]model.FoodListing, error) {
	q := s.listings().Where("status", "==", string(model.ListingAvailable))
	return s.listPage(ctx, "list available", q, page)
}

func (s *FirestoreStore) ListByCreator(ctx context.Context, creatorID string, page Page) ([]model.FoodListing, error) {
	q := s.listings().Where("createdBy", "==", creatorID)
	return s.listPage(ctx, "list by creator", q, page)
}

func (s *FirestoreStore) ListReservedBy(ctx context.Context, userID string, page Page) ([]model.FoodListing, error) {
	q := s.listings().Where("reservedBy", "==", userID)
	return s.listPage(ctx, "list reserved by", q, page)
}
