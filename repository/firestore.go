package repository

import (
	"context"
	"errors"
	"log"

	"foodshare-api/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collection names are shared with the mobile client.
const (
	listingsCollection = "foods"
	matchesCollection  = "matches"
	messagesCollection = "messages"
)

// FirestoreStore keeps listings in "foods", requests in "matches" and the
// conversation of each request in "matches/{id}/messages".
// Every conditional write runs inside a Firestore transaction.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) listings() *firestore.CollectionRef {
	return s.client.Collection(listingsCollection)
}

func (s *FirestoreStore) matches() *firestore.CollectionRef {
	return s.client.Collection(matchesCollection)
}

func (s *FirestoreStore) messages(matchID string) *firestore.CollectionRef {
	return s.matches().Doc(matchID).Collection(messagesCollection)
}

// Ping reads at most one listing to prove the backend answers.
func (s *FirestoreStore) Ping(ctx context.Context) error {
	iter := s.listings().Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return unavailable("ping", err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// storeErr keeps the workflow kinds returned from inside a transaction and
// wraps everything else as a backend failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrConflict) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Printf("[FIRESTORE] %s failed: %v", op, err)
	return unavailable(op, err)
}

// collect drains a query iterator through decode.
func collect[T any](iter *firestore.DocumentIterator, decode func(*firestore.DocumentSnapshot) (*T, error)) ([]T, error) {
	defer iter.Stop()
	out := make([]T, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		v, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}
