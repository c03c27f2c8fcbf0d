package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/storage"
	"google.golang.org/api/option"
)

// Firebase holds the clients built from one Firebase app.
type Firebase struct {
	Firestore *firestore.Client
	Auth      *auth.Client
	Storage   *storage.Client
}

// InitFirebase connects to Firebase with a service-account key file.
// storageBucket may be empty when images are not kept in Firebase Storage.
func InitFirebase(ctx context.Context, credentialsPath, storageBucket string) (*Firebase, error) {
	opt := option.WithCredentialsFile(credentialsPath)

	var conf *firebase.Config
	if storageBucket != "" {
		conf = &firebase.Config{StorageBucket: storageBucket}
	}

	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("auth client: %w", err)
	}

	storageClient, err := app.Storage(ctx)
	if err != nil {
		firestoreClient.Close()
		return nil, fmt.Errorf("storage client: %w", err)
	}

	return &Firebase{Firestore: firestoreClient, Auth: authClient, Storage: storageClient}, nil
}

func (f *Firebase) Close() error {
	return f.Firestore.Close()
}
