package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const imagePrefix = "foods/"

// FirebaseImageStore writes to the Firebase Storage bucket and hands out the
// token download URL the mobile client already understands.
type FirebaseImageStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

func NewFirebaseImageStore(bucket *gcs.BucketHandle, bucketName string) *FirebaseImageStore {
	return &FirebaseImageStore{bucket: bucket, bucketName: bucketName}
}

func (s *FirebaseImageStore) objectName(id string) string {
	return imagePrefix + path.Base(id)
}

func (s *FirebaseImageStore) downloadURL(object, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		s.bucketName, url.PathEscape(object), token)
}

func (s *FirebaseImageStore) Upload(ctx context.Context, r io.Reader, contentType string) (*Image, error) {
	contentType, err := CheckContentType(contentType)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString() + extension(contentType)
	object := s.objectName(id)
	token := uuid.NewString()

	// Cancelling the writer's context discards the object; Close alone would commit what was copied.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.bucket.Object(object).NewWriter(wctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}

	if _, err := io.Copy(w, io.LimitReader(r, MaxImageBytes)); err != nil {
		cancel()
		_ = w.Close()
		return nil, unavailable("upload image", err)
	}
	if err := w.Close(); err != nil {
		return nil, unavailable("upload image", err)
	}

	return &Image{ID: id, URL: s.downloadURL(object, token), ContentType: contentType}, nil
}

func (s *FirebaseImageStore) Open(ctx context.Context, id string) (io.ReadCloser, string, error) {
	r, err := s.bucket.Object(s.objectName(id)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, "", notFound(id)
	}
	if err != nil {
		return nil, "", unavailable("open image", err)
	}
	return r, r.Attrs.ContentType, nil
}
