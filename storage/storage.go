// Package storage keeps listing photos outside the document store.
// Listings only carry the returned reference.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"foodshare-api/model"
)

const MaxImageBytes = 5 << 20

// Image is a stored photo. URL is what goes into a listing's imageRef.
type Image struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
}

type ImageStore interface {
	Upload(ctx context.Context, r io.Reader, contentType string) (*Image, error)
	// Open streams a stored image. The caller closes the reader.
	Open(ctx context.Context, id string) (io.ReadCloser, string, error)
}

// CheckContentType accepts jpeg, png, webp and heic photos and returns the bare media type.
func CheckContentType(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: unreadable content type %q", model.ErrValidation, contentType)
	}
	switch mediaType {
	case "image/jpeg", "image/png", "image/webp", "image/heic":
		return mediaType, nil
	}
	return "", fmt.Errorf("%w: unsupported image type %q", model.ErrValidation, mediaType)
}

func extension(contentType string) string {
	return "." + strings.TrimPrefix(contentType, "image/")
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStoreUnavailable, err)
}

func notFound(id string) error {
	return fmt.Errorf("%w: image %s", model.ErrNotFound, id)
}
