package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFSImageStore keeps photos in MongoDB GridFS and serves them back
// through the API under urlPrefix.
type GridFSImageStore struct {
	bucket    *gridfs.Bucket
	urlPrefix string
}

func NewGridFSImageStore(db *mongo.Database, urlPrefix string) (*GridFSImageStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("images"))
	if err != nil {
		return nil, err
	}
	return &GridFSImageStore{bucket: bucket, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func (s *GridFSImageStore) Upload(ctx context.Context, r io.Reader, contentType string) (*Image, error) {
	contentType, err := CheckContentType(contentType)
	if err != nil {
		return nil, err
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "contentType", Value: contentType}})
	stream, err := s.bucket.OpenUploadStream("photo"+extension(contentType), opts)
	if err != nil {
		return nil, unavailable("upload image", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetWriteDeadline(deadline)
	}

	if _, err := io.Copy(stream, io.LimitReader(r, MaxImageBytes)); err != nil {
		_ = stream.Abort()
		return nil, unavailable("upload image", err)
	}
	if err := stream.Close(); err != nil {
		return nil, unavailable("upload image", err)
	}

	id := stream.FileID.(primitive.ObjectID).Hex()
	return &Image{ID: id, URL: s.urlPrefix + "/" + id, ContentType: contentType}, nil
}

func (s *GridFSImageStore) Open(ctx context.Context, id string) (io.ReadCloser, string, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, "", notFound(id)
	}

	stream, err := s.bucket.OpenDownloadStream(objID)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, "", notFound(id)
	}
	if err != nil {
		return nil, "", unavailable("open image", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = stream.SetReadDeadline(deadline)
	}

	contentType := "application/octet-stream"
	if f := stream.GetFile(); f != nil && f.Metadata != nil {
		if v, ok := f.Metadata.Lookup("contentType").StringValueOK(); ok {
			contentType = v
		}
	}
	return stream, contentType, nil
}
