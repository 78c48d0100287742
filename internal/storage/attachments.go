package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"contact-service/internal/models"
)

// Attachment describes a stored blob.
type Attachment struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// AttachmentStore abstracts blob storage for message attachments.
type AttachmentStore interface {
	Upload(ctx context.Context, conversationID, filename, mimeType string, content io.Reader) (Attachment, error)
	Open(ctx context.Context, fileID string) (io.ReadCloser, Attachment, error)
	Delete(ctx context.Context, fileID string) error
}

// GridFSStore keeps attachments in MongoDB GridFS.
type GridFSStore struct {
	bucket *gridfs.Bucket
}

// Connect opens the Mongo client and the attachments bucket.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *GridFSStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	bucket, err := gridfs.NewBucket(client.Database(database), options.GridFSBucket().SetName("attachments"))
	if err != nil {
		return nil, nil, fmt.Errorf("open gridfs bucket: %w", err)
	}
	return client, &GridFSStore{bucket: bucket}, nil
}

// Upload stores the blob under a timestamp-prefixed name and returns
// its retrieval reference.
func (s *GridFSStore) Upload(ctx context.Context, conversationID, filename, mimeType string, content io.Reader) (Attachment, error) {
	storedName := fmt.Sprintf("%d_%s", time.Now().UnixMilli(), filename)
	metadata := bson.M{
		"conversation_id": conversationID,
		"mime_type":       mimeType,
		"uploaded_at":     time.Now().UTC(),
	}

	opts := options.GridFSUpload().SetMetadata(metadata)
	stream, err := s.bucket.OpenUploadStream(storedName, opts)
	if err != nil {
		return Attachment{}, fmt.Errorf("open upload stream: %w", err)
	}

	size, err := io.Copy(stream, content)
	if err != nil {
		stream.Close()
		return Attachment{}, fmt.Errorf("copy attachment: %w", err)
	}
	if err := stream.Close(); err != nil {
		return Attachment{}, fmt.Errorf("close upload stream: %w", err)
	}

	id := stream.FileID.(primitive.ObjectID).Hex()
	return Attachment{
		ID:       id,
		URL:      "/attachments/" + id,
		Filename: filename,
		MimeType: mimeType,
		Size:     size,
	}, nil
}

// Open returns a read stream and metadata for a stored blob.
func (s *GridFSStore) Open(ctx context.Context, fileID string) (io.ReadCloser, Attachment, error) {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return nil, Attachment{}, fmt.Errorf("invalid attachment id: %w", err)
	}

	stream, err := s.bucket.OpenDownloadStream(objectID)
	if err != nil {
		return nil, Attachment{}, fmt.Errorf("open download stream: %w", err)
	}

	file := stream.GetFile()
	var metadata bson.M
	if file.Metadata != nil {
		_ = bson.Unmarshal(file.Metadata, &metadata)
	}

	att := Attachment{
		ID:       fileID,
		URL:      "/attachments/" + fileID,
		Filename: file.Name,
		Size:     file.Length,
	}
	if metadata != nil {
		if mime, ok := metadata["mime_type"].(string); ok {
			att.MimeType = mime
		}
	}
	return stream, att, nil
}

// Delete removes a stored blob by reference.
func (s *GridFSStore) Delete(ctx context.Context, fileID string) error {
	objectID, err := primitive.ObjectIDFromHex(fileID)
	if err != nil {
		return fmt.Errorf("invalid attachment id: %w", err)
	}
	return s.bucket.Delete(objectID)
}

// FileIDFromURL extracts the blob reference from a stored retrieval URL.
func FileIDFromURL(url string) string {
	return strings.TrimPrefix(url, "/attachments/")
}

// ClassifyMIME maps a MIME type to the message type it produces.
func ClassifyMIME(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.MessageImage
	case mimeType == "application/pdf":
		return models.MessagePDF
	default:
		return models.MessageFile
	}
}
