package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// UploadResult identifies a stored object
type UploadResult struct {
	URL       string
	StorageID string
}

// ObjectStore stores and deletes uploaded documents
type ObjectStore interface {
	Upload(ctx context.Context, file io.Reader, folder string) (*UploadResult, error)
	Delete(ctx context.Context, storageID string) error
}

// CloudinaryStore is the Cloudinary-backed object store
type CloudinaryStore struct {
	client *cloudinary.Cloudinary
}

// NewCloudinaryStore creates an object store from a cloudinary:// URL
func NewCloudinaryStore(url string) (*CloudinaryStore, error) {
	client, err := cloudinary.NewFromURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	return &CloudinaryStore{client: client}, nil
}

// Upload stores a document and returns its public URL and deletion handle
func (s *CloudinaryStore) Upload(ctx context.Context, file io.Reader, folder string) (*UploadResult, error) {
	resp, err := s.client.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         folder,
		ResourceType:   "auto",
		UniqueFilename: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload document: %w", err)
	}
	if resp.Error.Message != "" {
		return nil, fmt.Errorf("failed to upload document: %s", resp.Error.Message)
	}

	return &UploadResult{
		URL:       resp.SecureURL,
		StorageID: resp.PublicID,
	}, nil
}

// Delete removes a stored document by its deletion handle
func (s *CloudinaryStore) Delete(ctx context.Context, storageID string) error {
	_, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: storageID})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", storageID, err)
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
