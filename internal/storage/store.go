package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"answersheet/internal/config"

	"github.com/google/uuid"
)

// FileStore keeps the raw uploaded sheet images.
type FileStore interface {
	// Save stores data under a unique name derived from filename and
	// returns the path to load it by.
	Save(ctx context.Context, filename string, data []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// NewFileStore builds the backend selected by cfg.StorageBackend.
func NewFileStore(ctx context.Context, cfg *config.Config) (FileStore, error) {
	switch cfg.StorageBackend {
	case config.StorageDisk, "":
		return NewDiskStore(cfg.UploadDir)
	case config.StorageS3:
		return NewS3Store(cfg.AWSRegion, cfg.AWSAccessKey, cfg.AWSSecretKey, cfg.AWSBucket)
	case config.StorageAzure:
		return NewAzureStore(ctx, cfg.AzureAccount, cfg.AzureKey, cfg.AzureContainer)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

// uniqueName prefixes the base of filename with a random UUID.
func uniqueName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "image"
	}
	return uuid.NewString() + "_" + base
}
