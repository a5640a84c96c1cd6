// Package storage persists generated report artifacts. Reports are small
// write-once text files, so the interface is deliberately narrow: upload,
// download, delete.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	appcfg "auditflow-backend/config"
)

// Storage stores report artifacts under opaque storage paths.
type Storage interface {
	// Upload stores an artifact and returns its storage path
	Upload(ctx context.Context, reportID uuid.UUID, filename string, data io.Reader) (string, error)

	// Download retrieves an artifact by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes an artifact by storage path
	Delete(ctx context.Context, storagePath string) error
}

const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// New builds the storage backend named by the configuration.
func New(cfg appcfg.Config) (Storage, error) {
	switch cfg.StorageType {
	case TypeLocal, "":
		return NewLocalStorage(cfg.StorageLocalPath)
	case TypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET is required for s3 storage")
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.StorageType)
	}
}

// reportPath builds a collision-free key for an artifact. The two-character
// prefix spreads objects across key ranges.
func reportPath(reportID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)
	base = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, base)
	return fmt.Sprintf("reports/%s/%s_%s%s", reportID.String()[:2], reportID.String(), base, ext)
}

func contentType(filename string) string {
	switch filepath.Ext(filename) {
	case ".txt":
		return "text/plain"
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
