// Package storage keeps the binary artefacts of inspections: evidence photos
// captured in the field and the PDF reports generated from them.
//
// Two backends implement Storage:
//   - LocalStorage writes under a directory on disk (development, CLI)
//   - ObjectStorage talks to an S3-compatible bucket (Cloudflare R2, MinIO)
//
// Keys are slash-separated paths rooted at the inspection they belong to.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Storage is a flat key/value blob store.
type Storage interface {
	// Put stores data at key. It fails with ErrKeyExists when the key is taken
	// and opts.Overwrite is false, and with ErrTooLarge when data exceeds
	// opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller closes the reader.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns an address clients can fetch the object from. Backends
	// without public access return a link valid for expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Data Types
// =============================================================================

// PutOptions configures how an object is stored.
type PutOptions struct {
	ContentType string // detected from the key when empty
	MaxSize     int64  // 0 means unlimited
	Overwrite   bool
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// =============================================================================
// Configuration Types
// =============================================================================

const (
	ProviderLocal  = "local"
	ProviderObject = "s3"
)

// LocalConfig holds configuration for filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory, e.g. "./data".
	BasePath string

	// BaseURL prefixes keys in URL, e.g. "http://localhost:8080/files".
	BaseURL string
}

// ObjectConfig holds configuration for an S3-compatible bucket.
type ObjectConfig struct {
	// Endpoint overrides the service address. When empty and AccountID is
	// set, the Cloudflare R2 endpoint of that account is used.
	Endpoint  string
	AccountID string

	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string // "auto" when empty

	// PublicURL serves objects without signing when set.
	PublicURL string
}

// endpoint returns the service address for the configuration.
func (c ObjectConfig) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	if c.AccountID != "" {
		return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
	}
	return ""
}

// =============================================================================
// Key Generation Helpers
// =============================================================================

// PhotoKey returns a fresh key for an evidence photo of an instance.
// Format: inspections/{inspectionID}/photos/{instanceID}/{phase}-{uuid}{ext}
func PhotoKey(inspectionID, instanceID uuid.UUID, phase int, ext string) string {
	return fmt.Sprintf("inspections/%s/photos/%s/%d-%s%s", inspectionID, instanceID, phase, uuid.New(), ext)
}

// ReportKey returns the key of a generated report. Regenerating a report
// for the same inspection and filename overwrites the previous one.
// Format: reports/{inspectionID}/{filename}
func ReportKey(inspectionID uuid.UUID, filename string) string {
	return fmt.Sprintf("reports/%s/%s", inspectionID, filename)
}
