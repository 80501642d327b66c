// Package storage holds workbook templates and archived exports, either on
// the local filesystem or in Cloudflare R2.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// exportStampLayout makes archived export keys sort by creation time.
const exportStampLayout = "20060102T150405.000Z"

// Storage is an object store addressed by slash-separated keys.
type Storage interface {
	// Put fails with ErrKeyExists unless opts.Overwrite is set, and with
	// ErrTooLarge when opts.MaxSize is exceeded.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get returns ErrNotFound for a missing key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete succeeds for missing keys.
	Delete(ctx context.Context, key string) error

	// URL is permanent for public objects and presigned for expires otherwise.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	Exists(ctx context.Context, key string) (bool, error)

	// List returns the objects below prefix ordered by key.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

type PutOptions struct {
	ContentType string // detected from the key or content when empty
	MaxSize     int64  // 0 is unlimited
	Overwrite   bool
	Public      bool // public-read ACL on R2, ignored locally
}

type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType,omitempty"`
	LastModified time.Time `json:"lastModified"`
	ETag         string    `json:"etag,omitempty"`
}

// LocalConfig roots local storage at BasePath; URL hands out BaseURL/key.
type LocalConfig struct {
	BasePath string
	BaseURL  string
}

// R2Config configures the S3-compatible R2 client. Region defaults to
// "auto"; without PublicURL every URL is presigned.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	Region          string
}

// =============================================================================
// Keys
// =============================================================================

// TemplateKey is the key of a workbook template, "templates/{name}".
// Directory components of name are dropped.
func TemplateKey(name string) string {
	return "templates/" + filepath.Base(name)
}

// ExportsPrefix is the folder holding the archived exports of a report.
func ExportsPrefix(reportID uuid.UUID) string {
	return fmt.Sprintf("inspections/%s/exports", reportID)
}

// ExportKey names one archived export,
// "inspections/{reportID}/exports/{utc stamp}-{uuid}.xlsx", so listing a
// report's exports returns them oldest first.
func ExportKey(reportID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s/%s-%s.xlsx", ExportsPrefix(reportID), at.UTC().Format(exportStampLayout), uuid.New())
}
