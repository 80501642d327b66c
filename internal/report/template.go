package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DukeRupert/solarcheck/internal/domain"
	"github.com/DukeRupert/solarcheck/internal/metrics"
	"github.com/DukeRupert/solarcheck/internal/storage"
)

// DefaultTemplatePath is where the server publishes the inspection template.
const DefaultTemplatePath = "/static/templates/inspection-template.xlsx"

// maxTemplateSize bounds the template download.
const maxTemplateSize = 20 << 20

// =============================================================================
// Template Source Interface
// =============================================================================

// TemplateSource loads the bytes of the workbook template.
// Implementations must return an error, never partial bytes, when the
// template cannot be loaded.
type TemplateSource interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// =============================================================================
// HTTP
// =============================================================================

// HTTPTemplateSource fetches the template from a URL.
type HTTPTemplateSource struct {
	client *resty.Client
	url    string
	limit  int
}

// NewHTTPTemplateSource creates a template source for url. Failed fetches are
// not retried.
func NewHTTPTemplateSource(url string, timeout time.Duration) *HTTPTemplateSource {
	return newHTTPTemplateSource(url, timeout, maxTemplateSize)
}

// newHTTPTemplateSource stops reading the response once it exceeds limit bytes.
func newHTTPTemplateSource(url string, timeout time.Duration, limit int) *HTTPTemplateSource {
	client := resty.New().
		SetTimeout(timeout).
		SetResponseBodyLimit(limit).
		SetHeader("Accept", domain.XLSXContentType+", application/octet-stream")

	return &HTTPTemplateSource{client: client, url: url, limit: limit}
}

// Fetch downloads the template. Any non-2xx response is an error.
func (s *HTTPTemplateSource) Fetch(ctx context.Context) ([]byte, error) {
	const op = "template.fetch"

	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.url)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		metrics.TemplateFetchTotal.WithLabelValues("http", "error").Inc()
		return nil, domain.Wrap(err, domain.ETOOLARGE, op, fmt.Sprintf("Template exceeds %d bytes", s.limit))
	}
	if err != nil {
		metrics.TemplateFetchTotal.WithLabelValues("http", "error").Inc()
		return nil, domain.Unavailable(err, op, "Template could not be downloaded")
	}
	if !resp.IsSuccess() {
		metrics.TemplateFetchTotal.WithLabelValues("http", "error").Inc()
		return nil, domain.Unavailable(
			fmt.Errorf("GET %s: status %d", s.url, resp.StatusCode()),
			op,
			fmt.Sprintf("Template download failed with status %d", resp.StatusCode()),
		)
	}
	metrics.TemplateFetchTotal.WithLabelValues("http", "success").Inc()
	return resp.Body(), nil
}

// =============================================================================
// Object Storage
// =============================================================================

// StorageTemplateSource reads the template from object storage.
type StorageTemplateSource struct {
	store storage.Storage
	key   string
}

// NewStorageTemplateSource creates a template source reading key from store.
func NewStorageTemplateSource(store storage.Storage, key string) *StorageTemplateSource {
	return &StorageTemplateSource{store: store, key: key}
}

// Fetch reads the template object.
func (s *StorageTemplateSource) Fetch(ctx context.Context) ([]byte, error) {
	const op = "template.fetch"

	rc, info, err := s.store.Get(ctx, s.key)
	if err != nil {
		metrics.TemplateFetchTotal.WithLabelValues("storage", "error").Inc()
		return nil, domain.Unavailable(err, op, "Template could not be loaded from storage")
	}
	defer rc.Close()

	if info.ContentType != "" && !storage.IsAllowedTemplateType(info.ContentType) {
		metrics.TemplateFetchTotal.WithLabelValues("storage", "error").Inc()
		return nil, domain.Unavailable(
			fmt.Errorf("object %s has content type %s", s.key, info.ContentType),
			op, "Stored template is not a workbook",
		)
	}

	data, err := io.ReadAll(io.LimitReader(rc, maxTemplateSize+1))
	if err != nil {
		metrics.TemplateFetchTotal.WithLabelValues("storage", "error").Inc()
		return nil, domain.Unavailable(err, op, "Template could not be read from storage")
	}
	if len(data) > maxTemplateSize {
		metrics.TemplateFetchTotal.WithLabelValues("storage", "error").Inc()
		return nil, domain.Errorf(domain.ETOOLARGE, op, "template exceeds %d bytes", maxTemplateSize)
	}

	metrics.TemplateFetchTotal.WithLabelValues("storage", "success").Inc()
	return data, nil
}

// =============================================================================
// Local File
// =============================================================================

// FileTemplateSource reads the template from the local filesystem.
type FileTemplateSource struct {
	Path string
}

// Fetch reads the template file.
func (s FileTemplateSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		metrics.TemplateFetchTotal.WithLabelValues("file", "error").Inc()
		return nil, domain.Wrap(err, domain.EINVALID, "template.fetch", "Template file could not be read")
	}
	metrics.TemplateFetchTotal.WithLabelValues("file", "success").Inc()
	return data, nil
}
