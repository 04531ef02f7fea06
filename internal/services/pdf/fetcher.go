// -----------------------------------------------------------------------
// PDF Fetcher - Download source reports and cut page ranges
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
)

// DefaultMaxDocumentBytes bounds a single download
const DefaultMaxDocumentBytes = 64 << 20

// Fetcher implements interfaces.DocumentFetcher for PDF reports
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.DocumentFetcher = (*Fetcher)(nil)

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client used for downloads
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent sets the User-Agent header sent with downloads
func WithUserAgent(userAgent string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = userAgent
	}
}

// WithMaxBytes limits the size of a single download
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// NewFetcher creates a new PDF fetcher
func NewFetcher(logger arbor.ILogger, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 2 * time.Minute},
		maxBytes: DefaultMaxDocumentBytes,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Fetch downloads a PDF (http/https URL or local file path) and counts its pages
func (f *Fetcher) Fetch(ctx context.Context, url string) (*interfaces.FetchedDocument, error) {
	var data []byte
	var err error

	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		data, err = f.download(ctx, url)
	} else {
		data, err = os.ReadFile(strings.TrimPrefix(url, "file://"))
	}
	if err != nil {
		return nil, err
	}

	pageCount, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF page count: %w", err)
	}

	f.logger.Debug().
		Str("url", url).
		Int("bytes", len(data)).
		Int("pages", pageCount).
		Msg("Fetched document")

	return &interfaces.FetchedDocument{
		Data:      data,
		PageCount: pageCount,
		MIMEType:  "application/pdf",
	}, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to download %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("document %s exceeds %d bytes", url, f.maxBytes)
	}
	return data, nil
}

// Slice returns a standalone PDF containing pages [start, end), zero-based
func (f *Fetcher) Slice(ctx context.Context, data []byte, start, end int) ([]byte, error) {
	if start < 0 || end <= start {
		return nil, fmt.Errorf("invalid page range [%d, %d)", start, end)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	selection := fmt.Sprintf("%d-%d", start+1, end)
	if end == start+1 {
		selection = fmt.Sprintf("%d", end)
	}

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &buf, []string{selection}, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to slice pages %s: %w", selection, err)
	}
	return buf.Bytes(), nil
}
