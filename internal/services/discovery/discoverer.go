// -----------------------------------------------------------------------
// Listing Discoverer - report metadata scraped from a static listing page
// -----------------------------------------------------------------------

package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

// ErrNoListingURL is returned when discovery runs without a configured listing page
var ErrNoListingURL = errors.New("discovery listing_url not configured")

// idParams are query parameters that carry a stable document id on common listing sites
var idParams = []string{"id", "idsId", "docId", "documentId"}

// Discoverer scrapes candidate reports from a listing page with CSS selectors
type Discoverer struct {
	config *common.DiscoveryConfig
	client *http.Client
	logger arbor.ILogger
}

var _ interfaces.ReportDiscoverer = (*Discoverer)(nil)

// NewDiscoverer creates a listing discoverer
func NewDiscoverer(config *common.DiscoveryConfig, logger arbor.ILogger) *Discoverer {
	return &Discoverer{
		config: config,
		client: &http.Client{Timeout: common.ParseDurationOr(config.RequestTimeout, 30*time.Second)},
		logger: logger,
	}
}

// Discover fetches the listing page and returns one candidate per matching item
func (d *Discoverer) Discover(ctx context.Context) ([]models.ReportRecord, error) {
	if d.config.ListingURL == "" {
		return nil, ErrNoListingURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.config.ListingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build listing request: %w", err)
	}
	if d.config.UserAgent != "" {
		req.Header.Set("User-Agent", d.config.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned status %d", resp.StatusCode)
	}

	return d.Parse(resp.Body, d.config.ListingURL)
}

// Parse extracts report candidates from listing HTML, resolving links against sourceURL
func (d *Discoverer) Parse(r io.Reader, sourceURL string) ([]models.ReportRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing HTML: %w", err)
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		d.logger.Warn().Err(err).Str("source_url", sourceURL).Msg("Failed to parse listing URL for link resolution")
		baseURL = nil
	}

	var records []models.ReportRecord
	skipped := 0

	doc.Find(d.config.ItemSelector).Each(func(i int, item *goquery.Selection) {
		link := item.Find(d.config.LinkSelector).First()
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			skipped++
			return
		}

		downloadURL := resolveURL(strings.TrimSpace(href), baseURL)
		id := extractID(downloadURL)
		if id == "" {
			skipped++
			return
		}

		title := text(item, d.config.TitleSelector)
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}

		records = append(records, models.ReportRecord{
			ID:          id,
			Title:       title,
			Date:        text(item, d.config.DateSelector),
			Author:      text(item, d.config.AuthorSelector),
			DownloadURL: downloadURL,
		})
	})

	d.logger.Debug().
		Str("source_url", sourceURL).
		Int("found", len(records)).
		Int("skipped", skipped).
		Msg("Reports extracted from listing")

	return records, nil
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}

func resolveURL(href string, base *url.URL) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// extractID derives a stable id from a download URL: a known id query
// parameter if present, otherwise the file name without extension
func extractID(downloadURL string) string {
	u, err := url.Parse(downloadURL)
	if err != nil {
		return ""
	}
	query := u.Query()
	for _, param := range idParams {
		if v := strings.TrimSpace(query.Get(param)); v != "" {
			return v
		}
	}

	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
