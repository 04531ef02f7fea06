package models

import "time"

// ReportRecord is one discovered source report and its conversion status
type ReportRecord struct {
	ID          string `json:"id"` // Stable identifier extracted from the source listing
	Title       string `json:"title" badgerhold:"index"`
	Date        string `json:"date"` // ISO or source-native date string
	Author      string `json:"author"`
	DownloadURL string `json:"download_url"`

	// DerivedTextRef is empty until conversion succeeds, then set exactly once
	DerivedTextRef string `json:"derived_text_ref,omitempty"`

	// Set when the source document itself is unusable (e.g. zero pages); not retried automatically
	ConversionFailed bool   `json:"conversion_failed,omitempty"`
	LastError        string `json:"last_error,omitempty"`

	// Seq preserves insertion order within the catalog
	Seq          uint64     `json:"seq"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	ConvertedAt  *time.Time `json:"converted_at,omitempty"`
}

// IsConverted reports whether the record has derived text
func (r *ReportRecord) IsConverted() bool {
	return r.DerivedTextRef != ""
}

// IsPending reports whether the record still needs conversion
func (r *ReportRecord) IsPending() bool {
	return r.DerivedTextRef == ""
}

// Retryable reports whether a pending record should be attempted on the next pass
func (r *ReportRecord) Retryable() bool {
	return r.IsPending() && !r.ConversionFailed
}

// CatalogMeta holds catalog-wide timestamps and the insertion counter
type CatalogMeta struct {
	LastDiscoveredAt time.Time `json:"last_discovered_at"`
	LastConvertedAt  time.Time `json:"last_converted_at"`
	NextSeq          uint64    `json:"next_seq"`
	RecordCount      int       `json:"record_count"`
}

// CatalogMetaKey is the single key the catalog metadata is stored under
const CatalogMetaKey = "catalog"

// FileMeta is the subset of a report recorded against a keyword cache entry
type FileMeta struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// FileMetaFromRecord extracts cache file metadata from a report
func FileMetaFromRecord(r ReportRecord) FileMeta {
	return FileMeta{ID: r.ID, Title: r.Title, Date: r.Date}
}
