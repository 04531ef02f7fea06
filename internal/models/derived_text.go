package models

import "time"

// DerivedText is the structured text produced from one report by the chunked converter.
// One per report, immutable once written. Only successful conversions are stored;
// a failed conversion is recorded on the ReportRecord (ConversionFailed, LastError).
type DerivedText struct {
	Ref        string    `json:"ref"` // dt_{uuid}
	ReportID   string    `json:"report_id" badgerhold:"index"`
	Content    string    `json:"content"` // Markdown
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConversionResult reports the outcome of converting one report
type ConversionResult struct {
	ReportID       string        `json:"report_id"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Fatal          bool          `json:"fatal,omitempty"` // Input error; retrying will not help
	DerivedTextRef string        `json:"derived_text_ref,omitempty"`
	PageCount      int           `json:"page_count"`
	ChunkCount     int           `json:"chunk_count"`
	Duration       time.Duration `json:"duration"`
}
