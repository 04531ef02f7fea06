package models

import (
	"sort"
	"time"
)

// KeywordImpact describes the direction a keyword pushes the market
type KeywordImpact string

const (
	ImpactPositive KeywordImpact = "positive"
	ImpactNegative KeywordImpact = "negative"
	ImpactNeutral  KeywordImpact = "neutral"
)

// Valid reports whether the impact is one of the known values
func (i KeywordImpact) Valid() bool {
	switch i {
	case ImpactPositive, ImpactNegative, ImpactNeutral:
		return true
	}
	return false
}

// Keyword is a single highlighted theme extracted from a set of reports
type Keyword struct {
	Icon        string        `json:"icon"`
	Label       string        `json:"label" validate:"required"`
	Description string        `json:"description"`
	Impact      KeywordImpact `json:"impact" validate:"required,oneof=positive negative neutral"`
}

// KeywordCacheEntry holds the most recent keyword summary and every file it has covered
type KeywordCacheEntry struct {
	Keywords       []Keyword  `json:"keywords"`
	CoveredFileIDs []string   `json:"covered_file_ids"`
	Files          []FileMeta `json:"files"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// KeywordCacheKey is the single key the keyword cache entry is stored under
const KeywordCacheKey = "keywords"

// Covers reports whether every id in requested is already covered by the entry
func (e *KeywordCacheEntry) Covers(requested []string) bool {
	covered := make(map[string]struct{}, len(e.CoveredFileIDs))
	for _, id := range e.CoveredFileIDs {
		covered[id] = struct{}{}
	}
	for _, id := range requested {
		if _, ok := covered[id]; !ok {
			return false
		}
	}
	return true
}

// Merge unions files into the covered set and replaces the keywords
func (e *KeywordCacheEntry) Merge(keywords []Keyword, files []FileMeta, now time.Time) {
	byID := make(map[string]FileMeta, len(e.Files)+len(files))
	for _, f := range e.Files {
		byID[f.ID] = f
	}
	ids := make(map[string]struct{}, len(e.CoveredFileIDs)+len(files))
	for _, id := range e.CoveredFileIDs {
		ids[id] = struct{}{}
	}
	for _, f := range files {
		ids[f.ID] = struct{}{}
		byID[f.ID] = f
	}

	e.CoveredFileIDs = make([]string, 0, len(ids))
	for id := range ids {
		e.CoveredFileIDs = append(e.CoveredFileIDs, id)
	}
	sort.Strings(e.CoveredFileIDs)

	e.Files = make([]FileMeta, 0, len(byID))
	for _, id := range e.CoveredFileIDs {
		if f, ok := byID[id]; ok {
			e.Files = append(e.Files, f)
		}
	}

	e.Keywords = keywords
	e.UpdatedAt = now
}
