package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/keywords"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
)

func TestFormatReportList(t *testing.T) {
	reports := []models.ReportRecord{
		{ID: "r1", Title: "Rates outlook", Date: "2026-10-01", DerivedTextRef: "dt_r1"},
		{ID: "r2", Title: "Bank update", ConversionFailed: true, LastError: "no readable text"},
		{ID: "r3", Title: "Retail"},
	}

	out := formatReportList(reports, 1, 3, 9)

	assert.Contains(t, out, "## Reports (page 1, 3 of 9)")
	assert.Contains(t, out, "4. **Rates outlook** (r1)")
	assert.Contains(t, out, "Status: converted")
	assert.Contains(t, out, "Status: failed")
	assert.Contains(t, out, "Last error: no readable text")
	assert.Contains(t, out, "Author: - | Status: pending")
}

func TestFormatReportList_Empty(t *testing.T) {
	assert.Contains(t, formatReportList(nil, 0, 20, 0), "No reports found.")
}

func TestFormatKeywordSummary(t *testing.T) {
	summary := &keywords.Summary{
		Keywords: []models.Keyword{
			{Icon: "📉", Label: "rates", Description: "Higher for longer", Impact: models.ImpactNegative},
			{Label: "housing", Description: "Listings up", Impact: models.ImpactPositive},
		},
		Files:     []models.FileMeta{{ID: "r1", Title: "Rates outlook", Date: "2026-10-01"}},
		Cached:    true,
		UpdatedAt: time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC),
	}

	out := formatKeywordSummary(summary)

	assert.Contains(t, out, "## Market Keywords (2, cached, updated 2026-10-02T00:00:00Z)")
	assert.Contains(t, out, "- 📉 **rates** ["+string(models.ImpactNegative)+"]: Higher for longer")
	assert.Contains(t, out, "- **housing**")
	assert.Contains(t, out, "- Rates outlook (2026-10-01)")
}

func TestFormatEvaluation(t *testing.T) {
	view := &pipeline.EvaluationView{
		EvaluatedAt:          time.Date(2026, 10, 3, 12, 0, 0, 0, time.UTC),
		EvaluatedReportCount: 4,
		TotalEvaluations:     3,
		MinConfidence:        0.6,
		Filtered:             true,
		Evaluations: []models.IndustryEvaluation{{
			IndustryName:        "Banks",
			Sentiment:           models.SentimentNegative,
			Confidence:          0.82,
			Summary:             "Margins under pressure.",
			KeyDrivers:          []string{"deposit competition"},
			ReferencedReportIDs: []string{"r1", "r2"},
		}},
	}

	out := formatEvaluation(view)

	assert.Contains(t, out, "Reports evaluated: 4 | Industries shown: 1 of 3")
	assert.Contains(t, out, "confidence below 0.60")
	assert.Contains(t, out, "### Banks: NEGATIVE (confidence 0.82)")
	assert.Contains(t, out, "- deposit competition")
	assert.NotContains(t, out, "**Risks:**")
	assert.Contains(t, out, "Sources: r1, r2")
}

func TestFormatEvaluation_NothingShown(t *testing.T) {
	out := formatEvaluation(&pipeline.EvaluationView{TotalEvaluations: 2, Filtered: true})
	assert.Contains(t, out, "No industries meet the reporting threshold.")
}

func TestFormatDerivedText(t *testing.T) {
	record := &models.ReportRecord{ID: "r1", Title: "Rates outlook"}
	text := &models.DerivedText{
		Content:    "## Summary\n\nRates stay high.",
		PageCount:  12,
		ChunkCount: 2,
		CreatedAt:  time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}

	out := formatDerivedText(record, text)

	assert.Contains(t, out, "# Rates outlook")
	assert.Contains(t, out, "**Pages:** 12 (2 chunks)")
	assert.Contains(t, out, "**Date:** -")
	assert.Contains(t, out, "Rates stay high.")
}
