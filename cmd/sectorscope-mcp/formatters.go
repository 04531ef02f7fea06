package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/keywords"
	"github.com/ternarybob/sectorscope/internal/services/pipeline"
)

func noDataMessage(reason string) string {
	return fmt.Sprintf("No data available: %s.", reason)
}

// formatReportList formats a page of reports as markdown
func formatReportList(reports []models.ReportRecord, page, pageSize, total int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Reports (page %d, %d of %d)\n\n", page, len(reports), total))

	if len(reports) == 0 {
		sb.WriteString("No reports found.\n")
		return sb.String()
	}

	for i, r := range reports {
		status := "pending"
		switch {
		case r.IsConverted():
			status = "converted"
		case r.ConversionFailed:
			status = "failed"
		}
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s)\n", page*pageSize+i+1, r.Title, r.ID))
		sb.WriteString(fmt.Sprintf("   Date: %s | Author: %s | Status: %s\n", orDash(r.Date), orDash(r.Author), status))
		if r.LastError != "" {
			sb.WriteString(fmt.Sprintf("   Last error: %s\n", r.LastError))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// formatDerivedText formats one report's derived text as markdown
func formatDerivedText(record *models.ReportRecord, text *models.DerivedText) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", record.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", record.ID))
	sb.WriteString(fmt.Sprintf("**Date:** %s\n", orDash(record.Date)))
	sb.WriteString(fmt.Sprintf("**Pages:** %d (%d chunks)\n", text.PageCount, text.ChunkCount))
	sb.WriteString(fmt.Sprintf("**Converted:** %s\n\n", text.CreatedAt.Format(time.RFC3339)))
	sb.WriteString("---\n\n")
	sb.WriteString(text.Content)
	sb.WriteString("\n")
	return sb.String()
}

// formatKeywordSummary formats a keyword summary as markdown
func formatKeywordSummary(summary *keywords.Summary) string {
	var sb strings.Builder
	source := "fresh"
	if summary.Cached {
		source = "cached"
	}
	sb.WriteString(fmt.Sprintf("## Market Keywords (%d, %s, updated %s)\n\n",
		len(summary.Keywords), source, summary.UpdatedAt.Format(time.RFC3339)))

	for _, k := range summary.Keywords {
		icon := k.Icon
		if icon != "" {
			icon += " "
		}
		sb.WriteString(fmt.Sprintf("- %s**%s** [%s]: %s\n", icon, k.Label, k.Impact, k.Description))
	}

	if len(summary.Files) > 0 {
		sb.WriteString("\n### Covered reports\n\n")
		for _, f := range summary.Files {
			sb.WriteString(fmt.Sprintf("- %s (%s)\n", f.Title, orDash(f.Date)))
		}
	}

	return sb.String()
}

// formatEvaluation formats an evaluation view as markdown
func formatEvaluation(view *pipeline.EvaluationView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Industry Evaluation (%s)\n\n", view.EvaluatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Reports evaluated: %d | Industries shown: %d of %d",
		view.EvaluatedReportCount, len(view.Evaluations), view.TotalEvaluations))
	if view.Filtered {
		sb.WriteString(fmt.Sprintf(" | Hidden: neutral or confidence below %.2f", view.MinConfidence))
	}
	sb.WriteString("\n\n")

	if len(view.Evaluations) == 0 {
		sb.WriteString("No industries meet the reporting threshold.\n")
		return sb.String()
	}

	for _, e := range view.Evaluations {
		sb.WriteString(fmt.Sprintf("### %s: %s (confidence %.2f)\n\n", e.IndustryName, e.Sentiment, e.Confidence))
		if e.Summary != "" {
			sb.WriteString(e.Summary)
			sb.WriteString("\n\n")
		}
		writeList(&sb, "Drivers", e.KeyDrivers)
		writeList(&sb, "Risks", e.KeyRisks)
		if len(e.ReferencedReportIDs) > 0 {
			sb.WriteString(fmt.Sprintf("Sources: %s\n\n", strings.Join(e.ReferencedReportIDs, ", ")))
		}
	}

	return sb.String()
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("**%s:**\n", heading))
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("- %s\n", item))
	}
	sb.WriteString("\n")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
