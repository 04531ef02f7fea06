package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ReportHandler serves the report catalog and derived text
type ReportHandler struct {
	catalog  ReportCatalog
	texts    interfaces.DerivedTextStorage
	renderer MarkdownRenderer
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(catalog ReportCatalog, texts interfaces.DerivedTextStorage, renderer MarkdownRenderer, logger arbor.ILogger) *ReportHandler {
	return &ReportHandler{
		catalog:  catalog,
		texts:    texts,
		renderer: renderer,
		markdown: goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough)),
		logger:   logger,
	}
}

// ListHandler handles GET /api/reports
func (h *ReportHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	page, pageSize := GetPaginationParams(r)
	reports, total, err := h.catalog.List(r.Context(), page*pageSize, pageSize)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list reports")
		WriteError(w, http.StatusInternalServerError, "Failed to list reports")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reports":    reports,
		"pagination": NewPagination(page, pageSize, total),
	})
}

// DerivedHandler handles GET /api/reports/{key}/derived where key is an id or a title.
// format selects json (default), markdown, html or pdf.
func (h *ReportHandler) DerivedHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		WriteError(w, http.StatusBadRequest, "Report id or title is required")
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "json", "markdown", "md", "html", "pdf":
	default:
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Unsupported format: %s", format))
		return
	}

	record, err := h.catalog.Resolve(r.Context(), key)
	if errors.Is(err, interfaces.ErrReportNotFound) {
		WriteError(w, http.StatusNotFound, "Report not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("key", key).Msg("Failed to resolve report")
		WriteError(w, http.StatusInternalServerError, "Failed to resolve report")
		return
	}

	if !record.IsConverted() {
		WriteNoData(w, "Report has not been converted yet")
		return
	}

	text, err := h.texts.GetDerivedText(r.Context(), record.DerivedTextRef)
	if errors.Is(err, interfaces.ErrDerivedTextNotFound) {
		h.logger.Warn().
			Str("report_id", record.ID).
			Str("derived_text_ref", record.DerivedTextRef).
			Msg("Report references missing derived text")
		WriteNoData(w, "Derived text is not available")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("report_id", record.ID).Msg("Failed to load derived text")
		WriteError(w, http.StatusInternalServerError, "Failed to load derived text")
		return
	}

	switch format {
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(text.Content))
	case "html":
		h.writeHTML(w, record, text)
	case "pdf":
		h.writePDF(w, record, text)
	default:
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"report":       record,
			"derived_text": text,
		})
	}
}

func (h *ReportHandler) writeHTML(w http.ResponseWriter, record *models.ReportRecord, text *models.DerivedText) {
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(text.Content), &buf); err != nil {
		h.logger.Error().Err(err).Str("report_id", record.ID).Msg("Failed to render derived text as HTML")
		WriteError(w, http.StatusInternalServerError, "Failed to render derived text")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *ReportHandler) writePDF(w http.ResponseWriter, record *models.ReportRecord, text *models.DerivedText) {
	data, err := h.renderer.RenderMarkdown(text.Content, record.Title)
	if err != nil {
		h.logger.Error().Err(err).Str("report_id", record.ID).Msg("Failed to render derived text as PDF")
		WriteError(w, http.StatusInternalServerError, "Failed to render derived text")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdfFilename(record)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func pdfFilename(record *models.ReportRecord) string {
	name := strings.Trim(unsafeFilenameChars.ReplaceAllString(record.Title, "_"), "_")
	if name == "" {
		name = record.ID
	}
	return name + ".pdf"
}
