package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/interfaces"
	"github.com/ternarybob/sectorscope/internal/models"
)

// mockCatalog implements ReportCatalog for testing
type mockCatalog struct {
	records []models.ReportRecord
	listErr error
}

func (m *mockCatalog) List(ctx context.Context, offset, limit int) ([]models.ReportRecord, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	total := len(m.records)
	if offset >= total {
		return []models.ReportRecord{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return m.records[offset:end], total, nil
}

func (m *mockCatalog) Resolve(ctx context.Context, key string) (*models.ReportRecord, error) {
	for i := range m.records {
		if m.records[i].ID == key {
			return &m.records[i], nil
		}
	}
	for i := range m.records {
		if m.records[i].Title == key {
			return &m.records[i], nil
		}
	}
	return nil, interfaces.ErrReportNotFound
}

// mockTexts implements interfaces.DerivedTextStorage for testing
type mockTexts struct {
	texts map[string]*models.DerivedText
}

func (m *mockTexts) SaveDerivedText(ctx context.Context, text *models.DerivedText) error {
	m.texts[text.Ref] = text
	return nil
}

func (m *mockTexts) GetDerivedText(ctx context.Context, ref string) (*models.DerivedText, error) {
	if text, ok := m.texts[ref]; ok {
		return text, nil
	}
	return nil, interfaces.ErrDerivedTextNotFound
}

func (m *mockTexts) GetDerivedTextByReport(ctx context.Context, reportID string) (*models.DerivedText, error) {
	for _, text := range m.texts {
		if text.ReportID == reportID {
			return text, nil
		}
	}
	return nil, interfaces.ErrDerivedTextNotFound
}

type mockRenderer struct {
	title string
	err   error
}

func (m *mockRenderer) RenderMarkdown(markdown, title string) ([]byte, error) {
	m.title = title
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-1.3 test"), nil
}

func newReportTestHandler() (*ReportHandler, *mockRenderer, *http.ServeMux) {
	catalog := &mockCatalog{records: []models.ReportRecord{
		{ID: "r3", Title: "Energy Outlook", Date: "2025-03-01", DerivedTextRef: "dt_3"},
		{ID: "r2", Title: "Bank Review", Date: "2025-02-01"},
		{ID: "r1", Title: "Mining Q4", Date: "2025-01-01", DerivedTextRef: "dt_missing"},
	}}
	texts := &mockTexts{texts: map[string]*models.DerivedText{
		"dt_3": {Ref: "dt_3", ReportID: "r3", Content: "# Energy\n\nOil prices **rose**."},
	}}
	renderer := &mockRenderer{}
	handler := NewReportHandler(catalog, texts, renderer, arbor.NewLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("/api/reports", handler.ListHandler)
	mux.HandleFunc("/api/reports/{key}/derived", handler.DerivedHandler)
	return handler, renderer, mux
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestReportHandler_ListPaginates(t *testing.T) {
	_, _, mux := newReportTestHandler()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports?page=1&page_size=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reports    []models.ReportRecord `json:"reports"`
		Pagination PaginationResponse    `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Reports, 1)
	assert.Equal(t, "r1", body.Reports[0].ID)
	assert.Equal(t, PaginationResponse{Page: 1, PageSize: 2, TotalItems: 3, TotalPages: 2}, body.Pagination)
}

func TestReportHandler_ListHugePageIsClamped(t *testing.T) {
	_, _, mux := newReportTestHandler()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports?page=9223372036854775807&page_size=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reports    []models.ReportRecord `json:"reports"`
		Pagination PaginationResponse    `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Reports)
	assert.Equal(t, MaxPage, body.Pagination.Page)
}

func TestGetPaginationParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		page     int
		pageSize int
	}{
		{"defaults", "", 0, 10},
		{"explicit", "page=3&page_size=25", 3, 25},
		{"camel case size", "pageSize=50", 0, 50},
		{"negative page", "page=-4", 0, 10},
		{"page above max", "page=5000000000", MaxPage, 10},
		{"size above max", "page_size=1000", 0, 10},
		{"garbage", "page=x&page_size=y", 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, pageSize := GetPaginationParams(httptest.NewRequest(http.MethodGet, "/api/reports?"+tt.query, nil))
			assert.Equal(t, tt.page, page)
			assert.Equal(t, tt.pageSize, pageSize)
			assert.Less(t, page*pageSize, math.MaxInt32)
		})
	}
}

func TestReportHandler_ListRejectsPost(t *testing.T) {
	_, _, mux := newReportTestHandler()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReportHandler_ListStorageError(t *testing.T) {
	handler := NewReportHandler(&mockCatalog{listErr: errors.New("disk")}, &mockTexts{}, &mockRenderer{}, arbor.NewLogger())

	rec := httptest.NewRecorder()
	handler.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReportHandler_Derived(t *testing.T) {
	_, renderer, mux := newReportTestHandler()

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		contentType string
		check       func(t *testing.T, rec *httptest.ResponseRecorder)
	}{
		{
			name:        "by id as json",
			path:        "/api/reports/r3/derived",
			wantStatus:  http.StatusOK,
			contentType: "application/json",
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				body := decodeBody(t, rec)
				text := body["derived_text"].(map[string]interface{})
				assert.Equal(t, "dt_3", text["ref"])
			},
		},
		{
			name:        "by title as markdown",
			path:        "/api/reports/Energy%20Outlook/derived?format=markdown",
			wantStatus:  http.StatusOK,
			contentType: "text/markdown; charset=utf-8",
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "# Energy\n\nOil prices **rose**.", rec.Body.String())
			},
		},
		{
			name:        "html",
			path:        "/api/reports/r3/derived?format=html",
			wantStatus:  http.StatusOK,
			contentType: "text/html; charset=utf-8",
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Contains(t, rec.Body.String(), "<h1>Energy</h1>")
				assert.Contains(t, rec.Body.String(), "<strong>rose</strong>")
			},
		},
		{
			name:        "pdf",
			path:        "/api/reports/r3/derived?format=pdf",
			wantStatus:  http.StatusOK,
			contentType: "application/pdf",
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, `attachment; filename="Energy_Outlook.pdf"`, rec.Header().Get("Content-Disposition"))
				assert.Equal(t, "Energy Outlook", renderer.title)
			},
		},
		{
			name:       "unknown report",
			path:       "/api/reports/nope/derived",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unsupported format",
			path:       "/api/reports/r3/derived?format=docx",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "pending report",
			path:       "/api/reports/r2/derived",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "no_data", decodeBody(t, rec)["status"])
			},
		},
		{
			name:       "dangling ref",
			path:       "/api/reports/r1/derived",
			wantStatus: http.StatusOK,
			check: func(t *testing.T, rec *httptest.ResponseRecorder) {
				assert.Equal(t, "no_data", decodeBody(t, rec)["status"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, rec.Header().Get("Content-Type"))
			}
			if tt.check != nil {
				tt.check(t, rec)
			}
		})
	}
}

func TestReportHandler_DerivedRenderFailure(t *testing.T) {
	_, renderer, mux := newReportTestHandler()
	renderer.err = errors.New("font missing")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/r3/derived?format=pdf", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPdfFilename(t *testing.T) {
	assert.Equal(t, "Q3_2025_Banks_Outlook.pdf", pdfFilename(&models.ReportRecord{ID: "x", Title: "Q3 2025: Banks/Outlook"}))
	assert.Equal(t, "x.pdf", pdfFilename(&models.ReportRecord{ID: "x", Title: "???"}))
}
