package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sectorscope/internal/app"
	"github.com/ternarybob/sectorscope/internal/common"
	"github.com/ternarybob/sectorscope/internal/handlers"
	"github.com/ternarybob/sectorscope/internal/models"
	"github.com/ternarybob/sectorscope/internal/services/catalog"
	"github.com/ternarybob/sectorscope/internal/services/pdf"
	"github.com/ternarybob/sectorscope/internal/services/status"
	"github.com/ternarybob/sectorscope/internal/storage/badger"
)

type idleRunner struct{}

func (idleRunner) Cycle(ctx context.Context, force bool) (*models.RunReport, error) {
	return &models.RunReport{}, nil
}

func (idleRunner) Running() bool { return true }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := arbor.NewLogger()
	cfg := common.NewDefaultConfig()

	manager, err := badger.NewManager(logger, &common.BadgerConfig{Path: filepath.Join(t.TempDir(), "db")})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	statusService := status.NewService(logger)
	wsHandler, err := handlers.NewWebSocketHandler(nil, statusService, logger)
	require.NoError(t, err)

	application := &app.App{
		Config:          cfg,
		Logger:          logger,
		StorageManager:  manager,
		StatusService:   statusService,
		WSHandler:       wsHandler,
		StatusHandler:   handlers.NewStatusHandler(statusService, nil, logger),
		ReportHandler:   handlers.NewReportHandler(catalog.NewService(manager.CatalogStorage(), logger), manager.DerivedTextStorage(), pdf.NewRenderer(logger), logger),
		AnalysisHandler: handlers.NewAnalysisHandler(context.Background(), nil, nil, logger),
		PipelineHandler: handlers.NewPipelineHandler(context.Background(), idleRunner{}, logger),
	}
	return New(application)
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"status", http.MethodGet, "/api/status", http.StatusOK},
		{"empty report list", http.MethodGet, "/api/reports", http.StatusOK},
		{"unknown report", http.MethodGet, "/api/reports/missing/derived", http.StatusNotFound},
		{"bad format", http.MethodGet, "/api/reports/missing/derived?format=docx", http.StatusBadRequest},
		{"refresh needs POST", http.MethodGet, "/api/evaluation/refresh", http.StatusMethodNotAllowed},
		{"run in progress", http.MethodPost, "/api/pipeline/run", http.StatusConflict},
		{"unknown route", http.MethodGet, "/api/nothing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/reports", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestReportListShape(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports?page_size=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Reports    []models.ReportRecord       `json:"reports"`
		Pagination handlers.PaginationResponse `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Reports)
	assert.Equal(t, 5, body.Pagination.PageSize)
	assert.Equal(t, 0, body.Pagination.TotalItems)
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req_fixed")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req_fixed", rec.Header().Get(requestIDHeader))
}
