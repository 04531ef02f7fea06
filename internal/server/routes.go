package server

import "net/http"

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health and status
	mux.HandleFunc("/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// WebSocket route (pipeline events)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Reports
	mux.HandleFunc("/api/reports", s.app.ReportHandler.ListHandler)
	mux.HandleFunc("/api/reports/{key}/derived", s.app.ReportHandler.DerivedHandler)

	// API routes - Analysis
	mux.HandleFunc("/api/keywords", s.app.AnalysisHandler.KeywordsHandler)
	mux.HandleFunc("/api/evaluation", s.app.AnalysisHandler.EvaluationHandler)
	mux.HandleFunc("/api/evaluation/refresh", s.app.AnalysisHandler.RefreshEvaluationHandler)

	// API routes - Pipeline
	mux.HandleFunc("/api/pipeline/run", s.app.PipelineHandler.RunHandler)

	return mux
}
