package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteNoData writes the explicit "nothing available yet" response.
// Absent artifacts are not errors for readers.
func WriteNoData(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "no_data",
		"message": message,
	})
}

// WriteStarted writes a standard "started" JSON response for async operations.
func WriteStarted(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"message": message,
	})
}

// PaginationResponse contains pagination metadata for API responses.
type PaginationResponse struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// MaxPage is the highest page index accepted; larger values are clamped so
// page*pageSize cannot overflow.
const MaxPage = 1_000_000

// ClampPage bounds a requested page index to [0, MaxPage]
func ClampPage(page int) int {
	if page < 0 {
		return 0
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// GetPaginationParams extracts pagination parameters from query string.
// Returns page (0-indexed, at most MaxPage) and pageSize (default 10, max 100).
func GetPaginationParams(r *http.Request) (page, pageSize int) {
	page = 0
	pageSize = 10

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil {
			page = ClampPage(p)
		}
	}

	pageSizeStr := query.Get("page_size")
	if pageSizeStr == "" {
		pageSizeStr = query.Get("pageSize")
	}
	if pageSizeStr != "" {
		if ps, err := strconv.Atoi(pageSizeStr); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}

	return page, pageSize
}

// NewPagination builds pagination metadata for a page of totalItems
func NewPagination(page, pageSize, totalItems int) PaginationResponse {
	return PaginationResponse{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: int(math.Ceil(float64(totalItems) / float64(pageSize))),
	}
}

// GetIntParam reads a positive integer query parameter, falling back to def
func GetIntParam(r *http.Request, name string, def int) int {
	if value := r.URL.Query().Get(name); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// GetBoolParam reads a boolean query parameter; anything unparsable is false
func GetBoolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
