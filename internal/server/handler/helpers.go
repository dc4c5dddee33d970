// Package handler holds the HTTP handlers behind the read-only API. This
// file carries the response and query helpers they share.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/you/snipebot/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// writeJSON sends v as a JSON response body. A marshal failure falls back
// to a plain 500 so the client still gets valid JSON.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts reads limit and offset from the query string, clamping the
// limit to [1, maxListLimit] and defaulting to defaultListLimit.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := queryInt(q.Get("limit"), defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := queryInt(q.Get("offset"), 0)
	if offset < 0 {
		offset = 0
	}

	return domain.ListOpts{Limit: limit, Offset: offset}
}

// queryInt parses a query parameter as an int, returning fallback when the
// parameter is absent or malformed.
func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// pathParam reads a named path segment registered with the Go 1.22 pattern
// syntax.
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler tags a logger with the handler name.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
