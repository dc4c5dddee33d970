package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/you/snipebot/internal/domain"
)

// ArchiveHandler lists the JSONL archive files the archiver has uploaded to
// cold storage.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logHandler(logger, "archive"),
	}
}

// ListArchives returns the archive objects under archive/, optionally
// narrowed by ?kind=positions|trades|audit.
// GET /api/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	prefix := "archive/"
	switch kind := r.URL.Query().Get("kind"); kind {
	case "":
	case "positions", "trades", "audit":
		prefix += kind + "/"
	default:
		writeError(w, http.StatusBadRequest, "unknown archive kind: "+kind)
		return
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "archive listing failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "archive storage unavailable")
		return
	}

	type entry struct {
		Path         string `json:"path"`
		Kind         string `json:"kind"`
		Size         int64  `json:"size"`
		LastModified string `json:"last_modified,omitempty"`
	}
	out := make([]entry, 0, len(infos))
	for _, info := range infos {
		e := entry{
			Path: info.Path,
			Kind: archiveKind(info.Path),
			Size: info.Size,
		}
		if !info.LastModified.IsZero() {
			e.LastModified = info.LastModified.UTC().Format(time.RFC3339)
		}
		out = append(out, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"archives": out,
		"count":    len(out),
	})
}

// archiveKind extracts the middle segment of archive/<kind>/<file>.jsonl.
func archiveKind(path string) string {
	rest, ok := strings.CutPrefix(path, "archive/")
	if !ok {
		return ""
	}
	kind, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return kind
}
