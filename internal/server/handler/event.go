package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/you/snipebot/internal/domain"
)

// eventsStream is the durable stream the engine appends every event to.
const eventsStream = "events"

// EventHandler serves the recent event history from the durable Redis
// stream, so dashboards can backfill after a reconnect.
type EventHandler struct {
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(bus domain.SignalBus, logger *slog.Logger) *EventHandler {
	return &EventHandler{bus: bus, logger: logger}
}

// eventEnvelope pairs a stream ID with its decoded event so clients can
// resume from the last ID they saw.
type eventEnvelope struct {
	ID    string       `json:"id"`
	Event domain.Event `json:"event"`
}

// ListEvents returns events appended after the given stream ID.
// GET /api/events?after=0&limit=100
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	opts := parseListOpts(r)

	msgs, err := h.bus.StreamRead(r.Context(), eventsStream, after, opts.Limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list events failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	events := make([]eventEnvelope, 0, len(msgs))
	for _, m := range msgs {
		var ev domain.Event
		if err := json.Unmarshal(m.Payload, &ev); err != nil {
			// Skip undecodable entries rather than failing the whole page.
			continue
		}
		events = append(events, eventEnvelope{ID: m.ID, Event: ev})
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
