package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodshed/siteplan/internal/model"
	"github.com/foodshed/siteplan/internal/optimizer"
	"github.com/foodshed/siteplan/internal/store"
)

// handleEvents streams a run's progress events as server-sent events.
// Buffered history is replayed first, so connecting after the run started
// (or finished) still yields the full event sequence.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", runID))
			return
		}
		zap.L().Error("get run failed", zap.String("run", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	history, live, cancel := s.broker.subscribe(runID)
	defer cancel()

	// A run finished before this server instance buffered anything (for
	// example after a restart) still gets a terminal event from the store.
	if len(history) == 0 && runFinished(run.Status) {
		writeSSE(w, terminalEvent(run))
		flusher.Flush()
		return
	}

	for _, ev := range history {
		writeSSE(w, ev)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-live:
			if !ok {
				return
			}
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func runFinished(status model.RunStatus) bool {
	return status == model.RunStatusComplete || status == model.RunStatusFailed
}

// terminalEvent synthesizes a final event for a run whose live stream is
// gone, carrying the persisted outcome.
func terminalEvent(run *model.Run) optimizer.Event {
	typ := optimizer.EventResult
	message := "run complete"
	data := map[string]any{"status": string(run.Status)}
	if run.Status == model.RunStatusFailed {
		typ = optimizer.EventError
		message = "run failed"
	}
	if run.Result != nil {
		data["facilities"] = len(run.Result.Facilities)
		data["budget_used"] = run.Result.BudgetUsed
		if run.Result.Reason != "" {
			message = run.Result.Reason
		}
	}
	return optimizer.Event{
		Type:      typ,
		Phase:     "finalize",
		Message:   message,
		Data:      data,
		Timestamp: run.UpdatedAt,
	}
}

func writeSSE(w http.ResponseWriter, ev optimizer.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		zap.L().Error("marshal event failed", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
}
