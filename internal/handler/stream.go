package handler

import (
	"log/slog"
	"net/http"

	"chatrelay/internal/domain/services"
	"chatrelay/internal/httputil"
)

// writeTurn sends a turn result. Buffered answers are one JSON line; streamed answers
// are NDJSON lines flushed as they arrive. Streams go out as text/event-stream because
// hosting proxies only flush that content type.
func writeTurn(w http.ResponseWriter, result *services.TurnResult, logger *slog.Logger) {
	if !result.Streamed() {
		httputil.RespondBytes(w, result.Status, result.Body)
		return
	}

	// Without a flusher the lines still go out, just in larger chunks.
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Warn("response writer cannot flush", "turn_id", result.TurnID)
		flusher = noFlush{}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lines := 0
	// Breaking out of the range closes the upstream response.
	for line := range result.Stream {
		if _, err := w.Write(line); err != nil {
			logger.Info("client went away mid-stream",
				"turn_id", result.TurnID,
				"lines_sent", lines,
				"error", err,
			)
			return
		}
		flusher.Flush()
		lines++
	}

	logger.Debug("stream finished", "turn_id", result.TurnID, "lines_sent", lines)
}

type noFlush struct{}

func (noFlush) Flush() {}
