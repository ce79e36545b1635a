package inbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	myMiddleware "lettrly/internal/middleware"
	"lettrly/internal/respond"
)

// sseEmitter writes "data: <json>\n\n" frames. Headers go out with the first
// frame so a failed initial fetch can still answer with a plain error.
type sseEmitter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (e *sseEmitter) Emit(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", msg.Type, err)
	}

	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// ServeSSE handles GET /api/letters/stream.
func (h *Handler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.Fail(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	openStreams.WithLabelValues("sse").Inc()
	defer openStreams.WithLabelValues("sse").Dec()

	em := &sseEmitter{w: w, flusher: flusher}
	if err := h.streamer.Run(r.Context(), recipientID, em); err != nil {
		if !em.started {
			log.Error().Err(err).Str("recipient_id", recipientID).Msg("failed to open inbox stream")
			respond.Fail(w, http.StatusInternalServerError, errors.New("failed to load inbox"))
			return
		}
		log.Debug().Err(err).Str("recipient_id", recipientID).Msg("inbox stream ended")
	}
}
