package inbox

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	myMiddleware "lettrly/internal/middleware"
	"lettrly/internal/respond"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a frame to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Must be less than pongWait.
	maxMessageSize = 512                 // Clients only send control frames.
)

type wsEmitter struct {
	conn *websocket.Conn
}

func (e *wsEmitter) Emit(msg Message) error {
	e.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return e.conn.WriteJSON(msg)
}

// ServeWS handles GET /api/letters/ws. Frames carry the same JSON as SSE.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := myMiddleware.UserID(r.Context())
	if !ok {
		respond.Fail(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// A hijacked connection does not cancel r.Context(); the read pump does.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go readPump(conn, cancel)
	go pingLoop(ctx, conn)

	openStreams.WithLabelValues("ws").Inc()
	defer openStreams.WithLabelValues("ws").Dec()

	if err := h.streamer.Run(ctx, recipientID, &wsEmitter{conn: conn}); err != nil {
		log.Debug().Err(err).Str("recipient_id", recipientID).Msg("inbox websocket ended")
		deadline := time.Now().Add(writeWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "inbox unavailable"), deadline)
		return
	}

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// readPump discards client frames and cancels the stream once the peer goes away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

// pingLoop keeps the link alive. WriteControl is safe next to the data writer.
func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
