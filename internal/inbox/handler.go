package inbox

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler serves the live inbox over SSE and WebSocket. Both transports run
// the same Streamer loop.
type Handler struct {
	streamer *Streamer
	upgrader websocket.Upgrader
}

// NewHandler builds the stream handler. checkOrigin may be nil to accept any
// origin, which the token requirement makes safe enough for a read-only feed.
func NewHandler(streamer *Streamer, checkOrigin func(r *http.Request) bool) *Handler {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Handler{
		streamer: streamer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}
