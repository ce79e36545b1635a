package live

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned by Transport.Open when the server rejects the token.
var ErrUnauthorized = errors.New("unauthorized")

// Transport opens one connection to the inbox stream.
type Transport interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields raw JSON frames. Next blocks until a frame arrives or the
// connection fails; Close unblocks it.
type Stream interface {
	Next() ([]byte, error)
	Close() error
}
