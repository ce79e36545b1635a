package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lettrly/internal/letter"
)

const (
	DefaultReconnectDelay = 5 * time.Second

	ConnectionLostMessage = "Connection lost. Reconnecting..."
	UnauthorizedMessage   = "unauthorized"
)

type State int

const (
	// StateClosed is the state before Connect and after Disconnect.
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "closed"
	}
}

type Options struct {
	ReconnectDelay time.Duration
	// InitialLetters is shown until the first frame replaces it.
	InitialLetters []letter.Letter
	// RetryUnauthorized keeps reconnecting after the server rejected the
	// token. By default the consumer closes instead.
	RetryUnauthorized bool
	Logger            *zerolog.Logger
}

// Status is the consumer state handed to the inbox view.
type Status struct {
	Letters     []letter.Letter
	IsConnected bool
	Error       string
	State       State
}

// Consumer keeps a local copy of the inbox in sync with the server stream.
// It holds at most one live transport and reconnects after a fixed delay.
type Consumer struct {
	transport         Transport
	agg               *Aggregator
	delay             time.Duration
	retryUnauthorized bool
	logger            zerolog.Logger

	changes chan struct{}

	mu      sync.Mutex
	gen     uint64 // bumped on every Connect and Disconnect
	state   State
	letters []letter.Letter
	errText string
	stream  Stream
	cancel  context.CancelFunc
	timer   *time.Timer
}

func NewConsumer(transport Transport, agg *Aggregator, opts Options) *Consumer {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	c := &Consumer{
		transport:         transport,
		agg:               agg,
		delay:             opts.ReconnectDelay,
		retryUnauthorized: opts.RetryUnauthorized,
		logger:            logger.With().Str("component", "live").Logger(),
		changes:           make(chan struct{}, 1),
		letters:           []letter.Letter{},
	}
	if len(opts.InitialLetters) > 0 {
		c.letters = append([]letter.Letter(nil), opts.InitialLetters...)
		agg.SetUnreadCount(letter.CountUnread(c.letters))
	}
	return c
}

// Connect closes any current transport and pending reconnect, then opens a
// new transport in the background.
func (c *Consumer) Connect() {
	c.mu.Lock()
	old := c.openLocked()
	c.mu.Unlock()
	closeStream(old)
}

// Disconnect closes the transport and cancels any pending reconnect.
func (c *Consumer) Disconnect() {
	c.mu.Lock()
	old := c.teardownLocked()
	c.gen++
	c.state = StateClosed
	c.notifyLocked()
	c.mu.Unlock()
	closeStream(old)
}

func (c *Consumer) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Letters:     append([]letter.Letter(nil), c.letters...),
		IsConnected: c.state == StateOpen,
		Error:       c.errText,
		State:       c.state,
	}
}

// Changes receives a value after every state or letter change. Pending
// notifications coalesce, so readers should call Status afterwards.
func (c *Consumer) Changes() <-chan struct{} {
	return c.changes
}

// openLocked starts a new generation and returns the detached stream of the
// previous one. Callers close it after releasing c.mu, since a WebSocket
// close handshake can take up to a second.
func (c *Consumer) openLocked() Stream {
	old := c.teardownLocked()

	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = StateConnecting
	c.notifyLocked()

	go c.run(ctx, c.gen)
	return old
}

// teardownLocked stops the pending reconnect and cancels the dial. The live
// stream is detached and returned for the caller to close unlocked.
func (c *Consumer) teardownLocked() Stream {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	s := c.stream
	c.stream = nil
	return s
}

func closeStream(s Stream) {
	if s != nil {
		_ = s.Close()
	}
}

func (c *Consumer) run(ctx context.Context, gen uint64) {
	s, err := c.transport.Open(ctx)
	if err != nil {
		c.fail(gen, err)
		return
	}

	// A dial that completes after a newer Connect started leaves two
	// transports open until this check closes the stale one.
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		_ = s.Close()
		return
	}
	c.stream = s
	c.state = StateOpen
	c.errText = ""
	c.notifyLocked()
	c.mu.Unlock()

	for {
		frame, err := s.Next()
		if err != nil {
			c.fail(gen, err)
			return
		}
		c.handle(gen, frame)
	}
}

// fail closes the transport of generation gen and schedules one reconnect.
func (c *Consumer) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	old := c.stream
	c.stream = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if errors.Is(err, ErrUnauthorized) && !c.retryUnauthorized {
		c.logger.Warn().Msg("stream rejected the token, not reconnecting")
		c.state = StateClosed
		c.errText = UnauthorizedMessage
	} else {
		c.logger.Warn().Err(err).Dur("retry_in", c.delay).Msg("inbox stream lost")
		c.state = StateReconnecting
		c.errText = ConnectionLostMessage
		if c.timer == nil {
			c.timer = time.AfterFunc(c.delay, func() { c.reconnect(gen) })
		}
	}
	c.notifyLocked()
	c.mu.Unlock()
	closeStream(old)
}

func (c *Consumer) reconnect(gen uint64) {
	c.mu.Lock()
	// Connect or Disconnect got here first.
	if gen != c.gen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	old := c.openLocked()
	c.mu.Unlock()
	closeStream(old)
}

type frame struct {
	Type       string          `json:"type"`
	Letters    []letter.Letter `json:"letters"`
	NewLetters []letter.Letter `json:"newLetters"`
	DeletedIDs []string        `json:"deletedIds"`
}

func parseFrame(data []byte) (frame, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return frame{}, err
	}
	switch f.Type {
	case "init", "update":
	default:
		return frame{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
	if f.Letters == nil {
		f.Letters = []letter.Letter{}
	}
	return f, nil
}

func (c *Consumer) handle(gen uint64, data []byte) {
	f, err := parseFrame(data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("dropping malformed stream frame")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}

	c.letters = f.Letters
	var fresh []letter.Letter
	if f.Type == "update" {
		fresh = f.NewLetters
	}
	c.agg.Apply(letter.CountUnread(f.Letters), fresh)
	c.notifyLocked()
}

func (c *Consumer) notifyLocked() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}
