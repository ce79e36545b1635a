package inbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const channelPrefix = "letters:"

// Hub fans inbox change notifications out to the stream loops of this
// process. Changes arrive over Redis pub/sub so every server instance hears
// about letters written through any other instance. With a nil Redis client
// the hub only delivers changes published in-process.
type Hub struct {
	// watchers is only touched by Run.
	watchers map[string]map[chan struct{}]struct{}

	register   chan watchRequest
	unregister chan watchRequest
	notify     chan string // recipient ids whose inbox changed
	done       chan struct{}

	redis *redis.Client
}

type watchRequest struct {
	recipientID string
	ch          chan struct{}
}

func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		watchers:   make(map[string]map[chan struct{}]struct{}),
		register:   make(chan watchRequest),
		unregister: make(chan watchRequest),
		notify:     make(chan string, 64),
		done:       make(chan struct{}),
		redis:      redisClient,
	}
}

// Run owns the watcher map until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-h.register:
			set, ok := h.watchers[req.recipientID]
			if !ok {
				set = make(map[chan struct{}]struct{})
				h.watchers[req.recipientID] = set
			}
			set[req.ch] = struct{}{}

		case req := <-h.unregister:
			if set, ok := h.watchers[req.recipientID]; ok {
				delete(set, req.ch)
				if len(set) == 0 {
					delete(h.watchers, req.recipientID)
				}
			}

		case recipientID := <-h.notify:
			for ch := range h.watchers[recipientID] {
				// Buffered by one: a pending wake-up already covers this change.
				select {
				case ch <- struct{}{}:
				default:
				}
			}
		}
	}
}

// Watch implements ChangeFeed.
func (h *Hub) Watch(recipientID string) (<-chan struct{}, func()) {
	req := watchRequest{recipientID: recipientID, ch: make(chan struct{}, 1)}

	select {
	case h.register <- req:
	case <-h.done:
	}

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		select {
		case h.unregister <- req:
		case <-h.done:
		}
	}
	return req.ch, stop
}

// Publish announces that recipientID's inbox changed.
func (h *Hub) Publish(ctx context.Context, recipientID string) error {
	if h.redis == nil {
		select {
		case h.notify <- recipientID:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := h.redis.Publish(ctx, channelPrefix+recipientID, recipientID).Err(); err != nil {
		return fmt.Errorf("publish inbox change: %w", err)
	}
	return nil
}

// SubscribeToRedis forwards changes published by any instance into Run.
func (h *Hub) SubscribeToRedis(ctx context.Context) {
	if h.redis == nil {
		return
	}

	pubsub := h.redis.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Warn().Msg("redis subscription closed")
				return
			}
			select {
			case h.notify <- strings.TrimPrefix(msg.Channel, channelPrefix):
			case <-ctx.Done():
				return
			}
		}
	}
}
