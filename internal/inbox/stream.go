package inbox

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"lettrly/internal/letter"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultResyncEvery  = 15
)

// SnapshotSource is the letter store as the stream loop sees it.
type SnapshotSource interface {
	ListForRecipient(ctx context.Context, recipientID string) ([]letter.Letter, error)
}

// Emitter writes frames to one connected client.
type Emitter interface {
	Emit(msg Message) error
}

// ChangeFeed wakes stream loops when a recipient's inbox may have changed.
// The returned stop func must be called once the loop ends.
type ChangeFeed interface {
	Watch(recipientID string) (<-chan struct{}, func())
}

type Options struct {
	PollInterval time.Duration
	// Feed is optional. When set, ticks skip the store fetch unless the feed
	// fired or ResyncEvery ticks passed without one.
	Feed        ChangeFeed
	ResyncEvery int
}

// Streamer runs one poll loop per connected client. Loops share nothing but
// the source.
type Streamer struct {
	source      SnapshotSource
	interval    time.Duration
	feed        ChangeFeed
	resyncEvery int
}

func NewStreamer(source SnapshotSource, opts Options) *Streamer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ResyncEvery <= 0 {
		opts.ResyncEvery = DefaultResyncEvery
	}
	return &Streamer{
		source:      source,
		interval:    opts.PollInterval,
		feed:        opts.Feed,
		resyncEvery: opts.ResyncEvery,
	}
}

// Run emits an init frame, then an update frame on every tick whose snapshot
// gained or lost letters. It returns nil when ctx is cancelled. An error
// returned before the init frame means nothing was written.
func (s *Streamer) Run(ctx context.Context, recipientID string, em Emitter) error {
	logger := log.With().Str("recipient_id", recipientID).Logger()

	// Watch before the first fetch so a change in between is not lost.
	var wake <-chan struct{}
	if s.feed != nil {
		ch, stop := s.feed.Watch(recipientID)
		defer stop()
		wake = ch
	}

	snapshot, err := s.fetch(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("initial snapshot: %w", err)
	}
	if err := em.Emit(initMessage(snapshot)); err != nil {
		return fmt.Errorf("emit init: %w", err)
	}
	baseline := IDs(snapshot)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	dirty := false
	idle := 0
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-wake:
			dirty = true

		case <-ticker.C:
			if wake != nil && !dirty && idle+1 < s.resyncEvery {
				idle++
				feedSkips.Inc()
				continue
			}
			dirty, idle = false, 0

			current, err := s.fetch(ctx, recipientID)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fetchErrors.Inc()
				logger.Warn().Err(err).Msg("snapshot fetch failed, skipping tick")
				dirty = wake != nil
				continue
			}

			d := Diff(baseline, current)
			if d.Empty() {
				continue
			}

			if err := em.Emit(updateMessage(d)); err != nil {
				return fmt.Errorf("emit update: %w", err)
			}
			updatesEmitted.Inc()
			baseline = IDs(current)

			logger.Debug().
				Int("new", len(d.NewLetters)).
				Int("deleted", len(d.DeletedIDs)).
				Msg("inbox update sent")
		}
	}
}

func (s *Streamer) fetch(ctx context.Context, recipientID string) ([]letter.Letter, error) {
	start := time.Now()
	letters, err := s.source.ListForRecipient(ctx, recipientID)
	fetchDuration.Observe(time.Since(start).Seconds())
	return letters, err
}
