package inbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lettrly/internal/letter"
)

const testInterval = 10 * time.Millisecond

type fakeSource struct {
	mu       sync.Mutex
	letters  []letter.Letter
	failures int // upcoming fetches that fail
	delay    time.Duration

	calls    atomic.Int32
	inflight atomic.Int32
	maxInfl  atomic.Int32
}

func (f *fakeSource) set(letters ...letter.Letter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.letters = letters
}

func (f *fakeSource) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *fakeSource) ListForRecipient(ctx context.Context, recipientID string) ([]letter.Letter, error) {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		m := f.maxInfl.Load()
		if n <= m || f.maxInfl.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	delay := f.delay
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("store unavailable")
	}
	out := append([]letter.Letter(nil), f.letters...)
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

type recorder struct {
	frames chan Message
	broken atomic.Bool
}

func newRecorder() *recorder {
	return &recorder{frames: make(chan Message, 32)}
}

func (r *recorder) Emit(msg Message) error {
	if r.broken.Load() {
		return errors.New("client gone")
	}
	r.frames <- msg
	return nil
}

func (r *recorder) next(t *testing.T) Message {
	t.Helper()
	select {
	case m := <-r.frames:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no frame emitted")
		return Message{}
	}
}

func (r *recorder) quiet(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case m := <-r.frames:
		t.Fatalf("unexpected %s frame", m.Type)
	case <-time.After(d):
	}
}

func startStream(t *testing.T, s *Streamer, em Emitter) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "r-1", em) }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestRun_Lifecycle(t *testing.T) {
	l1, l2, l3 := mk("L1", 10), mk("L2", 5), mk("L3", 20)
	src := &fakeSource{}
	src.set(l1, l2)
	rec := newRecorder()

	startStream(t, NewStreamer(src, Options{PollInterval: testInterval}), rec)

	first := rec.next(t)
	assert.Equal(t, TypeInit, first.Type)
	assert.Equal(t, []string{"L1", "L2"}, ids(first.Letters))
	assert.Nil(t, first.NewLetters)
	assert.Nil(t, first.DeletedIDs)

	// nothing changed: no frame
	rec.quiet(t, 5*testInterval)

	src.set(l3, l1, l2)
	up := rec.next(t)
	assert.Equal(t, TypeUpdate, up.Type)
	assert.Equal(t, []string{"L3", "L1", "L2"}, ids(up.Letters))
	assert.Equal(t, []string{"L3"}, ids(up.NewLetters))
	assert.NotNil(t, up.DeletedIDs)
	assert.Empty(t, up.DeletedIDs)

	src.set(l3, l1)
	up = rec.next(t)
	assert.Equal(t, []string{"L3", "L1"}, ids(up.Letters))
	assert.Empty(t, up.NewLetters)
	assert.NotNil(t, up.NewLetters)
	assert.Equal(t, []string{"L2"}, up.DeletedIDs)

	// a read flag flip keeps the id set, so it is not announced
	read := l1
	read.IsRead = true
	src.set(l3, read)
	rec.quiet(t, 5*testInterval)
}

func TestRun_SkipsFailedTicks(t *testing.T) {
	src := &fakeSource{}
	src.set(mk("a", 1))
	rec := newRecorder()

	_, done := startStream(t, NewStreamer(src, Options{PollInterval: testInterval}), rec)
	rec.next(t)

	src.failNext(3)
	src.set(mk("b", 2), mk("a", 1))

	up := rec.next(t)
	assert.Equal(t, []string{"b"}, ids(up.NewLetters))

	select {
	case err := <-done:
		t.Fatalf("stream ended early: %v", err)
	default:
	}
}

func TestRun_InitialFetchFails(t *testing.T) {
	src := &fakeSource{}
	src.failNext(1)
	rec := newRecorder()

	err := NewStreamer(src, Options{PollInterval: testInterval}).Run(t.Context(), "r-1", rec)

	require.Error(t, err)
	assert.Len(t, rec.frames, 0)
}

func TestRun_CancelStopsPolling(t *testing.T) {
	src := &fakeSource{}
	rec := newRecorder()

	cancel, done := startStream(t, NewStreamer(src, Options{PollInterval: testInterval}), rec)
	rec.next(t)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	calls := src.calls.Load()
	time.Sleep(5 * testInterval)
	assert.Equal(t, calls, src.calls.Load(), "no fetches after cancel")
}

func TestRun_EmitFailureEndsStream(t *testing.T) {
	src := &fakeSource{}
	rec := newRecorder()

	_, done := startStream(t, NewStreamer(src, Options{PollInterval: testInterval}), rec)
	rec.next(t)

	rec.broken.Store(true)
	src.set(mk("a", 1))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after emit failure")
	}
}

func TestRun_FetchesNeverOverlap(t *testing.T) {
	src := &fakeSource{delay: 3 * testInterval}
	rec := newRecorder()

	startStream(t, NewStreamer(src, Options{PollInterval: testInterval / 2}), rec)
	rec.next(t)

	require.Eventually(t, func() bool { return src.calls.Load() >= 4 }, 2*time.Second, testInterval)
	assert.EqualValues(t, 1, src.maxInfl.Load())
}

func TestRun_FeedSkipsIdleTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	src := &fakeSource{}
	src.set(mk("a", 1))
	rec := newRecorder()

	s := NewStreamer(src, Options{PollInterval: testInterval, Feed: hub, ResyncEvery: 1000})
	startStream(t, s, rec)
	rec.next(t)

	time.Sleep(6 * testInterval)
	assert.EqualValues(t, 1, src.calls.Load(), "idle ticks skip the store")

	src.set(mk("b", 2), mk("a", 1))
	require.NoError(t, hub.Publish(ctx, "r-1"))

	up := rec.next(t)
	assert.Equal(t, []string{"b"}, ids(up.NewLetters))
}

func TestRun_FeedResyncs(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	src := &fakeSource{}
	rec := newRecorder()

	s := NewStreamer(src, Options{PollInterval: testInterval, Feed: hub, ResyncEvery: 3})
	startStream(t, s, rec)
	rec.next(t)

	// written without a publish, picked up by the periodic resync
	src.set(mk("a", 1))

	up := rec.next(t)
	assert.Equal(t, []string{"a"}, ids(up.NewLetters))
}
