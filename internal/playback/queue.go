// Package playback buffers synthesized-audio segments and plays them
// strictly in arrival order, one at a time.
package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sgrover/confab/internal/voice"
)

// Player renders one decoded PCM segment to the output device. Play blocks
// until the segment finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, pcm []int16, sampleRate int, channels int) error
}

// PlayerFunc adapts a function to the Player interface.
type PlayerFunc func(context.Context, []int16, int, int) error

func (f PlayerFunc) Play(ctx context.Context, pcm []int16, rate, channels int) error {
	return f(ctx, pcm, rate, channels)
}

type queued struct {
	item voice.PlaybackItem
	pos  int
}

// Queue plays enqueued items in arrival order. An item is never skipped
// except via Interrupt; a per-item playback failure is logged and treated as
// completion of that item. When the queue empties after an IsLast item it
// invokes the drained callback.
type Queue struct {
	logger *slog.Logger
	player Player

	mu       sync.Mutex
	items    []queued
	nextPos  int
	current  *queued
	playing  bool
	cancel   context.CancelFunc
	sawLast  bool
	drained  func()
	onError  func(error)
	shutdown bool
}

// NewQueue builds an idle queue on top of a player.
func NewQueue(logger *slog.Logger, player Player) *Queue {
	if player == nil {
		player = PlayerFunc(func(context.Context, []int16, int, int) error { return nil })
	}
	return &Queue{logger: logger, player: player}
}

// OnDrained registers the callback fired when the queue empties after a
// final item. Interrupt suppresses it.
func (q *Queue) OnDrained(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drained = fn
}

// OnError registers a callback observing per-item playback failures. The
// queue still advances past the failed item.
func (q *Queue) OnError(fn func(error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onError = fn
}

// Enqueue appends an item. If the queue is idle, playback starts
// immediately; otherwise the item waits its turn.
func (q *Queue) Enqueue(item voice.PlaybackItem) {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, queued{item: item, pos: q.nextPos})
	q.nextPos++
	if item.IsLast {
		q.sawLast = true
	}
	start := !q.playing
	if start {
		q.playing = true
	}
	q.mu.Unlock()

	if start {
		go q.run()
	}
}

// Current returns the item being played, or nil when idle.
func (q *Queue) Current() *voice.PlaybackItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return nil
	}
	item := q.current.item
	return &item
}

// Pending reports how many items wait behind the current one.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Interrupt stops the current item immediately, discards every queued item,
// and returns the queue to idle without a drained notification. Idempotent.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	q.items = nil
	q.sawLast = false
	cancel := q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Close interrupts playback and rejects further items.
func (q *Queue) Close() {
	q.mu.Lock()
	q.shutdown = true
	q.mu.Unlock()
	q.Interrupt()
}

// run drains the queue until empty. It is the only goroutine touching the
// player, which keeps playback strictly one item at a time.
func (q *Queue) run() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			finished := q.sawLast
			q.sawLast = false
			q.playing = false
			q.current = nil
			drained := q.drained
			q.mu.Unlock()
			if finished && drained != nil {
				drained()
			}
			return
		}
		next := q.items[0]
		q.items = q.items[1:]
		q.current = &next
		ctx, cancel := context.WithCancel(context.Background())
		q.cancel = cancel
		q.mu.Unlock()

		err := q.playItem(ctx, next.item)
		cancel()

		q.mu.Lock()
		q.current = nil
		q.cancel = nil
		interrupted := ctx.Err() != nil
		q.mu.Unlock()

		if err != nil && !interrupted {
			q.logWarn("playback item failed; skipping", "pos", next.pos, "error", err.Error())
			if cb := q.errorCallback(); cb != nil {
				cb(err)
			}
		}
		if interrupted {
			// Interrupt already cleared the backlog; fall through so the
			// empty check above returns the queue to idle.
			continue
		}
	}
}

func (q *Queue) playItem(ctx context.Context, item voice.PlaybackItem) error {
	pcm, rate, channels, err := decodeSegment(item.Data, item.ContentType)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	return q.player.Play(ctx, pcm, rate, channels)
}

func (q *Queue) errorCallback() func(error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.onError
}

func (q *Queue) logWarn(message string, args ...any) {
	if q.logger == nil {
		return
	}
	q.logger.Warn(message, args...)
}
