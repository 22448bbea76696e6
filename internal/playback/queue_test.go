package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sgrover/confab/internal/voice"
)

// rawItem builds a playable raw s16le payload whose first sample tags the
// item for order assertions.
func rawItem(tag int16, last bool) voice.PlaybackItem {
	return voice.PlaybackItem{
		Data:   []byte{byte(tag), byte(tag >> 8), 0, 0},
		IsLast: last,
	}
}

type recordingPlayer struct {
	mu      sync.Mutex
	order   []int16
	started chan int16
	failOn  int16
	block   bool
}

func newRecordingPlayer() *recordingPlayer {
	return &recordingPlayer{started: make(chan int16, 16), failOn: -1}
}

func (p *recordingPlayer) Play(ctx context.Context, pcm []int16, _, _ int) error {
	tag := int16(-1)
	if len(pcm) > 0 {
		tag = pcm[0]
	}
	p.mu.Lock()
	p.order = append(p.order, tag)
	p.mu.Unlock()
	p.started <- tag

	if p.failOn == tag {
		return errors.New("device rejected segment")
	}
	if p.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (p *recordingPlayer) played() []int16 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int16, len(p.order))
	copy(out, p.order)
	return out
}

func waitDrained(t *testing.T, drained chan struct{}) {
	t.Helper()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("queue never drained")
	}
}

func TestQueuePlaysInArrivalOrder(t *testing.T) {
	player := newRecordingPlayer()
	q := NewQueue(nil, player)

	drained := make(chan struct{}, 1)
	q.OnDrained(func() { drained <- struct{}{} })

	q.Enqueue(rawItem(1, false))
	q.Enqueue(rawItem(2, false))
	q.Enqueue(rawItem(3, true))

	waitDrained(t, drained)
	require.Equal(t, []int16{1, 2, 3}, player.played())
	require.Zero(t, q.Pending())
	require.Nil(t, q.Current())
}

func TestQueueDrainedOnlyAfterFinalItem(t *testing.T) {
	player := newRecordingPlayer()
	q := NewQueue(nil, player)

	drained := make(chan struct{}, 1)
	q.OnDrained(func() { drained <- struct{}{} })

	q.Enqueue(rawItem(1, false))
	<-player.started

	select {
	case <-drained:
		t.Fatal("drained fired without a final item")
	case <-time.After(100 * time.Millisecond):
	}

	q.Enqueue(rawItem(2, true))
	waitDrained(t, drained)
}

func TestQueueInterruptDiscardsBacklogAndSuppressesDrained(t *testing.T) {
	player := newRecordingPlayer()
	player.block = true
	q := NewQueue(nil, player)

	drained := make(chan struct{}, 1)
	q.OnDrained(func() { drained <- struct{}{} })

	q.Enqueue(rawItem(1, false))
	q.Enqueue(rawItem(2, false))
	q.Enqueue(rawItem(3, true))
	<-player.started

	q.Interrupt()

	select {
	case <-drained:
		t.Fatal("drained fired after interrupt")
	case <-time.After(200 * time.Millisecond):
	}

	require.Equal(t, []int16{1}, player.played())
	require.Zero(t, q.Pending())
}

func TestQueueSkipsFailedItemAndContinues(t *testing.T) {
	player := newRecordingPlayer()
	player.failOn = 2
	q := NewQueue(nil, player)

	drained := make(chan struct{}, 1)
	q.OnDrained(func() { drained <- struct{}{} })

	var failures []error
	var failuresMu sync.Mutex
	q.OnError(func(err error) {
		failuresMu.Lock()
		failures = append(failures, err)
		failuresMu.Unlock()
	})

	q.Enqueue(rawItem(1, false))
	q.Enqueue(rawItem(2, false))
	q.Enqueue(rawItem(3, true))

	waitDrained(t, drained)
	require.Equal(t, []int16{1, 2, 3}, player.played())

	failuresMu.Lock()
	defer failuresMu.Unlock()
	require.Len(t, failures, 1)
}

func TestQueueUndecodableItemReportsPlaybackError(t *testing.T) {
	player := newRecordingPlayer()
	q := NewQueue(nil, player)

	drained := make(chan struct{}, 1)
	q.OnDrained(func() { drained <- struct{}{} })

	errCh := make(chan error, 1)
	q.OnError(func(err error) { errCh <- err })

	// A truncated WAV header decodes to an error, not a playable segment.
	bad := []byte("RIFF\x00\x00\x00\x00WAVE")
	q.Enqueue(voice.PlaybackItem{Data: bad, IsLast: true})

	waitDrained(t, drained)
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, voice.ErrPlayback)
	case <-time.After(time.Second):
		t.Fatal("no error reported for undecodable item")
	}
	require.Empty(t, player.played())
}

func TestQueueCloseRejectsFurtherItems(t *testing.T) {
	player := newRecordingPlayer()
	q := NewQueue(nil, player)

	q.Close()
	q.Enqueue(rawItem(1, true))

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, player.played())
}
