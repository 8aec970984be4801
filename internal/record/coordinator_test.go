package record

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeguard/internal/stream"
)

type captureSink struct {
	mu    sync.Mutex
	clips []Clip
}

func (s *captureSink) ClipFinished(clip Clip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, clip)
}

func (s *captureSink) last() (Clip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clips) == 0 {
		return Clip{}, false
	}
	return s.clips[len(s.clips)-1], true
}

func testFrame(i int, ts time.Time) stream.Frame {
	return stream.Frame{Data: []byte{byte(i)}, Width: 1, Height: 1, Timestamp: ts}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCoordinator(t *testing.T, prerollCap, target int) (*Coordinator, *stream.RingBuffer, *captureSink, *testClock) {
	t.Helper()
	ring := stream.NewRingBuffer(prerollCap)
	sink := &captureSink{}
	clock := &testClock{now: time.Now()}
	c := NewCoordinator(context.Background(), ring, t.TempDir(), target, 4, nil, sink)
	c.now = clock.Now
	return c, ring, sink, clock
}

func TestCoordinator_PrerollPlusPostroll(t *testing.T) {
	c, ring, _, clock := newTestCoordinator(t, 8, 10)
	base := clock.Now()

	for i := 0; i < 8; i++ {
		ring.Push(testFrame(i, base.Add(time.Duration(i)*100*time.Millisecond)))
	}

	require.True(t, c.Trigger("ev1", "zone_entry"))

	clip, ok := c.Status("ev1")
	require.True(t, ok)
	assert.Equal(t, StatusCollecting, clip.Status)

	// 12 live frames; the clip must close after the 10th, ignoring the rest
	for i := 8; i < 20; i++ {
		c.OnFrame(testFrame(i, base.Add(time.Duration(i)*100*time.Millisecond)))
	}

	clip, ok = c.Status("ev1")
	require.True(t, ok)
	assert.Equal(t, StatusFinalizing, clip.Status)

	select {
	case job := <-c.Jobs():
		require.Len(t, job.Frames, 18)
		for i, f := range job.Frames {
			assert.Equal(t, []byte{byte(i)}, f.Data, "frames must stay in capture order")
		}
		assert.Equal(t, "ev1", job.EventID)
		assert.Contains(t, job.Path, "event_ev1_zone_entry_")
	default:
		t.Fatal("expected a queued encode job")
	}
}

func TestCoordinator_ShortPrerollIsAccepted(t *testing.T) {
	c, ring, _, clock := newTestCoordinator(t, 20, 2)
	base := clock.Now()

	ring.Push(testFrame(0, base))
	require.True(t, c.Trigger("ev1", "manual"))

	c.OnFrame(testFrame(1, base.Add(100*time.Millisecond)))
	c.OnFrame(testFrame(2, base.Add(200*time.Millisecond)))

	job := <-c.Jobs()
	assert.Len(t, job.Frames, 3)
}

func TestCoordinator_DuplicateTriggerRejected(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 8, 10)

	require.True(t, c.Trigger("ev1", "manual"))
	assert.False(t, c.Trigger("ev1", "manual"))
	assert.Equal(t, 1, c.ActiveTasks())
}

func TestCoordinator_CompleteSuccess(t *testing.T) {
	c, _, sink, _ := newTestCoordinator(t, 8, 1)

	require.True(t, c.Trigger("ev1", "manual"))
	c.OnFrame(testFrame(0, time.Now()))
	<-c.Jobs()

	c.Complete("ev1", Result{Path: "/tmp/ev1.mp4", Duration: 1.8, Size: 4096}, nil)

	clip, ok := c.Status("ev1")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, clip.Status)
	assert.Equal(t, "/tmp/ev1.mp4", clip.VideoPath)
	assert.Equal(t, 1.8, clip.Duration)
	assert.Equal(t, int64(4096), clip.FileSize)

	reported, ok := sink.last()
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, reported.Status)
}

func TestCoordinator_CompleteFailure(t *testing.T) {
	c, _, sink, _ := newTestCoordinator(t, 8, 1)

	require.True(t, c.Trigger("ev1", "manual"))
	c.OnFrame(testFrame(0, time.Now()))
	<-c.Jobs()

	c.Complete("ev1", Result{}, errors.New("codec exploded"))

	clip, ok := c.Status("ev1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, clip.Status)
	assert.Equal(t, "codec exploded", clip.Reason)

	reported, ok := sink.last()
	require.True(t, ok)
	assert.Equal(t, StatusFailed, reported.Status)
}

func TestCoordinator_QueueFullFailsTask(t *testing.T) {
	ring := stream.NewRingBuffer(4)
	sink := &captureSink{}
	c := NewCoordinator(context.Background(), ring, t.TempDir(), 1, 1, nil, sink)

	require.True(t, c.Trigger("ev1", "manual"))
	c.OnFrame(testFrame(0, time.Now()))

	// the single queue slot is taken; the next finished clip must fail fast
	require.True(t, c.Trigger("ev2", "manual"))
	c.OnFrame(testFrame(1, time.Now()))

	clip, ok := c.Status("ev2")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, clip.Status)
	assert.Equal(t, "encode queue full", clip.Reason)
}

func TestCoordinator_SweepDropsOldTerminalTasks(t *testing.T) {
	c, _, _, clock := newTestCoordinator(t, 8, 1)

	require.True(t, c.Trigger("ev1", "manual"))
	c.OnFrame(testFrame(0, clock.Now()))
	<-c.Jobs()
	c.Complete("ev1", Result{}, errors.New("boom"))

	c.sweep()
	_, ok := c.Status("ev1")
	assert.True(t, ok, "fresh terminal task must survive the sweep")

	clock.Advance(301 * time.Second)
	c.sweep()

	_, ok = c.Status("ev1")
	assert.False(t, ok, "terminal task past the grace period must be swept")
}

func TestCoordinator_FinalizeTimeout(t *testing.T) {
	c, _, sink, clock := newTestCoordinator(t, 8, 1)

	require.True(t, c.Trigger("ev1", "manual"))
	c.OnFrame(testFrame(0, clock.Now()))
	<-c.Jobs()

	clock.Advance(31 * time.Second)
	c.sweep()

	clip, ok := c.Status("ev1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, clip.Status)
	assert.Equal(t, "encode timed out", clip.Reason)

	reported, ok := sink.last()
	require.True(t, ok)
	assert.Equal(t, "ev1", reported.EventID)
}

func TestCoordinator_LateResultAfterTimeoutIsDiscarded(t *testing.T) {
	c, _, sink, clock := newTestCoordinator(t, 8, 1)

	require.True(t, c.Trigger("ev1", "manual"))
	c.OnFrame(testFrame(0, clock.Now()))
	<-c.Jobs()

	clock.Advance(31 * time.Second)
	c.sweep()

	clip, ok := c.Status("ev1")
	require.True(t, ok)
	require.Equal(t, StatusFailed, clip.Status)
	reportsAfterTimeout := len(sink.clips)

	// the encode eventually finishes; the settled task must not change
	c.Complete("ev1", Result{Path: "/tmp/ev1.mp4", Duration: 1.8, Size: 4096}, nil)

	clip, ok = c.Status("ev1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, clip.Status)
	assert.Equal(t, "encode timed out", clip.Reason)
	assert.Empty(t, clip.VideoPath)
	assert.Len(t, sink.clips, reportsAfterTimeout, "a settled recording must not be reported again")
}

func TestCoordinator_StatusUnknownEvent(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t, 8, 1)

	_, ok := c.Status("missing")
	assert.False(t, ok)
}
