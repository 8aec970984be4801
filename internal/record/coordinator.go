package record

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"homeguard/internal/stream"
	"homeguard/pkg/log"
)

const (
	// finalizeTimeout bounds how long a finalizing task may wait for its
	// encode result before it is marked failed.
	finalizeTimeout = 30 * time.Second
	// sweepAge is how long terminal tasks linger for status queries before
	// the sweep drops them.
	sweepAge = 300 * time.Second

	sweepInterval = 60 * time.Second
)

// Coordinator drives the per-event recording state machine:
// collecting -> finalizing -> completed|failed. Triggering snapshots the ring
// buffer as preroll; the capture loop then taps live frames into the postroll
// via OnFrame until the clip is full and an EncodeJob goes to the worker.
type Coordinator struct {
	ring     *stream.RingBuffer
	videoDir string
	target   int

	mu    sync.Mutex
	tasks map[string]*task

	jobs  chan EncodeJob
	index *Index
	sink  Sink

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	now    func() time.Time
	logger *logrus.Entry
}

func NewCoordinator(parentCtx context.Context, ring *stream.RingBuffer, videoDir string,
	postrollFrames, queueSize int, index *Index, sink Sink) *Coordinator {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Coordinator{
		ring:     ring,
		videoDir: videoDir,
		target:   postrollFrames,
		tasks:    make(map[string]*task),
		jobs:     make(chan EncodeJob, queueSize),
		index:    index,
		sink:     sink,
		ctx:      ctx,
		cancel:   cancel,
		wg:       &sync.WaitGroup{},
		now:      time.Now,
		logger:   log.GetLogger(ctx).WithField("component", "recorder"),
	}
}

// Jobs is the encode queue drained by the worker.
func (c *Coordinator) Jobs() <-chan EncodeJob {
	return c.jobs
}

func (c *Coordinator) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sweepRoutine()
	}()
}

// Stop halts the sweep and closes the encode queue. The capture loop must
// already be stopped so no OnFrame submission races the close; collecting
// tasks are discarded.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
	close(c.jobs)
}

// Trigger starts recording for an event. It reports false when the event id
// already has a live recording. A preroll shorter than the nominal window is
// fine; the stream may simply be young.
func (c *Coordinator) Trigger(eventID, eventType string) bool {
	preroll := c.ring.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.tasks[eventID]; ok && !existing.status.Terminal() {
		c.logger.Warnf("event %s is already recording", eventID)
		return false
	}

	c.tasks[eventID] = &task{
		eventID:    eventID,
		eventType:  eventType,
		createdAt:  c.now(),
		preroll:    preroll,
		targetPost: c.target,
		status:     StatusCollecting,
	}
	c.logger.Infof("recording event %s (%s) started with %d preroll frames", eventID, eventType, len(preroll))
	return true
}

// OnFrame runs on the capture goroutine. It appends the live frame to every
// collecting task and submits full clips to the encode queue without ever
// blocking: a full queue fails the task instead.
func (c *Coordinator) OnFrame(f stream.Frame) {
	c.mu.Lock()

	var ready []EncodeJob
	for _, t := range c.tasks {
		if t.status != StatusCollecting {
			continue
		}
		t.postroll = append(t.postroll, f)
		if len(t.postroll) < t.targetPost {
			continue
		}

		t.status = StatusFinalizing
		t.finalizeAt = c.now()

		frames := make([]stream.Frame, 0, len(t.preroll)+len(t.postroll))
		frames = append(frames, t.preroll...)
		frames = append(frames, t.postroll...)

		filename := fmt.Sprintf("event_%s_%s_%s.mp4", t.eventID, t.eventType, c.now().Format("20060102_150405"))
		ready = append(ready, EncodeJob{
			EventID:   t.eventID,
			EventType: t.eventType,
			Path:      path.Join(c.videoDir, filename),
			Frames:    frames,
		})
	}
	c.mu.Unlock()

	for _, job := range ready {
		select {
		case c.jobs <- job:
			c.logger.Infof("event %s clip queued for encoding, %d frames", job.EventID, len(job.Frames))
		default:
			c.logger.Errorf("encode queue full, failing event %s", job.EventID)
			c.fail(job.EventID, "encode queue full")
		}
	}
}

// Complete is called by the encode worker with the outcome of a job.
func (c *Coordinator) Complete(eventID string, res Result, err error) {
	c.mu.Lock()
	t, ok := c.tasks[eventID]
	if !ok {
		c.mu.Unlock()
		c.logger.Warnf("encode result for unknown event %s", eventID)
		return
	}
	if t.status.Terminal() {
		// The sweep already settled this task (encode timed out); a late
		// result must not leave the terminal state or re-report the clip.
		c.mu.Unlock()
		c.logger.Warnf("discarding late encode result for event %s (%s)", eventID, t.status)
		return
	}

	if err != nil {
		t.status = StatusFailed
		t.reason = err.Error()
		c.logger.WithError(err).Errorf("event %s encode failed", eventID)
	} else {
		t.status = StatusCompleted
		t.result = res
		c.logger.Infof("event %s recorded: %s (%.1fs, %d bytes)", eventID, res.Path, res.Duration, res.Size)
	}
	clip := c.clipLocked(t)
	c.mu.Unlock()

	c.report(clip)
}

func (c *Coordinator) fail(eventID, reason string) {
	c.mu.Lock()
	t, ok := c.tasks[eventID]
	if !ok || t.status.Terminal() {
		c.mu.Unlock()
		return
	}
	t.status = StatusFailed
	t.reason = reason
	clip := c.clipLocked(t)
	c.mu.Unlock()

	c.report(clip)
}

func (c *Coordinator) clipLocked(t *task) Clip {
	return Clip{
		EventID:   t.eventID,
		EventType: t.eventType,
		Status:    t.status,
		VideoPath: t.result.Path,
		Duration:  t.result.Duration,
		FileSize:  t.result.Size,
		Reason:    t.reason,
		Timestamp: c.now(),
	}
}

// report persists the terminal outcome and hands it to the metadata sink.
func (c *Coordinator) report(clip Clip) {
	if c.index != nil {
		if err := c.index.Put(clip); err != nil {
			c.logger.WithError(err).Errorf("persist recording %s failed", clip.EventID)
		}
	}
	if c.sink != nil {
		c.sink.ClipFinished(clip)
	}
}

// Status returns the recording state for an event, falling back to the
// durable index once the sweep has dropped the in-memory task.
func (c *Coordinator) Status(eventID string) (Clip, bool) {
	c.mu.Lock()
	if t, ok := c.tasks[eventID]; ok {
		clip := c.clipLocked(t)
		c.mu.Unlock()
		return clip, true
	}
	c.mu.Unlock()

	if c.index != nil {
		if clip, err := c.index.Get(eventID); err != nil {
			c.logger.WithError(err).Errorf("lookup recording %s failed", eventID)
		} else if clip != nil {
			return *clip, true
		}
	}
	return Clip{}, false
}

func (c *Coordinator) ActiveTasks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tasks {
		if !t.status.Terminal() {
			n++
		}
	}
	return n
}

func (c *Coordinator) sweepRoutine() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep fails finalizing tasks that outlived the encode timeout and drops
// terminal tasks older than the grace period so memory stays bounded.
func (c *Coordinator) sweep() {
	now := c.now()

	c.mu.Lock()
	var timedOut []string
	var stale []string
	for id, t := range c.tasks {
		switch {
		case t.status == StatusFinalizing && now.Sub(t.finalizeAt) > finalizeTimeout:
			timedOut = append(timedOut, id)
		case t.status.Terminal() && now.Sub(t.createdAt) > sweepAge:
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		delete(c.tasks, id)
	}
	c.mu.Unlock()

	if len(stale) > 0 {
		c.logger.Infof("swept %d finished recording tasks", len(stale))
	}
	for _, id := range timedOut {
		c.logger.Errorf("event %s encode timed out", id)
		c.fail(id, "encode timed out")
	}
}
