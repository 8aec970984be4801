package stream

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"homeguard/pkg/log"
)

const reconnectBackoff = time.Second

// FrameSink receives every captured frame on the capture goroutine. Sinks
// must not block; anything expensive belongs behind a channel handoff.
type FrameSink interface {
	OnFrame(Frame)
}

// Capture pulls frames from a live video source at a target rate and fans
// them out to the ring buffer and the registered sinks. A read failure never
// stops the loop: it backs off, reopens the source and keeps going.
type Capture struct {
	url    string
	fps    int
	ring   *RingBuffer
	sinks  []FrameSink
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	logger *logrus.Entry
}

func NewCapture(parentCtx context.Context, url string, fps int, ring *RingBuffer, sinks ...FrameSink) *Capture {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Capture{
		url:    url,
		fps:    fps,
		ring:   ring,
		sinks:  sinks,
		ctx:    ctx,
		cancel: cancel,
		wg:     &sync.WaitGroup{},
		logger: log.GetLogger(ctx).WithField("component", "capture"),
	}
}

func (c *Capture) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.logger.Infof("capture loop started, source: %s", c.url)
		c.run()
		c.logger.Info("capture loop stopped")
	}()
}

func (c *Capture) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Capture) run() {
	interval := time.Second / time.Duration(c.fps)

	var source *gocv.VideoCapture
	defer func() {
		if source != nil {
			source.Close()
		}
	}()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		if source == nil {
			var err error
			source, err = gocv.OpenVideoCapture(c.url)
			if err != nil {
				c.logger.WithError(err).Warnf("open video source failed, retrying")
				if !c.sleep(reconnectBackoff) {
					return
				}
				continue
			}
			c.logger.Info("video source opened")
		}

		start := time.Now()

		mat := gocv.NewMat()
		if ok := source.Read(&mat); !ok {
			mat.Close()
			c.logger.Warn("read frame failed, reconnecting")
			source.Close()
			source = nil
			if !c.sleep(reconnectBackoff) {
				return
			}
			continue
		}

		if !mat.Empty() {
			frame := Frame{
				Data:      mat.ToBytes(),
				Width:     mat.Cols(),
				Height:    mat.Rows(),
				Timestamp: start,
			}
			c.ring.Push(frame)
			for _, sink := range c.sinks {
				sink.OnFrame(frame)
			}
		}
		mat.Close()

		if rest := interval - time.Since(start); rest > 0 {
			if !c.sleep(rest) {
				return
			}
		}
	}
}

// sleep waits d or until the capture is stopped, reporting whether to keep
// running.
func (c *Capture) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
