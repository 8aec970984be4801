package record

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"homeguard/pkg/log"
)

// Worker is the single consumer of the encode queue. Jobs run strictly in
// submission order, off the capture path; a failed encode is reported and the
// worker moves on.
type Worker struct {
	jobs        <-chan EncodeJob
	encoder     Encoder
	coordinator *Coordinator

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *logrus.Entry
}

func NewWorker(parentCtx context.Context, jobs <-chan EncodeJob, encoder Encoder, coordinator *Coordinator) *Worker {
	ctx, cancel := context.WithCancel(parentCtx)
	return &Worker{
		jobs:        jobs,
		encoder:     encoder,
		coordinator: coordinator,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		logger:      log.GetLogger(ctx).WithField("component", "encoder"),
	}
}

func (w *Worker) Start() {
	go func() {
		defer close(w.done)
		w.logger.Info("encode worker started")
		w.run()
		w.logger.Info("encode worker stopped")
	}()
}

func (w *Worker) run() {
	for {
		select {
		case <-w.ctx.Done():
			return
		case job, ok := <-w.jobs:
			if !ok {
				return
			}
			w.encode(job)
		}
	}
}

func (w *Worker) encode(job EncodeJob) {
	start := time.Now()
	res, err := w.encoder.Encode(job)
	if err != nil {
		w.logger.WithError(err).Errorf("encode event %s failed", job.EventID)
	} else {
		w.logger.Infof("encoded event %s in %v", job.EventID, time.Since(start))
	}
	w.coordinator.Complete(job.EventID, res, err)
}

// Stop lets the worker drain the already-closed queue for up to wait, then
// abandons whatever is left.
func (w *Worker) Stop(wait time.Duration) {
	select {
	case <-w.done:
	case <-time.After(wait):
		w.logger.Warn("shutdown wait exceeded, abandoning queued encode jobs")
		w.cancel()
		<-w.done
	}
}
