package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"homeguard/internal/config"
	"homeguard/internal/detect"
	"homeguard/internal/record"
	"homeguard/internal/sink"
	"homeguard/internal/storage"
	"homeguard/internal/stream"
	"homeguard/internal/zone"
	"homeguard/pkg/log"
)

const workerDrainWait = 30 * time.Second

// Pipeline owns every core component and wires them together explicitly:
// capture feeds the ring buffer, the recording tap and the detection feed;
// detections flow through the zone tracker; violations become alerts and
// recording triggers; full clips go through the encode worker to the sink.
type Pipeline struct {
	conf        *config.Config
	ring        *stream.RingBuffer
	tracker     *zone.Tracker
	coordinator *record.Coordinator
	worker      *record.Worker
	capture     *stream.Capture
	cleaner     *storage.Cleaner
	publisher   *sink.Publisher
	index       *record.Index
	detector    detect.Detector

	detectCh chan stream.Frame
	lastScan time.Time
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	logger *logrus.Entry
}

func New(conf *config.Config) (*Pipeline, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.GetLogger(ctx).WithField("component", "pipeline")

	if err := os.MkdirAll(conf.VideoDir(), 0755); err != nil {
		cancel()
		return nil, fmt.Errorf("create video dir: %w", err)
	}

	index, err := record.NewIndex(conf.DataDir())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open recording index: %w", err)
	}

	publisher, err := sink.NewPublisher(ctx, conf)
	if err != nil {
		cancel()
		index.Close()
		return nil, err
	}

	detector, err := detect.NewTritonDetector(ctx, conf.Triton)
	if err != nil {
		cancel()
		publisher.Stop()
		index.Close()
		return nil, fmt.Errorf("create detector: %w", err)
	}

	tracker := zone.NewTracker(time.Duration(conf.Zones.AbsenceTimeout) * time.Second)
	zones, err := zone.LoadZoneFile(conf.Zones.File)
	if err != nil {
		logger.WithError(err).Warnf("zone file not loaded, starting with no zones")
	} else {
		tracker.SetZones(zones)
	}

	ring := stream.NewRingBuffer(conf.PrerollFrames())
	coordinator := record.NewCoordinator(ctx, ring, conf.VideoDir(),
		conf.PostrollFrames(), conf.Record.QueueSize, index, publisher)
	encoder := record.NewVideoEncoder(conf.Record.EncodeFPS, conf.Stream.Width, conf.Stream.Height)
	// The worker gets its own context so a pipeline stop lets it drain the
	// queue; Worker.Stop bounds the wait.
	worker := record.NewWorker(context.Background(), coordinator.Jobs(), encoder, coordinator)
	cleaner := storage.NewCleaner(ctx, conf.VideoDir(), conf.Record.RetentionDays, conf.Record.CleanupInterval)

	p := &Pipeline{
		conf:        conf,
		ring:        ring,
		tracker:     tracker,
		coordinator: coordinator,
		worker:      worker,
		cleaner:     cleaner,
		publisher:   publisher,
		index:       index,
		detector:    detector,
		detectCh:    make(chan stream.Frame, 1),
		interval:    time.Duration(conf.Triton.Interval) * time.Millisecond,
		ctx:         ctx,
		cancel:      cancel,
		wg:          &sync.WaitGroup{},
		logger:      logger,
	}

	// Capture fans out to the recording tap first, then the detection feed,
	// so a triggered task sees the same frame cadence the tracker does.
	p.capture = stream.NewCapture(ctx, conf.Stream.URL, conf.Stream.FPS, ring, coordinator, p)

	return p, nil
}

func (p *Pipeline) Start() {
	p.worker.Start()
	p.coordinator.Start()
	p.cleaner.Start()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.detectRoutine()
	}()

	p.capture.Start()
	p.logger.Info("pipeline started")
}

// Stop tears the pipeline down back to front: capture first so no frame
// arrives mid-shutdown, then the coordinator and the worker with a bounded
// drain; collecting tasks are discarded.
func (p *Pipeline) Stop() {
	p.capture.Stop()
	p.cancel()
	p.wg.Wait()
	p.coordinator.Stop()
	p.worker.Stop(workerDrainWait)
	p.cleaner.Stop()
	p.publisher.Stop()
	if err := p.index.Close(); err != nil {
		p.logger.WithError(err).Error("close recording index failed")
	}
	p.logger.Info("pipeline stopped")
}

// OnFrame implements stream.FrameSink: it paces the detection feed to the
// configured interval and never blocks the capture loop. When the detector is
// busy the pending frame is replaced so it always sees the newest one.
func (p *Pipeline) OnFrame(f stream.Frame) {
	if f.Timestamp.Sub(p.lastScan) < p.interval {
		return
	}
	p.lastScan = f.Timestamp

	for {
		select {
		case p.detectCh <- f:
			return
		default:
		}
		select {
		case <-p.detectCh:
		default:
		}
	}
}

func (p *Pipeline) detectRoutine() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case frame := <-p.detectCh:
			detections, err := p.detector.Detect(p.ctx, frame)
			if err != nil {
				p.logger.WithError(err).Errorf("detection failed")
				continue
			}
			for _, v := range p.tracker.Observe(detections, frame.Timestamp) {
				p.handleViolation(v)
			}
		}
	}
}

func (p *Pipeline) handleViolation(v zone.Violation) {
	p.logger.Infof("violation: %s subject=%s zone=%s", v.Type, v.SubjectID, v.ZoneName)
	p.publisher.ViolationDetected(v)

	eventID := uuid.New().String()
	if !p.coordinator.Trigger(eventID, string(v.Type)) {
		p.logger.Warnf("recording for violation event %s not accepted", eventID)
	}
}

func (p *Pipeline) CurrentFrame() (stream.Frame, bool) {
	return p.ring.Current()
}

func (p *Pipeline) FPS() int {
	return p.conf.Stream.FPS
}

func (p *Pipeline) TriggerRecording(eventID, eventType string) bool {
	return p.coordinator.Trigger(eventID, eventType)
}

func (p *Pipeline) RecordingStatus(eventID string) (record.Clip, bool) {
	return p.coordinator.Status(eventID)
}

func (p *Pipeline) ZoneStats() zone.Statistics {
	return p.tracker.Stats()
}

// ReloadZones re-reads the zone file and swaps the active set atomically.
func (p *Pipeline) ReloadZones() (int, error) {
	zones, err := zone.LoadZoneFile(p.conf.Zones.File)
	if err != nil {
		return 0, err
	}
	p.tracker.SetZones(zones)
	return len(zones), nil
}
