package record

import (
	"time"

	"homeguard/internal/stream"
)

type Status string

const (
	StatusCollecting Status = "collecting"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// task is one in-flight event recording. Preroll is fixed at trigger time;
// postroll grows on the capture path until it reaches target length.
type task struct {
	eventID    string
	eventType  string
	createdAt  time.Time
	finalizeAt time.Time
	preroll    []stream.Frame
	postroll   []stream.Frame
	targetPost int
	status     Status
	result     Result
	reason     string
}

// EncodeJob is an immutable unit of work for the encode worker: the full
// frame sequence of one event clip, preroll before postroll.
type EncodeJob struct {
	EventID   string
	EventType string
	Path      string
	Frames    []stream.Frame
}

// Result is what a successful encode reports back.
type Result struct {
	Path     string
	Duration float64
	Size     int64
}

// Encoder serializes a frame sequence to a video file. Implementations are
// CPU/IO bound and must only ever run on the worker, never on the capture
// path.
type Encoder interface {
	Encode(job EncodeJob) (Result, error)
}

// Clip is the finished-recording report handed to the metadata sink.
type Clip struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Status    Status    `json:"status"`
	VideoPath string    `json:"videoPath,omitempty"`
	Duration  float64   `json:"duration,omitempty"`
	FileSize  int64     `json:"fileSize,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink receives terminal recording reports. Implementations must tolerate
// being called from worker goroutines and must not panic the pipeline.
type Sink interface {
	ClipFinished(clip Clip)
}
