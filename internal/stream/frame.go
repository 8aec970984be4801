package stream

import (
	"time"
)

// Frame is a single captured video frame. Pixels are raw BGR bytes copied out
// of the decoder, so a Frame stays valid after the capture loop recycles its
// decode buffer. Frames are never mutated after capture.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}

func (f Frame) Clone() Frame {
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	return Frame{
		Data:      data,
		Width:     f.Width,
		Height:    f.Height,
		Timestamp: f.Timestamp,
	}
}

func (f Frame) Empty() bool {
	return len(f.Data) == 0
}
