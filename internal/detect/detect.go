package detect

import (
	"context"
	"fmt"

	"homeguard/internal/stream"
)

type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Center is the representative point used for zone containment.
func (b Box) Center() (float64, float64) {
	return float64(b.X1+b.X2) / 2, float64(b.Y1+b.Y2) / 2
}

// Identity says who a detection is. It is a closed variant: a detection is
// either matched to a known subject or it is a stranger, never both.
type Identity interface {
	// SubjectKey derives the tracking key for a detection. Known subjects
	// track by their id; strangers track by approximate position, which keeps
	// a stationary stranger on one track between frames.
	SubjectKey(box Box) string
}

type Identified struct {
	ID         string
	Confidence float32
}

func (i Identified) SubjectKey(Box) string {
	return "user_" + i.ID
}

type Unidentified struct{}

func (Unidentified) SubjectKey(box Box) string {
	return fmt.Sprintf("stranger_%d_%d", box.X1, box.Y1)
}

type Detection struct {
	Box      Box
	Identity Identity
}

// Detector is the external classifier boundary: it turns a frame into subject
// detections. Implementations own their transport and model details.
type Detector interface {
	Detect(ctx context.Context, frame stream.Frame) ([]Detection, error)
}
