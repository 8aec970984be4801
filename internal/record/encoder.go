package record

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"homeguard/pkg/log"
)

// VideoEncoder writes frame sequences to mp4 files with gocv. Frames whose
// size differs from the configured output are resized; frames that fail to
// decode are skipped rather than failing the clip.
type VideoEncoder struct {
	fps    int
	width  int
	height int
	logger *logrus.Entry
}

func NewVideoEncoder(fps, width, height int) *VideoEncoder {
	return &VideoEncoder{
		fps:    fps,
		width:  width,
		height: height,
		logger: log.NewLogger().WithField("component", "video-encoder"),
	}
}

func (e *VideoEncoder) Encode(job EncodeJob) (Result, error) {
	if len(job.Frames) == 0 {
		return Result{}, fmt.Errorf("event %s has no frames to encode", job.EventID)
	}

	if err := os.MkdirAll(filepath.Dir(job.Path), 0755); err != nil {
		return Result{}, fmt.Errorf("create video dir: %w", err)
	}

	writer, err := gocv.VideoWriterFile(job.Path, "mp4v", float64(e.fps), e.width, e.height, true)
	if err != nil {
		return Result{}, fmt.Errorf("open video writer: %w", err)
	}
	defer writer.Close()

	if !writer.IsOpened() {
		return Result{}, fmt.Errorf("video writer failed to open %s", job.Path)
	}

	written := 0
	for _, f := range job.Frames {
		mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
		if err != nil {
			e.logger.WithError(err).Warnf("skipping undecodable frame for event %s", job.EventID)
			continue
		}
		if f.Width != e.width || f.Height != e.height {
			resized := gocv.NewMat()
			gocv.Resize(mat, &resized, image.Pt(e.width, e.height), 0, 0, gocv.InterpolationLinear)
			mat.Close()
			mat = resized
		}
		if err := writer.Write(mat); err != nil {
			e.logger.WithError(err).Warnf("write frame failed for event %s", job.EventID)
		} else {
			written++
		}
		mat.Close()
	}

	if written == 0 {
		os.Remove(job.Path)
		return Result{}, fmt.Errorf("no frames written for event %s", job.EventID)
	}

	info, err := os.Stat(job.Path)
	if err != nil {
		return Result{}, fmt.Errorf("stat output file: %w", err)
	}

	return Result{
		Path:     job.Path,
		Duration: float64(written) / float64(e.fps),
		Size:     info.Size(),
	}, nil
}
