package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gocv.io/x/gocv"

	"homeguard/internal/stream"
)

func encodeJPEG(f stream.Frame) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer mat.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, 80})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

func (s *Server) handleCurrentFrame(c *gin.Context) {
	frame, ok := s.core.CurrentFrame()
	if !ok {
		s.writeError(c, http.StatusNotFound, errors.New("no frame available"))
		return
	}

	data, err := encodeJPEG(frame)
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// handleLiveStream serves an MJPEG multipart stream of the live frames at
// the capture rate until the client goes away.
func (s *Server) handleLiveStream(c *gin.Context) {
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	interval := time.Second / time.Duration(s.core.FPS())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		frame, ok := s.core.CurrentFrame()
		if !ok {
			continue
		}
		data, err := encodeJPEG(frame)
		if err != nil {
			s.logger.WithError(err).Error("encode live frame failed")
			continue
		}

		if _, err := fmt.Fprintf(c.Writer, "--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
			return
		}
		if _, err := c.Writer.Write(data); err != nil {
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "\r\n"); err != nil {
			return
		}
		c.Writer.Flush()
	}
}

type TriggerRecordingRequest struct {
	EventID   string `json:"eventId" binding:"required"`
	EventType string `json:"eventType" binding:"required"`
}

type TriggerRecordingResponse struct {
	EventID  string `json:"eventId"`
	Accepted bool   `json:"accepted"`
}

func (s *Server) handleTriggerRecording(c *gin.Context) {
	var req TriggerRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, http.StatusBadRequest, err)
		return
	}

	accepted := s.core.TriggerRecording(req.EventID, req.EventType)
	resp := TriggerRecordingResponse{EventID: req.EventID, Accepted: accepted}
	if !accepted {
		c.JSON(http.StatusConflict, resp)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (s *Server) handleRecordingStatus(c *gin.Context) {
	eventID := c.Param("event_id")
	clip, ok := s.core.RecordingStatus(eventID)
	if !ok {
		s.writeError(c, http.StatusNotFound, fmt.Errorf("recording %s not found", eventID))
		return
	}
	c.JSON(http.StatusOK, clip)
}

func (s *Server) handleZoneStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.ZoneStats())
}

type ReloadZonesResponse struct {
	Loaded int `json:"loaded"`
}

func (s *Server) handleReloadZones(c *gin.Context) {
	loaded, err := s.core.ReloadZones()
	if err != nil {
		s.writeError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, ReloadZonesResponse{Loaded: loaded})
}
