package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeguard/internal/config"
	"homeguard/internal/record"
	"homeguard/internal/stream"
	"homeguard/internal/zone"
)

type fakeCore struct {
	frame    stream.Frame
	hasFrame bool
	accepted bool
	clip     record.Clip
	hasClip  bool
	stats    zone.Statistics
	reloaded int
	reloadErr error
}

func (f *fakeCore) CurrentFrame() (stream.Frame, bool) { return f.frame, f.hasFrame }
func (f *fakeCore) FPS() int                           { return 15 }
func (f *fakeCore) TriggerRecording(eventID, eventType string) bool {
	return f.accepted
}
func (f *fakeCore) RecordingStatus(eventID string) (record.Clip, bool) {
	return f.clip, f.hasClip
}
func (f *fakeCore) ZoneStats() zone.Statistics { return f.stats }
func (f *fakeCore) ReloadZones() (int, error)  { return f.reloaded, f.reloadErr }

func newTestServer(core Core) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(context.Background(), config.DefaultConfig(), core)
}

func TestHandleTriggerRecording_Accepted(t *testing.T) {
	s := newTestServer(&fakeCore{accepted: true})
	router := s.SetUpRouter()

	body := `{"eventId":"ev1","eventType":"manual"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)

	var resp TriggerRecordingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ev1", resp.EventID)
	assert.True(t, resp.Accepted)
}

func TestHandleTriggerRecording_Conflict(t *testing.T) {
	s := newTestServer(&fakeCore{accepted: false})
	router := s.SetUpRouter()

	body := `{"eventId":"ev1","eventType":"manual"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleTriggerRecording_BadRequest(t *testing.T) {
	s := newTestServer(&fakeCore{accepted: true})
	router := s.SetUpRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recordings", strings.NewReader(`{"eventId":""}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRecordingStatus(t *testing.T) {
	core := &fakeCore{
		hasClip: true,
		clip: record.Clip{
			EventID:   "ev1",
			Status:    record.StatusCompleted,
			VideoPath: "/videos/ev1.mp4",
			Duration:  4.0,
			FileSize:  2048,
		},
	}
	s := newTestServer(core)
	router := s.SetUpRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recordings/ev1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var clip record.Clip
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &clip))
	assert.Equal(t, record.StatusCompleted, clip.Status)
	assert.Equal(t, "/videos/ev1.mp4", clip.VideoPath)
}

func TestHandleRecordingStatus_NotFound(t *testing.T) {
	s := newTestServer(&fakeCore{})
	router := s.SetUpRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recordings/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleZoneStatistics(t *testing.T) {
	core := &fakeCore{
		stats: zone.Statistics{
			ZoneCount:        2,
			ActiveViolations: 1,
			TrackedSubjects:  3,
		},
	}
	s := newTestServer(core)
	router := s.SetUpRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/zones/statistics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var stats zone.Statistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.ZoneCount)
	assert.Equal(t, 1, stats.ActiveViolations)
	assert.Equal(t, 3, stats.TrackedSubjects)
}

func TestHandleReloadZones(t *testing.T) {
	s := newTestServer(&fakeCore{reloaded: 4})
	router := s.SetUpRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/zones/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ReloadZonesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Loaded)
}

func TestHandleCurrentFrame_NoFrame(t *testing.T) {
	s := newTestServer(&fakeCore{})
	router := s.SetUpRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/frame/current", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
