package server

import (
	"context"
	goerrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"homeguard/internal/config"
	"homeguard/internal/record"
	"homeguard/internal/stream"
	"homeguard/internal/zone"
	"homeguard/pkg/log"
)

const httpXRequestId = "X-Request-Id"

// Core is the pipeline surface the HTTP layer needs. The server is plain
// request/response glue; all timing and state live behind this interface.
type Core interface {
	CurrentFrame() (stream.Frame, bool)
	FPS() int
	TriggerRecording(eventID, eventType string) bool
	RecordingStatus(eventID string) (record.Clip, bool)
	ZoneStats() zone.Statistics
	ReloadZones() (int, error)
}

type Server struct {
	conf       *config.Config
	core       Core
	httpServer *http.Server
	logger     *logrus.Entry
}

func NewServer(ctx context.Context, conf *config.Config, core Core) *Server {
	return &Server{
		conf:   conf,
		core:   core,
		logger: log.GetLogger(ctx),
	}
}

func RequestId() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(httpXRequestId)
		if requestId == "" {
			requestId = strings.ReplaceAll(uuid.New().String(), "-", "")
		}
		c.Header(httpXRequestId, requestId)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		latency := time.Since(t)
		status := c.Writer.Status()

		logrus.Info("ip: ", c.ClientIP(), " method: ", c.Request.Method, " path: ",
			c.Request.URL.Path, " status: ", status, " latency: ", latency)
	}
}

func (s *Server) SetUpRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestId())
	router.Use(Logger())
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "ok",
		})
	})

	apiV1 := router.Group("/api/v1")
	apiV1.GET("/frame/current", s.handleCurrentFrame)
	apiV1.GET("/stream/live", s.handleLiveStream)
	apiV1.POST("/recordings", s.handleTriggerRecording)
	apiV1.GET("/recordings/:event_id", s.handleRecordingStatus)
	apiV1.GET("/zones/statistics", s.handleZoneStatistics)
	apiV1.POST("/zones/reload", s.handleReloadZones)

	return router
}

func (s *Server) Start() {
	gin.SetMode(gin.ReleaseMode)
	router := s.SetUpRouter()
	pprof.Register(router)
	s.httpServer = &http.Server{
		Addr:    s.conf.Addr,
		Handler: router,
	}

	logrus.Infof("start http server on %s", s.conf.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !goerrors.Is(err, http.ErrServerClosed) {
		logrus.Fatal(err)
	}
}

func (s *Server) Shutdown() {
	err := s.httpServer.Shutdown(context.Background())
	if err != nil {
		logrus.Fatalf("server forced to shutdown: %v", err)
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
	})
}
