package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"

	"homeguard/internal/config"
	"homeguard/internal/record"
	"homeguard/internal/utils"
	"homeguard/internal/zone"
	"homeguard/pkg/log"
)

const uploadTimeout = 30 * time.Second

// Message is the envelope published to NSQ for both violation alerts and
// finished recordings. The alerting frontend is a separate collaborator.
type Message struct {
	Kind      string          `json:"kind"`
	Timestamp int64           `json:"timestamp"`
	Violation *zone.Violation `json:"violation,omitempty"`
	Clip      *record.Clip    `json:"clip,omitempty"`
}

// Publisher uploads completed clips to object storage and publishes event
// messages to NSQ. Every failure is logged and swallowed: the pipeline never
// stops because the sink is unhealthy.
type Publisher struct {
	producer *nsq.Producer
	minioCli *minio.Client
	bucket   string
	topic    string
	ctx      context.Context
	logger   *logrus.Entry
}

func NewPublisher(ctx context.Context, conf *config.Config) (*Publisher, error) {
	producer, err := nsq.NewProducer(conf.NSQ.NSQDAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("create NSQ producer failed: %w", err)
	}

	region := conf.S3.Region
	if region == "" {
		region = "us-east-1"
	}
	minioCli, err := minio.New(conf.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(conf.S3.AccessKeyID, conf.S3.SecretAccessKey, ""),
		Secure: conf.S3.UseSSL,
		Region: region,
	})
	if err != nil {
		producer.Stop()
		return nil, fmt.Errorf("create minio client failed: %w", err)
	}

	return &Publisher{
		producer: producer,
		minioCli: minioCli,
		bucket:   conf.S3.Bucket,
		topic:    conf.NSQ.Topic,
		ctx:      ctx,
		logger:   log.GetLogger(ctx).WithField("component", "publisher"),
	}, nil
}

func (p *Publisher) Stop() {
	p.producer.Stop()
}

// ViolationDetected publishes a zone violation alert.
func (p *Publisher) ViolationDetected(v zone.Violation) {
	p.publish(Message{
		Kind:      "violation",
		Timestamp: v.Timestamp.UnixNano(),
		Violation: &v,
	})
}

// ClipFinished implements record.Sink. Completed clips are uploaded to MinIO
// before the message goes out; the message carries the object path.
func (p *Publisher) ClipFinished(clip record.Clip) {
	if clip.Status == record.StatusCompleted && clip.VideoPath != "" {
		ts := clip.Timestamp
		objectPath := fmt.Sprintf("/videos/%04d/%02d/%02d/%s",
			ts.Year(), ts.Month(), ts.Day(), filepath.Base(clip.VideoPath))

		ctx, cancel := context.WithTimeout(p.ctx, uploadTimeout)
		defer cancel()
		if err := utils.UploadFileToMinio(ctx, p.minioCli, p.bucket, clip.VideoPath, objectPath); err != nil {
			p.logger.WithError(err).Errorf("upload clip %s to minio failed", clip.VideoPath)
		} else {
			clip.VideoPath = objectPath
		}
	}

	p.publish(Message{
		Kind:      "recording",
		Timestamp: clip.Timestamp.UnixNano(),
		Clip:      &clip,
	})
}

func (p *Publisher) publish(msg Message) {
	data, _ := json.Marshal(msg)
	if err := p.producer.Publish(p.topic, data); err != nil {
		p.logger.WithError(err).Errorf("publish %s message to NSQ failed", msg.Kind)
	}
}
