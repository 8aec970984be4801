package config

import (
	"fmt"
	"path"
)

type StreamConfig struct {
	URL    string `yaml:"url"`
	FPS    int    `yaml:"fps"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

type RecordConfig struct {
	PrerollSeconds  float64 `yaml:"prerollSeconds"`
	PostrollSeconds float64 `yaml:"postrollSeconds"`
	EncodeFPS       int     `yaml:"encodeFPS"`
	QueueSize       int     `yaml:"queueSize"`
	RetentionDays   int     `yaml:"retentionDays"`
	CleanupInterval int     `yaml:"cleanupInterval"`
}

type ZonesConfig struct {
	File           string `yaml:"file"`
	AbsenceTimeout int    `yaml:"absenceTimeout"`
}

type NSQConfig struct {
	NSQDAddr string `yaml:"nsqdAddr"`
	Topic    string `yaml:"topic"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Region          string `yaml:"region"`
}

type TritonConfig struct {
	ServerAddr string `yaml:"serverAddr"`
	ModelName  string `yaml:"modelName"`
	Labels     string `yaml:"labels"`
	Interval   int    `yaml:"interval"`
}

type Config struct {
	Addr    string       `yaml:"addr"`
	WorkDir string       `yaml:"workDir"`
	Stream  StreamConfig `yaml:"stream"`
	Record  RecordConfig `yaml:"record"`
	Zones   ZonesConfig  `yaml:"zones"`
	NSQ     NSQConfig    `yaml:"nsq"`
	S3      S3Config     `yaml:"s3"`
	Triton  TritonConfig `yaml:"triton"`
}

func (c Config) VideoDir() string {
	return path.Join(c.WorkDir, "videos")
}

func (c Config) DataDir() string {
	return path.Join(c.WorkDir, "data")
}

// PrerollFrames is the ring buffer capacity: capture fps times preroll window.
func (c Config) PrerollFrames() int {
	return int(float64(c.Stream.FPS) * c.Record.PrerollSeconds)
}

func (c Config) PostrollFrames() int {
	return int(float64(c.Stream.FPS) * c.Record.PostrollSeconds)
}

func DefaultConfig() *Config {
	return &Config{
		Addr:    "127.0.0.1:8080",
		WorkDir: "./homeguard_dir",
		Stream: StreamConfig{
			URL:    "rtmp://127.0.0.1:1935/live/stream",
			FPS:    15,
			Width:  640,
			Height: 480,
		},
		Record: RecordConfig{
			PrerollSeconds:  2.0,
			PostrollSeconds: 2.0,
			EncodeFPS:       10,
			QueueSize:       16,
			RetentionDays:   7,
			CleanupInterval: 3600,
		},
		Zones: ZonesConfig{
			File:           "etc/zones.yaml",
			AbsenceTimeout: 30,
		},
		NSQ: NSQConfig{
			NSQDAddr: "localhost:4150",
			Topic:    "homeguard_events",
		},
		S3: S3Config{
			Bucket:   "homeguard",
			Endpoint: "localhost:9000",
			UseSSL:   false,
			Region:   "us-east-1",
		},
		Triton: TritonConfig{
			ServerAddr: "localhost:8001",
			ModelName:  "person_detect",
			Labels:     "person",
			Interval:   1000,
		},
	}
}

func LoadConfig(configPath string) (*Config, error) {
	conf := DefaultConfig()
	if err := LoadYAMLConfig(configPath, conf); err != nil {
		return nil, err
	}
	if conf.Stream.FPS <= 0 {
		return nil, fmt.Errorf("stream fps must be positive, got %d", conf.Stream.FPS)
	}
	return conf, nil
}
