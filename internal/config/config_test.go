package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConfig()

	assert.Equal(t, 15, conf.Stream.FPS)
	assert.Equal(t, 2.0, conf.Record.PrerollSeconds)
	assert.Equal(t, 30, conf.PrerollFrames())
	assert.Equal(t, 30, conf.PostrollFrames())
	assert.Equal(t, 30, conf.Zones.AbsenceTimeout)
	assert.Equal(t, filepath.Join(conf.WorkDir, "videos"), conf.VideoDir())
}

func TestLoadConfig_Overlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `addr: 0.0.0.0:9999
stream:
  fps: 10
record:
  postrollSeconds: 3.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	conf, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9999", conf.Addr)
	assert.Equal(t, 10, conf.Stream.FPS)
	// 2s preroll at 10 fps
	assert.Equal(t, 20, conf.PrerollFrames())
	assert.Equal(t, 30, conf.PostrollFrames())
	// untouched keys keep their defaults
	assert.Equal(t, "homeguard", conf.S3.Bucket)
}

func TestLoadConfig_InvalidFPS(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stream:\n  fps: 0\n"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
