package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/getcharzp/go-sam/sam"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
model:
  kind: sam-hq
  device: cuda:1
  num_threads: 2
  width:
    min: 512
    opt: 1024
    max: 1024
output:
  low_res_mask: true
redis:
  enabled: true
  ttl: 10m
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sam", cfg.Model.Kind)
	assert.Equal(t, "cpu", cfg.Model.Device)
	assert.True(t, cfg.Output.FindContours)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.Equal(t, ":8080", cfg.Server.Port)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "sam-hq", cfg.Model.Kind)
	assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)
	assert.True(t, cfg.Output.LowResMask)
	assert.Equal(t, DimConfig{Min: 512, Opt: 1024, Max: 1024}, cfg.Model.Width)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoadPriority(t *testing.T) {
	t.Setenv("SAM_MODEL_DEVICE", "cuda:3")
	t.Setenv("SAM_MODEL_NUM_THREADS", "6")

	flags := pflag.NewFlagSet("sam", pflag.ContinueOnError)
	flags.String("kind", "sam", "")
	require.NoError(t, flags.Parse([]string{"--kind", "edge-sam"}))

	cfg, err := Load(writeConfig(t, sampleYAML), flags)
	require.NoError(t, err)
	assert.Equal(t, "edge-sam", cfg.Model.Kind)
	assert.Equal(t, "cuda:3", cfg.Model.Device)
	assert.Equal(t, 6, cfg.Model.NumThreads)
}

func TestSamConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML), nil)
	require.NoError(t, err)

	sc, err := cfg.SamConfig(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, sam.KindSAMHQ, sc.Kind)
	assert.Equal(t, "cuda:1", sc.Device)
	assert.Equal(t, 2, sc.NumThreads)
	assert.Equal(t, sam.Dim{Min: 512, Opt: 1024, Max: 1024}, sc.Width)
	assert.Equal(t, sam.Dim{}, sc.Height)
	assert.Equal(t, filepath.Join("./sam_weights", sam.KindSAMHQ.Profile().EncoderModel), sc.EncodeModelPath)

	assert.True(t, cfg.Options().UseLowResMask)
	assert.True(t, cfg.Options().FindContours)
}

func TestSamConfigUnknownKind(t *testing.T) {
	cfg := &Config{Model: ModelConfig{Kind: "sam3"}}
	_, err := cfg.SamConfig(nil, nil)
	assert.ErrorIs(t, err, sam.ErrConfig)
}

func TestLoadExampleFile(t *testing.T) {
	cfg, err := Load("../../config.example.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, "./logs/sam.log", cfg.Log.File.Path)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)

	sc, err := cfg.SamConfig(nil, sam.NewMemoryStore(cfg.Model.CacheSize))
	require.NoError(t, err)
	assert.Equal(t, sam.Dim{Min: 800, Opt: 1024, Max: 1024}, sc.Height)
}
