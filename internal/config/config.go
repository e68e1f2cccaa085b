// Package config 应用配置, 支持 YAML 文件、SAM_ 环境变量和命令行参数
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/getcharzp/go-sam/internal/logger"
	"github.com/getcharzp/go-sam/sam"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Model  ModelConfig  `mapstructure:"model"`
	Output OutputConfig `mapstructure:"output"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type ModelConfig struct {
	Kind          string    `mapstructure:"kind"`
	EncoderPath   string    `mapstructure:"encoder_path"`
	DecoderPath   string    `mapstructure:"decoder_path"`
	LibPath       string    `mapstructure:"lib_path"`
	Device        string    `mapstructure:"device"`
	NumThreads    int       `mapstructure:"num_threads"`
	MaxConcurrent int       `mapstructure:"max_concurrent"`
	CacheSize     int       `mapstructure:"cache_size"`
	Height        DimConfig `mapstructure:"height"`
	Width         DimConfig `mapstructure:"width"`
}

// DimConfig encoder 动态尺寸, 全为 0 时使用模型族默认值
type DimConfig struct {
	Min int `mapstructure:"min"`
	Opt int `mapstructure:"opt"`
	Max int `mapstructure:"max"`
}

type OutputConfig struct {
	LowResMask   bool   `mapstructure:"low_res_mask"`
	FindContours bool   `mapstructure:"find_contours"`
	MultiMask    bool   `mapstructure:"multi_mask"`
	Dir          string `mapstructure:"dir"`
	FontPath     string `mapstructure:"font_path"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type ServerConfig struct {
	Port          string `mapstructure:"port"`
	Mode          string `mapstructure:"mode"`
	MaxUploadSize int64  `mapstructure:"max_upload_size"`
}

type LogConfig struct {
	Mode string            `mapstructure:"mode"`
	File logger.FileConfig `mapstructure:"file"`
}

// flagKeys 命令行参数与配置项的对应关系
var flagKeys = map[string]string{
	"kind":             "model.kind",
	"device":           "model.device",
	"threads":          "model.num_threads",
	"lib":              "model.lib_path",
	"encoder":          "model.encoder_path",
	"decoder":          "model.decoder_path",
	"use-low-res-mask": "output.low_res_mask",
	"multi-mask":       "output.multi_mask",
	"out":              "output.dir",
	"font":             "output.font_path",
	"port":             "server.port",
}

// Load 加载配置, 优先级: 命令行参数 > 环境变量 > 配置文件 > 默认值
//
// # Params:
//
//	configPath: YAML 配置文件, 为空时不读取
//	flags: (可选) 已解析的命令行参数
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定参数 %s 失败: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.kind", sam.KindSAM.String())
	v.SetDefault("model.encoder_path", "")
	v.SetDefault("model.decoder_path", "")
	v.SetDefault("model.lib_path", "")
	v.SetDefault("model.device", "cpu")
	v.SetDefault("model.num_threads", 0)
	v.SetDefault("model.max_concurrent", 4)
	v.SetDefault("model.cache_size", 8)
	for _, axis := range []string{"height", "width"} {
		for _, bound := range []string{"min", "opt", "max"} {
			v.SetDefault("model."+axis+"."+bound, 0)
		}
	}

	v.SetDefault("output.low_res_mask", false)
	v.SetDefault("output.find_contours", true)
	v.SetDefault("output.multi_mask", false)
	v.SetDefault("output.dir", "./runs")
	v.SetDefault("output.font_path", "")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_size", 20*1024*1024)

	v.SetDefault("log.mode", "debug")
	v.SetDefault("log.file.path", "")
}

// SamConfig 转换为引擎配置, 未配置的模型路径使用模型族默认值
func (c *Config) SamConfig(log *zap.Logger, store sam.EmbeddingStore) (sam.Config, error) {
	kind, err := sam.ParseKind(c.Model.Kind)
	if err != nil {
		return sam.Config{}, err
	}
	cfg := sam.DefaultConfig(kind)
	if c.Model.EncoderPath != "" {
		cfg.EncodeModelPath = c.Model.EncoderPath
	}
	if c.Model.DecoderPath != "" {
		cfg.DecodeModelPath = c.Model.DecoderPath
	}
	if c.Model.LibPath != "" {
		cfg.OnnxRuntimeLibPath = c.Model.LibPath
	}
	if c.Model.Device != "" {
		cfg.Device = c.Model.Device
	}
	if c.Model.MaxConcurrent > 0 {
		cfg.MaxConcurrentDecodes = c.Model.MaxConcurrent
	}
	cfg.NumThreads = c.Model.NumThreads
	cfg.Height = sam.Dim(c.Model.Height)
	cfg.Width = sam.Dim(c.Model.Width)
	cfg.Store = store
	cfg.Logger = log
	return cfg, nil
}

// Options 解码选项
func (c *Config) Options() sam.Options {
	return sam.Options{
		UseLowResMask: c.Output.LowResMask,
		MultiMask:     c.Output.MultiMask,
		FindContours:  c.Output.FindContours,
	}
}
