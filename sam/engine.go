package sam

import (
	"fmt"

	"github.com/getcharzp/go-sam"
	"github.com/up-zero/gotool/convertutil"
	"go.uber.org/zap"
)

// Engine 持有 encoder/decoder 运行时，负责生成 Embedding 和 Mask
//
// Engine 可被多个 goroutine 同时使用。
type Engine struct {
	encoder vision.Runtime
	decoder vision.Runtime
	profile Profile
	config  Config
	store   EmbeddingStore
	logger  *zap.Logger
}

// NewEngine 初始化 ONNX 会话并创建引擎
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	profile, err := cfg.profile()
	if err != nil {
		return nil, err
	}

	onnxConfig := new(vision.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, onnxConfig); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	// 初始化 ONNX
	if err := onnxConfig.New(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	defer onnxConfig.Destroy()

	encSession, err := vision.NewOnnxSession(cfg.EncodeModelPath,
		[]string{profile.Encoder.Input}, profile.Encoder.Outputs, onnxConfig.SessionOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建 Encoder 会话失败: %v", ErrConfig, err)
	}

	decSession, err := vision.NewOnnxSession(cfg.DecodeModelPath,
		profile.Decoder.Inputs, profile.Decoder.Outputs(), onnxConfig.SessionOptions)
	if err != nil {
		encSession.Destroy()
		return nil, fmt.Errorf("%w: 创建 Decoder 会话失败: %v", ErrConfig, err)
	}

	return newEngine(cfg, profile, encSession, decSession), nil
}

// NewEngineWithRuntime 使用已有的运行时创建引擎
func NewEngineWithRuntime(cfg Config, encoder, decoder vision.Runtime) (*Engine, error) {
	if encoder == nil || decoder == nil {
		return nil, fmt.Errorf("%w: encoder and decoder runtimes are required", ErrConfig)
	}
	if cfg.NumThreads < 0 || cfg.MaxConcurrentDecodes < 0 {
		return nil, fmt.Errorf("%w: negative thread count", ErrConfig)
	}
	profile, err := cfg.profile()
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, profile, encoder, decoder), nil
}

func newEngine(cfg Config, profile Profile, encoder, decoder vision.Runtime) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxConcurrentDecodes == 0 {
		cfg.MaxConcurrentDecodes = 4
	}
	return &Engine{
		encoder: encoder,
		decoder: decoder,
		profile: profile,
		config:  cfg,
		store:   cfg.Store,
		logger:  logger.With(zap.Stringer("kind", profile.Kind)),
	}
}

// Profile 当前模型族的描述
func (e *Engine) Profile() Profile {
	return e.profile
}

// DefaultOptions 模型族的默认选项
func (e *Engine) DefaultOptions() Options {
	return Options{FindContours: e.profile.FindContours}
}

// Destroy 释放相关资源
func (e *Engine) Destroy() error {
	if e.encoder != nil {
		if err := e.encoder.Destroy(); err != nil {
			return fmt.Errorf("销毁 Encoder 会话失败: %w", err)
		}
	}
	if e.decoder != nil {
		if err := e.decoder.Destroy(); err != nil {
			return fmt.Errorf("销毁 Decoder 会话失败: %w", err)
		}
	}
	return nil
}
