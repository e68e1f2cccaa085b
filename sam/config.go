package sam

import (
	"fmt"
	"path/filepath"

	"github.com/getcharzp/go-sam"
	"go.uber.org/zap"
)

// 均值和方差常量
const (
	MeanR = 0.485
	MeanG = 0.456
	MeanB = 0.406

	StdR = 0.229
	StdG = 0.224
	StdB = 0.225
)

// maskThreshold sigmoid 的决策边界
const maskThreshold = 0.0

// Config 配置项，NewEngine 时校验一次
type Config struct {
	// 必填参数
	Kind               Kind   // 模型族
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	EncodeModelPath    string // 图片特征提取模型
	DecodeModelPath    string // Mask解码模型

	// 可选参数
	Device     string // (可选) 执行设备: cpu, cuda, cuda:N
	NumThreads int    // (可选) ONNX 线程数, 默认由CPU核心数决定

	// (可选) encoder 动态尺寸范围, 零值使用模型族默认值
	Height Dim
	Width  Dim

	MaxConcurrentDecodes int            // (可选) Segment 并发解码数, 默认 4
	Store                EmbeddingStore // (可选) Embedding 缓存
	Logger               *zap.Logger    // (可选) 默认不输出
}

// DefaultConfig 返回模型族的默认配置
func DefaultConfig(kind Kind) Config {
	p := kind.Profile()
	return Config{
		Kind:                 kind,
		OnnxRuntimeLibPath:   vision.DefaultLibraryPath(),
		EncodeModelPath:      filepath.Join("./sam_weights", p.EncoderModel),
		DecodeModelPath:      filepath.Join("./sam_weights", p.DecoderModel),
		Device:               "cpu",
		MaxConcurrentDecodes: 4,
	}
}

// profile 应用尺寸覆盖后的 Profile
func (c Config) profile() (Profile, error) {
	if c.Kind < 0 || int(c.Kind) >= len(kindNames) {
		return Profile{}, fmt.Errorf("%w: unknown model kind %d", ErrConfig, int(c.Kind))
	}
	p := c.Kind.Profile()
	if c.Height != (Dim{}) {
		p.Encoder.Height = c.Height
	}
	if c.Width != (Dim{}) {
		p.Encoder.Width = c.Width
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (c Config) validate() error {
	if c.EncodeModelPath == "" || c.DecodeModelPath == "" {
		return fmt.Errorf("%w: encoder and decoder model paths are required", ErrConfig)
	}
	if _, _, err := vision.ParseDevice(c.Device); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if c.NumThreads < 0 || c.MaxConcurrentDecodes < 0 {
		return fmt.Errorf("%w: negative thread count", ErrConfig)
	}
	return nil
}
