package vision

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

type OnnxConfig struct {
	SessionOptions *ort.SessionOptions

	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	// 可选参数
	Device     string // (可选) 执行设备: cpu, cuda, cuda:1
	NumThreads int    // (可选) ONNX 线程数, 默认由CPU核心数决定
}

var (
	initErr error
	once    sync.Once
)

// New 初始化 ONNX 环境
func (cfg *OnnxConfig) New() error {
	if cfg.OnnxRuntimeLibPath == "" {
		return fmt.Errorf("OnnxRuntimeLibPath 不能为空")
	}
	useCuda, deviceID, err := ParseDevice(cfg.Device)
	if err != nil {
		return err
	}

	once.Do(func() {
		ort.SetSharedLibraryPath(cfg.OnnxRuntimeLibPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return fmt.Errorf("初始化 ONNX Runtime 环境失败: %w", initErr)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return err
	}
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			options.Destroy()
			return err
		}
	}

	if useCuda {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return fmt.Errorf("创建 CUDAProviderOptions 失败: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := cudaOptions.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
			options.Destroy()
			return fmt.Errorf("设置 CUDA 设备 %d 失败: %w", deviceID, err)
		}
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			options.Destroy()
			return fmt.Errorf("添加 CUDA 执行提供者失败: %w", err)
		}
	}
	cfg.SessionOptions = options

	return nil
}

// Destroy 释放会话选项
func (cfg *OnnxConfig) Destroy() {
	if cfg.SessionOptions != nil {
		cfg.SessionOptions.Destroy()
		cfg.SessionOptions = nil
	}
}

// ParseDevice 解析设备标识
//
// # Params:
//
//	device: "", "cpu", "cuda" 或 "cuda:N"
func ParseDevice(device string) (useCuda bool, deviceID int, err error) {
	d := strings.ToLower(strings.TrimSpace(device))
	switch {
	case d == "" || d == "cpu":
		return false, 0, nil
	case d == "cuda":
		return true, 0, nil
	case strings.HasPrefix(d, "cuda:"):
		id, err := strconv.Atoi(strings.TrimPrefix(d, "cuda:"))
		if err != nil || id < 0 {
			return false, 0, fmt.Errorf("无效的设备标识: %q", device)
		}
		return true, id, nil
	}
	return false, 0, fmt.Errorf("不支持的设备: %q", device)
}

// OnnxSession 基于 onnxruntime 的 Runtime 实现
type OnnxSession struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

// NewOnnxSession 创建会话，inputs/outputs 的顺序即模型的输入输出顺序
func NewOnnxSession(modelPath string, inputs, outputs []string, options *ort.SessionOptions) (*OnnxSession, error) {
	session, err := ort.NewDynamicAdvancedSession(modelPath, inputs, outputs, options)
	if err != nil {
		return nil, fmt.Errorf("创建 ONNX 会话失败 (%s): %w", modelPath, err)
	}
	return &OnnxSession{session: session, inputs: inputs, outputs: outputs}, nil
}

// Run 执行推理
func (s *OnnxSession) Run(inputs map[string]*Tensor) (map[string]*Tensor, error) {
	values := make([]ort.Value, len(s.inputs))
	defer func() {
		for _, v := range values {
			if v != nil {
				v.Destroy()
			}
		}
	}()
	for i, name := range s.inputs {
		t, ok := inputs[name]
		if !ok {
			return nil, fmt.Errorf("缺少输入 %q", name)
		}
		v, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
		if err != nil {
			return nil, fmt.Errorf("创建输入 %q 失败: %w", name, err)
		}
		values[i] = v
	}

	// 输出由 onnxruntime 分配
	outputs := make([]ort.Value, len(s.outputs))
	if err := s.session.Run(values, outputs); err != nil {
		return nil, err
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	result := make(map[string]*Tensor, len(outputs))
	for i, o := range outputs {
		ft, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("输出 %q 不是 float32 张量", s.outputs[i])
		}
		data := make([]float32, len(ft.GetData()))
		copy(data, ft.GetData())
		shape := ft.GetShape()
		result[s.outputs[i]] = &Tensor{Shape: append([]int64(nil), shape...), Data: data}
	}
	return result, nil
}

// Destroy 释放会话
func (s *OnnxSession) Destroy() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

// DefaultLibraryPath 根据运行时环境判断加载哪个库文件
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"

	// windows onnxruntime.dll
	if runtime.GOOS == "windows" {
		return baseDir + libName + ".dll"
	}

	var ext string
	switch runtime.GOOS {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return baseDir + libName + "_amd64.so" // 默认返回 linux amd64
	}

	// ./lib/onnxruntime + _ + amd64/arm64 + . + so/dylib
	return fmt.Sprintf("%s%s_%s.%s", baseDir, libName, runtime.GOARCH, ext)
}
