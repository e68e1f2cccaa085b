package sam

import "errors"

// 错误分类，使用 errors.Is 判断
var (
	// ErrConfig 配置错误 (模型形状、模型种类等)，在推理前暴露
	ErrConfig = errors.New("sam: invalid config")
	// ErrImage 输入图片无效，只影响当前图片
	ErrImage = errors.New("sam: invalid image")
	// ErrRuntime 张量运行时执行失败，不做重试
	ErrRuntime = errors.New("sam: runtime failure")
	// ErrUnsupportedPrompt 提示类型与模型不匹配，调用方可修正
	ErrUnsupportedPrompt = errors.New("sam: unsupported prompt")
)
