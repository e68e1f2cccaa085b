package vision

import "fmt"

// Tensor 运行时边界上传递的 float32 张量
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NewTensor 创建张量，数据长度必须与形状一致
func NewTensor(shape []int64, data []float32) (*Tensor, error) {
	if n := ShapeSize(shape); n != len(data) {
		return nil, fmt.Errorf("张量形状 %v 需要 %d 个元素, 实际 %d", shape, n, len(data))
	}
	return &Tensor{Shape: shape, Data: data}, nil
}

// ZeroTensor 创建全零张量
func ZeroTensor(shape ...int64) *Tensor {
	return &Tensor{Shape: shape, Data: make([]float32, ShapeSize(shape))}
}

// ShapeSize 元素总数
func ShapeSize(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}
	return n
}

// Dim 返回第 axis 维的大小, 越界返回 -1
func (t *Tensor) Dim(axis int) int {
	if axis < 0 || axis >= len(t.Shape) {
		return -1
	}
	return int(t.Shape[axis])
}

// Runtime 张量运行时，encoder 和 decoder 各持有一个
//
// Run 可被多个 goroutine 同时调用，实现方不得修改输入张量。
type Runtime interface {
	Run(inputs map[string]*Tensor) (map[string]*Tensor, error)
	Destroy() error
}
