package sam

import (
	"fmt"
	"image"
)

type Label int

const (
	LabelNegative    Label = 0 // 背景/排除
	LabelPositive    Label = 1 // 前景/点击
	LabelBoxTopLeft  Label = 2 // 框选左上
	LabelBoxBotRight Label = 3 // 框选右下

	labelPadding Label = -1 // 无框时的占位点
)

type Point struct {
	X, Y  float32
	Label Label
}

// Box 轴对齐矩形框，像素坐标
type Box struct {
	XMin, YMin, XMax, YMax float32
}

// Rect 转换为 image.Rectangle (向外取整)
func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.XMin), int(b.YMin), int(b.XMax+0.999), int(b.YMax+0.999))
}

// Prompt 空间提示，构造后不可修改
type Prompt struct {
	Points []Point
	Box    *Box
}

// WithPositivePoint 追加前景点，返回新的 Prompt
func (p Prompt) WithPositivePoint(x, y float32) Prompt {
	return p.withPoint(Point{X: x, Y: y, Label: LabelPositive})
}

// WithNegativePoint 追加背景点，返回新的 Prompt
func (p Prompt) WithNegativePoint(x, y float32) Prompt {
	return p.withPoint(Point{X: x, Y: y, Label: LabelNegative})
}

// WithBox 设置框，返回新的 Prompt
func (p Prompt) WithBox(xMin, yMin, xMax, yMax float32) Prompt {
	b := Box{XMin: min(xMin, xMax), YMin: min(yMin, yMax), XMax: max(xMin, xMax), YMax: max(yMin, yMax)}
	return Prompt{Points: p.Points, Box: &b}
}

func (p Prompt) withPoint(pt Point) Prompt {
	points := make([]Point, len(p.Points), len(p.Points)+1)
	copy(points, p.Points)
	return Prompt{Points: append(points, pt), Box: p.Box}
}

// HasPoints 是否包含点
func (p Prompt) HasPoints() bool { return len(p.Points) > 0 }

// HasBox 是否包含框
func (p Prompt) HasBox() bool { return p.Box != nil }

// Validate 至少需要一个点或一个框
//
// 只有背景点的提示是合法的，由模型决定结果。
func (p Prompt) Validate() error {
	if !p.HasPoints() && !p.HasBox() {
		return fmt.Errorf("%w: prompt has neither points nor box", ErrUnsupportedPrompt)
	}
	for i, pt := range p.Points {
		if pt.Label != LabelPositive && pt.Label != LabelNegative {
			return fmt.Errorf("%w: point %d has label %d", ErrUnsupportedPrompt, i, pt.Label)
		}
	}
	return nil
}

// Clamp 将坐标限制在 w×h 图片范围内，返回新的 Prompt
func (p Prompt) Clamp(w, h int) Prompt {
	maxX, maxY := float32(max(w-1, 0)), float32(max(h-1, 0))
	out := Prompt{}
	if len(p.Points) > 0 {
		out.Points = make([]Point, len(p.Points))
		for i, pt := range p.Points {
			out.Points[i] = Point{X: clampf(pt.X, 0, maxX), Y: clampf(pt.Y, 0, maxY), Label: pt.Label}
		}
	}
	if p.Box != nil {
		b := Box{
			XMin: clampf(min(p.Box.XMin, p.Box.XMax), 0, maxX),
			YMin: clampf(min(p.Box.YMin, p.Box.YMax), 0, maxY),
			XMax: clampf(max(p.Box.XMin, p.Box.XMax), 0, maxX),
			YMax: clampf(max(p.Box.YMin, p.Box.YMax), 0, maxY),
		}
		out.Box = &b
	}
	return out
}

func clampf(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}
