package server

import (
	"fmt"

	"github.com/getcharzp/go-sam/sam"
)

// PointRequest 提示点, label: 1 前景, 0 背景
type PointRequest struct {
	X     float32 `json:"x"`
	Y     float32 `json:"y"`
	Label int     `json:"label"`
}

// PromptRequest 单个提示, box 为 [x_min, y_min, x_max, y_max]
type PromptRequest struct {
	Points []PointRequest `json:"points"`
	Box    []float32      `json:"box"`
}

// ToPrompt 转换为 sam.Prompt
func (r PromptRequest) ToPrompt() (sam.Prompt, error) {
	p := sam.Prompt{}
	for _, pt := range r.Points {
		switch sam.Label(pt.Label) {
		case sam.LabelPositive:
			p = p.WithPositivePoint(pt.X, pt.Y)
		case sam.LabelNegative:
			p = p.WithNegativePoint(pt.X, pt.Y)
		default:
			return sam.Prompt{}, fmt.Errorf("%w: point label %d", sam.ErrUnsupportedPrompt, pt.Label)
		}
	}
	if r.Box != nil {
		if len(r.Box) != 4 {
			return sam.Prompt{}, fmt.Errorf("%w: box needs 4 values, got %d", sam.ErrUnsupportedPrompt, len(r.Box))
		}
		p = p.WithBox(r.Box[0], r.Box[1], r.Box[2], r.Box[3])
	}
	return p, nil
}

// SegmentForm multipart 表单
type SegmentForm struct {
	Prompts      string `form:"prompts" binding:"required"`
	LowResMask   *bool  `form:"low_res_mask"`
	MultiMask    *bool  `form:"multi_mask"`
	FindContours *bool  `form:"find_contours"`
	ReturnMask   bool   `form:"return_mask"`
}

// MaskData 单个 Mask 结果
type MaskData struct {
	Score    float32    `json:"score"`
	Area     int        `json:"area"`
	BBox     [4]int     `json:"bbox"`
	LowRes   bool       `json:"low_res"`
	Contours [][][2]int `json:"contours,omitempty"`
	Mask     string     `json:"mask,omitempty"` // base64 PNG
}

// SegmentData 分割结果, Results 与请求的提示一一对应
type SegmentData struct {
	RequestID string       `json:"request_id"`
	Kind      string       `json:"kind"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	CostMS    int64        `json:"cost_ms"`
	Results   [][]MaskData `json:"results"`
}

type SegmentResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Data    *SegmentData `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
