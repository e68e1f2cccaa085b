package sam

import (
	"fmt"
	"strings"

	"github.com/getcharzp/go-sam"
)

// Kind 支持的模型族
type Kind int

const (
	KindSAM Kind = iota
	KindMobileSAM
	KindSAMHQ
	KindEdgeSAM
)

var kindNames = [...]string{
	KindSAM:       "sam",
	KindMobileSAM: "mobile-sam",
	KindSAMHQ:     "sam-hq",
	KindEdgeSAM:   "edge-sam",
}

// Kinds 所有模型族
func Kinds() []Kind {
	return []Kind{KindSAM, KindMobileSAM, KindSAMHQ, KindEdgeSAM}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind 解析配置中的模型族名称
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "_", "-")
	for k, n := range kindNames {
		if n == name || strings.ReplaceAll(n, "-", "") == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown model kind %q", ErrConfig, s)
}

// Dim 动态维度的范围
type Dim struct {
	Min, Opt, Max int
}

// Contains v 是否在 [Min, Max] 范围内
func (d Dim) Contains(v int) bool {
	return v >= d.Min && v <= d.Max
}

func (d Dim) validate(name string) error {
	if d.Min <= 0 || d.Min > d.Opt || d.Opt > d.Max {
		return fmt.Errorf("%w: %s range %d/%d/%d must satisfy 0 < min <= opt <= max", ErrConfig, name, d.Min, d.Opt, d.Max)
	}
	return nil
}

// EncoderSpec encoder 的输入输出约定
type EncoderSpec struct {
	Input   string
	Outputs []string // 同名传入 decoder

	Batch, Channels, Height, Width Dim
}

// Validate 检查形状范围
func (s EncoderSpec) Validate() error {
	for _, d := range []struct {
		name string
		dim  Dim
	}{{"batch", s.Batch}, {"channels", s.Channels}, {"height", s.Height}, {"width", s.Width}} {
		if err := d.dim.validate(d.name); err != nil {
			return err
		}
	}
	if s.Channels.Max < 3 || s.Channels.Min > 3 {
		return fmt.Errorf("%w: encoder must accept 3 channels", ErrConfig)
	}
	return nil
}

// BoxLayout 框在 decoder 输入中的表示方式
type BoxLayout int

const (
	// BoxAsPoints 框作为两个点 (标签 2、3) 追加到点列表
	BoxAsPoints BoxLayout = iota
	// BoxTensor 框使用独立的输入 [1, B, 4]
	BoxTensor
)

// AxisRef 指向 DecoderSpec.Inputs 中某个输入的某一维
type AxisRef struct {
	Input int
	Axis  int
}

// DecoderSpec decoder 的输入输出约定
type DecoderSpec struct {
	Inputs []string // 按模型顺序

	// 哪个输入的哪一维承载点数 / 框数
	Points AxisRef // [1, N, 2]
	Labels AxisRef // [1, N]
	Box    AxisRef // [1, B, 4], 仅 BoxTensor

	BoxLayout BoxLayout
	PadPoint  bool // 无框时追加 (0,0) 标签 -1 的占位点

	MaskInput    string // 可选 [1,1,S,S]
	HasMaskInput string // 可选 [1]
	OrigImSize   string // 可选 [2] (h, w)

	ScoresOutput string // [1, M]
	MasksOutput  string // [1, M, S, S]
	LowResSize   int    // S
}

func (s DecoderSpec) input(ref AxisRef) string {
	if ref.Input < 0 || ref.Input >= len(s.Inputs) {
		return ""
	}
	return s.Inputs[ref.Input]
}

// Outputs decoder 需要的输出名
func (s DecoderSpec) Outputs() []string {
	return []string{s.ScoresOutput, s.MasksOutput}
}

// PromptSupport 模型接受的提示类型
type PromptSupport struct {
	Points bool
	Box    bool
}

func (s PromptSupport) String() string {
	switch {
	case s.Points && s.Box:
		return "points+box"
	case s.Box:
		return "box-only"
	case s.Points:
		return "points-only"
	}
	return "none"
}

// Profile 模型族的静态描述，只包含数据
type Profile struct {
	Kind    Kind
	Name    string // 输出目录名
	Encoder EncoderSpec
	Decoder DecoderSpec
	Support PromptSupport

	FindContours bool // 默认是否提取轮廓

	EncoderModel string // 默认权重文件名
	DecoderModel string
}

var defaultImageDim = Dim{Min: 800, Opt: 1024, Max: 1024}

func defaultEncoder(outputs ...string) EncoderSpec {
	return EncoderSpec{
		Input:    "images",
		Outputs:  outputs,
		Batch:    Dim{1, 1, 1},
		Channels: Dim{3, 3, 3},
		Height:   defaultImageDim,
		Width:    defaultImageDim,
	}
}

// samDecoder 官方 SAM ONNX 导出的 decoder
func samDecoder() DecoderSpec {
	return DecoderSpec{
		Inputs:       []string{"image_embeddings", "point_coords", "point_labels", "mask_input", "has_mask_input", "orig_im_size"},
		Points:       AxisRef{Input: 1, Axis: 1},
		Labels:       AxisRef{Input: 2, Axis: 1},
		BoxLayout:    BoxAsPoints,
		PadPoint:     true,
		MaskInput:    "mask_input",
		HasMaskInput: "has_mask_input",
		OrigImSize:   "orig_im_size",
		ScoresOutput: "iou_predictions",
		MasksOutput:  "low_res_masks",
		LowResSize:   256,
	}
}

// Profile 返回模型族的描述
//
// 未知的 Kind 属于编程错误，直接 panic。
func (k Kind) Profile() Profile {
	switch k {
	case KindSAM:
		return Profile{
			Kind:         k,
			Name:         "SAM",
			Encoder:      defaultEncoder("image_embeddings"),
			Decoder:      samDecoder(),
			Support:      PromptSupport{Points: true, Box: true},
			FindContours: true,
			EncoderModel: "sam-vit-b-encoder-u8.onnx",
			DecoderModel: "sam-vit-b-decoder-u8.onnx",
		}
	case KindMobileSAM:
		return Profile{
			Kind:         k,
			Name:         "Mobile-SAM",
			Encoder:      defaultEncoder("image_embeddings"),
			Decoder:      samDecoder(),
			Support:      PromptSupport{Points: true, Box: true},
			FindContours: true,
			EncoderModel: "mobile-sam-vit-t-encoder.onnx",
			DecoderModel: "mobile-sam-vit-t-decoder.onnx",
		}
	case KindSAMHQ:
		dec := samDecoder()
		// interm_embeddings 占据第 1 个输入, 点和标签后移一位
		dec.Inputs = []string{"image_embeddings", "interm_embeddings", "point_coords", "point_labels", "mask_input", "has_mask_input", "orig_im_size"}
		dec.Points = AxisRef{Input: 2, Axis: 1}
		dec.Labels = AxisRef{Input: 3, Axis: 1}
		return Profile{
			Kind:         k,
			Name:         "SAM-HQ",
			Encoder:      defaultEncoder("image_embeddings", "interm_embeddings"),
			Decoder:      dec,
			Support:      PromptSupport{Points: true, Box: true},
			FindContours: true,
			EncoderModel: "sam-hq-vit-t-encoder.onnx",
			DecoderModel: "sam-hq-vit-t-decoder.onnx",
		}
	case KindEdgeSAM:
		return Profile{
			Kind:    k,
			Name:    "Edge-SAM",
			Encoder: defaultEncoder("image_embeddings"),
			Decoder: DecoderSpec{
				Inputs:       []string{"image_embeddings", "point_coords", "point_labels", "boxes"},
				Points:       AxisRef{Input: 1, Axis: 1},
				Labels:       AxisRef{Input: 2, Axis: 1},
				Box:          AxisRef{Input: 3, Axis: 1},
				BoxLayout:    BoxTensor,
				ScoresOutput: "scores",
				MasksOutput:  "masks",
				LowResSize:   256,
			},
			Support:      PromptSupport{Box: true},
			FindContours: true,
			EncoderModel: "edge-sam-3x-encoder.onnx",
			DecoderModel: "edge-sam-3x-decoder.onnx",
		}
	}
	panic(fmt.Sprintf("sam: unknown model kind %d", int(k)))
}

// CheckPrompt 检查提示类型是否受支持
func (p Profile) CheckPrompt(prompt Prompt) error {
	if err := prompt.Validate(); err != nil {
		return err
	}
	if prompt.HasPoints() && !p.Support.Points {
		return fmt.Errorf("%w: %s accepts %s prompts, got points", ErrUnsupportedPrompt, p.Kind, p.Support)
	}
	if prompt.HasBox() && !p.Support.Box {
		return fmt.Errorf("%w: %s accepts %s prompts, got box", ErrUnsupportedPrompt, p.Kind, p.Support)
	}
	return nil
}

// PromptTensors 将提示编码为该模型族的 decoder 输入
//
// # Params:
//
//	prompt: 原图坐标下的提示
//	scale: 原图到 encoder 输入的缩放比例
//	origW, origH: 原图尺寸
func (p Profile) PromptTensors(prompt Prompt, scale float32, origW, origH int) (map[string]*vision.Tensor, error) {
	if err := p.CheckPrompt(prompt); err != nil {
		return nil, err
	}
	dec := p.Decoder

	points := make([]Point, 0, len(prompt.Points)+2)
	points = append(points, prompt.Points...)
	switch {
	case prompt.HasBox() && dec.BoxLayout == BoxAsPoints:
		b := prompt.Box
		points = append(points,
			Point{X: b.XMin, Y: b.YMin, Label: LabelBoxTopLeft},
			Point{X: b.XMax, Y: b.YMax, Label: LabelBoxBotRight},
		)
	case !prompt.HasBox() && dec.PadPoint:
		points = append(points, Point{Label: labelPadding})
	}

	coords := make([]float32, 0, len(points)*2)
	labels := make([]float32, 0, len(points))
	for _, pt := range points {
		if pt.Label == labelPadding {
			coords = append(coords, 0, 0)
		} else {
			coords = append(coords, pt.X*scale, pt.Y*scale)
		}
		labels = append(labels, float32(pt.Label))
	}

	n := int64(len(points))
	tensors := map[string]*vision.Tensor{
		dec.input(dec.Points): {Shape: withAxis([]int64{1, 1, 2}, dec.Points.Axis, n), Data: coords},
		dec.input(dec.Labels): {Shape: withAxis([]int64{1, 1}, dec.Labels.Axis, n), Data: labels},
	}

	if dec.BoxLayout == BoxTensor {
		var box []float32
		var nb int64
		if b := prompt.Box; b != nil {
			box = []float32{b.XMin * scale, b.YMin * scale, b.XMax * scale, b.YMax * scale}
			nb = 1
		}
		tensors[dec.input(dec.Box)] = &vision.Tensor{Shape: withAxis([]int64{1, 1, 4}, dec.Box.Axis, nb), Data: box}
	}

	if dec.MaskInput != "" {
		s := int64(dec.LowResSize)
		tensors[dec.MaskInput] = vision.ZeroTensor(1, 1, s, s)
	}
	if dec.HasMaskInput != "" {
		tensors[dec.HasMaskInput] = vision.ZeroTensor(1)
	}
	if dec.OrigImSize != "" {
		tensors[dec.OrigImSize] = &vision.Tensor{Shape: []int64{2}, Data: []float32{float32(origH), float32(origW)}}
	}
	return tensors, nil
}

// withAxis 将 shape 的第 axis 维设置为 n
func withAxis(shape []int64, axis int, n int64) []int64 {
	if axis >= 0 && axis < len(shape) {
		shape[axis] = n
	}
	return shape
}

// Validate 检查 Profile 的一致性
func (p Profile) Validate() error {
	if err := p.Encoder.Validate(); err != nil {
		return err
	}
	dec := p.Decoder
	refs := []AxisRef{dec.Points, dec.Labels}
	if dec.BoxLayout == BoxTensor {
		refs = append(refs, dec.Box)
	}
	for _, ref := range refs {
		if dec.input(ref) == "" {
			return fmt.Errorf("%w: %s decoder axis refers to input %d of %d", ErrConfig, p.Kind, ref.Input, len(dec.Inputs))
		}
	}
	if dec.ScoresOutput == "" || dec.MasksOutput == "" || dec.LowResSize <= 0 {
		return fmt.Errorf("%w: %s decoder outputs are incomplete", ErrConfig, p.Kind)
	}
	if !p.Support.Points && !p.Support.Box {
		return fmt.Errorf("%w: %s supports no prompt kind", ErrConfig, p.Kind)
	}
	return nil
}
