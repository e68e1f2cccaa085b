package sam

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/getcharzp/go-sam"
)

// fakeEncoder 输出与输入均值相关的常量特征
type fakeEncoder struct {
	profile Profile
	calls   atomic.Int32
	err     error
}

func (f *fakeEncoder) Run(inputs map[string]*vision.Tensor) (map[string]*vision.Tensor, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	in, ok := inputs[f.profile.Encoder.Input]
	if !ok {
		return nil, fmt.Errorf("missing input %q", f.profile.Encoder.Input)
	}
	var sum float64
	for _, v := range in.Data {
		sum += float64(v)
	}
	mean := float32(sum / float64(len(in.Data)))

	out := make(map[string]*vision.Tensor)
	for i, name := range f.profile.Encoder.Outputs {
		t := vision.ZeroTensor(1, 4, 8, 8)
		for j := range t.Data {
			t.Data[j] = mean + float32(i)*0.001
		}
		out[name] = t
	}
	return out, nil
}

func (f *fakeEncoder) Destroy() error { return nil }

// fakeDecoder 在提示框 (或正样本点周围) 内输出正的 logits
//
// logits 为到框边界的带符号距离 (单位: 网格), 第 m 个输出收缩 m 个网格。
type fakeDecoder struct {
	profile Profile
	scores  []float32
	calls   atomic.Int32
	err     error
}

const fakeGrid = 256

func (f *fakeDecoder) Run(inputs map[string]*vision.Tensor) (map[string]*vision.Tensor, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	dec := f.profile.Decoder
	for _, name := range dec.Inputs {
		if _, ok := inputs[name]; !ok {
			return nil, fmt.Errorf("missing input %q", name)
		}
	}
	emb := inputs["image_embeddings"].Data[0]

	box, ok := f.promptBox(inputs)
	stride := float32(f.profile.Encoder.Width.Max) / fakeGrid
	scores := f.scores
	if len(scores) == 0 {
		scores = []float32{0.9}
	}

	masks := vision.ZeroTensor(1, int64(len(scores)), fakeGrid, fakeGrid)
	for m := range scores {
		grid := masks.Data[m*fakeGrid*fakeGrid : (m+1)*fakeGrid*fakeGrid]
		for gy := 0; gy < fakeGrid; gy++ {
			for gx := 0; gx < fakeGrid; gx++ {
				v := float32(-10)
				if ok {
					cx, cy := (float32(gx)+0.5)*stride, (float32(gy)+0.5)*stride
					d := min(cx-box[0], box[2]-cx, cy-box[1], box[3]-cy)
					v = d/stride - float32(m)
				}
				grid[gy*fakeGrid+gx] = v + emb*1e-6
			}
		}
	}
	return map[string]*vision.Tensor{
		dec.ScoresOutput: {Shape: []int64{1, int64(len(scores))}, Data: append([]float32(nil), scores...)},
		dec.MasksOutput:  masks,
	}, nil
}

// promptBox 从 decoder 输入还原 encoder 坐标下的框
func (f *fakeDecoder) promptBox(inputs map[string]*vision.Tensor) ([4]float32, bool) {
	dec := f.profile.Decoder
	if dec.BoxLayout == BoxTensor {
		if b := inputs[dec.input(dec.Box)]; len(b.Data) == 4 {
			return [4]float32{b.Data[0], b.Data[1], b.Data[2], b.Data[3]}, true
		}
	}
	coords := inputs[dec.input(dec.Points)].Data
	labels := inputs[dec.input(dec.Labels)].Data
	var box [4]float32
	var tl, br bool
	for i, l := range labels {
		x, y := coords[2*i], coords[2*i+1]
		switch Label(l) {
		case LabelBoxTopLeft:
			box[0], box[1], tl = x, y, true
		case LabelBoxBotRight:
			box[2], box[3], br = x, y, true
		case LabelPositive:
			if !tl && !br {
				return [4]float32{x - 40, y - 40, x + 40, y + 40}, true
			}
		}
	}
	return box, tl && br
}

func (f *fakeDecoder) Destroy() error { return nil }

var errDevice = errors.New("device lost")

func newFakeEngine(kind Kind, scores ...float32) (*Engine, *fakeEncoder, *fakeDecoder, error) {
	p := kind.Profile()
	enc := &fakeEncoder{profile: p}
	dec := &fakeDecoder{profile: p, scores: scores}
	e, err := NewEngineWithRuntime(Config{Kind: kind}, enc, dec)
	return e, enc, dec, err
}
