package sam

import (
	"fmt"
	"sort"
	"time"

	"github.com/getcharzp/go-sam"
	"go.uber.org/zap"
)

// Options 解码和后处理选项
type Options struct {
	UseLowResMask bool // 直接返回低分辨率 Mask
	MultiMask     bool // 返回全部候选, 否则只返回得分最高的一个
	FindContours  bool // 提取轮廓
}

// MaskCandidate decoder 的一个输出
type MaskCandidate struct {
	Logits        Logits // 低分辨率 logits 的有效区域
	Score         float32
	Index         int // 在 decoder 输出中的序号
	UseLowResMask bool
}

// Decode Mask 解码，复用 Embedding，不会重新执行 encoder
func (e *Engine) Decode(emb *Embedding, prompt Prompt, opts Options) ([]MaskCandidate, error) {
	if emb == nil {
		return nil, fmt.Errorf("%w: nil embedding", ErrImage)
	}
	if emb.Kind != e.profile.Kind {
		return nil, fmt.Errorf("%w: embedding from %s used with %s decoder", ErrConfig, emb.Kind, e.profile.Kind)
	}
	if err := e.profile.CheckPrompt(prompt); err != nil {
		return nil, err
	}
	prompt = prompt.Clamp(emb.OrigW, emb.OrigH)

	// 准备 Decoder Tensors
	inputs, err := e.profile.PromptTensors(prompt, emb.Scale, emb.OrigW, emb.OrigH)
	if err != nil {
		return nil, err
	}
	for name, t := range emb.Tensors {
		inputs[name] = t
	}

	// Decoder 推理
	start := time.Now()
	outputs, err := e.decoder.Run(inputs)
	if err != nil {
		e.logger.Error("decoder failed", zap.Stringer("embedding", emb.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: decoder 推理失败: %w", ErrRuntime, err)
	}

	candidates, err := e.parseCandidates(outputs, emb, opts)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("prompt decoded",
		zap.Stringer("embedding", emb.ID),
		zap.Int("points", len(prompt.Points)),
		zap.Bool("box", prompt.HasBox()),
		zap.Int("candidates", len(candidates)),
		zap.Duration("cost", time.Since(start)))
	return candidates, nil
}

// parseCandidates 拆分 decoder 输出
//
// # Params:
//
//	outputs: scores [1, M], masks [1, M, S, S]
//	emb: 图片特征, 用于计算有效区域
func (e *Engine) parseCandidates(outputs map[string]*vision.Tensor, emb *Embedding, opts Options) ([]MaskCandidate, error) {
	dec := e.profile.Decoder
	scores, masks := outputs[dec.ScoresOutput], outputs[dec.MasksOutput]
	if scores == nil || masks == nil {
		return nil, fmt.Errorf("%w: decoder outputs %q/%q missing", ErrRuntime, dec.ScoresOutput, dec.MasksOutput)
	}
	rank := len(masks.Shape)
	if rank < 2 {
		return nil, fmt.Errorf("%w: mask shape %v", ErrRuntime, masks.Shape)
	}
	gridH, gridW := int(masks.Shape[rank-2]), int(masks.Shape[rank-1])
	numMasks := len(scores.Data)
	if numMasks == 0 || gridW <= 0 || gridH <= 0 || len(masks.Data) != numMasks*gridW*gridH {
		return nil, fmt.Errorf("%w: %d scores do not match mask shape %v", ErrRuntime, numMasks, masks.Shape)
	}

	// 去掉 encoder 输入中填充部分对应的区域
	validW := min(gridW, max(1, int(float32(emb.NewW)*float32(gridW)/float32(emb.InputW)+0.5)))
	validH := min(gridH, max(1, int(float32(emb.NewH)*float32(gridH)/float32(emb.InputH)+0.5)))

	candidates := make([]MaskCandidate, numMasks)
	for m := 0; m < numMasks; m++ {
		grid := masks.Data[m*gridW*gridH : (m+1)*gridW*gridH]
		data := make([]float32, validW*validH)
		for y := 0; y < validH; y++ {
			copy(data[y*validW:(y+1)*validW], grid[y*gridW:y*gridW+validW])
		}
		candidates[m] = MaskCandidate{
			Logits:        Logits{W: validW, H: validH, Data: data},
			Score:         scores.Data[m],
			Index:         m,
			UseLowResMask: opts.UseLowResMask,
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if !opts.MultiMask {
		candidates = candidates[:1]
	}
	return candidates, nil
}

// Predict 解码并后处理
func (e *Engine) Predict(emb *Embedding, prompt Prompt, opts Options) ([]MaskResult, error) {
	candidates, err := e.Decode(emb, prompt, opts)
	if err != nil {
		return nil, err
	}
	results := make([]MaskResult, len(candidates))
	for i, c := range candidates {
		results[i] = Postprocess(c, emb, opts)
	}
	return results, nil
}
