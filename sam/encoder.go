package sam

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/getcharzp/go-sam"
	"github.com/google/uuid"
	"github.com/up-zero/gotool/imageutil"
	"go.uber.org/zap"
)

// Embedding 单张图片的特征缓存，创建后不可修改，可并发读取
type Embedding struct {
	ID      uuid.UUID
	Kind    Kind
	Tensors map[string]*vision.Tensor // encoder 输出, 按名称传入 decoder
	Digest  string                    // 图片摘要, 缓存键

	OrigW, OrigH   int     // 原图尺寸
	NewW, NewH     int     // 缩放后的有效区域
	InputW, InputH int     // 填充后的 encoder 输入尺寸
	Scale          float32 // 原图到 encoder 输入的缩放比例
}

// Encode 图像特征提取，每张图片只需执行一次
func (e *Engine) Encode(img image.Image) (*Embedding, error) {
	return e.encode(img, "")
}

// EncodeCached 先查询 Store, 未命中再执行 encoder 并写回
//
// 缓存读写失败只记录日志。
func (e *Engine) EncodeCached(ctx context.Context, img image.Image) (*Embedding, error) {
	if e.store == nil {
		return e.Encode(img)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrImage)
	}

	key := imageDigest(e.profile.Kind, img)
	emb, ok, err := e.store.Get(ctx, key)
	if err != nil {
		e.logger.Warn("failed to get cached embedding", zap.String("digest", key), zap.Error(err))
	}
	if ok && emb.Kind == e.profile.Kind {
		e.logger.Debug("embedding cache hit", zap.String("digest", key))
		return emb, nil
	}

	emb, err = e.encode(img, key)
	if err != nil {
		return nil, err
	}
	if err := e.store.Put(ctx, key, emb); err != nil {
		e.logger.Warn("failed to cache embedding", zap.String("digest", key), zap.Error(err))
	}
	return emb, nil
}

func (e *Engine) encode(img image.Image, digest string) (*Embedding, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrImage)
	}
	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW <= 0 || origH <= 0 {
		return nil, fmt.Errorf("%w: zero-area image %dx%d", ErrImage, origW, origH)
	}

	enc := e.profile.Encoder
	inputW, inputH := enc.Width.Max, enc.Height.Max
	scale := min(float32(inputW)/float32(origW), float32(inputH)/float32(origH))
	newW := min(int(float32(origW)*scale+0.5), inputW)
	newH := min(int(float32(origH)*scale+0.5), inputH)
	if newW < 1 || newH < 1 {
		return nil, fmt.Errorf("%w: %dx%d cannot be resized into %dx%d", ErrImage, origW, origH, inputW, inputH)
	}

	// 预处理
	resized := imageutil.Resize(img, newW, newH)
	data := normalizeAndPad(resized, inputW, inputH)
	input, err := vision.NewTensor([]int64{1, 3, int64(inputH), int64(inputW)}, data)
	if err != nil {
		return nil, fmt.Errorf("%w: 创建图片 Input Tensor 失败: %v", ErrImage, err)
	}

	// Encoder 推理
	start := time.Now()
	outputs, err := e.encoder.Run(map[string]*vision.Tensor{enc.Input: input})
	if err != nil {
		e.logger.Error("encoder failed", zap.Int("width", origW), zap.Int("height", origH), zap.Error(err))
		return nil, fmt.Errorf("%w: encoder 推理失败: %w", ErrRuntime, err)
	}

	tensors := make(map[string]*vision.Tensor, len(enc.Outputs))
	for _, name := range enc.Outputs {
		t, ok := outputs[name]
		if !ok || t == nil {
			return nil, fmt.Errorf("%w: encoder output %q missing", ErrRuntime, name)
		}
		tensors[name] = t
	}

	emb := &Embedding{
		ID:      uuid.New(),
		Kind:    e.profile.Kind,
		Tensors: tensors,
		Digest:  digest,
		OrigW:   origW,
		OrigH:   origH,
		NewW:    newW,
		NewH:    newH,
		InputW:  inputW,
		InputH:  inputH,
		Scale:   scale,
	}
	e.logger.Debug("image encoded",
		zap.Stringer("embedding", emb.ID),
		zap.Int("width", origW),
		zap.Int("height", origH),
		zap.Duration("cost", time.Since(start)))
	return emb, nil
}
