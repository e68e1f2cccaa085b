package sam

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"
)

// Segment 对一张图片执行多个提示
//
// encoder 只执行一次, 各提示共享同一个 Embedding 并发解码。
// 返回结果与 prompts 顺序一致。ctx 取消后不再调度新的解码, 进行中的推理不会被中断。
func (e *Engine) Segment(ctx context.Context, img image.Image, prompts []Prompt, opts Options) ([][]MaskResult, error) {
	emb, err := e.EncodeCached(ctx, img)
	if err != nil {
		return nil, err
	}
	return e.SegmentEmbedding(ctx, emb, prompts, opts)
}

// SegmentEmbedding 使用已有的 Embedding 并发解码多个提示
func (e *Engine) SegmentEmbedding(ctx context.Context, emb *Embedding, prompts []Prompt, opts Options) ([][]MaskResult, error) {
	results := make([][]MaskResult, len(prompts))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.config.MaxConcurrentDecodes)
	scheduled := 0
	for i, prompt := range prompts {
		if gctx.Err() != nil {
			break
		}
		scheduled++
		i, prompt := i, prompt
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.Predict(emb, prompt, opts)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if scheduled < len(prompts) {
		return nil, ctx.Err()
	}
	return results, nil
}
