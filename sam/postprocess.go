package sam

import (
	"image"
)

// Logits 单通道 float32 网格, 行优先
type Logits struct {
	W, H int
	Data []float32
}

// At 返回 (x, y) 处的值
func (l Logits) At(x, y int) float32 {
	return l.Data[y*l.W+x]
}

// Resize 双线性插值缩放 (像素中心对齐)
func (l Logits) Resize(dstW, dstH int) Logits {
	out := Logits{W: dstW, H: dstH, Data: make([]float32, dstW*dstH)}
	if l.W == 0 || l.H == 0 {
		return out
	}
	xRatio := float32(l.W) / float32(dstW)
	yRatio := float32(l.H) / float32(dstH)

	for y := 0; y < dstH; y++ {
		y0, y1, wy := sampleAxis(y, yRatio, l.H)
		row0 := l.Data[y0*l.W : (y0+1)*l.W]
		row1 := l.Data[y1*l.W : (y1+1)*l.W]
		for x := 0; x < dstW; x++ {
			x0, x1, wx := sampleAxis(x, xRatio, l.W)
			top := row0[x0] + (row0[x1]-row0[x0])*wx
			bottom := row1[x0] + (row1[x1]-row1[x0])*wx
			out.Data[y*dstW+x] = top + (bottom-top)*wy
		}
	}
	return out
}

// sampleAxis 目标坐标 i 在源轴上的两个相邻采样点和权重
func sampleAxis(i int, ratio float32, size int) (int, int, float32) {
	src := (float32(i)+0.5)*ratio - 0.5
	if src < 0 {
		src = 0
	}
	i0 := int(src)
	if i0 >= size-1 {
		return size - 1, size - 1, 0
	}
	return i0, i0 + 1, src - float32(i0)
}

// Binarize 以 0 为阈值二值化, 前景为 255
func (l Logits) Binarize() *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, l.W, l.H))
	for i, v := range l.Data {
		if v > maskThreshold {
			mask.Pix[i] = 255
		}
	}
	return mask
}

// MaskResult Mask 预测结果
type MaskResult struct {
	Mask     *image.Gray     // 0 or 255
	Score    float32
	LowRes   bool            // Mask 是否为低分辨率
	Contours [][]image.Point // 按面积降序的闭合轮廓
}

// Area 前景像素数
func (r MaskResult) Area() int {
	n := 0
	for _, v := range r.Mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bounds 前景的外接矩形, 空 Mask 返回空矩形
func (r MaskResult) Bounds() image.Rectangle {
	b := r.Mask.Bounds()
	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r.Mask.GrayAt(x, y).Y == 0 {
				continue
			}
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	if maxX < minX {
		return image.Rectangle{}
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// Postprocess 将候选 logits 转换为 Mask
//
// 低分辨率模式直接在原始网格上二值化; 否则先双线性放大到原图尺寸。
// 全零 Mask 返回空轮廓, 不是错误。
func Postprocess(c MaskCandidate, emb *Embedding, opts Options) MaskResult {
	logits := c.Logits
	if !c.UseLowResMask {
		logits = logits.Resize(emb.OrigW, emb.OrigH)
	}
	result := MaskResult{
		Mask:   logits.Binarize(),
		Score:  c.Score,
		LowRes: c.UseLowResMask,
	}
	if opts.FindContours {
		result.Contours = FindContours(result.Mask)
	}
	return result
}
