// Package annotate 将分割结果绘制到图片上
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/getcharzp/go-sam/sam"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/draw"
)

// Palette 结果的颜色, 按序号循环使用
var Palette = []color.RGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
	{R: 0, G: 194, B: 255, A: 255},
	{R: 52, G: 69, B: 147, A: 255},
}

var (
	positiveColor = color.RGBA{G: 255, A: 255}
	negativeColor = color.RGBA{R: 255, A: 255}
	boxColor      = color.RGBA{R: 255, G: 255, A: 255}
)

// Annotator 绘制 Mask、轮廓、提示和得分
type Annotator struct {
	Text       *TextDrawer // (可选) 为空时不绘制得分
	MaskAlpha  uint8       // Mask 叠加透明度, 默认 110
	LineWidth  int         // 轮廓线宽, 默认 2
	PointSize  int         // 提示点半径, 默认 6
	WithMasks  bool
	WithPrompt bool
}

// NewAnnotator 默认绘制 Mask 和提示
func NewAnnotator(text *TextDrawer) *Annotator {
	return &Annotator{
		Text:       text,
		MaskAlpha:  110,
		LineWidth:  2,
		PointSize:  6,
		WithMasks:  true,
		WithPrompt: true,
	}
}

// Annotate 返回绘制后的新图片, 原图不变
//
// # Params:
//
//	img: 原图
//	prompts: 提示, 可为空
//	results: 每个提示对应的结果
func (a *Annotator) Annotate(img image.Image, prompts []sam.Prompt, results [][]sam.MaskResult) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Rect, img, bounds.Min, draw.Src)

	idx := 0
	for _, group := range results {
		for _, res := range group {
			c := Palette[idx%len(Palette)]
			idx++
			a.drawResult(dst, res, c)
		}
	}

	if a.WithPrompt {
		for _, p := range prompts {
			a.drawPrompt(dst, p)
		}
	}
	return dst
}

func (a *Annotator) drawResult(dst *image.RGBA, res sam.MaskResult, c color.RGBA) {
	mask := res.Mask
	if mask == nil {
		return
	}
	// 低分辨率 Mask 的坐标需要换算到原图
	sx := float64(dst.Rect.Dx()) / float64(mask.Rect.Dx())
	sy := float64(dst.Rect.Dy()) / float64(mask.Rect.Dy())

	if a.WithMasks {
		alpha := scaledAlpha(mask, dst.Rect)
		overlay := color.NRGBA{R: c.R, G: c.G, B: c.B, A: a.MaskAlpha}
		draw.DrawMask(dst, dst.Rect, image.NewUniform(overlay), image.Point{}, alpha, image.Point{}, draw.Over)
	}

	for _, contour := range res.Contours {
		pts := make([]image.Point, len(contour))
		for i, p := range contour {
			pts[i] = scalePoint(p, sx, sy)
		}
		if len(pts) == 1 {
			imageutil.DrawFilledCircle(dst, pts[0], a.LineWidth, c)
			continue
		}
		imageutil.DrawThickPolygonOutline(dst, pts, a.LineWidth, c)
	}

	if a.Text != nil && len(res.Contours) > 0 {
		anchor := scalePoint(res.Contours[0][0], sx, sy)
		a.Text.DrawLabel(dst, fmt.Sprintf("%.3f", res.Score), anchor.X, anchor.Y, color.White, c)
	}
}

func (a *Annotator) drawPrompt(dst *image.RGBA, p sam.Prompt) {
	if b := p.Box; b != nil {
		imageutil.DrawThickRectOutline(dst, b.Rect(), boxColor, a.LineWidth)
	}
	for _, pt := range p.Points {
		c := positiveColor
		if pt.Label == sam.LabelNegative {
			c = negativeColor
		}
		imageutil.DrawFilledCircle(dst, image.Pt(int(pt.X), int(pt.Y)), a.PointSize, c)
	}
}

// scaledAlpha 将 0/255 的 Mask 转换为 rect 大小的 Alpha 蒙版
func scaledAlpha(mask *image.Gray, rect image.Rectangle) *image.Alpha {
	src := &image.Alpha{Pix: mask.Pix, Stride: mask.Stride, Rect: mask.Rect}
	if mask.Rect.Size() == rect.Size() {
		return &image.Alpha{Pix: mask.Pix, Stride: mask.Stride, Rect: rect}
	}
	alpha := image.NewAlpha(rect)
	draw.NearestNeighbor.Scale(alpha, rect, src, src.Rect, draw.Src, nil)
	return alpha
}

func scalePoint(p image.Point, sx, sy float64) image.Point {
	return image.Pt(int(float64(p.X)*sx), int(float64(p.Y)*sy))
}
