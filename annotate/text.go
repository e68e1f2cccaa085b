package annotate

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextDrawer 标签绘制工具
type TextDrawer struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64
}

// NewTextDrawer 创建标签绘制工具
//
// # Params:
//
//	fontPath: 字体路径 (ttf/otf)
//	fontSize: 字体大小
func NewTextDrawer(fontPath string, fontSize float64) (*TextDrawer, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("打开字体文件失败：%w", err)
	}
	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析字体文件失败：%w", err)
	}
	face, err := opentype.NewFace(ttFont, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	return &TextDrawer{font: ttFont, face: face, fontSize: fontSize}, nil
}

// DrawLabel 在 (x, y) 上方绘制带背景色的标签, 超出上边界时画在下方
func (d *TextDrawer) DrawLabel(img draw.Image, text string, x, y int, fg, bg color.Color) {
	width := font.MeasureString(d.face, text).Ceil()
	metrics := d.face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	pad := 2

	top := y - height - 2*pad
	if top < img.Bounds().Min.Y {
		top = y
	}
	rect := image.Rect(x, top, x+width+2*pad, top+height+2*pad).Intersect(img.Bounds())
	draw.Draw(img, rect, image.NewUniform(bg), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: d.face,
		Dot:  fixed.Point26_6{X: fixed.I(x + pad), Y: fixed.I(top+pad) + metrics.Ascent},
	}
	drawer.DrawString(text)
}

// Close 释放资源
func (d *TextDrawer) Close() {
	if d.face != nil {
		d.face.Close()
	}
}
