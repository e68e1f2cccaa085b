package annotate

import (
	"image"
	"image/color"
	"testing"

	"github.com/getcharzp/go-sam/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return img
}

func squareMask(w, h int, r image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func TestAnnotateOverlaysMask(t *testing.T) {
	src := grayImage(40, 40)
	res := sam.MaskResult{Mask: squareMask(40, 40, image.Rect(10, 10, 20, 20)), Score: 0.9}

	a := NewAnnotator(nil)
	a.WithPrompt = false
	out := a.Annotate(src, nil, [][]sam.MaskResult{{res}})

	require.Equal(t, image.Rect(0, 0, 40, 40), out.Rect)
	assert.NotEqual(t, src.RGBAAt(15, 15), out.RGBAAt(15, 15))
	assert.Equal(t, src.RGBAAt(30, 30), out.RGBAAt(30, 30))
	// 原图不变
	assert.Equal(t, uint8(128), src.Pix[src.PixOffset(15, 15)])
}

func TestAnnotateLowResMask(t *testing.T) {
	src := grayImage(40, 40)
	res := sam.MaskResult{Mask: squareMask(10, 10, image.Rect(5, 5, 10, 10)), LowRes: true}

	a := NewAnnotator(nil)
	out := a.Annotate(src, nil, [][]sam.MaskResult{{res}})

	assert.Equal(t, src.RGBAAt(5, 5), out.RGBAAt(5, 5))
	assert.NotEqual(t, src.RGBAAt(30, 30), out.RGBAAt(30, 30))
}

func TestAnnotatePrompt(t *testing.T) {
	src := grayImage(60, 60)
	p := sam.Prompt{}.WithPositivePoint(30, 30).WithBox(5, 5, 50, 50)

	out := NewAnnotator(nil).Annotate(src, []sam.Prompt{p}, nil)
	assert.Equal(t, positiveColor, out.RGBAAt(30, 30))
	assert.NotEqual(t, src.RGBAAt(20, 5), out.RGBAAt(20, 5))
	assert.Equal(t, src.RGBAAt(20, 20), out.RGBAAt(20, 20))
}
