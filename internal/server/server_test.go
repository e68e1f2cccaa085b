package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getcharzp/go-sam/sam"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSegmenter 每个提示返回一个覆盖提示框的 Mask
type fakeSegmenter struct {
	err     error
	prompts []sam.Prompt
	opts    sam.Options
}

func (f *fakeSegmenter) Segment(_ context.Context, img image.Image, prompts []sam.Prompt, opts sam.Options) ([][]sam.MaskResult, error) {
	f.prompts, f.opts = prompts, opts
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]sam.MaskResult, len(prompts))
	for i, p := range prompts {
		mask := image.NewGray(img.Bounds())
		if p.Box != nil {
			r := p.Box.Rect()
			for y := r.Min.Y; y < r.Max.Y; y++ {
				for x := r.Min.X; x < r.Max.X; x++ {
					mask.Pix[mask.PixOffset(x, y)] = 255
				}
			}
		}
		res := sam.MaskResult{Mask: mask, Score: 0.5 + float32(i)*0.1}
		if opts.FindContours {
			res.Contours = sam.FindContours(mask)
		}
		out[i] = []sam.MaskResult{res}
	}
	return out, nil
}

func (f *fakeSegmenter) Profile() sam.Profile { return sam.KindSAM.Profile() }

func newTestServer(seg Segmenter) http.Handler {
	opts := Options{Mode: gin.TestMode, Defaults: sam.Options{FindContours: true}}
	return New(seg, opts, nil).Router()
}

func pngBytes(t *testing.T, w, h int) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func segmentRequest(t *testing.T, img []byte, fields map[string]string) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if img != nil {
		fw, err := mw.CreateFormFile("image", "test.png")
		require.NoError(t, err)
		_, err = fw.Write(img)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/segment", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer(&fakeSegmenter{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"kind":"sam"`)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestSegment(t *testing.T) {
	seg := &fakeSegmenter{}
	prompts := `[{"box":[10,10,30,20]},{"points":[{"x":5,"y":5,"label":1},{"x":1,"y":1,"label":0}]}]`
	req := segmentRequest(t, pngBytes(t, 64, 48), map[string]string{"prompts": prompts, "return_mask": "true"})
	req.Header.Set(requestIDHeader, "req-1")

	w := httptest.NewRecorder()
	newTestServer(seg).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp SegmentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Equal(t, "req-1", resp.Data.RequestID)
	assert.Equal(t, 64, resp.Data.Width)
	assert.Equal(t, 48, resp.Data.Height)
	require.Len(t, resp.Data.Results, 2)

	first := resp.Data.Results[0][0]
	assert.Equal(t, [4]int{10, 10, 30, 20}, first.BBox)
	assert.Equal(t, 200, first.Area)
	assert.NotEmpty(t, first.Mask)
	require.Len(t, first.Contours, 1)

	require.Len(t, seg.prompts, 2)
	assert.Equal(t, sam.LabelNegative, seg.prompts[1].Points[1].Label)
	assert.True(t, seg.opts.FindContours)
}

func TestSegmentOptionOverride(t *testing.T) {
	seg := &fakeSegmenter{}
	req := segmentRequest(t, pngBytes(t, 16, 16), map[string]string{
		"prompts":       `[{"box":[1,1,4,4]}]`,
		"find_contours": "false",
		"low_res_mask":  "true",
	})
	w := httptest.NewRecorder()
	newTestServer(seg).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, seg.opts.FindContours)
	assert.True(t, seg.opts.UseLowResMask)
	assert.NotContains(t, w.Body.String(), `"mask"`)
}

func TestSegmentBadRequest(t *testing.T) {
	cases := []struct {
		name   string
		img    []byte
		fields map[string]string
	}{
		{"missing prompts", pngBytes(t, 8, 8), map[string]string{}},
		{"invalid json", pngBytes(t, 8, 8), map[string]string{"prompts": "{"}},
		{"empty prompts", pngBytes(t, 8, 8), map[string]string{"prompts": "[]"}},
		{"bad label", pngBytes(t, 8, 8), map[string]string{"prompts": `[{"points":[{"x":1,"y":1,"label":2}]}]`}},
		{"short box", pngBytes(t, 8, 8), map[string]string{"prompts": `[{"box":[1,2,3]}]`}},
		{"missing image", nil, map[string]string{"prompts": `[{"box":[1,1,4,4]}]`}},
		{"not an image", []byte("hello"), map[string]string{"prompts": `[{"box":[1,1,4,4]}]`}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newTestServer(&fakeSegmenter{}).ServeHTTP(w, segmentRequest(t, tc.img, tc.fields))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSegmentEngineErrors(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: box only", sam.ErrUnsupportedPrompt), http.StatusBadRequest},
		{fmt.Errorf("%w: encoder", sam.ErrRuntime), http.StatusInternalServerError},
		{context.Canceled, http.StatusRequestTimeout},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := segmentRequest(t, pngBytes(t, 8, 8), map[string]string{"prompts": `[{"box":[1,1,4,4]}]`})
		newTestServer(&fakeSegmenter{err: tc.err}).ServeHTTP(w, req)
		assert.Equal(t, tc.code, w.Code, tc.err.Error())
	}
}
