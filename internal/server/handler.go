package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"time"

	"github.com/getcharzp/go-sam/sam"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Segment 上传图片和提示, 返回每个提示的 Mask
func (s *Server) Segment(c *gin.Context) {
	var form SegmentForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "缺少 prompts 参数", Error: err.Error()})
		return
	}

	var reqs []PromptRequest
	if err := json.Unmarshal([]byte(form.Prompts), &reqs); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "prompts 格式错误", Error: err.Error()})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "至少需要一个提示"})
		return
	}
	prompts := make([]sam.Prompt, len(reqs))
	for i, r := range reqs {
		p, err := r.ToPrompt()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: fmt.Sprintf("第 %d 个提示无效", i), Error: err.Error()})
			return
		}
		prompts[i] = p
	}

	img, err := s.readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "请上传有效的图片文件", Error: err.Error()})
		return
	}

	opts := s.opts.Defaults
	if form.LowResMask != nil {
		opts.UseLowResMask = *form.LowResMask
	}
	if form.MultiMask != nil {
		opts.MultiMask = *form.MultiMask
	}
	if form.FindContours != nil {
		opts.FindContours = *form.FindContours
	}

	requestID := c.GetString(requestIDKey)
	start := time.Now()
	results, err := s.engine.Segment(c.Request.Context(), img, prompts, opts)
	if err != nil {
		s.logger.Error("segment failed", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(statusOf(err), ErrorResponse{Message: "分割失败", Error: err.Error()})
		return
	}

	data := &SegmentData{
		RequestID: requestID,
		Kind:      s.engine.Profile().Kind.String(),
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
		CostMS:    time.Since(start).Milliseconds(),
		Results:   make([][]MaskData, len(results)),
	}
	for i, group := range results {
		data.Results[i] = make([]MaskData, len(group))
		for j, res := range group {
			md, err := toMaskData(res, form.ReturnMask)
			if err != nil {
				s.logger.Error("encode mask failed", zap.String("request_id", requestID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "编码 Mask 失败", Error: err.Error()})
				return
			}
			data.Results[i][j] = md
		}
	}

	c.JSON(http.StatusOK, SegmentResponse{Success: true, Message: "处理成功", Data: data})
}

func (s *Server) readImage(c *gin.Context) (image.Image, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, err
	}
	if file.Size > s.opts.MaxUploadSize {
		return nil, fmt.Errorf("文件大小超过限制 (%d MB)", s.opts.MaxUploadSize/(1024*1024))
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}
	return img, nil
}

func toMaskData(res sam.MaskResult, withMask bool) (MaskData, error) {
	md := MaskData{Score: res.Score, LowRes: res.LowRes}
	if res.Mask == nil {
		return md, nil
	}
	b := res.Bounds()
	md.Area = res.Area()
	md.BBox = [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y}
	for _, contour := range res.Contours {
		pts := make([][2]int, len(contour))
		for i, p := range contour {
			pts[i] = [2]int{p.X, p.Y}
		}
		md.Contours = append(md.Contours, pts)
	}
	if withMask {
		var buf bytes.Buffer
		if err := png.Encode(&buf, res.Mask); err != nil {
			return MaskData{}, err
		}
		md.Mask = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	return md, nil
}

// statusOf 错误分类对应的 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, sam.ErrUnsupportedPrompt), errors.Is(err, sam.ErrImage):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
