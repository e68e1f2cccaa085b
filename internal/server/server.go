// Package server 提供分割服务的 HTTP 接口
package server

import (
	"context"
	"image"
	"net/http"

	"github.com/getcharzp/go-sam/sam"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Segmenter 分割引擎, *sam.Engine 实现了该接口
type Segmenter interface {
	Segment(ctx context.Context, img image.Image, prompts []sam.Prompt, opts sam.Options) ([][]sam.MaskResult, error)
	Profile() sam.Profile
}

// Options 服务配置
type Options struct {
	Mode          string      // gin 模式: debug, release, test
	MaxUploadSize int64       // 上传图片大小上限 (字节)
	Defaults      sam.Options // 表单未指定时的解码选项
	Version       string
}

type Server struct {
	engine Segmenter
	opts   Options
	logger *zap.Logger
}

func New(engine Segmenter, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 20 * 1024 * 1024
	}
	return &Server{engine: engine, opts: opts, logger: log}
}

// Router 创建路由
func (s *Server) Router() *gin.Engine {
	if s.opts.Mode != "" {
		gin.SetMode(s.opts.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(s.logger))
	r.MaxMultipartMemory = s.opts.MaxUploadSize

	r.GET("/health", s.Health)

	api := r.Group("/api/v1")
	{
		api.POST("/segment", s.Segment)
	}
	return r
}

// Health 健康检查
func (s *Server) Health(c *gin.Context) {
	p := s.engine.Profile()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.opts.Version,
		"kind":    p.Kind.String(),
		"prompts": p.Support.String(),
	})
}

// Run 启动服务
func (s *Server) Run(addr string) error {
	s.logger.Info("server starting", zap.String("addr", addr))
	return s.Router().Run(addr)
}
