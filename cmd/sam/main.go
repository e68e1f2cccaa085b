// sam 命令行: 对单张图片执行提示分割并保存标注结果
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getcharzp/go-sam/annotate"
	"github.com/getcharzp/go-sam/internal/config"
	"github.com/getcharzp/go-sam/internal/logger"
	"github.com/getcharzp/go-sam/sam"
	"github.com/spf13/pflag"
	"github.com/up-zero/gotool/imageutil"
	"go.uber.org/zap"
)

func main() {
	flags := pflag.NewFlagSet("sam", pflag.ExitOnError)
	configPath := flags.String("config", "", "YAML 配置文件")
	imagePath := flags.String("image", "./assets/truck.jpg", "输入图片")
	promptPath := flags.String("prompts", "", "YAML 提示文件")
	boxes := flags.StringArray("box", nil, "框提示 x_min,y_min,x_max,y_max (可重复)")
	points := flags.StringArray("point", nil, "前景点 x,y (可重复)")
	negPoints := flags.StringArray("neg-point", nil, "背景点 x,y (可重复)")
	flags.String("kind", "sam", "模型族: "+kindList())
	flags.String("device", "cpu", "执行设备: cpu, cuda, cuda:N")
	flags.Int("threads", 0, "ONNX 线程数")
	flags.String("lib", "", "onnxruntime 动态库路径")
	flags.String("encoder", "", "encoder 模型路径")
	flags.String("decoder", "", "decoder 模型路径")
	flags.Bool("use-low-res-mask", false, "输出低分辨率 Mask")
	flags.Bool("multi-mask", false, "输出全部候选 Mask")
	flags.String("out", "./runs", "输出目录")
	flags.String("font", "", "得分标签字体 (ttf), 为空时不绘制得分")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.File)
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	var prompts []sam.Prompt
	if *promptPath != "" {
		prompts, err = loadPromptFile(*promptPath)
	} else {
		prompts, err = flagPrompts(*boxes, *points, *negPoints)
	}
	if err != nil {
		log.Fatal("invalid prompt", zap.Error(err))
	}

	if err := run(cfg, log, *imagePath, prompts); err != nil {
		log.Fatal("segment failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger, imagePath string, prompts []sam.Prompt) error {
	samCfg, err := cfg.SamConfig(log, sam.NewMemoryStore(cfg.Model.CacheSize))
	if err != nil {
		return err
	}
	engine, err := sam.NewEngine(samCfg)
	if err != nil {
		return err
	}
	defer engine.Destroy()

	img, err := imageutil.Open(imagePath)
	if err != nil {
		return fmt.Errorf("打开图片失败: %w", err)
	}

	start := time.Now()
	results, err := engine.Segment(context.Background(), img, prompts, cfg.Options())
	if err != nil {
		return err
	}
	log.Info("segment done",
		zap.String("kind", engine.Profile().Name),
		zap.Int("prompts", len(prompts)),
		zap.Duration("cost", time.Since(start)))

	for i, group := range results {
		for j, res := range group {
			log.Info("mask",
				zap.Int("prompt", i),
				zap.Int("candidate", j),
				zap.Float32("score", res.Score),
				zap.Int("area", res.Area()),
				zap.Int("contours", len(res.Contours)))
		}
	}

	var text *annotate.TextDrawer
	if cfg.Output.FontPath != "" {
		if text, err = annotate.NewTextDrawer(cfg.Output.FontPath, 18); err != nil {
			log.Warn("load font failed, scores are not drawn", zap.Error(err))
		} else {
			defer text.Close()
		}
	}
	dst := annotate.NewAnnotator(text).Annotate(img, prompts, results)

	outDir := filepath.Join(cfg.Output.Dir, engine.Profile().Name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath)) + ".png"
	outPath := filepath.Join(outDir, name)
	imageutil.Save(outPath, dst, 100)
	log.Info("result saved", zap.String("path", outPath))
	return nil
}

func kindList() string {
	names := make([]string, 0, len(sam.Kinds()))
	for _, k := range sam.Kinds() {
		names = append(names, k.String())
	}
	return strings.Join(names, ", ")
}
