// sam-server 分割 HTTP 服务
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getcharzp/go-sam/internal/config"
	"github.com/getcharzp/go-sam/internal/logger"
	"github.com/getcharzp/go-sam/internal/server"
	"github.com/getcharzp/go-sam/sam"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	flags := pflag.NewFlagSet("sam-server", pflag.ExitOnError)
	configPath := flags.String("config", "config.yaml", "YAML 配置文件")
	flags.String("kind", "sam", "模型族")
	flags.String("device", "cpu", "执行设备: cpu, cuda, cuda:N")
	flags.String("port", ":8080", "监听地址")
	_ = flags.Parse(os.Args[1:])

	path := *configPath
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	cfg, err := config.Load(path, flags)
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
	log.Info("starting sam server", zap.String("version", Version), zap.String("kind", cfg.Model.Kind))

	store := newStore(cfg, log)
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	samCfg, err := cfg.SamConfig(log, store)
	if err != nil {
		log.Fatal("invalid model config", zap.Error(err))
	}
	engine, err := sam.NewEngine(samCfg)
	if err != nil {
		log.Fatal("failed to create engine", zap.Error(err))
	}
	defer engine.Destroy()

	srv := server.New(engine, server.Options{
		Mode:          cfg.Server.Mode,
		MaxUploadSize: cfg.Server.MaxUploadSize,
		Defaults:      cfg.Options(),
		Version:       Version,
	}, log)
	if err := srv.Run(cfg.Server.Port); err != nil {
		log.Error("server stopped", zap.Error(err))
	}
}

// newStore Redis 可用时使用 Redis 缓存 Embedding, 否则使用内存缓存
func newStore(cfg *config.Config, log *zap.Logger) sam.EmbeddingStore {
	if !cfg.Redis.Enabled {
		return sam.NewMemoryStore(cfg.Model.CacheSize)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := sam.NewRedisStore(client, cfg.Redis.TTL)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Warn("redis connection failed, using memory cache", zap.Error(err))
		_ = store.Close()
		return sam.NewMemoryStore(cfg.Model.CacheSize)
	}
	log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	return store
}
