// Package logger 构建 zap 日志
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig 日志文件滚动配置
type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// New 创建日志
//
// # Params:
//
//	mode: release 输出 JSON, 其余输出带颜色的控制台日志
//	file: 日志文件, Path 为空时只输出到控制台
func New(mode string, file FileConfig) (*zap.Logger, error) {
	var config zap.Config
	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	if file.Path == "" {
		return logger, nil
	}

	// 文件内统一使用 JSON, 不带颜色
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		NewFileWriter(file),
		config.Level,
	)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}

// NewFileWriter 基于 lumberjack 的滚动日志文件
func NewFileWriter(file FileConfig) zapcore.WriteSyncer {
	if file.MaxSizeMB <= 0 {
		file.MaxSizeMB = 100
	}
	if file.MaxBackups <= 0 {
		file.MaxBackups = 5
	}
	if file.MaxAgeDays <= 0 {
		file.MaxAgeDays = 30
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   file.Path,
		MaxSize:    file.MaxSizeMB,
		MaxBackups: file.MaxBackups,
		MaxAge:     file.MaxAgeDays,
		Compress:   file.Compress,
	})
}

// Sync 刷新日志
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
