package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/audio-hub/audio-hub/internal/config"
)

// InitLogger 按全局配置构建进程级 JSON 日志器。日志文件不可写时
// 降级到标准输出并记录一条警告，服务照常启动。
func InitLogger(cfg config.GlobalConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("无法解析日志级别 %q: %w", cfg.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	out, fallbackErr := rotatingOutput(cfg)
	logger.SetOutput(out)

	// 全局入口与注入实例共用同一输出，避免依赖库的日志走丢。
	logrus.SetFormatter(logger.Formatter)
	logrus.SetOutput(logger.Out)
	logrus.SetLevel(logger.GetLevel())

	if fallbackErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "log_output_fallback",
			"path":   cfg.LogFilePath,
		}).WithError(fallbackErr).Warn("日志文件不可用，降级到标准输出")
	}

	return logger, nil
}

// rotatingOutput 返回日志输出目标：未配置文件路径时用标准输出，
// 否则用带轮转的文件；目录创建失败时降级并返回原因。
func rotatingOutput(cfg config.GlobalConfig) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("创建日志目录失败: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}
