package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/audio-hub/audio-hub/internal/delivery"
	"github.com/audio-hub/audio-hub/internal/links"
	"github.com/audio-hub/audio-hub/internal/storage"
)

// AppOptions 控制 Fiber 应用的组装方式。Publisher 仅 local 驱动需要，
// 缺省时 /links 路由返回 404。
type AppOptions struct {
	Logger      *logrus.Logger
	Coordinator *delivery.Coordinator
	Local       *storage.Local
	Publisher   *links.Publisher
	ListenPort  int
}

const contextKeyRequestID = "_audiohub_request_id"

// NewApp 构建带请求 ID 中间件与结构化访问日志的 Fiber 应用。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Coordinator == nil {
		return nil, errors.New("coordinator is required")
	}
	if opts.Local == nil {
		return nil, errors.New("local storage is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	h := &handler{
		logger:      opts.Logger,
		coordinator: opts.Coordinator,
		local:       opts.Local,
		publisher:   opts.Publisher,
	}

	app.Get("/-/health", h.health)
	app.Get("/dl/:key/:id", h.download)
	app.Get("/dl/:key/:id/:bitrate", h.download)
	app.Get("/stream/:key/:id", h.stream)
	app.Get("/stream/:key/:id/:bitrate", h.stream)
	app.Get("/bytes/:key/:id", h.bytes)
	app.Get("/files/:name", h.file)
	app.Get("/links/:folder/:name", h.link)

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID 并输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		logger.WithFields(logrus.Fields{
			"action":      "http_request",
			"request_id":  reqID,
			"method":      c.Method(),
			"path":        string(c.Request().URI().Path()),
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(started).Milliseconds(),
		}).Debug("请求完成")

		return err
	}
}

// RequestID 返回中间件注入的请求 ID，缺失时为空串。
func RequestID(c fiber.Ctx) string {
	if value, ok := c.Locals(contextKeyRequestID).(string); ok {
		return value
	}
	return ""
}
