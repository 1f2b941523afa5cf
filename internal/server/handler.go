package server

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/audio-hub/audio-hub/internal/delivery"
	"github.com/audio-hub/audio-hub/internal/links"
	"github.com/audio-hub/audio-hub/internal/storage"
	"github.com/audio-hub/audio-hub/internal/version"
)

// handler 把交付指令翻译为 HTTP 响应：重定向 / 404 / 500 只在这一层产生。
type handler struct {
	logger      *logrus.Logger
	coordinator *delivery.Coordinator
	local       *storage.Local
	publisher   *links.Publisher
}

func (h *handler) health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": version.Full(),
	})
}

func (h *handler) download(c fiber.Ctx) error {
	return h.serve(c, false)
}

func (h *handler) stream(c fiber.Ctx) error {
	return h.serve(c, true)
}

func (h *handler) serve(c fiber.Ctx, stream bool) error {
	req := delivery.Request{
		Key:    c.Params("key"),
		ID:     c.Params("id"),
		Stream: stream,
	}

	if raw := c.Params("bitrate"); raw != "" {
		bitrate, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_bitrate"})
		}
		req.Bitrate = bitrate
	}

	directive, err := h.coordinator.Handle(requestContext(c), req)
	if err != nil {
		return h.renderError(c, err)
	}

	return c.Redirect().Status(fiber.StatusFound).To(directive.Target)
}

func (h *handler) bytes(c fiber.Ctx) error {
	size, err := h.coordinator.Bytes(requestContext(c), c.Params("key"), c.Params("id"))
	if err != nil {
		return h.renderError(c, err)
	}
	return c.JSON(fiber.Map{"bytes": size})
}

// file 从本地工作存储直接送出制品正文，是流式交付的落点。
func (h *handler) file(c fiber.Ctx) error {
	path, err := h.local.FilePath(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	c.Set("Content-Type", "audio/mpeg")
	return c.SendFile(path)
}

// link 通过别名符号链接送出强制下载内容。
func (h *handler) link(c fiber.Ctx) error {
	if h.publisher == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	folder, err := url.PathUnescape(c.Params("folder"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	path, err := h.publisher.FilePath(folder, name)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	if info, statErr := os.Stat(path); statErr != nil || info.IsDir() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	c.Set("Content-Type", "audio/mpeg")
	c.Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
	return c.SendFile(path)
}

func (h *handler) renderError(c fiber.Ctx, err error) error {
	if errors.Is(err, delivery.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error"})
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
