package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/idx-hub/idx-hub/internal/fetch"
	"github.com/idx-hub/idx-hub/internal/pipeline"
)

// AppOptions controls the dependencies of the diagnostics application.
type AppOptions struct {
	Logger     *logrus.Logger
	Loaders    []*pipeline.Loader
	Fetcher    *fetch.Orchestrator
	ListenPort int
}

const contextKeyRequestID = "_idxhub_request_id"

// NewApp builds a Fiber application exposing dataset diagnostics routes.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetch orchestrator is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	loaders := make(map[string]*pipeline.Loader, len(opts.Loaders))
	for _, l := range opts.Loaders {
		loaders[l.Family().Key] = l
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &datasetHandlers{loaders: loaders, fetcher: opts.Fetcher, logger: opts.Logger}
	app.Get("/-/datasets", h.list)
	app.Get("/-/datasets/:key", h.detail)
	app.Post("/-/datasets/:key/fetch", h.fetch)
	app.Get("/-/datasets/:key/verify", h.verify)

	app.Use(func(c fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "route_not_found"})
	})

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID，并写入 X-Request-ID 响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func (h *datasetHandlers) lookup(c fiber.Ctx) (*pipeline.Loader, error) {
	key := strings.ToLower(strings.TrimSpace(c.Params("key")))
	if key == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dataset_key_required"})
	}
	loader, ok := h.loaders[key]
	if !ok {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "dataset_not_found"})
	}
	return loader, nil
}

func (h *datasetHandlers) sortedKeys() []string {
	keys := make([]string, 0, len(h.loaders))
	for key := range h.loaders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
