package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/idx-hub/idx-hub/internal/fetch"
	"github.com/idx-hub/idx-hub/internal/pipeline"
)

type datasetHandlers struct {
	loaders map[string]*pipeline.Loader
	fetcher *fetch.Orchestrator
	logger  *logrus.Logger
}

type filePayload struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Status string `json:"status"`
	Path   string `json:"path"`
}

type datasetPayload struct {
	Key         string        `json:"key"`
	Description string        `json:"description"`
	CacheDir    string        `json:"cache_dir"`
	Complete    bool          `json:"complete"`
	Splits      []string      `json:"splits"`
	Files       []filePayload `json:"files"`
}

func encodeDataset(l *pipeline.Loader) datasetPayload {
	family := l.Family()
	store := l.Store()
	statuses, complete := fetch.Check(store, family.Files)

	files := make([]filePayload, 0, len(family.Files))
	for _, d := range family.Files {
		files = append(files, filePayload{
			Name:   d.Name,
			URL:    d.URL(),
			SHA256: d.NormalizedHash(),
			Status: statuses[d.Name].String(),
			Path:   store.ResolvePath(d.Name),
		})
	}
	return datasetPayload{
		Key:         family.Key,
		Description: family.Description,
		CacheDir:    store.Dir(),
		Complete:    complete,
		Splits:      family.SplitNames(),
		Files:       files,
	}
}

func (h *datasetHandlers) list(c fiber.Ctx) error {
	keys := h.sortedKeys()
	payload := make([]datasetPayload, 0, len(keys))
	for _, key := range keys {
		payload = append(payload, encodeDataset(h.loaders[key]))
	}
	return c.JSON(fiber.Map{"datasets": payload})
}

func (h *datasetHandlers) detail(c fiber.Ctx) error {
	loader, err := h.lookup(c)
	if loader == nil {
		return err
	}
	return c.JSON(encodeDataset(loader))
}

func (h *datasetHandlers) fetch(c fiber.Ctx) error {
	loader, err := h.lookup(c)
	if loader == nil {
		return err
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := loader.Acquire(ctx)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"action":     "fetch",
			"dataset":    loader.Family().Key,
			"request_id": RequestID(c),
		}).Warn("dataset fetch failed")
		return c.Status(statusForError(err)).JSON(fiber.Map{
			"error":   errorCode(err),
			"message": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"dataset": loader.Family().Key,
		"run_id":  res.RunID,
		"skipped": res.Skipped,
		"fetched": res.Fetched,
		"bytes":   res.Bytes,
	})
}

func (h *datasetHandlers) verify(c fiber.Ctx) error {
	loader, err := h.lookup(c)
	if loader == nil {
		return err
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := h.fetcher.Verify(ctx, loader.Store(), loader.Family().Files, c.Query("repair") == "true")
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "verify_failed", "message": err.Error()})
	}
	return c.JSON(fiber.Map{
		"dataset":      loader.Family().Key,
		"ok":           report.OK(),
		"verified":     report.Verified,
		"corrupt":      report.Corrupt,
		"unverifiable": report.Unverifiable,
		"missing":      report.Missing,
		"removed":      report.Removed,
	})
}

func errorCode(err error) string {
	var (
		integrity *fetch.IntegrityError
		transport *fetch.TransportError
	)
	switch {
	case errors.As(err, &integrity):
		return "integrity_error"
	case errors.As(err, &transport):
		return "transport_error"
	default:
		return "fetch_failed"
	}
}

func statusForError(err error) int {
	switch errorCode(err) {
	case "integrity_error", "transport_error":
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
