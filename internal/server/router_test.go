package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/idx-hub/idx-hub/internal/fetch"
	"github.com/idx-hub/idx-hub/internal/logging"
	"github.com/idx-hub/idx-hub/internal/pipeline"
	"github.com/idx-hub/idx-hub/internal/registry"
)

func newTestApp(t *testing.T, body []byte, expected []byte) *fiber.App {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	t.Cleanup(upstream.Close)

	sum := sha256.Sum256(expected)
	family := registry.Family{
		Key:         "tiny",
		Description: "test family",
		CacheDir:    "tiny",
		Files: []registry.Descriptor{
			{Location: upstream.URL + "/", Name: "a.gz", SHA256: hex.EncodeToString(sum[:])},
		},
	}

	logger := logging.Discard()
	fetcher := fetch.New(fetch.Options{Logger: logger})
	loader, err := pipeline.NewLoader(family, t.TempDir(), fetcher, logger, pipeline.Options{BatchSize: 1})
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	app, err := NewApp(AppOptions{Logger: logger, Loaders: []*pipeline.Loader{loader}, Fetcher: fetcher, ListenPort: 5080})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, target string) (int, map[string]any, *http.Response) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("invalid json %s: %v", string(raw), err)
	}
	return resp.StatusCode, payload, resp
}

func TestDatasetListAndFetch(t *testing.T) {
	app := newTestApp(t, []byte("alpha"), []byte("alpha"))

	code, payload, resp := doJSON(t, app, http.MethodGet, "/-/datasets")
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	datasets := payload["datasets"].([]any)
	first := datasets[0].(map[string]any)
	if first["key"] != "tiny" || first["complete"] != false {
		t.Fatalf("unexpected dataset payload %v", first)
	}

	code, payload, _ = doJSON(t, app, http.MethodPost, "/-/datasets/tiny/fetch")
	if code != fiber.StatusOK {
		t.Fatalf("fetch should succeed, got %d %v", code, payload)
	}
	if payload["skipped"] != false {
		t.Fatalf("first fetch should download: %v", payload)
	}

	_, payload, _ = doJSON(t, app, http.MethodGet, "/-/datasets/tiny")
	if payload["complete"] != true {
		t.Fatalf("dataset should be complete after fetch: %v", payload)
	}
	file := payload["files"].([]any)[0].(map[string]any)
	if file["status"] != "cached_raw" {
		t.Fatalf("unexpected file status %v", file["status"])
	}

	_, payload, _ = doJSON(t, app, http.MethodGet, "/-/datasets/tiny/verify")
	if payload["ok"] != true {
		t.Fatalf("verify should pass: %v", payload)
	}
}

func TestDatasetFetchIntegrityFailure(t *testing.T) {
	app := newTestApp(t, []byte("tampered"), []byte("alpha"))
	code, payload, _ := doJSON(t, app, http.MethodPost, "/-/datasets/tiny/fetch")
	if code != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", code)
	}
	if payload["error"] != "integrity_error" {
		t.Fatalf("unexpected error payload %v", payload)
	}
}

func TestDatasetNotFound(t *testing.T) {
	app := newTestApp(t, nil, nil)
	code, payload, _ := doJSON(t, app, http.MethodGet, "/-/datasets/cifar")
	if code != fiber.StatusNotFound || payload["error"] != "dataset_not_found" {
		t.Fatalf("expected dataset_not_found, got %d %v", code, payload)
	}

	code, payload, _ = doJSON(t, app, http.MethodGet, "/elsewhere")
	if code != fiber.StatusNotFound || !strings.Contains(payload["error"].(string), "route_not_found") {
		t.Fatalf("expected route_not_found, got %d %v", code, payload)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("missing logger should fail")
	}
	logger := logging.Discard()
	if _, err := NewApp(AppOptions{Logger: logger}); err == nil {
		t.Fatalf("missing fetcher should fail")
	}
	if _, err := NewApp(AppOptions{Logger: logger, Fetcher: fetch.New(fetch.Options{Logger: logger})}); err == nil {
		t.Fatalf("invalid port should fail")
	}
}
