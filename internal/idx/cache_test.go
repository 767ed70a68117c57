package idx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/idx-hub/idx-hub/internal/cache"
	"github.com/idx-hub/idx-hub/internal/registry"
)

func seedStore(t *testing.T, name string, body []byte) (*cache.Store, registry.Descriptor) {
	t.Helper()
	store, err := cache.NewStore(t.TempDir(), "mnist")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.EnsureDirectory(); err != nil {
		t.Fatalf("ensure dir: %v", err)
	}
	if body != nil {
		if _, err := store.WriteFile(context.Background(), name, bytes.NewReader(body)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return store, registry.Descriptor{Name: name}
}

func TestOpenRawArchive(t *testing.T) {
	store, d := seedStore(t, "labels-idx1-ubyte.gz", gzipBytes(t, rawIDX(MagicLabels, []uint32{2}, []byte{4, 5})))
	ds, err := Open(store, d)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if ds.Count() != 2 {
		t.Fatalf("unexpected count %d", ds.Count())
	}
}

func TestOpenMissing(t *testing.T) {
	store, d := seedStore(t, "absent.gz", nil)
	if _, err := Open(store, d); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExtractThenOpenDecoded(t *testing.T) {
	store, d := seedStore(t, "labels-idx1-ubyte.gz", gzipBytes(t, rawIDX(MagicLabels, []uint32{2}, []byte{4, 5})))
	if err := Extract(context.Background(), store, d, true); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if store.FileExists(d.Name) {
		t.Fatalf("archive should be removed")
	}
	if got := store.Status(d.Name, d.Stem()); got != cache.CachedDecoded {
		t.Fatalf("expected cached_decoded, got %s", got)
	}
	ds, err := Open(store, d)
	if err != nil {
		t.Fatalf("open decoded: %v", err)
	}
	if l, _ := ds.Label(1); l != 5 {
		t.Fatalf("unexpected label %d", l)
	}
	if err := Extract(context.Background(), store, d, true); err != nil {
		t.Fatalf("extract should be idempotent: %v", err)
	}
}

func TestExtractRejectsCorruptArchive(t *testing.T) {
	store, d := seedStore(t, "images-idx3-ubyte.gz", gzipBytes(t, rawIDX(42, []uint32{1}, nil)))
	err := Extract(context.Background(), store, d, true)
	var fe *FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FormatError, got %v", err)
	}
	if _, statErr := os.Stat(store.ResolvePath(d.Stem())); !os.IsNotExist(statErr) {
		t.Fatalf("corrupt archive must not be extracted")
	}
	if !store.FileExists(d.Name) {
		t.Fatalf("archive must be kept when extraction fails")
	}
}
