package registry

import (
	"strings"
	"testing"
)

func replaceRegistry(t *testing.T) func() {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	return func() { globalRegistry = prev }
}

func testFamily(key string) Family {
	return Family{
		Key:      key,
		CacheDir: key,
		Files: []Descriptor{
			{Location: "http://example.local/", Name: "a.gz", SHA256: strings.Repeat("ab", 32)},
			{Location: "http://example.local/", Name: "b.gz", SHA256: strings.Repeat("CD", 32)},
		},
		Splits: map[string]Split{"train": {Images: "a.gz", Labels: "b.gz"}},
	}
}

func TestRegisterResolveAndList(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(testFamily("beta")); err != nil {
		t.Fatalf("register beta failed: %v", err)
	}
	if err := Register(testFamily("Gamma")); err != nil {
		t.Fatalf("register gamma failed: %v", err)
	}

	if _, ok := Resolve("beta"); !ok {
		t.Fatalf("expected beta to resolve")
	}
	if _, ok := Resolve("GAMMA"); !ok {
		t.Fatalf("resolve should be case-insensitive")
	}

	list := List()
	if len(list) != 2 {
		t.Fatalf("list length mismatch: %d", len(list))
	}
	if list[0].Key != "beta" || list[1].Key != "gamma" {
		t.Fatalf("unexpected order: %+v", Keys())
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(testFamily("mnist")); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := Register(testFamily("mnist")); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
}

func TestResolveReturnsCopy(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	MustRegister(testFamily("copy"))
	f, _ := Resolve("copy")
	f.Files[0].Name = "mutated"
	f.Splits["test"] = Split{}

	again, _ := Resolve("copy")
	if again.Files[0].Name != "a.gz" {
		t.Fatalf("registry entry should not be mutated through resolved copy")
	}
	if _, ok := again.Splits["test"]; ok {
		t.Fatalf("splits should not be shared with resolved copy")
	}
}

func TestFamilyValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Family)
	}{
		{"empty cache dir", func(f *Family) { f.CacheDir = "" }},
		{"bad hash", func(f *Family) { f.Files[0].SHA256 = "xyz" }},
		{"short hash", func(f *Family) { f.Files[0].SHA256 = "abcd" }},
		{"duplicate name", func(f *Family) { f.Files[1].Name = f.Files[0].Name }},
		{"name with path", func(f *Family) { f.Files[0].Name = "../a.gz" }},
		{"unknown split file", func(f *Family) { f.Splits["test"] = Split{Images: "a.gz", Labels: "missing.gz"} }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := testFamily("v").clone()
			tc.mutate(&f)
			if err := f.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := testFamily("ok").Validate(); err != nil {
		t.Fatalf("valid family rejected: %v", err)
	}
}

func TestDescriptorURLAndStem(t *testing.T) {
	d := Descriptor{Location: "https://host/path/", Name: "train-images-idx3-ubyte.gz", Query: "raw=true"}
	if got := d.URL(); got != "https://host/path/train-images-idx3-ubyte.gz?raw=true" {
		t.Fatalf("unexpected url %s", got)
	}
	if got := d.Stem(); got != "train-images-idx3-ubyte" {
		t.Fatalf("unexpected stem %s", got)
	}

	d.Query = ""
	if got := d.URL(); got != "https://host/path/train-images-idx3-ubyte.gz" {
		t.Fatalf("query separator should be omitted, got %s", got)
	}
	if got := (Descriptor{Name: "plain"}).Stem(); got != "plain" {
		t.Fatalf("stem without extension should be unchanged, got %s", got)
	}
}

func TestWithLocationAndCacheDir(t *testing.T) {
	base := MNIST()
	mirrored := base.WithLocation("http://mirror.local/mnist").WithCacheDir("mnist-mirror")

	for _, d := range mirrored.Files {
		if d.Location != "http://mirror.local/mnist/" {
			t.Fatalf("location not overridden: %s", d.Location)
		}
	}
	if mirrored.CacheDir != "mnist-mirror" {
		t.Fatalf("cache dir not overridden: %s", mirrored.CacheDir)
	}
	if base.Files[0].Location == mirrored.Files[0].Location {
		t.Fatalf("original family should be untouched")
	}
}

func TestBuiltinMNISTRegistered(t *testing.T) {
	f, ok := Resolve(MNISTKey)
	if !ok {
		t.Fatalf("mnist should be registered by init")
	}
	if got := f.SplitNames(); len(got) != 2 || got[0] != "test" || got[1] != "train" {
		t.Fatalf("unexpected splits %v", got)
	}
	files, err := f.SplitFiles("TRAIN")
	if err != nil {
		t.Fatalf("split files: %v", err)
	}
	if files[0].Name != "train-images-idx3-ubyte.gz" || files[1].Name != "train-labels-idx1-ubyte.gz" {
		t.Fatalf("unexpected split order: %v", files)
	}
}
