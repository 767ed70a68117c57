package idx

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/idx-hub/idx-hub/internal/cache"
	"github.com/idx-hub/idx-hub/internal/registry"
)

// Open 从缓存读取描述对应的文件并解码；原始归档优先，其次为解压后的文件。
func Open(store *cache.Store, d registry.Descriptor) (*Dataset, error) {
	switch store.Status(d.Name, d.Stem()) {
	case cache.CachedRaw:
		f, err := store.Open(d.Name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		ds, err := Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Name, err)
		}
		return ds, nil
	case cache.CachedDecoded:
		f, err := store.Open(d.Stem())
		if err != nil {
			return nil, err
		}
		defer f.Close()
		ds, err := DecodeRaw(f)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Stem(), err)
		}
		return ds, nil
	default:
		return nil, fmt.Errorf("%s: %w", store.ResolvePath(d.Name), cache.ErrNotFound)
	}
}

// Extract 将缓存中的 gzip 归档解压为去扩展名的文件；已解压时直接返回。
// removeArchive 为 true 时，解压成功后删除原始归档。
func Extract(ctx context.Context, store *cache.Store, d registry.Descriptor, removeArchive bool) error {
	if d.Stem() == d.Name {
		return fmt.Errorf("extract %s: file has no archive extension", d.Name)
	}
	if store.Status(d.Name, d.Stem()) == cache.Missing {
		return fmt.Errorf("%s: %w", store.ResolvePath(d.Name), cache.ErrNotFound)
	}
	if !store.FileExists(d.Stem()) {
		f, err := store.Open(d.Name)
		if err != nil {
			return err
		}
		raw, err := decompress(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("extract %s: %w", d.Name, err)
		}
		if _, err := Parse(raw); err != nil {
			return fmt.Errorf("extract %s: %w", d.Name, err)
		}
		if _, err := store.WriteFile(ctx, d.Stem(), bytes.NewReader(raw)); err != nil {
			return err
		}
	}
	if removeArchive && store.FileExists(d.Name) {
		return store.RemoveFile(d.Name)
	}
	return nil
}

// decompress 将完整的 gzip 流读入内存。
func decompress(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("open gzip stream: %v", err)}
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("decompress: %v", err)}
	}
	return raw, nil
}
