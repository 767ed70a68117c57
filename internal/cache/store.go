package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const partialPrefix = ".partial-"

// Store 管理单个缓存目录 <baseDir>/<dirName>。零值不可用，请使用 NewStore。
type Store struct {
	baseDir string
	dirName string
	dir     string
}

// NewStore 以 baseDir 为根构建缓存目录描述；不会触碰文件系统。
func NewStore(baseDir, dirName string) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("base dir required")
	}
	if dirName == "" {
		return nil, errors.New("cache dir name required")
	}
	if err := checkName(dirName); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	return &Store{
		baseDir: abs,
		dirName: dirName,
		dir:     filepath.Join(abs, dirName),
	}, nil
}

// Dir 返回缓存目录的绝对路径。
func (s *Store) Dir() string {
	return s.dir
}

// Name 返回缓存目录名。
func (s *Store) Name() string {
	return s.dirName
}

// DirectoryExists 探测缓存目录是否存在且为目录。
func (s *Store) DirectoryExists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

// FileExists 探测缓存目录下的常规文件是否存在，目录不算命中。
func (s *Store) FileExists(name string) bool {
	if checkName(name) != nil {
		return false
	}
	info, err := os.Stat(s.ResolvePath(name))
	return err == nil && info.Mode().IsRegular()
}

// ResolvePath 纯函数地拼接缓存目录与文件名。
func (s *Store) ResolvePath(name string) string {
	return filepath.Join(s.dir, name)
}

// Status 依据原始名与去扩展名后的名字判定文件状态。
func (s *Store) Status(name, stem string) Status {
	if s.FileExists(name) {
		return CachedRaw
	}
	if stem != "" && stem != name && s.FileExists(stem) {
		return CachedDecoded
	}
	return Missing
}

// EnsureDirectory 在缺失时创建缓存目录；目录已存在视为成功，可并发调用。
func (s *Store) EnsureDirectory() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) && s.DirectoryExists() {
			return nil
		}
		return ioErr("mkdir", s.dir, err)
	}
	return nil
}

// WriteFile 通过临时文件 + rename 原子地写入 name，失败时清理临时文件。
// 返回写入的字节数。
func (s *Store) WriteFile(ctx context.Context, name string, body io.Reader) (int64, error) {
	if err := checkName(name); err != nil {
		return 0, err
	}
	if !s.DirectoryExists() {
		return 0, ioErr("write", s.dir, ErrNotFound)
	}

	target := s.ResolvePath(name)
	tempFile, err := os.CreateTemp(s.dir, partialPrefix+"*")
	if err != nil {
		return 0, ioErr("create", target, err)
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return 0, err
		}
		return 0, ioErr("write", target, err)
	}

	if err := os.Rename(tempName, target); err != nil {
		os.Remove(tempName)
		return 0, ioErr("rename", target, err)
	}
	return written, nil
}

// Open 打开缓存文件用于读取，不存在时返回 ErrNotFound。
func (s *Store) Open(name string) (*os.File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	p := s.ResolvePath(name)
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return nil, ioErr("open", p, err)
	}
	return f, nil
}

// RemoveFile 删除缓存文件；目录或文件缺失时返回 ErrNotFound。
func (s *Store) RemoveFile(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if !s.DirectoryExists() {
		return fmt.Errorf("%s: %w", s.dir, ErrNotFound)
	}
	p := s.ResolvePath(name)
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", p, ErrNotFound)
		}
		return ioErr("remove", p, err)
	}
	return nil
}

// RemoveDirectory 删除整个缓存目录；目录缺失时返回 ErrNotFound。
func (s *Store) RemoveDirectory() error {
	if !s.DirectoryExists() {
		return fmt.Errorf("%s: %w", s.dir, ErrNotFound)
	}
	if err := os.RemoveAll(s.dir); err != nil {
		return ioErr("remove", s.dir, err)
	}
	return nil
}

// Sweep 清理崩溃遗留的临时文件，返回被删除的文件名。目录不存在时什么也不做。
func (s *Store) Sweep() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ioErr("readdir", s.dir, err)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), partialPrefix) {
			continue
		}
		p := s.ResolvePath(entry.Name())
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, ioErr("remove", p, err)
		}
		removed = append(removed, entry.Name())
	}
	return removed, nil
}

// Files 返回缓存目录中的常规文件名（不含临时文件），按名称排序。
func (s *Store) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.dir, ErrNotFound)
		}
		return nil, ioErr("readdir", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), partialPrefix) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid cache file name %q", name)
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
