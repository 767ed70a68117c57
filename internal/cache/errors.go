package cache

import (
	"errors"
	"fmt"
)

// ErrNotFound 表示缓存目录或文件不存在。
var ErrNotFound = errors.New("cache entry not found")

// IOError 包装本地文件系统失败（权限、磁盘已满等），保留操作与路径。
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}
