package fetch

import "fmt"

// TransportError 表示网络获取失败：连接错误、超时或非 2xx 状态码。
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IntegrityError 表示下载内容的 SHA-256 与描述不一致，文件不会写入缓存。
type IntegrityError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected sha256 %s, got %s", e.Name, e.Expected, e.Actual)
}
