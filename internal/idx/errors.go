package idx

import "fmt"

// FormatError 表示魔数无法识别、头部截断或声明维度与负载长度不一致。
type FormatError struct {
	Magic  uint32
	Reason string
}

func (e *FormatError) Error() string {
	if e.Magic != 0 {
		return fmt.Sprintf("idx format error (magic %d): %s", e.Magic, e.Reason)
	}
	return "idx format error: " + e.Reason
}
