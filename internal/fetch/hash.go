package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
)

// digest 计算 r 的 SHA-256 十六进制摘要。
func digest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sameHash(expected, actual string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(actual))
}
