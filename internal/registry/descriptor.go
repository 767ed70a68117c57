package registry

import (
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// Descriptor 描述一个远端不可变归档文件，Name 即身份键。
type Descriptor struct {
	Location string `json:"location"`
	Name     string `json:"name"`
	SHA256   string `json:"sha256"`
	Query    string `json:"query,omitempty"`
}

// URL 拼接 Location + Name，并在存在 Query 时追加 "?query"。
func (d Descriptor) URL() string {
	u := d.Location + d.Name
	if d.Query != "" {
		u += "?" + d.Query
	}
	return u
}

// Stem 返回去掉最后一个扩展名后的文件名，即解压后的文件名。
func (d Descriptor) Stem() string {
	ext := path.Ext(d.Name)
	if ext == "" || ext == d.Name {
		return d.Name
	}
	return strings.TrimSuffix(d.Name, ext)
}

// NormalizedHash 返回小写、去除空白的十六进制摘要。
func (d Descriptor) NormalizedHash() string {
	return strings.ToLower(strings.TrimSpace(d.SHA256))
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (sha256=%s)", d.URL(), d.NormalizedHash())
}

func (d Descriptor) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("descriptor name is required")
	}
	if strings.ContainsAny(d.Name, `/\`) || d.Name == "." || d.Name == ".." {
		return fmt.Errorf("descriptor %s: name must be a plain file name", d.Name)
	}
	if d.Location == "" {
		return fmt.Errorf("descriptor %s: location is required", d.Name)
	}
	raw, err := hex.DecodeString(d.NormalizedHash())
	if err != nil || len(raw) != 32 {
		return fmt.Errorf("descriptor %s: sha256 must be 64 hex characters", d.Name)
	}
	return nil
}
