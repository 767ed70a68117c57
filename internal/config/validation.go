package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/idx-hub/idx-hub/internal/registry"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入下载流程。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if strings.TrimSpace(g.BaseDir) == "" {
		return newFieldError("Global.BaseDir", "不能为空")
	}
	if g.BatchSize <= 0 {
		return newFieldError("Global.BatchSize", "必须大于 0")
	}
	if g.MaxConcurrentDownloads < 0 {
		return newFieldError("Global.MaxConcurrentDownloads", "不能为负数")
	}
	if g.DownloadTimeout.DurationValue() < 0 {
		return newFieldError("Global.DownloadTimeout", "不能为负数")
	}
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}

	seen := map[string]struct{}{}
	for i := range c.Datasets {
		ds := &c.Datasets[i]
		name := strings.ToLower(strings.TrimSpace(ds.Name))
		if name == "" {
			return newFieldError("Dataset[].Name", "不能为空")
		}
		if _, exists := seen[name]; exists {
			return newFieldError(datasetField(name, "Name"), "重复")
		}
		seen[name] = struct{}{}
		ds.Name = name

		if _, ok := registry.Resolve(name); !ok {
			return newFieldError(datasetField(name, "Name"), "仅支持 "+strings.Join(registry.Keys(), "|"))
		}
		if ds.CacheDir != "" && (strings.ContainsAny(ds.CacheDir, `/\`) || ds.CacheDir == "." || ds.CacheDir == "..") {
			return newFieldError(datasetField(name, "CacheDir"), "必须是单级目录名")
		}
		if ds.Mirror != "" {
			if err := validateMirror(ds.Mirror); err != nil {
				return fmt.Errorf("%s: %w", datasetField(name, "Mirror"), err)
			}
		}
	}

	return nil
}

func validateMirror(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，镜像: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("镜像缺少 Host: %s", raw)
	}
	return nil
}
