package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/idx-hub/idx-hub/internal/registry"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// GlobalConfig 描述全局运行时行为，所有数据集共享同一份参数。
type GlobalConfig struct {
	LogLevel               string   `mapstructure:"LogLevel"`
	LogFormat              string   `mapstructure:"LogFormat"`
	LogFilePath            string   `mapstructure:"LogFilePath"`
	LogMaxSize             int      `mapstructure:"LogMaxSize"`
	LogMaxBackups          int      `mapstructure:"LogMaxBackups"`
	LogCompress            bool     `mapstructure:"LogCompress"`
	BaseDir                string   `mapstructure:"BaseDir"`
	BatchSize              int      `mapstructure:"BatchSize"`
	Normalize              bool     `mapstructure:"Normalize"`
	KeepDecoded            bool     `mapstructure:"KeepDecoded"`
	MaxConcurrentDownloads int      `mapstructure:"MaxConcurrentDownloads"`
	DownloadTimeout        Duration `mapstructure:"DownloadTimeout"`
	ShowProgress           bool     `mapstructure:"ShowProgress"`
	ListenPort             int      `mapstructure:"ListenPort"`
}

// DatasetConfig 覆盖某个已注册数据集家族的镜像地址与缓存目录名。
type DatasetConfig struct {
	Name     string `mapstructure:"Name"`
	CacheDir string `mapstructure:"CacheDir"`
	Mirror   string `mapstructure:"Mirror"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig    `mapstructure:",squash"`
	Datasets []DatasetConfig `mapstructure:"Dataset"`
}

// Family 返回注册表中的家族，并应用 [[Dataset]] 中的覆盖项。
func (c *Config) Family(key string) (registry.Family, error) {
	family, ok := registry.Resolve(key)
	if !ok {
		return registry.Family{}, fmt.Errorf("未注册的数据集: %s", key)
	}
	if c == nil {
		return family, nil
	}
	for _, ds := range c.Datasets {
		if !strings.EqualFold(ds.Name, family.Key) {
			continue
		}
		family = family.WithLocation(ds.Mirror).WithCacheDir(ds.CacheDir)
	}
	return family, nil
}

// Families 返回所有已注册家族（已应用覆盖项），按键排序。
func (c *Config) Families() []registry.Family {
	keys := registry.Keys()
	out := make([]registry.Family, 0, len(keys))
	for _, key := range keys {
		if f, err := c.Family(key); err == nil {
			out = append(out, f)
		}
	}
	return out
}
