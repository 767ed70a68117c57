package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absBase, err := filepath.Abs(cfg.Global.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存根目录: %w", err)
	}
	cfg.Global.BaseDir = absBase

	return &cfg, nil
}

// Default 返回不依赖配置文件的默认配置，BaseDir 为当前目录。
func Default() *Config {
	cfg := &Config{Global: GlobalConfig{
		LogLevel:      "info",
		LogMaxSize:    100,
		LogMaxBackups: 10,
		LogCompress:   true,
		BaseDir:       ".",
		BatchSize:     100,
		Normalize:     true,
		ListenPort:    5080,
	}}
	applyGlobalDefaults(&cfg.Global)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFormat", "json")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("BaseDir", ".")
	v.SetDefault("BatchSize", 100)
	v.SetDefault("Normalize", true)
	v.SetDefault("KeepDecoded", false)
	v.SetDefault("MaxConcurrentDownloads", 4)
	v.SetDefault("DownloadTimeout", "5m")
	v.SetDefault("ShowProgress", false)
	v.SetDefault("ListenPort", 5080)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.MaxConcurrentDownloads == 0 {
		g.MaxConcurrentDownloads = 4
	}
	if g.DownloadTimeout.DurationValue() == 0 {
		g.DownloadTimeout = Duration(5 * time.Minute)
	}
	if g.ListenPort == 0 {
		g.ListenPort = 5080
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
