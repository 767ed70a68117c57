package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FileFields 提供数据集/文件/缓存状态字段，供下载与解码日志复用。
func FileFields(cacheDir, file, status string) logrus.Fields {
	return logrus.Fields{
		"cache_dir": cacheDir,
		"file":      file,
		"status":    status,
	}
}
