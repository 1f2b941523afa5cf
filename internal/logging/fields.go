package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 key/id/码率等字段，供音频请求日志复用。
func RequestFields(key, id string, bitrate int, stream, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"key":       key,
		"id":        id,
		"bitrate":   bitrate,
		"stream":    stream,
		"cache_hit": cacheHit,
	}
}
