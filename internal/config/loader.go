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

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absStorage, err := filepath.Abs(cfg.Storage.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析存储目录: %w", err)
	}
	cfg.Storage.StoragePath = absStorage

	absLinks, err := filepath.Abs(cfg.Storage.LinksPath)
	if err != nil {
		return nil, fmt.Errorf("无法解析链接目录: %w", err)
	}
	cfg.Storage.LinksPath = absLinks

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Storage.Driver", DriverLocal)
	v.SetDefault("Storage.StoragePath", "./storage")
	v.SetDefault("Storage.LinksPath", "./links")
	v.SetDefault("Storage.HashAlgo", "md5")
	v.SetDefault("Fetch.ConnectTimeout", "3s")
	v.SetDefault("Fetch.ExecTimeout", "60s")
	v.SetDefault("Fetch.ProxyScheme", "http")
	v.SetDefault("Encoder.BinaryPath", "lame")
	v.SetDefault("S3.URLTemplate", "https://{bucket}.s3.{region}.amazonaws.com/{name}")
	v.SetDefault("Tag.Comment", "audio-hub")
}

func applyDefaults(cfg *Config) {
	if cfg.Global.ListenPort == 0 {
		cfg.Global.ListenPort = 5000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverLocal
	}
	if cfg.Storage.HashAlgo == "" {
		cfg.Storage.HashAlgo = "md5"
	}
	if cfg.Fetch.ConnectTimeout.DurationValue() == 0 {
		cfg.Fetch.ConnectTimeout = Duration(3 * time.Second)
	}
	if cfg.Fetch.ExecTimeout.DurationValue() == 0 {
		cfg.Fetch.ExecTimeout = Duration(60 * time.Second)
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
