package config

import (
	"errors"
	"strconv"
	"strings"
)

var supportedHashAlgos = map[string]struct{}{
	"md5":    {},
	"sha1":   {},
	"sha256": {},
}

const supportedHashAlgoList = "md5|sha1|sha256"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}

	s := c.Storage
	if s.StoragePath == "" {
		return newFieldError("Storage.StoragePath", "不能为空")
	}
	if s.Driver != DriverLocal && s.Driver != DriverS3 {
		return newFieldError("Storage.Driver", "仅支持 local|s3")
	}
	if s.Driver == DriverLocal && s.LinksPath == "" {
		return newFieldError("Storage.LinksPath", "local 驱动下不能为空")
	}
	if _, ok := supportedHashAlgos[strings.ToLower(s.HashAlgo)]; !ok {
		return newFieldError("Storage.HashAlgo", "仅支持 "+supportedHashAlgoList)
	}

	f := c.Fetch
	if f.ConnectTimeout.DurationValue() <= 0 {
		return newFieldError("Fetch.ConnectTimeout", "必须大于 0")
	}
	if f.ExecTimeout.DurationValue() <= 0 {
		return newFieldError("Fetch.ExecTimeout", "必须大于 0")
	}
	if f.ProxyEnable && f.ProxyHost == "" {
		return newFieldError("Fetch.ProxyHost", "启用代理时不能为空")
	}
	if f.ProxyPort < 0 || f.ProxyPort > 65535 {
		return newFieldError("Fetch.ProxyPort", "必须在 0-65535")
	}

	e := c.Encoder
	for _, bitrate := range e.Bitrates {
		if bitrate <= 0 {
			return newFieldError("Encoder.Bitrates", "码率必须为正整数")
		}
		if _, ok := e.Profiles[strconv.Itoa(bitrate)]; !ok {
			return newFieldError("Encoder.Profiles", "缺少码率 "+strconv.Itoa(bitrate)+" 对应的编码参数")
		}
	}
	if len(e.Bitrates) > 0 && strings.TrimSpace(e.BinaryPath) == "" {
		return newFieldError("Encoder.BinaryPath", "配置了码率档位时不能为空")
	}

	if strings.TrimSpace(c.Origin.BaseURL) == "" {
		return newFieldError("Origin.BaseURL", "不能为空")
	}

	if s.Driver == DriverS3 {
		if c.S3.Bucket == "" {
			return newFieldError("S3.Bucket", "s3 驱动下不能为空")
		}
		if c.S3.Region == "" && c.S3.Endpoint == "" {
			return newFieldError("S3.Region", "Region 与 Endpoint 至少配置一项")
		}
		if c.S3.CDNBase == "" && c.S3.URLTemplate == "" {
			return newFieldError("S3.URLTemplate", "CDNBase 与 URLTemplate 至少配置一项")
		}
	}

	return nil
}
