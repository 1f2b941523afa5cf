package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
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

// 存储后端驱动取值。进程启动时选择一次，之后不可变。
const (
	DriverLocal = "local"
	DriverS3    = "s3"
)

// GlobalConfig 描述进程级运行参数（监听端口与日志输出）。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// StorageConfig 决定制品的落盘根目录、公开链接目录与命名散列算法。
// StoragePath 在 s3 驱动下同时充当本地工作目录（编码器与标签写入需要本地 I/O）。
type StorageConfig struct {
	Driver      string `mapstructure:"Driver"`
	StoragePath string `mapstructure:"StoragePath"`
	LinksPath   string `mapstructure:"LinksPath"`
	HashAlgo    string `mapstructure:"HashAlgo"`
}

// FetchConfig 控制回源下载与探测的超时及代理策略。
type FetchConfig struct {
	ConnectTimeout Duration `mapstructure:"ConnectTimeout"`
	ExecTimeout    Duration `mapstructure:"ExecTimeout"`
	ProxyEnable    bool     `mapstructure:"ProxyEnable"`
	ProxyScheme    string   `mapstructure:"ProxyScheme"`
	ProxyHost      string   `mapstructure:"ProxyHost"`
	ProxyPort      int      `mapstructure:"ProxyPort"`
	ProxyUser      string   `mapstructure:"ProxyUser"`
	ProxyPassword  string   `mapstructure:"ProxyPassword"`
}

// HasProxy 表示当前配置是否允许通过代理回源。
func (f FetchConfig) HasProxy() bool {
	return f.ProxyEnable && f.ProxyHost != ""
}

// ProxyURL 拼装代理地址（含可选凭证）；未启用代理时返回 nil。
func (f FetchConfig) ProxyURL() *url.URL {
	if !f.HasProxy() {
		return nil
	}

	scheme := strings.TrimSpace(f.ProxyScheme)
	if scheme == "" {
		scheme = "http"
	}

	host := f.ProxyHost
	if f.ProxyPort > 0 {
		host = fmt.Sprintf("%s:%d", f.ProxyHost, f.ProxyPort)
	}

	u := &url.URL{Scheme: scheme, Host: host}
	if f.ProxyUser != "" {
		if f.ProxyPassword != "" {
			u.User = url.UserPassword(f.ProxyUser, f.ProxyPassword)
		} else {
			u.User = url.User(f.ProxyUser)
		}
	}
	return u
}

// EncoderConfig 描述外部编码器二进制与允许的码率档位。
// Profiles 的键是十进制码率字符串，值为传给编码器的参数串。
type EncoderConfig struct {
	BinaryPath string            `mapstructure:"BinaryPath"`
	Bitrates   []int             `mapstructure:"Bitrates"`
	Profiles   map[string]string `mapstructure:"Profiles"`
}

// Allowed 判断码率是否在配置的允许列表内；非正值恒为 false。
func (e EncoderConfig) Allowed(bitrate int) bool {
	if bitrate <= 0 {
		return false
	}
	for _, b := range e.Bitrates {
		if b == bitrate {
			return true
		}
	}
	return false
}

// ProfileFor 返回码率对应的编码参数；码率不在允许列表或无参数时返回 false。
func (e EncoderConfig) ProfileFor(bitrate int) (string, bool) {
	if !e.Allowed(bitrate) {
		return "", false
	}
	profile, ok := e.Profiles[strconv.Itoa(bitrate)]
	if !ok || strings.TrimSpace(profile) == "" {
		return "", false
	}
	return profile, true
}

// S3Config 描述对象存储后端、凭证及公网地址的拼装方式。
// CDNBase 优先于 URLTemplate；URLTemplate 支持 {bucket}/{region}/{name} 占位符。
type S3Config struct {
	Bucket       string `mapstructure:"Bucket"`
	Region       string `mapstructure:"Region"`
	Endpoint     string `mapstructure:"Endpoint"`
	AccessKey    string `mapstructure:"AccessKey"`
	SecretKey    string `mapstructure:"SecretKey"`
	URLTemplate  string `mapstructure:"URLTemplate"`
	CDNBase      string `mapstructure:"CDNBase"`
	ACL          string `mapstructure:"ACL"`
	StorageClass string `mapstructure:"StorageClass"`
}

// TagConfig 控制写入音频标签的附加评论文本。
type TagConfig struct {
	Comment string `mapstructure:"Comment"`
}

// OriginConfig 指向解析 (key, id) 的源站查询服务。
type OriginConfig struct {
	BaseURL string `mapstructure:"BaseURL"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Storage StorageConfig `mapstructure:"Storage"`
	Fetch   FetchConfig   `mapstructure:"Fetch"`
	Encoder EncoderConfig `mapstructure:"Encoder"`
	S3      S3Config      `mapstructure:"S3"`
	Tag     TagConfig     `mapstructure:"Tag"`
	Origin  OriginConfig  `mapstructure:"Origin"`
}
