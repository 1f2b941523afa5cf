package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFullConfig(t *testing.T) {
	path := writeConfigFile(t, `
ListenPort = 8080
LogLevel = "debug"

[Storage]
Driver = "local"
StoragePath = "./data"
LinksPath = "./aliases"
HashAlgo = "sha1"

[Fetch]
ConnectTimeout = "5s"
ExecTimeout = 120
ProxyEnable = true
ProxyHost = "proxy.internal"
ProxyPort = 3128
ProxyUser = "u"
ProxyPassword = "p"

[Encoder]
BinaryPath = "/usr/bin/lame"
Bitrates = [64, 128]

[Encoder.Profiles]
"64" = "-b 64 --silent"
"128" = "-b 128 --silent"

[Origin]
BaseURL = "https://origin.example.com"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if cfg.Global.ListenPort != 8080 {
		t.Fatalf("listen port mismatch: %d", cfg.Global.ListenPort)
	}
	if cfg.Global.LogLevel != "debug" {
		t.Fatalf("log level mismatch: %s", cfg.Global.LogLevel)
	}
	if cfg.Storage.Driver != DriverLocal {
		t.Fatalf("driver mismatch: %s", cfg.Storage.Driver)
	}
	if !filepath.IsAbs(cfg.Storage.StoragePath) || !filepath.IsAbs(cfg.Storage.LinksPath) {
		t.Fatalf("storage paths must be absolute after load")
	}
	if cfg.Fetch.ConnectTimeout.DurationValue() != 5*time.Second {
		t.Fatalf("connect timeout mismatch: %v", cfg.Fetch.ConnectTimeout.DurationValue())
	}
	// 整数秒写法也要能解析。
	if cfg.Fetch.ExecTimeout.DurationValue() != 120*time.Second {
		t.Fatalf("exec timeout mismatch: %v", cfg.Fetch.ExecTimeout.DurationValue())
	}
	if !cfg.Fetch.HasProxy() {
		t.Fatalf("proxy should be enabled")
	}
	if got := cfg.Fetch.ProxyURL().String(); got != "http://u:p@proxy.internal:3128" {
		t.Fatalf("proxy url mismatch: %s", got)
	}
	if profile, ok := cfg.Encoder.ProfileFor(128); !ok || profile != "-b 128 --silent" {
		t.Fatalf("profile lookup failed: %q %v", profile, ok)
	}
	if _, ok := cfg.Encoder.ProfileFor(96); ok {
		t.Fatalf("unlisted bitrate must not resolve a profile")
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[Origin]
BaseURL = "https://origin.example.com"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}

	if cfg.Global.ListenPort != 5000 {
		t.Fatalf("default listen port mismatch: %d", cfg.Global.ListenPort)
	}
	if cfg.Storage.Driver != DriverLocal {
		t.Fatalf("default driver mismatch: %s", cfg.Storage.Driver)
	}
	if cfg.Storage.HashAlgo != "md5" {
		t.Fatalf("default hash algo mismatch: %s", cfg.Storage.HashAlgo)
	}
	if cfg.Fetch.ConnectTimeout.DurationValue() != 3*time.Second {
		t.Fatalf("default connect timeout mismatch: %v", cfg.Fetch.ConnectTimeout.DurationValue())
	}
	if cfg.Fetch.ExecTimeout.DurationValue() != 60*time.Second {
		t.Fatalf("default exec timeout mismatch: %v", cfg.Fetch.ExecTimeout.DurationValue())
	}
	if cfg.Tag.Comment != "audio-hub" {
		t.Fatalf("default tag comment mismatch: %s", cfg.Tag.Comment)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad port", func(c *Config) { c.Global.ListenPort = 70000 }, "Global.ListenPort"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "ftp" }, "Storage.Driver"},
		{"missing links path", func(c *Config) { c.Storage.LinksPath = "" }, "Storage.LinksPath"},
		{"bad hash algo", func(c *Config) { c.Storage.HashAlgo = "crc32" }, "Storage.HashAlgo"},
		{"proxy without host", func(c *Config) { c.Fetch.ProxyEnable = true; c.Fetch.ProxyHost = "" }, "Fetch.ProxyHost"},
		{"bitrate without profile", func(c *Config) {
			c.Encoder.Bitrates = []int{96}
			c.Encoder.Profiles = nil
		}, "Encoder.Profiles"},
		{"missing origin", func(c *Config) { c.Origin.BaseURL = "" }, "Origin.BaseURL"},
		{"s3 without bucket", func(c *Config) { c.Storage.Driver = DriverS3; c.S3.Bucket = "" }, "S3.Bucket"},
	}

	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(cfg)

		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}

		var fieldErr *FieldError
		if !errors.As(err, &fieldErr) {
			t.Fatalf("%s: expected FieldError, got %T", tc.name, err)
		}
		if fieldErr.Field != tc.field {
			t.Fatalf("%s: field mismatch: %s", tc.name, fieldErr.Field)
		}
	}
}

func TestValidateAcceptsS3Driver(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Driver = DriverS3
	cfg.Storage.LinksPath = ""
	cfg.S3.Bucket = "audio"
	cfg.S3.Region = "eu-central-1"
	cfg.S3.URLTemplate = "https://{bucket}.s3.{region}.amazonaws.com/{name}"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate error: %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{ListenPort: 5000},
		Storage: StorageConfig{
			Driver:      DriverLocal,
			StoragePath: "./storage",
			LinksPath:   "./links",
			HashAlgo:    "md5",
		},
		Fetch: FetchConfig{
			ConnectTimeout: Duration(3 * time.Second),
			ExecTimeout:    Duration(60 * time.Second),
		},
		Origin: OriginConfig{BaseURL: "https://origin.example.com"},
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}
