package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCLIFlags(t *testing.T) {
	t.Setenv("AUDIO_HUB_CONFIG", "")

	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "config.toml" {
		t.Fatalf("default config path mismatch: %s", opts.configPath)
	}

	opts, err = parseCLIFlags([]string{"-config", "/etc/audio-hub.toml", "-check-config"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "/etc/audio-hub.toml" {
		t.Fatalf("config path mismatch: %s", opts.configPath)
	}
	if !opts.checkOnly {
		t.Fatalf("check-config flag lost")
	}

	if _, err := parseCLIFlags([]string{"-unknown"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}

func TestParseCLIFlagsEnvOverride(t *testing.T) {
	t.Setenv("AUDIO_HUB_CONFIG", "/opt/hub/config.toml")

	opts, err := parseCLIFlags(nil)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "/opt/hub/config.toml" {
		t.Fatalf("env config path mismatch: %s", opts.configPath)
	}

	// 显式标志优先于环境变量。
	opts, err = parseCLIFlags([]string{"-config", "/etc/flag.toml"})
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if opts.configPath != "/etc/flag.toml" {
		t.Fatalf("flag must win over env: %s", opts.configPath)
	}
}

func TestRunShowVersion(t *testing.T) {
	restore := captureOutput(t)
	defer restore()

	var buf bytes.Buffer
	stdOut = &buf

	if code := run(cliOptions{showVersion: true}); code != 0 {
		t.Fatalf("version exit code: %d", code)
	}
	if !strings.Contains(buf.String(), "audio-hub") {
		t.Fatalf("version output mismatch: %s", buf.String())
	}
}

func TestRunCheckConfig(t *testing.T) {
	restore := captureOutput(t)
	defer restore()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[Storage]
StoragePath = "` + filepath.Join(dir, "storage") + `"
LinksPath = "` + filepath.Join(dir, "links") + `"

[Origin]
BaseURL = "https://origin.example.com"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config error: %v", err)
	}

	if code := run(cliOptions{configPath: path, checkOnly: true}); code != 0 {
		t.Fatalf("check-config exit code: %d", code)
	}
}

func TestRunMissingConfig(t *testing.T) {
	restore := captureOutput(t)
	defer restore()

	code := run(cliOptions{configPath: filepath.Join(t.TempDir(), "nope.toml")})
	if code != 1 {
		t.Fatalf("missing config exit code: %d", code)
	}
}

// captureOutput 把进程级输出句柄替换为丢弃实现，测试结束后还原。
func captureOutput(t *testing.T) func() {
	t.Helper()
	prevOut, prevErr := stdOut, stdErr
	stdOut = io.Discard
	stdErr = io.Discard
	return func() {
		stdOut = prevOut
		stdErr = prevErr
	}
}
