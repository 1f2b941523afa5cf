// Package transcode 负责按码率档位产出制品变体。转码是尽力而为的：
// 任何一步失败都只是“跳过”，调用方回退到未转码的基础制品。
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/audio-hub/audio-hub/internal/config"
	"github.com/audio-hub/audio-hub/internal/pathing"
	"github.com/audio-hub/audio-hub/internal/storage"
)

// Result 显式区分“完成转码”与“跳过转码”。跳过不是错误，
// 只表示调用方应继续使用基础制品。
type Result struct {
	Performed bool
	Name      string
}

var skipped = Result{}

// Runner 抽象外部编码器的一次同步调用，退出码非零视为失败。
type Runner interface {
	Run(ctx context.Context, profile, inputPath, outputPath string) error
}

// ExecRunner 调用配置的编码器二进制。进程没有超时约束：
// 编码会阻塞当前请求直到退出（沿用既有行为，见 DESIGN.md）。
type ExecRunner struct {
	binary string
}

// NewExecRunner 构造编码器调用器。
func NewExecRunner(binary string) *ExecRunner {
	return &ExecRunner{binary: binary}
}

// Run 以 <profile 参数...> <input> <output> 的形式同步执行编码器。
func (r *ExecRunner) Run(ctx context.Context, profile, inputPath, outputPath string) error {
	args := append(strings.Fields(profile), inputPath, outputPath)
	cmd := exec.Command(r.binary, args...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("encoder failed: %w (%s)", err, bytes.TrimSpace(output))
	}
	return nil
}

// Transcoder 把本地工作目录中的基础制品编码为码率变体；对象后端下
// 还负责基础制品的按需拉取与变体回传。
type Transcoder struct {
	encoder config.EncoderConfig
	backend storage.Backend
	local   *storage.Local
	runner  Runner
	logger  *logrus.Logger
}

// New 构造 Transcoder。local 是保证本地可达的工作存储，编码器只认本地路径。
func New(encoder config.EncoderConfig, backend storage.Backend, local *storage.Local, runner Runner, logger *logrus.Logger) *Transcoder {
	return &Transcoder{
		encoder: encoder,
		backend: backend,
		local:   local,
		runner:  runner,
		logger:  logger,
	}
}

// Convert 产出 baseName 在 bitrate 档位下的变体。幂等：本地已有变体时
// 直接复用，不会重复调用编码器。opts 用于对象后端的变体回传，
// 与基础制品上传使用同一套交付元数据。
func (t *Transcoder) Convert(ctx context.Context, baseName string, bitrate int, opts storage.WriteOptions) Result {
	profile, ok := t.encoder.ProfileFor(bitrate)
	if !ok {
		return skipped
	}

	variantName := pathing.VariantName(baseName, bitrate)
	fields := logrus.Fields{
		"action":  "transcode",
		"base":    baseName,
		"bitrate": bitrate,
	}

	basePath, err := t.local.FilePath(baseName)
	if err != nil {
		t.logger.WithFields(fields).WithError(err).Warn("基础制品路径非法，跳过转码")
		return skipped
	}

	// 对象后端下基础制品可能只存在于远端，先拉到本地工作目录。
	if haveBase, _ := t.local.Exists(ctx, baseName); !haveBase {
		if t.backend.Kind() != storage.KindS3 {
			t.logger.WithFields(fields).Warn("基础制品缺失，跳过转码")
			return skipped
		}
		if err := t.copyDown(ctx, baseName); err != nil {
			t.logger.WithFields(fields).WithError(err).Warn("拉取基础制品失败，跳过转码")
			return skipped
		}
	}

	variantPath, err := t.local.FilePath(variantName)
	if err != nil {
		t.logger.WithFields(fields).WithError(err).Warn("变体路径非法，跳过转码")
		return skipped
	}

	if haveVariant, _ := t.local.Exists(ctx, variantName); !haveVariant {
		if err := t.runner.Run(ctx, profile, basePath, variantPath); err != nil {
			os.Remove(variantPath)
			t.logger.WithFields(fields).WithError(err).Warn("编码失败，回退基础制品")
			return skipped
		}
	}

	if t.backend.Kind() == storage.KindS3 {
		if uploaded, _ := t.backend.Exists(ctx, variantName); !uploaded {
			if err := t.upload(ctx, variantName, opts); err != nil {
				t.logger.WithFields(fields).WithError(err).Warn("回传变体失败，回退基础制品")
				return skipped
			}
		}
	}

	return Result{Performed: true, Name: variantName}
}

// copyDown 把远端基础制品复制到本地工作目录。
func (t *Transcoder) copyDown(ctx context.Context, name string) error {
	src, err := t.backend.OpenRead(ctx, name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := t.local.OpenWrite(ctx, name, storage.WriteOptions{})
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		if aborter, ok := dst.(storage.Aborter); ok {
			aborter.Abort()
		}
		return err
	}
	return dst.Close()
}

// upload 把本地变体写回对象后端。
func (t *Transcoder) upload(ctx context.Context, name string, opts storage.WriteOptions) error {
	src, err := t.local.OpenRead(ctx, name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := t.backend.OpenWrite(ctx, name, opts)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		if aborter, ok := dst.(storage.Aborter); ok {
			aborter.Abort()
		}
		return err
	}
	return dst.Close()
}
