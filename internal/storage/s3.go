package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/audio-hub/audio-hub/internal/config"
)

// 包装 SDK 构造函数，便于测试替换。
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// objectAPI 是 S3 后端依赖的最小客户端能力集，测试中可注入假实现。
type objectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// NewS3 构建对象存储后端。Endpoint 非空时启用自定义端点 + path-style，
// 以兼容 MinIO 等 S3 兼容实现。
func NewS3(ctx context.Context, cfg config.S3Config) (*S3, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{api: client, cfg: cfg}, nil
}

// S3 通过对象键（即制品文件名）直接寻址 bucket 中的对象。
// 客户端为进程级共享实例，底层 SDK 自身保证并发安全。
type S3 struct {
	api objectAPI
	cfg config.S3Config
}

func (b *S3) Kind() Kind { return KindS3 }

func (b *S3) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isObjectMissing(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (b *S3) Size(ctx context.Context, name string) (int64, error) {
	out, err := b.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isObjectMissing(err) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (b *S3) OpenRead(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := b.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isObjectMissing(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

// OpenWrite 先把正文暂存到本地临时文件，Close 时一次性 PutObject，
// 保证对象要么完整可见要么不存在。
func (b *S3) OpenWrite(ctx context.Context, name string, opts WriteOptions) (io.WriteCloser, error) {
	tempFile, err := os.CreateTemp("", ".upload-*")
	if err != nil {
		return nil, err
	}
	return &objectWriter{
		backend: b,
		ctx:     ctx,
		file:    tempFile,
		name:    name,
		opts:    opts,
	}, nil
}

func (b *S3) Remove(ctx context.Context, name string) error {
	_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(name),
	})
	return err
}

// PublicURL 优先使用 CDN 覆盖地址，否则按 region/bucket 模板拼装。
func (b *S3) PublicURL(name string) string {
	if base := strings.TrimSpace(b.cfg.CDNBase); base != "" {
		return strings.TrimRight(base, "/") + "/" + name
	}

	url := b.cfg.URLTemplate
	url = strings.ReplaceAll(url, "{bucket}", b.cfg.Bucket)
	url = strings.ReplaceAll(url, "{region}", b.cfg.Region)
	url = strings.ReplaceAll(url, "{name}", name)
	return url
}

func (b *S3) putObject(ctx context.Context, name string, body io.Reader, size int64, opts WriteOptions) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(b.cfg.Bucket),
		Key:           aws.String(name),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if opts.ContentType != "" {
		in.ContentType = aws.String(opts.ContentType)
	}
	if opts.Filename != "" {
		in.ContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", opts.Filename))
	}
	if opts.ACL != "" {
		in.ACL = types.ObjectCannedACL(opts.ACL)
	}
	if opts.StorageClass != "" {
		in.StorageClass = types.StorageClass(opts.StorageClass)
	}

	_, err := b.api.PutObject(ctx, in)
	return err
}

// objectWriter 把写入内容暂存到临时文件，Close 时上传并清理。
type objectWriter struct {
	backend *S3
	ctx     context.Context
	file    *os.File
	name    string
	opts    WriteOptions
	closed  bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	defer os.Remove(w.file.Name())

	info, err := w.file.Stat()
	if err != nil {
		w.file.Close()
		return err
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		w.file.Close()
		return err
	}

	err = w.backend.putObject(w.ctx, w.name, w.file, info.Size(), w.opts)
	closeErr := w.file.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// Abort 丢弃暂存数据，不触发上传。
func (w *objectWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	return os.Remove(w.file.Name())
}

// isObjectMissing 识别 HeadObject/GetObject 的对象不存在错误。
func isObjectMissing(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	return errors.As(err, &notFound) || errors.As(err, &noSuchKey)
}
