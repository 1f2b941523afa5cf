package storage

import (
	"context"
	"errors"
	"io"
)

// Kind 标识后端变体。进程启动时根据配置选择一次，之后不可变。
type Kind string

const (
	KindLocal Kind = "local"
	KindS3    Kind = "s3"
)

// ErrNotFound 表示制品不存在。
var ErrNotFound = errors.New("artifact not found")

// WriteOptions 携带交付所需的对象元数据。本地后端会忽略这些字段，
// 对象存储后端则把它们转换为 Content-Type/Content-Disposition/ACL/存储层级。
type WriteOptions struct {
	ContentType  string
	Filename     string
	ACL          string
	StorageClass string
}

// Backend 抽象制品存储的能力集。调用方只依赖该接口，从不感知具体变体；
// 写入须保证原子性：Close 返回 nil 之前制品不可见，失败时不留半成品。
type Backend interface {
	Kind() Kind
	Exists(ctx context.Context, name string) (bool, error)
	Size(ctx context.Context, name string) (int64, error)
	OpenRead(ctx context.Context, name string) (io.ReadCloser, error)
	OpenWrite(ctx context.Context, name string, opts WriteOptions) (io.WriteCloser, error)
	Remove(ctx context.Context, name string) error

	// PublicURL 返回制品的公网地址；本地后端没有公网地址，返回空串
	// （本地交付走 LinkPublisher 的别名路径）。
	PublicURL(name string) string
}
