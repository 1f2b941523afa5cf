package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// NewLocal 以 root 为根目录构建本地文件系统后端，整个进程复用一份实例。
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &Local{root: abs}, nil
}

// Local 把制品直接落在 root 目录下。写入通过临时文件 + rename 保证原子性，
// 失败时清理临时文件，绝不让半成品出现在规范路径上。
type Local struct {
	root string
}

func (l *Local) Kind() Kind { return KindLocal }

// Root 返回后端根目录的绝对路径。
func (l *Local) Root() string { return l.root }

// FilePath 返回制品在文件系统上的绝对路径，供编码器/标签写入等本地 I/O 使用。
func (l *Local) FilePath(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", fmt.Errorf("invalid artifact name: %q", name)
	}
	return filepath.Join(l.root, name), nil
}

func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	path, err := l.FilePath(name)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func (l *Local) Size(ctx context.Context, name string) (int64, error) {
	path, err := l.FilePath(name)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if info.IsDir() {
		return 0, ErrNotFound
	}
	return info.Size(), nil
}

func (l *Local) OpenRead(ctx context.Context, name string) (io.ReadCloser, error) {
	path, err := l.FilePath(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// OpenWrite 返回的 WriteCloser 在 Close 成功后才把制品 rename 到规范路径。
// opts 中的对象元数据对文件系统没有意义，直接忽略。
func (l *Local) OpenWrite(ctx context.Context, name string, opts WriteOptions) (io.WriteCloser, error) {
	path, err := l.FilePath(name)
	if err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(l.root, ".artifact-*")
	if err != nil {
		return nil, err
	}

	return &atomicWriter{file: tempFile, dest: path}, nil
}

func (l *Local) Remove(ctx context.Context, name string) error {
	path, err := l.FilePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// PublicURL 对本地后端没有意义，交付走 LinkPublisher。
func (l *Local) PublicURL(name string) string { return "" }

// atomicWriter 先写临时文件，Close 时 rename 到目标路径；
// Abort（或 Close 失败）则删除临时文件。
type atomicWriter struct {
	file   *os.File
	dest   string
	closed bool
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *atomicWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return err
	}
	if err := os.Rename(w.file.Name(), w.dest); err != nil {
		os.Remove(w.file.Name())
		return err
	}
	return nil
}

// Abort 丢弃已写入的数据，用于下载中途失败时的清理。
func (w *atomicWriter) Abort() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.file.Close()
	return os.Remove(w.file.Name())
}

// Aborter 由支持放弃写入的 WriteCloser 实现；调用方在传输失败时应优先
// 调用 Abort 而不是 Close，避免把残缺数据提交到规范路径。
type Aborter interface {
	Abort() error
}
