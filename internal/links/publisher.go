// Package links 维护强制下载用的公开别名：linkRoot/<散列目录>/<展示名>
// 的符号链接指向规范制品。别名一旦存在即被信任复用，不做目标再校验。
package links

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Publisher 负责别名的惰性创建与复用。创建失败是致命错误：
// 强制下载没有备用交付路径。
type Publisher struct {
	root string
}

// NewPublisher 以 root 为别名根目录构造 Publisher，目录不存在时创建。
func NewPublisher(root string) (*Publisher, error) {
	if root == "" {
		return nil, errors.New("links path required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve links path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create links path: %w", err)
	}

	return &Publisher{root: abs}, nil
}

// Publish 确保 hashFolder/displayName 别名存在并指向 targetPath，
// 返回对外暴露的 web 路径。重复调用幂等：已有别名直接复用。
func (p *Publisher) Publish(hashFolder, displayName, targetPath string) (string, error) {
	if err := checkComponent(hashFolder); err != nil {
		return "", err
	}
	if err := checkComponent(displayName); err != nil {
		return "", err
	}

	dir := filepath.Join(p.root, hashFolder)
	alias := filepath.Join(dir, displayName)

	if _, err := os.Lstat(alias); err == nil {
		return p.webPath(hashFolder, displayName), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat alias: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create alias folder: %w", err)
	}

	if err := os.Symlink(targetPath, alias); err != nil {
		// 并发创建时以先到者为准。
		if errors.Is(err, fs.ErrExist) {
			return p.webPath(hashFolder, displayName), nil
		}
		return "", fmt.Errorf("create alias: %w", err)
	}

	return p.webPath(hashFolder, displayName), nil
}

// FilePath 返回别名在文件系统上的绝对路径，供 web 层直接送出文件。
func (p *Publisher) FilePath(hashFolder, displayName string) (string, error) {
	if err := checkComponent(hashFolder); err != nil {
		return "", err
	}
	if err := checkComponent(displayName); err != nil {
		return "", err
	}
	return filepath.Join(p.root, hashFolder, displayName), nil
}

func (p *Publisher) webPath(hashFolder, displayName string) string {
	return "/links/" + url.PathEscape(hashFolder) + "/" + url.PathEscape(displayName)
}

func checkComponent(part string) error {
	if part == "" || part == "." || part == ".." || strings.ContainsAny(part, "/\\") {
		return fmt.Errorf("invalid alias component: %q", part)
	}
	return nil
}
