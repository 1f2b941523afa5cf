package pathing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Ext 是所有音频制品统一使用的扩展名。
const Ext = ".mp3"

// Resolver 把 id 映射为确定性的制品文件名。纯函数、无副作用，
// 可并发调用，且跨进程稳定：同一 id 在任何进程中恒得到同一名字。
type Resolver struct {
	sum func(string) string
}

// NewResolver 根据配置的散列算法构造 Resolver，算法不受支持时返回错误。
func NewResolver(algo string) (*Resolver, error) {
	switch strings.ToLower(strings.TrimSpace(algo)) {
	case "md5":
		return &Resolver{sum: func(id string) string {
			digest := md5.Sum([]byte(id))
			return hex.EncodeToString(digest[:])
		}}, nil
	case "sha1":
		return &Resolver{sum: func(id string) string {
			digest := sha1.Sum([]byte(id))
			return hex.EncodeToString(digest[:])
		}}, nil
	case "sha256":
		return &Resolver{sum: func(id string) string {
			digest := sha256.Sum256([]byte(id))
			return hex.EncodeToString(digest[:])
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algo: %s", algo)
	}
}

// CanonicalName 返回未转码制品的规范文件名：hex(hash(id)) + 扩展名。
func (r *Resolver) CanonicalName(id string) string {
	return r.sum(id) + Ext
}

// HashFolder 返回公开链接使用的散列目录名，即规范文件名去掉扩展名的部分。
func (r *Resolver) HashFolder(id string) string {
	return r.sum(id)
}

// Names 聚合一次请求用到的基础名与变体名，避免多返回值在调用点丢失语义。
type Names struct {
	Name        string
	VariantName string
}

// Names 计算 id 在指定码率下的文件名组合；bitrate <= 0 时变体名等于基础名。
func (r *Resolver) Names(id string, bitrate int) Names {
	name := r.CanonicalName(id)
	return Names{
		Name:        name,
		VariantName: VariantName(name, bitrate),
	}
}

// VariantName 在扩展名前插入 _<bitrate> 后缀；bitrate <= 0 时原样返回。
func VariantName(name string, bitrate int) string {
	if bitrate <= 0 {
		return name
	}
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[:idx] + "_" + strconv.Itoa(bitrate) + name[idx:]
	}
	return name + "_" + strconv.Itoa(bitrate)
}
