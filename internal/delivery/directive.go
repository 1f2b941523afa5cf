package delivery

import "errors"

// Kind 描述交付指令的种类，由外层 web 层翻译为协议响应。
type Kind int

const (
	// KindStream 重定向到本地流式路径（/files/<name>）。
	KindStream Kind = iota
	// KindAlias 重定向到公开别名路径（/links/<folder>/<name>）。
	KindAlias
	// KindRemote 重定向到对象存储的公网地址。
	KindRemote
)

// Directive 是缓存管线的最终产物：一个可重定向的交付目标。
type Directive struct {
	Kind   Kind
	Target string
}

// 组件之间只传递粗粒度的成败结果，详细诊断就地记录日志；
// 这两个错误在边界层分别翻译为 404 与 500。
var (
	ErrNotFound = errors.New("audio not found")
	ErrInternal = errors.New("delivery construction failed")
)
