// Package sizecache 永久记忆每个 id 的字节长度。条目只写一次、从不失效；
// 并发写入采取 last-write-wins，长度由 id 唯一确定，任何写入值都等价。
package sizecache

import "sync"

// Cache 是进程级共享的 id → 字节数记忆表。
type Cache struct {
	sizes sync.Map // id -> int64
}

// Get 返回 id 已记忆的字节数。
func (c *Cache) Get(id string) (int64, bool) {
	value, ok := c.sizes.Load(id)
	if !ok {
		return 0, false
	}
	size, ok := value.(int64)
	return size, ok
}

// Put 记忆 id 的字节数。
func (c *Cache) Put(id string, size int64) {
	c.sizes.Store(id, size)
}
