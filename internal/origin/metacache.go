package origin

import "sync"

// MetaCache 按 id 永久缓存源站元数据。命中路径优先读它，避免对已缓存
// 制品重复查询源站；并发写入采取 last-write-wins，内容按 id 确定，
// 任何一次写入的值都是等价的。
type MetaCache struct {
	items sync.Map // id -> *AudioItem
}

// Get 返回 id 对应的缓存元数据。
func (c *MetaCache) Get(id string) (*AudioItem, bool) {
	value, ok := c.items.Load(id)
	if !ok {
		return nil, false
	}
	item, ok := value.(*AudioItem)
	return item, ok
}

// Put 记录 id 的元数据，覆盖旧值。
func (c *MetaCache) Put(id string, item *AudioItem) {
	if item == nil {
		return
	}
	c.items.Store(id, item)
}
