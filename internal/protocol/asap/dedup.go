package asap

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// dedupCache 最近已分发的入站消息 ID
//
// 重发的投递帧不再分发给处理器，但仍会回执。size <= 0 时关闭。
type dedupCache struct {
	ids *lru.Cache[string, struct{}]
}

func newDedupCache(size int) (*dedupCache, error) {
	if size <= 0 {
		return &dedupCache{}, nil
	}
	ids, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &dedupCache{ids: ids}, nil
}

// seen 记录 id，返回它之前是否已出现过
func (c *dedupCache) seen(id string) bool {
	if c.ids == nil {
		return false
	}
	found, _ := c.ids.ContainsOrAdd(id, struct{}{})
	return found
}
