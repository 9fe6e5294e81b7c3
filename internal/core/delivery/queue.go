// Package delivery 实现投递队列与按键替换策略
//
// Queue 是有序的待发送消息集合：
//   - 插入顺序即发送顺序（FIFO）
//   - 同一 MessageKey 最多一条（入队前移除旧条目）
//   - 只有队首会被发送
//
// Queue 不是并发安全的，由唯一的协调者（protocol/asap.Service）持有并加锁访问。
package delivery

import (
	"github.com/dep2p/go-asap/pkg/types"
)

// Queue 投递队列
type Queue struct {
	entries []*types.QueuedMessage
}

// NewQueue 创建空队列
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue 入队消息
//
// 先移除同键的所有旧条目（替换），再追加到队尾。
// 返回被替换的条目数，以及队列是否由空变为非空。
func (q *Queue) Enqueue(msg *types.QueuedMessage) (superseded int, becameNonEmpty bool) {
	superseded = q.RemoveByKey(msg.MessageKey)
	wasEmpty := len(q.entries) == 0
	q.entries = append(q.entries, msg)
	return superseded, wasEmpty
}

// RemoveByID 按 ID 移除条目
//
// 返回 false 表示未找到（迟到或重复的回执），不是错误。
func (q *Queue) RemoveByID(id string) bool {
	for i, e := range q.entries {
		if e.ID == id {
			q.removeAt(i)
			return true
		}
	}
	return false
}

// RemoveByKey 移除所有同键条目，返回移除数量
func (q *Queue) RemoveByKey(messageKey string) int {
	kept := q.entries[:0]
	removed := 0
	for _, e := range q.entries {
		if e.MessageKey == messageKey {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	// 释放尾部引用
	for i := len(kept); i < len(q.entries); i++ {
		q.entries[i] = nil
	}
	q.entries = kept
	return removed
}

// Head 返回队首条目
func (q *Queue) Head() (*types.QueuedMessage, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	return q.entries[0], true
}

// PopHead 移除并返回队首条目
func (q *Queue) PopHead() (*types.QueuedMessage, bool) {
	head, ok := q.Head()
	if ok {
		q.removeAt(0)
	}
	return head, ok
}

// Contains 队列中是否存在指定 ID
func (q *Queue) Contains(id string) bool {
	for _, e := range q.entries {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Len 队列长度
func (q *Queue) Len() int {
	return len(q.entries)
}

// Snapshot 返回队列条目的拷贝（按发送顺序）
func (q *Queue) Snapshot() []types.QueuedMessage {
	out := make([]types.QueuedMessage, len(q.entries))
	for i, e := range q.entries {
		out[i] = *e
	}
	return out
}

// Clear 清空队列，返回被丢弃的条目数
func (q *Queue) Clear() int {
	n := len(q.entries)
	q.entries = nil
	return n
}

func (q *Queue) removeAt(i int) {
	copy(q.entries[i:], q.entries[i+1:])
	q.entries[len(q.entries)-1] = nil
	q.entries = q.entries[:len(q.entries)-1]
}
