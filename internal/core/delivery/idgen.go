package delivery

import (
	"github.com/google/uuid"
)

// IDSeparator 消息 ID 中键与随机部分的分隔符
const IDSeparator = "_"

// IDGenerator 为指定键生成全局唯一的消息 ID
type IDGenerator func(messageKey string) string

// UUIDGenerator 默认 ID 生成器："<messageKey>_<uuid>"
func UUIDGenerator(messageKey string) string {
	return messageKey + IDSeparator + uuid.NewString()
}
