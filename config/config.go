// Package config 提供 go-asap 的统一配置
//
// 主 Config 嵌入各子配置，每个子配置在独立文件中定义：
//   - delivery.go: 投递队列（重试间隔、默认有效期、编解码器）
//   - link.go:     WebSocket 链路（拨号 / 监听）
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Delivery.RetryInterval = config.Duration(time.Second)
//
//	// 从 JSON 加载
//	cfg, err := config.LoadFile("asap.json")
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config 是 go-asap 的完整配置结构
type Config struct {
	// Delivery 投递队列配置
	Delivery DeliveryConfig `json:"delivery"`

	// Link 链路配置
	Link LinkConfig `json:"link"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Delivery: DefaultDeliveryConfig(),
		Link:     DefaultLinkConfig(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Delivery.Validate(); err != nil {
		return fmt.Errorf("delivery: %w", err)
	}
	if err := c.Link.Validate(); err != nil {
		return fmt.Errorf("link: %w", err)
	}
	return nil
}

// Clone 返回配置的深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "delivery": {"retry_interval": "2500ms", "codec": "proto"},
//	  "link": {"mode": "dial", "url": "ws://127.0.0.1:7777/asap"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置并验证
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ToJSON 将配置序列化为缩进 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
