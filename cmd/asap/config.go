package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dep2p/go-asap/config"
)

// 环境变量名
const (
	envPrefix = "ASAP_"
	envCodec  = "CODEC"
	envDial   = "DIAL"
	envListen = "LISTEN"
)

// ============================================================================
//                              配置加载（CLI 专用）
// ============================================================================

// buildConfig 构建配置
//
// 配置优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量（ASAP_* 前缀）
//  3. 配置文件
//  4. 默认值
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	applyEnvOverrides(cfg, os.Getenv)

	if isFlagSet("listen") && isFlagSet("dial") {
		return nil, errors.New("-listen 与 -dial 只能指定一个")
	}
	if isFlagSet("listen") {
		cfg.Link.Mode = config.LinkModeListen
		cfg.Link.ListenAddr = *listenAddr
	}
	if isFlagSet("dial") {
		cfg.Link.Mode = config.LinkModeDial
		cfg.Link.URL = *dialURL
	}
	if isFlagSet("codec") {
		cfg.Delivery.Codec = *codecName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖配置
//
// 支持的环境变量：
//   - ASAP_CODEC:  帧编解码器
//   - ASAP_DIAL:   拨号地址（切换到拨号模式）
//   - ASAP_LISTEN: 监听地址（切换到监听模式，优先于 ASAP_DIAL）
func applyEnvOverrides(cfg *config.Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(envPrefix + envCodec)); v != "" {
		cfg.Delivery.Codec = v
	}
	if v := strings.TrimSpace(getenv(envPrefix + envDial)); v != "" {
		cfg.Link.Mode = config.LinkModeDial
		cfg.Link.URL = v
	}
	if v := strings.TrimSpace(getenv(envPrefix + envListen)); v != "" {
		cfg.Link.Mode = config.LinkModeListen
		cfg.Link.ListenAddr = v
	}
}

// ============================================================================
//                              输入解析
// ============================================================================

// parseLine 解析一行输入 `<key> [json]`
//
// 空行与 # 开头的行返回 ok=false。payload 省略时为 nil。
func parseLine(line string) (key string, payload any, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil, false, nil
	}

	key, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return key, nil, true, nil
	}
	if err := json.Unmarshal([]byte(rest), &payload); err != nil {
		return "", nil, false, fmt.Errorf("payload of %q is not valid JSON: %w", key, err)
	}
	return key, payload, true, nil
}
