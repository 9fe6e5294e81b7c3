// Package main 提供 asap 命令行入口
//
// 通过 WebSocket 连接一个对端，将标准输入的每一行作为一条消息可靠投递，
// 并打印对端投递过来的消息。
//
// 输入格式：
//
//	<messageKey> [json-payload]
//
// 例如：
//
//	alarm {"t": 1}
//	status "online"
//	ping
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-asap"
	"github.com/dep2p/go-asap/config"
	"github.com/dep2p/go-asap/internal/core/link/websocket"
	"github.com/dep2p/go-asap/internal/util/logger"
	"github.com/dep2p/go-asap/pkg/lib/log"
	linkif "github.com/dep2p/go-asap/pkg/interfaces/link"
)

var cmdLogger = log.Logger("asap/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖 / 快速测试
//   JSON 配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 运行时参数
	// ─────────────────────────────────────────────────────────────────────
	configFile  = flag.String("config", "", "配置文件路径")
	listenAddr  = flag.String("listen", "", "以监听模式运行，接受对端的地址（如 :7777）")
	dialURL     = flag.String("dial", "", "以拨号模式运行，对端地址（如 ws://127.0.0.1:7777/asap）")
	codecName   = flag.String("codec", "", "帧编解码器 (json/proto/cbor)")
	ttl         = flag.Duration("ttl", 0, "消息有效期（0 = 配置的默认值）")
	metricsAddr = flag.String("metrics", "", "Prometheus 指标地址（如 :9090，空 = 关闭）")

	// ─────────────────────────────────────────────────────────────────────
	// 日志参数
	// ─────────────────────────────────────────────────────────────────────
	logFile = flag.String("log", "", "日志文件路径（空 = stderr）")
	verbose = flag.Bool("v", false, "输出调试日志")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	logFileHandle, err := setupLogging()
	if err != nil {
		return err
	}
	if logFileHandle != nil {
		defer func() { _ = logFileHandle.Close() }()
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Printf("📦 %s\n", asap.VersionInfo())
	cmdLogger.Info("启动 asap", "version", asap.Version, "mode", cfg.Link.Mode, "codec", cfg.Delivery.Codec)

	// ═══════════════════════════════════════════════════════════════════
	// 1. 链路
	// ═══════════════════════════════════════════════════════════════════
	link, server, err := openLink(cfg.Link)
	if err != nil {
		return fmt.Errorf("创建链路失败: %w", err)
	}
	if server != nil {
		defer shutdownServer(server)
	}

	// ═══════════════════════════════════════════════════════════════════
	// 2. 端点
	// ═══════════════════════════════════════════════════════════════════
	opts := []asap.Option{asap.WithConfig(cfg)}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, asap.WithRegisterer(reg))
		metricsServer := serveMetrics(*metricsAddr, reg)
		defer shutdownServer(metricsServer)
	}

	ep, err := asap.Start(ctx, link, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = ep.Close() }()

	ep.SetHandlerFunc(printInbound(os.Stdout))

	// ═══════════════════════════════════════════════════════════════════
	// 3. 标准输入 → 投递
	// ═══════════════════════════════════════════════════════════════════
	go readInput(ctx, os.Stdin, ep, *ttl)

	fmt.Println("已启动，每行输入 `<key> [json]` 发送一条消息，按 Ctrl+C 退出")
	<-ctx.Done()

	fmt.Println("\n正在关闭...")
	return nil
}

// openLink 按配置创建链路；监听模式额外返回承载它的 HTTP 服务
func openLink(cfg config.LinkConfig) (linkif.Link, *http.Server, error) {
	opts := websocket.FromConfig(cfg)

	switch cfg.Mode {
	case config.LinkModeDial:
		l, err := websocket.Dial(cfg.URL, opts...)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("🔗 拨号 %s\n", cfg.URL)
		return l, nil, nil

	case config.LinkModeListen:
		acceptor := websocket.NewAcceptor(opts...)
		mux := http.NewServeMux()
		mux.Handle(cfg.Path, acceptor)
		server := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.HandshakeTimeout.Duration(),
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cmdLogger.Error("HTTP 服务退出", "err", err)
			}
		}()
		fmt.Printf("🔗 监听 %s%s\n", cfg.ListenAddr, cfg.Path)
		return acceptor, server, nil

	default:
		return nil, nil, fmt.Errorf("unknown link mode %q", cfg.Mode)
	}
}

// serveMetrics 在 addr 上暴露 /metrics
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cmdLogger.Error("指标服务退出", "err", err)
		}
	}()
	fmt.Printf("📈 指标 http://%s/metrics\n", addr)
	return server
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		cmdLogger.Warn("关闭 HTTP 服务失败", "addr", server.Addr, "err", err)
	}
}

// sender 是 readInput 需要的端点能力
type sender interface {
	Send(messageKey string, payload any) error
	SendWithTimeout(messageKey string, payload any, timeout time.Duration) error
}

// readInput 逐行读取输入并投递，直到输入结束或 ctx 取消
func readInput(ctx context.Context, r io.Reader, ep sender, ttl time.Duration) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		key, payload, ok, err := parseLine(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "无效输入: %v\n", err)
			continue
		}
		if !ok {
			continue
		}

		if ttl > 0 {
			err = ep.SendWithTimeout(key, payload, ttl)
		} else {
			err = ep.Send(key, payload)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "发送失败: %v\n", err)
			continue
		}
		cmdLogger.Debug("已入队", "key", key)
	}
	if err := scanner.Err(); err != nil {
		cmdLogger.Warn("读取输入失败", "err", err)
	}
}

// printInbound 返回把入站消息打印到 w 的处理器
func printInbound(w io.Writer) func(string, any) error {
	return func(key string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "← %s %s\n", key, data)
		return err
	}
}

// setupLogging 设置日志输出
func setupLogging() (*os.File, error) {
	level := log.LevelInfo
	if *verbose {
		level = log.LevelDebug
		logger.SetGlobalLevel(log.LevelDebug)
	}

	if *logFile == "" {
		log.SetOutputWithLevel(os.Stderr, level)
		return nil, nil
	}

	file, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	log.SetOutputWithLevel(file, level)
	logger.SetOutput(file)
	return file, nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("asap %s\n", asap.Version)
	if asap.GitCommit != "" {
		fmt.Printf("  commit: %s\n", asap.GitCommit)
	}
	if asap.BuildDate != "" {
		fmt.Printf("  built:  %s\n", asap.BuildDate)
	}
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("asap - 单飞可靠投递")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  asap -listen :7777              # 等待对端连接")
	fmt.Println("  asap -dial ws://host:7777/asap  # 连接对端")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  ASAP_CODEC, ASAP_DIAL, ASAP_LISTEN   # 低于命令行参数，高于配置文件")
	fmt.Println("  ASAP_LOG_LEVEL, ASAP_LOG_FORMAT      # 子系统日志级别与格式")
}
