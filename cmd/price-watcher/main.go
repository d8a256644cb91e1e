package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pipbot/gopip/internal/anchor"
	"github.com/pipbot/gopip/internal/domain"
	"github.com/pipbot/gopip/internal/pricefeed"
	"github.com/pipbot/gopip/pkg/config"
	"github.com/pipbot/gopip/pkg/logger"
)

// price-watcher：只读行情观察器
// 不下单、不通知，按轮询间隔把每个品种的快照打到控制台
func main() {
	var (
		configPath = flag.String("config", "yml/config.yaml", "配置文件路径")
		interval   = flag.Duration("interval", 2*time.Second, "刷新间隔")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	log := logrus.WithField("component", "price-watcher")

	bridge, err := pricefeed.NewBridge(pricefeed.BridgeConfig{
		BaseURL: cfg.Pricefeed.BaseURL,
		Token:   os.Getenv(cfg.Pricefeed.TokenEnv),
	})
	if err != nil {
		log.Fatalf("初始化行情桥接失败: %v", err)
	}

	anchors, err := anchor.NewStore(anchor.Config{
		ServerTZ:     cfg.Anchor.ServerTZ,
		AnchorHour:   cfg.Anchor.Hour,
		AnchorMinute: cfg.Anchor.Minute,
	}, bridge)
	if err != nil {
		log.Fatalf("初始化锚点存储失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-sigC:
			log.Info("退出")
			return
		case now := <-ticker.C:
			for _, sc := range cfg.Symbols {
				printSnapshot(ctx, log, bridge, anchors, sc, now)
			}
		}
	}
}

func printSnapshot(ctx context.Context, log *logrus.Entry, src pricefeed.Source, anchors *anchor.Store, sc domain.SymbolConfig, now time.Time) {
	tick, err := src.CurrentPrice(ctx, sc.Symbol)
	if err != nil {
		log.Warnf("[%s] 取价失败: %v", sc.Symbol, err)
		return
	}
	cur, ok := tick.Mid()
	if !ok {
		log.Warnf("[%s] 无可用报价", sc.Symbol)
		return
	}
	a, err := anchors.Resolve(ctx, sc.Symbol, now)
	if err != nil {
		log.Warnf("[%s] 锚点解析失败: %v", sc.Symbol, err)
		return
	}
	high, low, err := src.ExtremesSince(ctx, sc.Symbol, a.AnchorTime)
	if err != nil {
		high, low = cur, cur
	}
	snap := domain.BuildSnapshot(sc, a.StartPrice, cur, high, low)
	log.Info(snap.Summary())
}
