package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"position-sync-go/config"
	"position-sync-go/gateway"
	"position-sync-go/logs"
	"position-sync-go/metrics"
	"position-sync-go/syncer"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	metricsAddr := flag.String("metricsAddr", "", "Prometheus metrics 监听地址，覆盖配置文件；留空则用配置")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger, err := logs.New(cfg.Logger)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = logger.Close() }()

	addr := cfg.MetricsAddr
	if *metricsAddr != "" {
		addr = *metricsAddr
	}
	if addr != "" {
		metrics.StartMetricsServer(addr)
		logger.Info("metrics server started", zap.String("addr", addr))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &gateway.RESTClient{
		BaseURL:        cfg.Gateway.BaseURL,
		APIKey:         cfg.Gateway.APIKey,
		SecretKey:      cfg.Gateway.SecretKey,
		HTTPClient:     gateway.NewDefaultHTTPClient(),
		Limiter:        gateway.NewTokenBucketLimiter(cfg.Gateway.RestRate, cfg.Gateway.RestBurst),
		DefaultTimeout: cfg.Sync.DefaultTimeout(),
	}

	ps, err := syncer.New(ctx, client, syncer.Config{
		SyncThreshold:  cfg.Sync.Threshold(),
		DefaultTimeout: cfg.Sync.DefaultTimeout(),
		Workers:        cfg.Sync.Workers,
		QueueSize:      cfg.Sync.QueueSize,
	}, logger)
	if err != nil {
		logger.Fatal("初始化持仓同步失败", zap.Error(err))
	}

	// 配置热更新：运行中调整不稳定窗口
	watcher, err := config.NewWatcher(*cfgPath, func(next config.AppConfig) {
		ps.SetSyncThreshold(next.Sync.Threshold())
		logger.Info("sync threshold reloaded",
			zap.Duration("threshold", next.Sync.Threshold()))
	})
	if err != nil {
		logger.Warn("配置热更新不可用", zap.Error(err))
	} else {
		watcher.OnError = func(err error) {
			logger.Warn("config reload failed", zap.Error(err))
		}
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("配置监听启动失败", zap.Error(err))
		}
		defer func() { _ = watcher.Stop() }()
	}

	// 回报推送通道：断线退避重连
	feed := gateway.NewDealFeed(cfg.Gateway.WSEndpoint)
	feed.OnSkip = func(raw []byte, err error) {
		logger.Warn("deal message skipped", zap.Error(err), zap.ByteString("raw", raw))
	}
	go runFeed(ctx, feed, client, logger)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("systemd notify failed", zap.Error(err))
	} else if sent {
		logger.Info("systemd ready notified")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	ps.Close() // 等待在途对账完成，避免半套用的修正
}

// runFeed 维持回报通道连接；断开后按指数退避重连。
func runFeed(ctx context.Context, feed *gateway.DealFeed, client *gateway.RESTClient, logger *logs.Logger) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		err := feed.Run(ctx, client.Dispatch)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("deal feed disconnected, reconnecting",
			zap.Error(err), zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
