package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	"github.com/taoyao-code/omnik-bridge/internal/api"
	cfgpkg "github.com/taoyao-code/omnik-bridge/internal/config"
	"github.com/taoyao-code/omnik-bridge/internal/health"
	"github.com/taoyao-code/omnik-bridge/internal/httpserver"
	"github.com/taoyao-code/omnik-bridge/internal/logging"
	"github.com/taoyao-code/omnik-bridge/internal/metrics"
	"github.com/taoyao-code/omnik-bridge/internal/omnik"
)

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load(os.Getenv("OMNIK_CONFIG"))
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	// 3) 指标注册与处理器
	reg := metrics.NewRegistry()
	metricsHandler := metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}
	appm := metrics.NewAppMetrics(reg)

	// 4) 逆变器客户端
	client := omnik.New(cfg.Inverter, logger, appm)
	log.Info("inverter client ready",
		zap.String("host", cfg.Inverter.Host),
		zap.String("source", cfg.Inverter.Source))

	// 5) 健康检查
	agg := health.NewAggregator(health.NewInverterChecker(cfg.Inverter))
	readyFn := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return agg.Ready(ctx)
	}

	// 6) HTTP 服务
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler,
		readyFn,
		func(r *gin.Engine) {
			api.RegisterRoutes(r, client, cfg.Auth, logger)
			health.RegisterHTTPRoutes(r, agg)
		})

	go func() {
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()
	log.Info("http server started", zap.String("addr", cfg.HTTP.Addr))

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}
