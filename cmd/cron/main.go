package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"access-service/internal/conf"

	"github.com/gaoyong06/go-pkg/logger"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

// 默认每 10 分钟巡检一次
const defaultSweepSpec = "0 */10 * * * *"

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			env.NewSource(),
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	// 初始化日志 (使用 go-pkg/logger)
	loggerInstance := logger.NewLogger(bc.Log.LoggerConfig("logs/access-cron.log"))

	// 添加基本字段
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "access-cron",
	)

	logHelper := log.NewHelper(loggerInstance)

	// 初始化应用
	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	spec := defaultSweepSpec
	if bc.Cron != nil && bc.Cron.SweepSpec != "" {
		spec = bc.Cron.SweepSpec
	}

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 滞留订单巡检
	_, err = cronScheduler.AddFunc(spec, func() {
		logHelper.Info("[CRON] Starting stale order sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		result, err := app.sweepUseCase.SweepStaleOrders(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error sweeping stale orders: %v", err)
			return
		}
		if result.Skipped {
			logHelper.Info("[CRON] Stale order sweep skipped, another instance holds the lock")
			return
		}
		logHelper.Infof("[CRON] Stale order sweep completed: count=%d", result.Count)
		if len(result.OrderIDs) > 0 && len(result.OrderIDs) <= 10 {
			logHelper.Infof("[CRON] Stale orders: %v", result.OrderIDs)
		} else if len(result.OrderIDs) > 10 {
			logHelper.Infof("[CRON] Stale orders (first 10): %v", result.OrderIDs[:10])
		}
	})
	if err != nil {
		logHelper.Errorf("Failed to add stale order sweep job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Infof("  - Stale order sweep: %s", spec)
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	// 停止定时任务
	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}
