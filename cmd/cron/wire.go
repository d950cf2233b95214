//go:build wireinject
// +build wireinject

package main

import (
	"access-service/internal/biz"
	"access-service/internal/conf"
	"access-service/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// CronApp Cron 应用结构
type CronApp struct {
	sweepUseCase *biz.OrderSweepUseCase
}

// wireApp 初始化应用
func wireApp(*conf.Bootstrap, log.Logger) (*CronApp, func(), error) {
	panic(wire.Build(
		// Data 层：巡检只需要订单存储与 Redis 锁
		data.NewDB,
		data.NewRedis,
		data.NewRedsync,
		data.NewData,
		data.NewOrderRepo,

		// Biz 层
		biz.NewShopConfig,
		biz.NewOrderSweepUseCase,

		// App 结构
		wire.Struct(new(CronApp), "*"),
	))
}
