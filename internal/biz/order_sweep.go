package biz

import (
	"context"
	"time"

	"access-service/internal/constants"
	"access-service/internal/metrics"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
)

const sweepLockExpiration = 5 * time.Minute

// SweepResult 巡检结果
type SweepResult struct {
	Skipped  bool     // 其他实例持有锁
	Count    int      // 滞留订单数
	OrderIDs []string // 滞留订单号（按创建时间升序）
}

// OrderSweepUseCase 巡检长时间未付款的订单，只读不改
type OrderSweepUseCase struct {
	repo    OrderRepo
	rs      *redsync.Redsync
	conf    *ShopConfig
	now     func() time.Time
	log     *log.Helper
	metrics *metrics.AccessMetrics
}

// NewOrderSweepUseCase 创建巡检 UseCase
func NewOrderSweepUseCase(repo OrderRepo, rs *redsync.Redsync, conf *ShopConfig, logger log.Logger) *OrderSweepUseCase {
	return &OrderSweepUseCase{
		repo:    repo,
		rs:      rs,
		conf:    conf,
		now:     time.Now,
		log:     log.NewHelper(logger),
		metrics: metrics.GetMetrics(),
	}
}

// SweepStaleOrders 统计超过 StaleAfter 仍为 CREATED 的订单
func (uc *OrderSweepUseCase) SweepStaleOrders(ctx context.Context) (*SweepResult, error) {
	// 多实例部署时只允许一个实例执行
	mutex := uc.rs.NewMutex(
		constants.RedisKeyOrderSweepLock,
		redsync.WithExpiry(sweepLockExpiration),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		uc.log.Infof("Skipping stale order sweep: lock busy (%v)", err)
		if uc.metrics != nil {
			uc.metrics.LockAcquireTotal.WithLabelValues(constants.ResultFailed).Inc()
		}
		return &SweepResult{Skipped: true}, nil
	}
	if uc.metrics != nil {
		uc.metrics.LockAcquireTotal.WithLabelValues(constants.ResultSuccess).Inc()
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			uc.log.Warnf("Failed to release sweep lock: %v", err)
		}
	}()

	before := uc.now().UTC().Add(-uc.conf.StaleAfter)
	orders, err := uc.repo.ListStale(ctx, constants.OrderStatusCreated, before, uc.conf.SweepLimit)
	if err != nil {
		uc.log.Errorf("ListStale failed: %v", err)
		return nil, err
	}

	result := &SweepResult{Count: len(orders), OrderIDs: make([]string, 0, len(orders))}
	for _, o := range orders {
		result.OrderIDs = append(result.OrderIDs, o.OrderID)
	}
	if uc.metrics != nil {
		uc.metrics.StaleOrders.Set(float64(result.Count))
	}
	return result, nil
}
