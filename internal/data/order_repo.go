package data

import (
	"context"
	"errors"
	"time"

	"access-service/internal/biz"
	"access-service/internal/constants"
	"access-service/internal/data/model"
	accessErrors "access-service/internal/errors"

	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errDuplicatePaypalOrderID = errors.New("paypal order id already exists")

// orderRepo 订单数据访问
type orderRepo struct {
	data *Data
	log  *log.Helper
}

// NewOrderRepo 创建订单 repo（返回 biz.OrderRepo 接口）
func NewOrderRepo(data *Data, logger log.Logger) biz.OrderRepo {
	return &orderRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Insert 写入新订单
func (r *orderRepo) Insert(ctx context.Context, order *biz.Order) error {
	m := toOrderModel(order)
	// 仅订单号冲突视为重复，PayPal 订单号冲突照常报错
	result := r.data.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "order_id"}}, DoNothing: true}).
		Create(m)
	if result.Error != nil {
		r.log.Errorf("Insert order failed: order_id=%s, paypal_order_id=%s, error=%v", order.OrderID, order.RemoteOrderID, result.Error)
		return pkgErrors.WrapErrorWithLang(ctx, result.Error, accessErrors.ErrCodeOrderCreateFailed)
	}
	if result.RowsAffected == 0 {
		return r.duplicateError(ctx, order)
	}
	return nil
}

// duplicateError 区分冲突的唯一键；MySQL 的 ON DUPLICATE KEY 不限定冲突列
func (r *orderRepo) duplicateError(ctx context.Context, order *biz.Order) error {
	var count int64
	if err := r.data.db.WithContext(ctx).Model(&model.Order{}).Where("order_id = ?", order.OrderID).Count(&count).Error; err != nil {
		return pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeOrderCreateFailed)
	}
	if count > 0 {
		return biz.ErrDuplicateOrderID
	}
	r.log.Errorf("Insert order failed: paypal_order_id=%s already stored", order.RemoteOrderID)
	return pkgErrors.WrapErrorWithLang(ctx, errDuplicatePaypalOrderID, accessErrors.ErrCodeOrderCreateFailed)
}

// GetByLocalID 按本地订单号查询
func (r *orderRepo) GetByLocalID(ctx context.Context, orderID string) (*biz.Order, error) {
	var m model.Order
	if err := r.data.db.WithContext(ctx).Where("order_id = ?", orderID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, biz.ErrOrderNotFound
		}
		r.log.Errorf("GetByLocalID failed: order_id=%s, error=%v", orderID, err)
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeOrderGetFailed)
	}
	return toOrderBiz(&m), nil
}

// CompareAndSetDelivered 条件更新（乐观锁）：WHERE status = expectedStatus，影响行数为 0 表示已被其他请求处理
func (r *orderRepo) CompareAndSetDelivered(ctx context.Context, orderID, expectedStatus, code string, expiresAt time.Time) (bool, error) {
	result := r.data.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_id = ? AND status = ?", orderID, expectedStatus).
		Updates(map[string]interface{}{
			"status":       constants.OrderStatusDelivered,
			"code":         code,
			"expires_at":   expiresAt.UTC(),
			"delivered_at": time.Now().UTC(),
		})
	if result.Error != nil {
		r.log.Errorf("CompareAndSetDelivered failed: order_id=%s, error=%v", orderID, result.Error)
		return false, pkgErrors.WrapErrorWithLang(ctx, result.Error, accessErrors.ErrCodeOrderUpdateFailed)
	}
	return result.RowsAffected == 1, nil
}

// LatestDelivered 查询买家最近一次发码的订单，按发码时间而非到期时间排序
func (r *orderRepo) LatestDelivered(ctx context.Context, recipientID string) (*biz.Order, error) {
	var m model.Order
	err := r.data.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, constants.OrderStatusDelivered).
		Order("delivered_at DESC").
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, biz.ErrOrderNotFound
		}
		r.log.Errorf("LatestDelivered failed: recipient_id=%s, error=%v", recipientID, err)
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeOrderGetFailed)
	}
	return toOrderBiz(&m), nil
}

// ListStale 查询指定状态且创建时间早于 before 的订单，按创建时间升序
func (r *orderRepo) ListStale(ctx context.Context, status string, before time.Time, limit int) ([]*biz.Order, error) {
	var models []model.Order
	q := r.data.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, before.UTC()).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		r.log.Errorf("ListStale failed: status=%s, error=%v", status, err)
		return nil, pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeOrderListFailed)
	}
	out := make([]*biz.Order, 0, len(models))
	for i := range models {
		out = append(out, toOrderBiz(&models[i]))
	}
	return out, nil
}

func toOrderModel(o *biz.Order) *model.Order {
	m := &model.Order{
		OrderID:       o.OrderID,
		PaypalOrderID: o.RemoteOrderID,
		RecipientID:   o.RecipientID,
		Plan:          o.Plan,
		Amount:        o.Amount,
		Currency:      o.Currency,
		Status:        o.Status,
		ExpiresAt:     o.ExpiresAt,
		DeliveredAt:   o.DeliveredAt,
		CreatedAt:     o.CreatedAt,
	}
	if m.Status == "" {
		m.Status = model.OrderStatusCreated
	}
	if o.RedemptionCode != "" {
		code := o.RedemptionCode
		m.Code = &code
	}
	return m
}

func toOrderBiz(m *model.Order) *biz.Order {
	o := &biz.Order{
		OrderID:       m.OrderID,
		RemoteOrderID: m.PaypalOrderID,
		RecipientID:   m.RecipientID,
		Plan:          m.Plan,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Status:        m.Status,
		CreatedAt:     m.CreatedAt,
	}
	if m.Code != nil {
		o.RedemptionCode = *m.Code
	}
	if m.ExpiresAt != nil {
		exp := m.ExpiresAt.UTC()
		o.ExpiresAt = &exp
	}
	if m.DeliveredAt != nil {
		at := m.DeliveredAt.UTC()
		o.DeliveredAt = &at
	}
	return o
}
