package data

import (
	"context"
	"encoding/json"

	"access-service/internal/biz"
	"access-service/internal/conf"
	"access-service/internal/constants"
	accessErrors "access-service/internal/errors"
	"access-service/internal/metrics"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// 发码事件的消息 tag
const orderDeliveredTag = "ORDER_DELIVERED"

// orderEventPublisher 通过 RocketMQ 发布发码事件（实现 biz.OrderEventPublisher）
type orderEventPublisher struct {
	p       rocketmq.Producer
	topic   string
	log     *log.Helper
	metrics *metrics.AccessMetrics
	enabled bool
}

// NewOrderEventPublisher 创建发码事件发布器，未启用 RocketMQ 时发布为空操作
func NewOrderEventPublisher(c *conf.Bootstrap, logger log.Logger) (biz.OrderEventPublisher, func(), error) {
	helper := log.NewHelper(logger)
	pub := &orderEventPublisher{log: helper, metrics: metrics.GetMetrics()}
	if c.Data == nil || c.Data.Rocketmq == nil || !c.Data.Rocketmq.Enabled {
		helper.Info("rocketmq is disabled, order events will not be published")
		return pub, func() {}, nil
	}
	mq := c.Data.Rocketmq

	p, err := rocketmq.NewProducer(
		producer.WithNsResolver(primitive.NewPassthroughResolver(mq.NameServers)),
		producer.WithGroupName(mq.GroupName),
		producer.WithRetry(mq.RetryTimes),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := p.Start(); err != nil {
		return nil, nil, err
	}

	pub.p = p
	pub.topic = mq.Topic
	pub.enabled = true

	cleanup := func() {
		if err := p.Shutdown(); err != nil {
			helper.Errorf("failed to shutdown rocketmq producer: %v", err)
		}
	}
	return pub, cleanup, nil
}

// PublishOrderDelivered 同步发送发码事件，消息 key 为本地订单号
func (p *orderEventPublisher) PublishOrderDelivered(ctx context.Context, event *biz.OrderDeliveredEvent) error {
	if !p.enabled || p.p == nil {
		p.observe(constants.ResultSkipped)
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.observe(constants.ResultFailed)
		return pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeEventPublishFailed)
	}

	msg := primitive.NewMessage(p.topic, body).WithTag(orderDeliveredTag).WithKeys([]string{event.OrderID})
	res, err := p.p.SendSync(ctx, msg)
	if err != nil {
		p.observe(constants.ResultFailed)
		p.log.Errorf("publish order delivered failed: order_id=%s, error=%v", event.OrderID, err)
		return pkgErrors.WrapErrorWithLang(ctx, err, accessErrors.ErrCodeEventPublishFailed)
	}
	if res.Status != primitive.SendOK {
		p.observe(constants.ResultFailed)
		p.log.Warnf("publish order delivered not ok: order_id=%s, status=%d", event.OrderID, res.Status)
		return pkgErrors.NewBizErrorWithLang(ctx, accessErrors.ErrCodeEventPublishFailed)
	}

	p.observe(constants.ResultSuccess)
	p.log.Infof("order delivered event published: order_id=%s, msg_id=%s", event.OrderID, res.MsgID)
	return nil
}

func (p *orderEventPublisher) observe(result string) {
	if p.metrics != nil {
		p.metrics.EventPublishTotal.WithLabelValues(result).Inc()
	}
}
