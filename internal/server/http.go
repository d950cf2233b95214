package server

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"

	"access-service/internal/conf"
	accessErrors "access-service/internal/errors"
	"access-service/internal/service"

	"github.com/gaoyong06/go-pkg/health"
	"github.com/gaoyong06/go-pkg/middleware/i18n"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "access-service"

// HTTP 接口的 operation 名称，供中间件识别
const (
	OperationCreateOrder   = "/access.v1.Order/CreateOrder"
	OperationPayPalWebhook = "/access.v1.Order/PayPalWebhook"
)

// webhook 请求体上限
const maxWebhookBodyBytes = 1 << 20

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(c *conf.Bootstrap, orderService *service.OrderService) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			// 添加 i18n 中间件
			i18n.Middleware(),
		),
		http.ErrorEncoder(customErrorEncoder),
	}
	if c.Server != nil {
		if c.Server.Http.Network != "" {
			opts = append(opts, http.Network(c.Server.Http.Network))
		}
		if c.Server.Http.Addr != "" {
			opts = append(opts, http.Address(c.Server.Http.Addr))
		}
		if c.Server.Http.Timeout != "" {
			opts = append(opts, http.Timeout(conf.ParseDuration(c.Server.Http.Timeout, 0)))
		}
	}
	srv := http.NewServer(opts...)

	// 注册业务路由
	r := srv.Route("/")
	r.GET("/", textHandler(service.HomeText))
	r.POST("/create-order", createOrderHandler(orderService))
	r.POST("/paypal/webhook", paypalWebhookHandler(orderService))
	r.GET("/paypal/return", textHandler(service.ReturnText))
	r.GET("/paypal/cancel", textHandler(service.CancelText))

	// 注册健康检查端点
	r.GET("/health", func(ctx http.Context) error {
		return ctx.Result(200, health.NewResponse(serviceName))
	})

	// Prometheus 指标
	srv.Handle("/metrics", promhttp.Handler())

	return srv
}

func textHandler(text string) http.HandlerFunc {
	return func(ctx http.Context) error {
		return ctx.String(stdhttp.StatusOK, text)
	}
}

func createOrderHandler(s *service.OrderService) http.HandlerFunc {
	return func(ctx http.Context) error {
		var in service.CreateOrderRequest
		if err := ctx.Bind(&in); err != nil {
			return accessErrors.InvalidRequest("invalid request body").WithCause(err)
		}
		http.SetOperation(ctx, OperationCreateOrder)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return s.CreateOrder(ctx, req.(*service.CreateOrderRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(stdhttp.StatusOK, out)
	}
}

// paypalWebhookHandler 签名校验失败返回 400，其余情况一律 200 空响应
func paypalWebhookHandler(s *service.OrderService) http.HandlerFunc {
	return func(ctx http.Context) error {
		req := ctx.Request()
		body, err := io.ReadAll(io.LimitReader(req.Body, maxWebhookBodyBytes))
		if err != nil {
			return accessErrors.InvalidRequest("unreadable webhook body").WithCause(err)
		}
		http.SetOperation(ctx, OperationPayPalWebhook)
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return nil, s.HandleWebhook(ctx, body, req.Header)
		})
		if _, err := h(ctx, body); err != nil {
			if accessErrors.IsVerificationFailed(err) {
				return ctx.String(stdhttp.StatusBadRequest, "invalid webhook signature")
			}
			return err
		}
		ctx.Response().WriteHeader(stdhttp.StatusOK)
		return nil
	}
}

func customErrorEncoder(w stdhttp.ResponseWriter, r *stdhttp.Request, err error) {
	se := kerrors.FromError(err)
	status := stdhttp.StatusInternalServerError
	response := map[string]interface{}{
		"code":  status,
		"error": "internal server error",
	}

	if se != nil {
		status = mapErrorStatus(int(se.Code))
		response["code"] = se.Code
		response["reason"] = se.Reason
		response["error"] = se.Message
		if len(se.Metadata) > 0 {
			response["metadata"] = se.Metadata
		}
	} else if err != nil {
		response["error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

func mapErrorStatus(code int) int {
	if code >= 100 && code < 600 {
		return code
	}
	return stdhttp.StatusInternalServerError
}
