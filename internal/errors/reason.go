package errors

import (
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

// 业务错误原因，随 HTTP 错误响应返回给调用方
const (
	ReasonInvalidRequest     = "INVALID_REQUEST"
	ReasonGatewayUnavailable = "GATEWAY_UNAVAILABLE"
	ReasonVerificationFailed = "VERIFICATION_FAILED"
	ReasonNotificationFailed = "NOTIFICATION_FAILED"
	ReasonOrderNotFound      = "ORDER_NOT_FOUND"
	ReasonDuplicateOrderID   = "DUPLICATE_ORDER_ID"
)

// InvalidRequest 请求参数非法（400），在任何外部调用之前返回
func InvalidRequest(format string, args ...interface{}) *kerrors.Error {
	return kerrors.BadRequest(ReasonInvalidRequest, fmt.Sprintf(format, args...))
}

// GatewayUnavailable 支付网关不可用或未返回付款链接（503）
func GatewayUnavailable(format string, args ...interface{}) *kerrors.Error {
	return kerrors.ServiceUnavailable(ReasonGatewayUnavailable, fmt.Sprintf(format, args...))
}

// VerificationFailed webhook 签名校验失败（400）
func VerificationFailed(format string, args ...interface{}) *kerrors.Error {
	return kerrors.BadRequest(ReasonVerificationFailed, fmt.Sprintf(format, args...))
}

// NotificationFailed 通知投递失败，只记录不向上抛出
func NotificationFailed(format string, args ...interface{}) *kerrors.Error {
	return kerrors.InternalServer(ReasonNotificationFailed, fmt.Sprintf(format, args...))
}

func OrderNotFound(format string, args ...interface{}) *kerrors.Error {
	return kerrors.NotFound(ReasonOrderNotFound, fmt.Sprintf(format, args...))
}

func DuplicateOrderID(format string, args ...interface{}) *kerrors.Error {
	return kerrors.Conflict(ReasonDuplicateOrderID, fmt.Sprintf(format, args...))
}

func IsInvalidRequest(err error) bool     { return kerrors.Reason(err) == ReasonInvalidRequest }
func IsGatewayUnavailable(err error) bool { return kerrors.Reason(err) == ReasonGatewayUnavailable }
func IsVerificationFailed(err error) bool { return kerrors.Reason(err) == ReasonVerificationFailed }
func IsOrderNotFound(err error) bool      { return kerrors.Reason(err) == ReasonOrderNotFound }
func IsDuplicateOrderID(err error) bool   { return kerrors.Reason(err) == ReasonDuplicateOrderID }
