package errors

import (
	pkgErrors "github.com/gaoyong06/go-pkg/errors"
	i18nPkg "github.com/gaoyong06/go-pkg/middleware/i18n"
)

func init() {
	// 初始化全局错误管理器（使用项目特定的配置）
	pkgErrors.InitGlobalErrorManager("i18n", i18nPkg.Language)
}

// Access Service 错误码定义
// 错误码格式：SSMMEE (6位数字)
//   SS: 服务标识，Access 固定为 14
//   MM: 模块标识，按业务划分
//   EE: 模块内错误序号
//
// 模块划分：
//   00: 通用模块（复用 go-pkg 通用错误码）
//   01: 订单存储模块
//   02: 支付网关模块
//   03: 通知模块
//   04: 事件发布模块
//   05-99: 预留扩展

// 订单存储模块错误码 (140100-140199)
const (
	// ErrCodeOrderCreateFailed 订单写入失败
	ErrCodeOrderCreateFailed = 140101
	// ErrCodeOrderGetFailed 订单查询失败
	ErrCodeOrderGetFailed = 140102
	// ErrCodeOrderUpdateFailed 订单状态更新失败
	ErrCodeOrderUpdateFailed = 140103
	// ErrCodeOrderListFailed 订单列表查询失败
	ErrCodeOrderListFailed = 140104
)

// 支付网关模块错误码 (140200-140299)
const (
	// ErrCodePayPalConfigNil PayPal 配置为空
	ErrCodePayPalConfigNil = 140201
	// ErrCodePayPalTokenFailed 获取 access token 失败
	ErrCodePayPalTokenFailed = 140202
	// ErrCodePayPalRequestFailed PayPal 接口调用失败
	ErrCodePayPalRequestFailed = 140203
)

// 通知模块错误码 (140300-140399)
const (
	// ErrCodeDiscordTokenMissing 机器人 token 未配置
	ErrCodeDiscordTokenMissing = 140301
	// ErrCodeDiscordSendFailed 私信发送失败
	ErrCodeDiscordSendFailed = 140302
)

// 事件发布模块错误码 (140400-140499)
const (
	// ErrCodeEventPublishFailed 事件发布失败
	ErrCodeEventPublishFailed = 140401
)
