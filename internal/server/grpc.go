package server

import (
	"access-service/internal/conf"

	"github.com/gaoyong06/go-pkg/middleware/i18n"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/grpc"
)

// NewGRPCServer new a gRPC server.
// 目前只承载 kratos 内置的 health 与 reflection，供探针和运维工具使用
func NewGRPCServer(c *conf.Bootstrap, logger log.Logger) *grpc.Server {
	var opts = []grpc.ServerOption{
		grpc.Middleware(
			recovery.Recovery(),
			i18n.Middleware(),
		),
	}
	if c.Server != nil {
		if c.Server.Grpc.Network != "" {
			opts = append(opts, grpc.Network(c.Server.Grpc.Network))
		}
		if c.Server.Grpc.Addr != "" {
			opts = append(opts, grpc.Address(c.Server.Grpc.Addr))
		}
		if c.Server.Grpc.Timeout != "" {
			opts = append(opts, grpc.Timeout(conf.ParseDuration(c.Server.Grpc.Timeout, 0)))
		}
	}
	return grpc.NewServer(opts...)
}
