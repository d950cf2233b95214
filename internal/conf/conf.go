package conf

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Bootstrap 服务启动配置
type Bootstrap struct {
	Server  *Server  `yaml:"server" json:"server"`
	Data    *Data    `yaml:"data" json:"data"`
	PayPal  *PayPal  `yaml:"paypal" json:"paypal"`
	Discord *Discord `yaml:"discord" json:"discord"`
	Shop    *Shop    `yaml:"shop" json:"shop"`
	Cron    *Cron    `yaml:"cron" json:"cron"`
	Log     *Log     `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Network string `yaml:"network" json:"network"`
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
	Grpc struct {
		Network string `yaml:"network" json:"network"`
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"grpc" json:"grpc"`
}

type Data struct {
	Database *Database `yaml:"database" json:"database"`
	Redis    *Redis    `yaml:"redis" json:"redis"`
	Rocketmq *Rocketmq `yaml:"rocketmq" json:"rocketmq"`
}

type Database struct {
	// Driver mysql（默认）或 sqlite（本地开发）
	Driver          string `yaml:"driver" json:"driver"`
	Source          string `yaml:"source" json:"source"`
	AutoMigrate     bool   `yaml:"auto_migrate" json:"auto_migrate"`
	MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type Redis struct {
	Addr         string `yaml:"addr" json:"addr"`
	Password     string `yaml:"password" json:"password"`
	Db           int    `yaml:"db" json:"db"`
	ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
}

type Rocketmq struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	NameServers []string `yaml:"name_servers" json:"name_servers"`
	GroupName   string   `yaml:"group_name" json:"group_name"`
	Topic       string   `yaml:"topic" json:"topic"`
	RetryTimes  int      `yaml:"retry_times" json:"retry_times"`
}

// PayPal 支付网关配置
type PayPal struct {
	BaseURL   string `yaml:"base_url" json:"base_url"`
	ClientID  string `yaml:"client_id" json:"client_id"`
	Secret    string `yaml:"secret" json:"secret"`
	WebhookID string `yaml:"webhook_id" json:"webhook_id"`
	Timeout   string `yaml:"timeout" json:"timeout"`
}

// Discord 通知渠道配置
type Discord struct {
	BotToken        string `yaml:"bot_token" json:"bot_token"`
	Timeout         string `yaml:"timeout" json:"timeout"`
	CommandsEnabled bool   `yaml:"commands_enabled" json:"commands_enabled"`
}

// Shop 售卖配置
type Shop struct {
	PublicBaseURL  string `yaml:"public_base_url" json:"public_base_url"`
	BrandName      string `yaml:"brand_name" json:"brand_name"`
	Currency       string `yaml:"currency" json:"currency"`
	GatewayTimeout string `yaml:"gateway_timeout" json:"gateway_timeout"`
	NotifyTimeout  string `yaml:"notify_timeout" json:"notify_timeout"`
	Plans          []Plan `yaml:"plans" json:"plans"`
}

// Plan 套餐定价
type Plan struct {
	Code         string `yaml:"code" json:"code"`
	Price        string `yaml:"price" json:"price"`
	DurationDays int    `yaml:"duration_days" json:"duration_days"`
}

type Cron struct {
	SweepSpec  string `yaml:"sweep_spec" json:"sweep_spec"`
	StaleAfter string `yaml:"stale_after" json:"stale_after"`
	SweepLimit int    `yaml:"sweep_limit" json:"sweep_limit"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil || b.Data.Database == nil {
		return fmt.Errorf("data.database configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	switch strings.ToLower(b.Data.Database.Driver) {
	case "", "mysql", "sqlite":
	default:
		return fmt.Errorf("data.database.driver %q is not supported", b.Data.Database.Driver)
	}
	if b.Data.Redis == nil || b.Data.Redis.Addr == "" {
		return fmt.Errorf("data.redis.addr is required")
	}
	if mq := b.Data.Rocketmq; mq != nil && mq.Enabled {
		if len(mq.NameServers) == 0 || mq.Topic == "" {
			return fmt.Errorf("data.rocketmq.name_servers and data.rocketmq.topic are required when rocketmq is enabled")
		}
	}
	if b.PayPal == nil || b.PayPal.BaseURL == "" {
		return fmt.Errorf("paypal.base_url is required")
	}
	// 回跳地址由它拼接，必须是绝对地址
	if b.Shop == nil || b.Shop.PublicBaseURL == "" {
		return fmt.Errorf("shop.public_base_url is required")
	}
	if u, err := url.Parse(b.Shop.PublicBaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("shop.public_base_url %q must be an absolute http(s) url", b.Shop.PublicBaseURL)
	}
	seen := make(map[string]struct{}, len(b.Shop.Plans))
	for _, p := range b.Shop.Plans {
		if p.Code == "" {
			return fmt.Errorf("shop.plans: code is required")
		}
		if _, ok := seen[p.Code]; ok {
			return fmt.Errorf("shop.plans: duplicate plan %q", p.Code)
		}
		seen[p.Code] = struct{}{}
		price, err := decimal.NewFromString(p.Price)
		if err != nil || !price.IsPositive() {
			return fmt.Errorf("shop.plans: plan %q has invalid price %q", p.Code, p.Price)
		}
		if p.DurationDays <= 0 {
			return fmt.Errorf("shop.plans: plan %q has invalid duration_days %d", p.Code, p.DurationDays)
		}
	}
	return nil
}

// ParseDuration 解析字符串时长，为空或非法时返回默认值
func ParseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
