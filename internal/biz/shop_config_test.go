package biz

import (
	"testing"
	"time"

	"access-service/internal/conf"

	"github.com/shopspring/decimal"
)

func TestNewShopConfig_Defaults(t *testing.T) {
	c := NewShopConfig(&conf.Bootstrap{})
	want := map[string]struct {
		price string
		days  int
	}{
		"1mois":  {"10.00", 30},
		"3mois":  {"25.00", 90},
		"6mois":  {"45.00", 180},
		"12mois": {"70.00", 365},
	}
	if len(c.Plans) != len(want) {
		t.Fatalf("expected %d plans, got %d", len(want), len(c.Plans))
	}
	for code, w := range want {
		p, ok := c.Plan(code)
		if !ok {
			t.Fatalf("plan %s missing", code)
		}
		if !p.Price.Equal(decimal.RequireFromString(w.price)) || p.DurationDays != w.days {
			t.Fatalf("plan %s = %s/%d, want %s/%d", code, p.Price, p.DurationDays, w.price, w.days)
		}
	}
	if c.Currency != "EUR" || c.GatewayTimeout != 15*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestNewShopConfig_Overrides(t *testing.T) {
	c := NewShopConfig(&conf.Bootstrap{
		Shop: &conf.Shop{
			PublicBaseURL:  "https://shop.example.com/",
			Currency:       "usd",
			GatewayTimeout: "3s",
			Plans: []conf.Plan{
				{Code: "week", Price: "2.5", DurationDays: 7},
				{Code: "broken", Price: "n/a", DurationDays: 7},
			},
		},
		PayPal: &conf.PayPal{WebhookID: "WH-1"},
		Cron:   &conf.Cron{StaleAfter: "2h", SweepLimit: 10},
	})
	if _, ok := c.Plan("1mois"); ok {
		t.Fatalf("configured plans must replace defaults")
	}
	if _, ok := c.Plan("broken"); ok {
		t.Fatalf("invalid plan must be skipped")
	}
	p, ok := c.Plan("week")
	if !ok || p.Price.StringFixed(2) != "2.50" {
		t.Fatalf("unexpected week plan: %+v", p)
	}
	if c.Currency != "USD" || c.WebhookID != "WH-1" || c.GatewayTimeout != 3*time.Second {
		t.Fatalf("unexpected overrides: %+v", c)
	}
	if c.ReturnURL() != "https://shop.example.com/paypal/return" || c.CancelURL() != "https://shop.example.com/paypal/cancel" {
		t.Fatalf("unexpected redirect urls: %s %s", c.ReturnURL(), c.CancelURL())
	}
	if c.StaleAfter != 2*time.Hour || c.SweepLimit != 10 {
		t.Fatalf("unexpected sweep settings: %v %d", c.StaleAfter, c.SweepLimit)
	}
}
