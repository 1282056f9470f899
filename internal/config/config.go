package config

import (
	"github.com/zeromicro/go-zero/rest"

	"github.com/outboxguard/engine/pkg/ratelimiter"
)

// Config holds the server configuration: the REST producer API plus the
// pipeline options struct the external-interfaces contract recognizes.
type Config struct {
	rest.RestConf

	Database DatabaseConfig `json:",optional"`
	Pipeline PipelineConfig `json:",optional"`
	Limiter  LimiterConfig  `json:",optional"`
	Healing  HealingConfig  `json:",optional"`
	Monitor  MonitorConfig  `json:",optional"`
	Provider ProviderConfig `json:",optional"`
}

// DatabaseConfig holds persistence settings. An empty Path falls back to
// pkg/config's env-var-driven default location.
type DatabaseConfig struct {
	Path string `json:",optional"`
}

// PipelineConfig holds the processor worker-pool settings.
type PipelineConfig struct {
	Workers        int `json:",default=2"`
	PollIntervalMs int `json:",default=250"`
}

// LimiterConfig holds the warm-up rate limiter settings. RateTiers, when
// set, overrides the built-in tier table; rows may come in any order and
// are sorted by MinAgeDays when the table is built.
type LimiterConfig struct {
	HardLimit                   bool      `json:",default=true"`
	ConsecutiveFailureThreshold int       `json:",default=10"`
	RateTiers                   []TierRow `json:",optional"`
	TrackedCap                  int       `json:",default=100000"`
}

// TierRow is one config-driven override row of the warm-up tier table.
type TierRow struct {
	MinAgeDays int    `json:"minAgeDays"`
	Label      string `json:"label"`
	PerDay     int    `json:"perDay"`
	PerHour    int    `json:"perHour"`
	PerMinute  int    `json:"perMinute"`
}

// Tiers converts the override rows into the limiter's table shape; an
// empty override yields the built-in default table.
func (c LimiterConfig) Tiers() ratelimiter.TierTable {
	rows := make([]ratelimiter.TierRow, 0, len(c.RateTiers))
	for _, r := range c.RateTiers {
		rows = append(rows, ratelimiter.TierRow{
			MinAgeDays: r.MinAgeDays,
			Tier: ratelimiter.Tier{
				Label:     r.Label,
				PerDay:    r.PerDay,
				PerHour:   r.PerHour,
				PerMinute: r.PerMinute,
			},
		})
	}
	return ratelimiter.NewTierTable(rows)
}

// HealingConfig holds the self-healing engine settings.
type HealingConfig struct {
	BaseDelayMs       int64   `json:",default=1000"`
	MaxDelayMs        int64   `json:",default=86400000"`
	MaxAttempts       int     `json:",default=3"`
	BackoffMultiplier float64 `json:",default=2"`
}

// MonitorConfig holds the sampling-plane settings.
type MonitorConfig struct {
	SampleIntervalMs     int     `json:",default=10000"`
	QueueDepthThreshold  int     `json:",default=1000"`
	ErrorRateThreshold   float64 `json:",default=0.2"`
	UtilizationThreshold float64 `json:",default=0.9"`
}

// ProviderConfig selects and configures the send provider.
type ProviderConfig struct {
	Mode              string `json:",default=simulated,options=simulated|smtp"`
	ProviderTimeoutMs int    `json:",default=30000"`
	// FailurePattern makes the simulated provider fail any recipient
	// whose local part matches this regexp; empty means never fail.
	FailurePattern string `json:",optional"`
	LatencyMinMs   int64  `json:",default=5"`
	LatencyMaxMs   int64  `json:",default=120"`
	// RatePerSecond paces the real SMTP provider's outbound dials.
	RatePerSecond float64    `json:",default=10"`
	Burst         int        `json:",default=1"`
	SMTP          SMTPConfig `json:",optional"`
}

// SMTPConfig holds SMTP delivery settings for the real provider.
type SMTPConfig struct {
	Host     string `json:",default=smtp.gmail.com"`
	Port     string `json:",default=587"`
	Username string `json:",optional"`
	Password string `json:",optional"`
	FromName string `json:",optional"`
}
