package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Elhashino/amazon-deals/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Keepa     KeepaConfig     `mapstructure:"keepa"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Server    ServerConfig    `mapstructure:"server"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs ingestion cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// KeepaConfig captures upstream provider connectivity and quota.
type KeepaConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	CycleCallBudget  int           `mapstructure:"cycle_call_budget"`
	PagesPerCategory int           `mapstructure:"pages_per_category"`
	HistoryDays      int           `mapstructure:"history_days"`
}

// IngestConfig tunes the ingestion cycle.
type IngestConfig struct {
	Categories           []string           `mapstructure:"categories"`
	Workers              int                `mapstructure:"workers"`
	WindowDays           int                `mapstructure:"window_days"`
	MinSamples           int                `mapstructure:"min_samples"`
	FreshnessThreshold   time.Duration      `mapstructure:"freshness_threshold"`
	MinDiscount          float64            `mapstructure:"min_discount"`
	MinDiscountOverrides map[string]float64 `mapstructure:"min_discount_overrides"`
	PurgePrior           bool               `mapstructure:"purge_prior"`
	AssociateTag         string             `mapstructure:"associate_tag"`
	StorefrontBaseURL    string             `mapstructure:"storefront_base_url"`
}

// MinDiscountFor resolves the minimum discount threshold for a category.
func (c IngestConfig) MinDiscountFor(category string) float64 {
	if v, ok := c.MinDiscountOverrides[category]; ok {
		return v
	}
	return c.MinDiscount
}

// ScoringConfig names every tunable weight in the scoring formulas.
type ScoringConfig struct {
	VolatilityCeiling    float64 `mapstructure:"volatility_ceiling"`
	ConfidenceSaturation float64 `mapstructure:"confidence_saturation"`
	ConfidenceStale      float64 `mapstructure:"confidence_stale_factor"`
	ConfidenceGapWeight  float64 `mapstructure:"confidence_gap_weight"`
	ConfidenceFloor      float64 `mapstructure:"confidence_floor"`
	DiscountWeight       float64 `mapstructure:"discount_weight"`
	StabilityWeight      float64 `mapstructure:"stability_weight"`
	HotDealWeight        float64 `mapstructure:"hot_deal_weight"`
	HotDemandWeight      float64 `mapstructure:"hot_demand_weight"`
	DemandRankWeight     float64 `mapstructure:"demand_rank_weight"`
	DemandQualityWeight  float64 `mapstructure:"demand_quality_weight"`
	DemandDropsWeight    float64 `mapstructure:"demand_drops_weight"`
	DemandReviewPivot    float64 `mapstructure:"demand_review_pivot"`
}

// ServerConfig sets the read API listener.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AlertingConfig defines cycle-report routing.
type AlertingConfig struct {
	Enabled      bool           `mapstructure:"enabled"`
	OnlyFailures bool           `mapstructure:"only_failures"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery parameters.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRows int `mapstructure:"max_rows"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEALWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dealwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "6h")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x6465616c))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("keepa.base_url", "https://api.keepa.com")
	v.SetDefault("keepa.request_timeout", "60s")
	v.SetDefault("keepa.user_agent", "dealwatcher/1.0")
	v.SetDefault("keepa.cycle_call_budget", 500)
	v.SetDefault("keepa.pages_per_category", 2)
	v.SetDefault("keepa.history_days", 120)

	v.SetDefault("ingest.categories", []string{"home", "kitchen", "diy", "toys", "electrical"})
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.window_days", 90)
	v.SetDefault("ingest.min_samples", 3)
	v.SetDefault("ingest.freshness_threshold", "48h")
	v.SetDefault("ingest.min_discount", 0.25)
	v.SetDefault("ingest.purge_prior", false)
	v.SetDefault("ingest.storefront_base_url", "https://www.amazon.co.uk/dp/")

	v.SetDefault("scoring.volatility_ceiling", 0.30)
	v.SetDefault("scoring.confidence_saturation", 6.0)
	v.SetDefault("scoring.confidence_stale_factor", 0.6)
	v.SetDefault("scoring.confidence_gap_weight", 0.5)
	v.SetDefault("scoring.confidence_floor", 5.0)
	v.SetDefault("scoring.discount_weight", 0.70)
	v.SetDefault("scoring.stability_weight", 0.30)
	v.SetDefault("scoring.hot_deal_weight", 0.60)
	v.SetDefault("scoring.hot_demand_weight", 0.40)
	v.SetDefault("scoring.demand_rank_weight", 0.50)
	v.SetDefault("scoring.demand_quality_weight", 0.30)
	v.SetDefault("scoring.demand_drops_weight", 0.20)
	v.SetDefault("scoring.demand_review_pivot", 50.0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.only_failures", true)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_rows", 10000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be greater than zero")
	}
	if c.Ingest.WindowDays <= 0 {
		return fmt.Errorf("ingest.window_days must be greater than zero")
	}
	if c.Ingest.MinSamples <= 0 {
		return fmt.Errorf("ingest.min_samples must be greater than zero")
	}
	if c.Ingest.MinDiscount < 0 || c.Ingest.MinDiscount > 1 {
		return fmt.Errorf("ingest.min_discount must be within [0, 1]")
	}
	if len(c.Ingest.Categories) == 0 {
		return fmt.Errorf("ingest.categories must not be empty")
	}
	if c.Keepa.CycleCallBudget <= 0 {
		return fmt.Errorf("keepa.cycle_call_budget must be greater than zero")
	}
	if c.Keepa.PagesPerCategory <= 0 {
		return fmt.Errorf("keepa.pages_per_category must be greater than zero")
	}
	if c.Scoring.VolatilityCeiling <= 0 {
		return fmt.Errorf("scoring.volatility_ceiling must be greater than zero")
	}
	if c.Scoring.DiscountWeight < 0 || c.Scoring.StabilityWeight < 0 {
		return fmt.Errorf("scoring weights cannot be negative")
	}
	if c.Export.MaxRows <= 0 {
		return fmt.Errorf("export.max_rows must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token must be configured")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id must be configured")
		}
	}
	return nil
}

// ResolveMaxRows returns either the CLI override or the config default.
func (c *Config) ResolveMaxRows(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRows
}
