package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (store URI, bucket names), security settings
// - default: Values common across all environments (TTLs, cadences, thresholds), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	App       AppConfig
	Store     StoreConfig
	Cache     CacheConfig
	Monitor   MonitorConfig
	Inventory InventoryConfig
	Scheduler SchedulerConfig
	Blob      BlobConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

type AppConfig struct {
	Env          string `envconfig:"APP_ENV" default:"development"`
	SensorDriver string `envconfig:"SENSOR_DRIVER" default:"simulated"`
}

func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"memory"`
	// URI is a postgres DSN for the postgres driver and a file path for sqlite.
	URI                 string        `envconfig:"STORE_URI"`
	MaxRetries          int           `envconfig:"STORE_MAX_RETRIES" default:"5"`
	BackoffBase         time.Duration `envconfig:"STORE_BACKOFF_BASE" default:"1s"`
	BackoffMax          time.Duration `envconfig:"STORE_BACKOFF_MAX" default:"30s"`
	HealthCheckInterval time.Duration `envconfig:"STORE_HEALTH_INTERVAL" default:"15s"`
	PingTimeout         time.Duration `envconfig:"STORE_PING_TIMEOUT" default:"3s"`
}

type CacheConfig struct {
	InventoryTTL   time.Duration `envconfig:"CACHE_INVENTORY_TTL" default:"60s"`
	DonorSearchTTL time.Duration `envconfig:"CACHE_DONOR_SEARCH_TTL" default:"300s"`
	StatisticsTTL  time.Duration `envconfig:"CACHE_STATISTICS_TTL" default:"900s"`
	ForecastTTL    time.Duration `envconfig:"CACHE_FORECAST_TTL" default:"3600s"`
	MaxEntries     int           `envconfig:"CACHE_MAX_ENTRIES" default:"4096"`
}

type MonitorConfig struct {
	Interval              time.Duration `envconfig:"MONITOR_INTERVAL" default:"5m"`
	ExpirySweepInterval   time.Duration `envconfig:"MONITOR_EXPIRY_SWEEP_INTERVAL" default:"1h"`
	RotationThresholdDays int           `envconfig:"MONITOR_ROTATION_THRESHOLD_DAYS" default:"7"`
}

type InventoryConfig struct {
	LowThreshold int `envconfig:"INVENTORY_LOW_THRESHOLD" default:"10"`
}

type SchedulerConfig struct {
	TimeZone string `envconfig:"SCHEDULER_TIMEZONE" default:"UTC"`
}

type BlobConfig struct {
	Driver      string `envconfig:"BLOB_DRIVER" default:"fs"`
	Root        string `envconfig:"BLOB_ROOT" default:"./reports"`
	S3Bucket    string `envconfig:"BLOB_S3_BUCKET"`
	S3Region    string `envconfig:"BLOB_S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"BLOB_S3_ENDPOINT"`
	S3PathStyle bool   `envconfig:"BLOB_S3_PATH_STYLE" default:"false"`
	S3AccessKey string `envconfig:"BLOB_S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"BLOB_S3_SECRET_ACCESS_KEY"`
}

type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR" default:":9090"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"UTC"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"0"`
}

func (c StoreConfig) Validate() error {
	switch c.Driver {
	case "memory":
		return nil
	case "sqlite", "postgres":
		if c.URI == "" {
			return fmt.Errorf("STORE_URI is required for the %s driver", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Driver)
	}
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Store.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		App: AppConfig{
			Env:          "test",
			SensorDriver: "simulated",
		},
		Store: StoreConfig{
			Driver:              "memory",
			MaxRetries:          2,
			BackoffBase:         time.Millisecond,
			BackoffMax:          4 * time.Millisecond,
			HealthCheckInterval: time.Hour,
			PingTimeout:         time.Second,
		},
		Cache: CacheConfig{
			InventoryTTL:   60 * time.Second,
			DonorSearchTTL: 300 * time.Second,
			StatisticsTTL:  900 * time.Second,
			ForecastTTL:    3600 * time.Second,
			MaxEntries:     256,
		},
		Monitor: MonitorConfig{
			Interval:              5 * time.Minute,
			ExpirySweepInterval:   time.Hour,
			RotationThresholdDays: 7,
		},
		Inventory: InventoryConfig{LowThreshold: 10},
		Scheduler: SchedulerConfig{TimeZone: "UTC"},
		Blob:      BlobConfig{Driver: "memory"},
		Log: LogConfig{
			Level:      "error", // Error level only for tests
			TimeZone:   "UTC",
			TimeFormat: "2006-01-02 15:04:05.000",
		},
	}
}
