package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME"`
	AppVersion string `mapstructure:"APP_VERSION"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Queue QueueConfig `mapstructure:"QUEUE"`
	Chart ChartConfig `mapstructure:"CHART"`
}

// QueueConfig carries every Assignment Engine threshold so tests can
// construct their own values instead of relying on scattered constants.
type QueueConfig struct {
	AssignmentWindow       time.Duration `mapstructure:"ASSIGNMENT_WINDOW"`
	SweepInterval          time.Duration `mapstructure:"SWEEP_INTERVAL"`
	MinReviewerAccountAge  time.Duration `mapstructure:"MIN_REVIEWER_ACCOUNT_AGE"`
	MinReviewListenSeconds int           `mapstructure:"MIN_REVIEW_LISTEN_SECONDS"`
	HeartbeatGrace         time.Duration `mapstructure:"HEARTBEAT_GRACE"`
	TierRates              map[string]int64
}

// ChartConfig carries the Vote/Ranking Engine thresholds.
type ChartConfig struct {
	MinListenSeconds  int           `mapstructure:"MIN_LISTEN_SECONDS"`
	MinVoterAccountAge time.Duration `mapstructure:"MIN_VOTER_ACCOUNT_AGE"`
	DailyCreditCap    int64         `mapstructure:"DAILY_CREDIT_CAP"`
	FreeSlots         int           `mapstructure:"FREE_SLOTS"`
	ProSlots          int           `mapstructure:"PRO_SLOTS"`
}

// DefaultQueueConfig returns the production thresholds.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		AssignmentWindow:       48 * time.Hour,
		SweepInterval:          5 * time.Minute,
		MinReviewerAccountAge:  24 * time.Hour,
		MinReviewListenSeconds: 180,
		HeartbeatGrace:         2 * time.Minute,
		TierRates: map[string]int64{
			"ROOKIE":   15,
			"VERIFIED": 30,
			"PRO":      50,
		},
	}
}

// DefaultChartConfig returns the production anti-gaming thresholds.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		MinListenSeconds:   30,
		MinVoterAccountAge: time.Hour,
		DailyCreditCap:     5,
		FreeSlots:          1,
		ProSlots:           3,
	}
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {
	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			zap.L().Error("failed to read config file", zap.Error(err))
			os.Exit(1)
		}
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	defQueue := DefaultQueueConfig()
	if cfg.Queue.AssignmentWindow == 0 {
		cfg.Queue.AssignmentWindow = defQueue.AssignmentWindow
	}
	if cfg.Queue.SweepInterval == 0 {
		cfg.Queue.SweepInterval = defQueue.SweepInterval
	}
	if cfg.Queue.MinReviewerAccountAge == 0 {
		cfg.Queue.MinReviewerAccountAge = defQueue.MinReviewerAccountAge
	}
	if cfg.Queue.MinReviewListenSeconds == 0 {
		cfg.Queue.MinReviewListenSeconds = defQueue.MinReviewListenSeconds
	}
	if cfg.Queue.HeartbeatGrace == 0 {
		cfg.Queue.HeartbeatGrace = defQueue.HeartbeatGrace
	}
	if len(cfg.Queue.TierRates) == 0 {
		cfg.Queue.TierRates = defQueue.TierRates
	}

	defChart := DefaultChartConfig()
	if cfg.Chart.MinListenSeconds == 0 {
		cfg.Chart.MinListenSeconds = defChart.MinListenSeconds
	}
	if cfg.Chart.MinVoterAccountAge == 0 {
		cfg.Chart.MinVoterAccountAge = defChart.MinVoterAccountAge
	}
	if cfg.Chart.DailyCreditCap == 0 {
		cfg.Chart.DailyCreditCap = defChart.DailyCreditCap
	}
	if cfg.Chart.FreeSlots == 0 {
		cfg.Chart.FreeSlots = defChart.FreeSlots
	}
	if cfg.Chart.ProSlots == 0 {
		cfg.Chart.ProSlots = defChart.ProSlots
	}
}
