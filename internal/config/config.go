package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sentinelstack/sentinel-engine/internal/utils"
)

// Config captures the settings required to boot the sentinel engine.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Sinks      SinksConfig      `yaml:"sinks"`
	Nats       NatsConfig       `yaml:"nats"`
	Logging    LoggingConfig    `yaml:"logging"`
	Rules      RulesConfig      `yaml:"rules"`
	Detection  DetectionConfig  `yaml:"detection"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	BlockStore BlockStoreConfig `yaml:"blockStore"`
}

// ServerConfig controls the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// SinksConfig names the outbound webhook endpoints. An empty URL disables
// the corresponding dispatch path.
type SinksConfig struct {
	ErrorSinkURL            string        `yaml:"errorSinkURL"`
	CriticalWebhookURL      string        `yaml:"criticalWebhookURL"`
	SecurityAlertWebhookURL string        `yaml:"securityAlertWebhookURL"`
	IncidentWebhookURL      string        `yaml:"incidentWebhookURL"`
	Timeout                 time.Duration `yaml:"timeout"`
	Environment             string        `yaml:"environment"`
	Deployment              string        `yaml:"deployment"`
}

// NatsConfig configures the optional NATS alert publisher.
type NatsConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// RulesConfig controls rule-pack loading for pattern suggestions and
// threat signatures.
type RulesConfig struct {
	SuggestionsPath string `yaml:"suggestionsPath"`
}

// DetectionConfig holds thresholds for the security detectors and the
// incident correlator.
type DetectionConfig struct {
	RateWindow         time.Duration `yaml:"rateWindow"`
	RateThreshold      int           `yaml:"rateThreshold"`
	AuthFailThreshold  int           `yaml:"authFailThreshold"`
	AuthHighThreshold  int           `yaml:"authHighThreshold"`
	PatternThreshold   int           `yaml:"patternThreshold"`
	IncidentWindow     time.Duration `yaml:"incidentWindow"`
	IncidentMinThreats int           `yaml:"incidentMinThreats"`
	ScoreWindow        time.Duration `yaml:"scoreWindow"`
}

// DispatchConfig controls alert batching.
type DispatchConfig struct {
	BatchSize int `yaml:"batchSize"`
}

// SchedulerConfig sets the cadence of the four background tasks.
type SchedulerConfig struct {
	FlushInterval         time.Duration `yaml:"flushInterval"`
	SweepInterval         time.Duration `yaml:"sweepInterval"`
	MetricsInterval       time.Duration `yaml:"metricsInterval"`
	IncidentCheckInterval time.Duration `yaml:"incidentCheckInterval"`
}

// BlockStoreConfig selects where temporary origin blocks live. When Addr is
// empty the engine uses its in-process block list.
type BlockStoreConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	TLS          bool          `yaml:"tls"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SENTINEL_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, utils.NewAppError("config.load", "config file "+path+" not found", err)
			}
			return nil, utils.NewAppError("config.load", "read "+path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, utils.NewAppError("config.load", "parse "+path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8650",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Sinks: SinksConfig{
			Timeout:     5 * time.Second,
			Environment: "development",
		},
		Nats:    NatsConfig{SubjectPrefix: "sentinel"},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Detection: DetectionConfig{
			RateWindow:         time.Minute,
			RateThreshold:      100,
			AuthFailThreshold:  5,
			AuthHighThreshold:  10,
			PatternThreshold:   10,
			IncidentWindow:     30 * time.Minute,
			IncidentMinThreats: 3,
			ScoreWindow:        time.Hour,
		},
		Dispatch: DispatchConfig{BatchSize: 10},
		Scheduler: SchedulerConfig{
			FlushInterval:         5 * time.Second,
			SweepInterval:         time.Minute,
			MetricsInterval:       30 * time.Second,
			IncidentCheckInterval: 10 * time.Second,
		},
		BlockStore: BlockStoreConfig{
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENTINEL_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SENTINEL_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("SENTINEL_ERROR_SINK_URL"); v != "" {
		cfg.Sinks.ErrorSinkURL = v
	}
	if v := os.Getenv("SENTINEL_CRITICAL_WEBHOOK_URL"); v != "" {
		cfg.Sinks.CriticalWebhookURL = v
	}
	if v := os.Getenv("SENTINEL_SECURITY_WEBHOOK_URL"); v != "" {
		cfg.Sinks.SecurityAlertWebhookURL = v
	}
	if v := os.Getenv("SENTINEL_INCIDENT_WEBHOOK_URL"); v != "" {
		cfg.Sinks.IncidentWebhookURL = v
	}
	if v := os.Getenv("SENTINEL_ENVIRONMENT"); v != "" {
		cfg.Sinks.Environment = v
	}
	if v := os.Getenv("SENTINEL_DEPLOYMENT"); v != "" {
		cfg.Sinks.Deployment = v
	}
	if v := os.Getenv("SENTINEL_NATS_URL"); v != "" {
		cfg.Nats.URL = v
	}
	if v := os.Getenv("SENTINEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTINEL_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SENTINEL_SUGGESTIONS_PATH"); v != "" {
		cfg.Rules.SuggestionsPath = v
	}
	if v := os.Getenv("SENTINEL_BLOCK_STORE_ADDR"); v != "" {
		cfg.BlockStore.Addr = v
	}
	if v := os.Getenv("SENTINEL_BLOCK_STORE_USERNAME"); v != "" {
		cfg.BlockStore.Username = v
	}
	if v := os.Getenv("SENTINEL_BLOCK_STORE_PASSWORD"); v != "" {
		cfg.BlockStore.Password = v
	}
	if v := os.Getenv("SENTINEL_BLOCK_STORE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.BlockStore.DB = db
		}
	}
	if v := os.Getenv("SENTINEL_BLOCK_STORE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.BlockStore.TLS = true
	}
	if v := os.Getenv("SENTINEL_RATE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Detection.RateThreshold = n
		}
	}
	if v := os.Getenv("SENTINEL_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dispatch.BatchSize = n
		}
	}
	if v := os.Getenv("SENTINEL_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Scheduler.FlushInterval = d
		}
	}
	if v := os.Getenv("SENTINEL_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Scheduler.SweepInterval = d
		}
	}
	if v := os.Getenv("SENTINEL_INCIDENT_CHECK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Scheduler.IncidentCheckInterval = d
		}
	}
}
