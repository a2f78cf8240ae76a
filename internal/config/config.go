// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Workers   WorkersConfig   `mapstructure:"workers"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Takedown  TakedownConfig  `mapstructure:"takedown"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// DatabaseConfig controls access to Postgres. An empty DSN selects the
// in-memory stores.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// QueueConfig selects and tunes the stage queue backend.
type QueueConfig struct {
	Backend      string        `mapstructure:"backend"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Visibility   time.Duration `mapstructure:"visibility"`
}

// StorageConfig selects the evidence blob backend.
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Bucket  string      `mapstructure:"bucket"`
	S3      S3Config    `mapstructure:"s3"`
	Local   LocalConfig `mapstructure:"local"`
}

// S3Config targets AWS S3 or an S3-compatible server such as MinIO.
type S3Config struct {
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// LocalConfig stores blobs under a directory.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// FetcherConfig governs politeness and extraction limits.
type FetcherConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RobotsTimeout  time.Duration `mapstructure:"robots_timeout"`
	RobotsCacheTTL time.Duration `mapstructure:"robots_cache_ttl"`
	RobotsMode     string        `mapstructure:"robots_mode"`
	MaxTextLength  int           `mapstructure:"max_text_length"`
	PerDomainQPS   float64       `mapstructure:"per_domain_qps"`
	PerDomainBurst int           `mapstructure:"per_domain_burst"`
	Screenshots    bool          `mapstructure:"screenshots"`
}

// SchedulerConfig controls the periodic due-task scan.
type SchedulerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// WorkersConfig sets consumer counts per stage.
type WorkersConfig struct {
	Crawl    int `mapstructure:"crawl"`
	Extract  int `mapstructure:"extract"`
	Takedown int `mapstructure:"takedown"`
}

// SMTPConfig configures the outbound mail relay.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
}

// TakedownConfig resolves notice recipients.
type TakedownConfig struct {
	// Recipients maps platform names to default notice addresses.
	Recipients    map[string]string `mapstructure:"recipients"`
	AbuseFallback bool              `mapstructure:"abuse_fallback"`
}

// PublisherConfig selects where detection events go.
type PublisherConfig struct {
	Backend   string   `mapstructure:"backend"`
	Topic     string   `mapstructure:"topic"`
	ProjectID string   `mapstructure:"project_id"`
	Brokers   []string `mapstructure:"brokers"`
}

// TelemetryConfig controls OpenTelemetry setup.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	ProjectID   string `mapstructure:"project_id"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANTIPIRATARIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("queue.backend", "memory")
	v.SetDefault("queue.poll_interval", "500ms")
	v.SetDefault("queue.visibility", "5m")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.bucket", "protecliter-evidence")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.endpoint", "http://localhost:9000")
	v.SetDefault("storage.s3.access_key", "minioadmin")
	v.SetDefault("storage.s3.secret_key", "minioadmin")
	v.SetDefault("storage.s3.use_path_style", true)
	v.SetDefault("storage.local.base_dir", "./data/evidence")
	v.SetDefault("fetcher.user_agent", "ProtecLiter-Bot/1.0 (+https://protecliter.com/bot)")
	v.SetDefault("fetcher.timeout", "30s")
	v.SetDefault("fetcher.robots_timeout", "5s")
	v.SetDefault("fetcher.robots_cache_ttl", "1h")
	v.SetDefault("fetcher.robots_mode", "coarse")
	v.SetDefault("fetcher.max_text_length", 50000)
	v.SetDefault("fetcher.per_domain_qps", 1.0)
	v.SetDefault("fetcher.per_domain_burst", 2)
	v.SetDefault("fetcher.screenshots", false)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "60s")
	v.SetDefault("scheduler.batch_size", 100)
	v.SetDefault("workers.crawl", 2)
	v.SetDefault("workers.extract", 2)
	v.SetDefault("workers.takedown", 1)
	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 1025)
	v.SetDefault("smtp.from", "takedown@protecliter.com")
	v.SetDefault("takedown.recipients", map[string]string{"SCRIBD": "copyright@scribd.com"})
	v.SetDefault("takedown.abuse_fallback", true)
	v.SetDefault("publisher.backend", "memory")
	v.SetDefault("publisher.topic", "detections")
	v.SetDefault("telemetry.service_name", "antipirataria")
	v.SetDefault("telemetry.version", "dev")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 {
		errs = append(errs, errors.New("server.port must be > 0"))
	}
	switch c.Queue.Backend {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for queue.backend=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("queue.backend %q must be memory or postgres", c.Queue.Backend))
	}
	switch c.Storage.Backend {
	case "memory", "local", "s3", "gcs":
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q must be memory, local, s3 or gcs", c.Storage.Backend))
	}
	if (c.Storage.Backend == "s3" || c.Storage.Backend == "gcs") && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required for object storage backends"))
	}
	if c.Fetcher.Timeout <= 0 {
		errs = append(errs, errors.New("fetcher.timeout must be > 0"))
	}
	if c.Fetcher.RobotsTimeout <= 0 {
		errs = append(errs, errors.New("fetcher.robots_timeout must be > 0"))
	}
	if c.Fetcher.RobotsMode != "coarse" && c.Fetcher.RobotsMode != "path" {
		errs = append(errs, fmt.Errorf("fetcher.robots_mode %q must be coarse or path", c.Fetcher.RobotsMode))
	}
	if c.Fetcher.MaxTextLength <= 0 {
		errs = append(errs, errors.New("fetcher.max_text_length must be > 0"))
	}
	if c.Scheduler.Interval <= 0 {
		errs = append(errs, errors.New("scheduler.interval must be > 0"))
	}
	if c.Scheduler.BatchSize <= 0 {
		errs = append(errs, errors.New("scheduler.batch_size must be > 0"))
	}
	if c.Workers.Crawl < 0 || c.Workers.Extract < 0 || c.Workers.Takedown < 0 {
		errs = append(errs, errors.New("workers counts must be >= 0"))
	}
	if c.SMTP.Host == "" || c.SMTP.Port <= 0 {
		errs = append(errs, errors.New("smtp.host and smtp.port must be set"))
	}
	switch c.Publisher.Backend {
	case "none", "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.Topic == "" {
			errs = append(errs, errors.New("publisher.project_id and publisher.topic are required for pubsub"))
		}
	case "kafka":
		if len(c.Publisher.Brokers) == 0 || c.Publisher.Topic == "" {
			errs = append(errs, errors.New("publisher.brokers and publisher.topic are required for kafka"))
		}
	default:
		errs = append(errs, fmt.Errorf("publisher.backend %q is not supported", c.Publisher.Backend))
	}
	return errors.Join(errs...)
}
