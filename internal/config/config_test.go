package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Fetcher.UserAgent != "ProtecLiter-Bot/1.0 (+https://protecliter.com/bot)" {
		t.Fatalf("unexpected user agent %q", cfg.Fetcher.UserAgent)
	}
	if cfg.Fetcher.Timeout != 30*time.Second || cfg.Fetcher.RobotsTimeout != 5*time.Second {
		t.Fatalf("unexpected fetch timeouts: %+v", cfg.Fetcher)
	}
	if cfg.Fetcher.MaxTextLength != 50000 {
		t.Fatalf("expected 50000 text cap, got %d", cfg.Fetcher.MaxTextLength)
	}
	if cfg.Scheduler.Interval != time.Minute || cfg.Scheduler.BatchSize != 100 {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
	if cfg.Storage.Bucket != "protecliter-evidence" || !cfg.Storage.S3.UsePathStyle {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.SMTP.Port != 1025 || cfg.SMTP.From != "takedown@protecliter.com" {
		t.Fatalf("unexpected smtp defaults: %+v", cfg.SMTP)
	}
	if cfg.Takedown.Recipients["scribd"] != "copyright@scribd.com" &&
		cfg.Takedown.Recipients["SCRIBD"] != "copyright@scribd.com" {
		t.Fatalf("expected scribd recipient default, got %+v", cfg.Takedown.Recipients)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  api_key: secret
logging:
  development: true
database:
  dsn: postgres://u:p@localhost:5432/piracy
queue:
  backend: postgres
  poll_interval: 250ms
storage:
  backend: s3
  bucket: evidence
  s3:
    endpoint: http://minio:9000
fetcher:
  robots_mode: path
  per_domain_qps: 0.5
scheduler:
  interval: 2m
workers:
  crawl: 4
publisher:
  backend: kafka
  topic: detections
  brokers: ["kafka:9092"]
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "secret" {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if cfg.Queue.Backend != "postgres" || cfg.Queue.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected queue overrides, got %+v", cfg.Queue)
	}
	if cfg.Storage.S3.Endpoint != "http://minio:9000" || cfg.Storage.S3.Region != "us-east-1" {
		t.Fatalf("expected s3 override with default region, got %+v", cfg.Storage.S3)
	}
	if cfg.Fetcher.RobotsMode != "path" || cfg.Fetcher.PerDomainQPS != 0.5 {
		t.Fatalf("expected fetcher overrides, got %+v", cfg.Fetcher)
	}
	if cfg.Scheduler.Interval != 2*time.Minute || cfg.Workers.Crawl != 4 {
		t.Fatalf("expected scheduler/worker overrides, got %+v %+v", cfg.Scheduler, cfg.Workers)
	}
	if len(cfg.Publisher.Brokers) != 1 || cfg.Publisher.Brokers[0] != "kafka:9092" {
		t.Fatalf("expected kafka brokers, got %+v", cfg.Publisher)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil ||
		!strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read config error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"postgres queue without dsn", func(c *Config) { c.Queue.Backend = "postgres" }, "database.dsn"},
		{"unknown queue", func(c *Config) { c.Queue.Backend = "redis" }, "queue.backend"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3"; c.Storage.Bucket = "" }, "storage.bucket"},
		{"robots mode", func(c *Config) { c.Fetcher.RobotsMode = "strict" }, "fetcher.robots_mode"},
		{"text cap", func(c *Config) { c.Fetcher.MaxTextLength = 0 }, "fetcher.max_text_length"},
		{"scheduler interval", func(c *Config) { c.Scheduler.Interval = 0 }, "scheduler.interval"},
		{"pubsub without project", func(c *Config) { c.Publisher.Backend = "pubsub" }, "publisher.project_id"},
		{"kafka without brokers", func(c *Config) { c.Publisher.Backend = "kafka" }, "publisher.brokers"},
		{"negative workers", func(c *Config) { c.Workers.Extract = -1 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestConfigValidateJoinsErrors(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	cfg.Server.Port = 0
	cfg.Fetcher.Timeout = 0
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "server.port") || !strings.Contains(err.Error(), "fetcher.timeout") {
		t.Fatalf("expected both errors reported, got %v", err)
	}
}
