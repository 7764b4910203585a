package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSalt matches the salt admin password hashes were generated with
// before the salt became configurable.
const DefaultSalt = "mlmcomedy-default-salt"

type Config struct {
	Server struct {
		Address         string   `yaml:"address"`
		ReadTimeoutSec  int      `yaml:"read_timeout_seconds"`
		WriteTimeoutSec int      `yaml:"write_timeout_seconds"`
		CORSOrigins     []string `yaml:"cors_origins"`
	} `yaml:"server"`

	Database struct {
		Backend       string `yaml:"backend"` // sqlite | mongo
		Path          string `yaml:"path"`
		MongoURI      string `yaml:"mongo_uri"`
		MongoDatabase string `yaml:"mongo_database"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Auth struct {
		AdminEmails       string `yaml:"admin_emails"` // comma separated
		AdminEmail        string `yaml:"admin_email"`
		PasswordHash      string `yaml:"password_hash"`
		Password          string `yaml:"password"`
		Salt              string `yaml:"salt"`
		JWTSecret         string `yaml:"jwt_secret"`
		AllowHashEndpoint bool   `yaml:"allow_hash_endpoint"`
		LoginRatePerMin   int    `yaml:"login_rate_per_minute"`
	} `yaml:"auth"`

	Identity struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"identity"`

	Notify struct {
		ResendAPIKey  string  `yaml:"resend_api_key"`
		From          string  `yaml:"from"`
		SiteURL       string  `yaml:"site_url"`
		RatePerSecond float64 `yaml:"rate_per_second"`
		Auto          bool    `yaml:"auto"`
	} `yaml:"notify"`

	Spots struct {
		TemplatesPath    string `yaml:"templates_path"`
		WatchIntervalSec int    `yaml:"watch_interval_seconds"`
	} `yaml:"spots"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if cfg.Database.Backend == "sqlite" {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	c.Database.Backend = strings.ToLower(strings.TrimSpace(c.Database.Backend))
	if c.Database.Backend == "" {
		c.Database.Backend = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/gigbook.db"
	}
	if c.Database.MongoDatabase == "" {
		c.Database.MongoDatabase = "gigbook"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Auth.Salt == "" {
		c.Auth.Salt = DefaultSalt
	}
	if c.Auth.JWTSecret == "" {
		c.Auth.JWTSecret = c.Auth.Salt
	}
	if c.Auth.AdminEmail == "" {
		c.Auth.AdminEmail = c.PrimaryAdmin()
	}
	if c.Notify.From == "" {
		c.Notify.From = "MLM Comedy <matt@mlmcomedy.com>"
	}
	if c.Notify.SiteURL == "" {
		c.Notify.SiteURL = "https://mlmcomedy.co.nz"
	}
	c.Notify.SiteURL = strings.TrimRight(c.Notify.SiteURL, "/")
}

// AdminList returns the allow-listed admin emails. ADMIN_EMAILS wins over the
// single ADMIN_EMAIL.
func (c *Config) AdminList() string {
	if strings.TrimSpace(c.Auth.AdminEmails) != "" {
		return c.Auth.AdminEmails
	}
	return c.Auth.AdminEmail
}

// PrimaryAdmin is the first allow-listed email.
func (c *Config) PrimaryAdmin() string {
	first, _, _ := strings.Cut(c.AdminList(), ",")
	return strings.ToLower(strings.TrimSpace(first))
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSec) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	if c.Server.WriteTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.WriteTimeoutSec) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	if c.Backup.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	if c.Backup.RetentionDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

func (c *Config) CacheTTL() time.Duration {
	if c.Redis.CacheTTLSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Redis.CacheTTLSeconds) * time.Second
}

func (c *Config) SpotsWatchInterval() time.Duration {
	if c.Spots.WatchIntervalSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Spots.WatchIntervalSec) * time.Second
}

// LoginRate is the number of admin auth attempts allowed per IP per minute.
func (c *Config) LoginRate() int {
	if c.Auth.LoginRatePerMin <= 0 {
		return 10
	}
	return c.Auth.LoginRatePerMin
}

// NotifyRate is the outbound email rate in requests per second.
func (c *Config) NotifyRate() float64 {
	if c.Notify.RatePerSecond <= 0 {
		return 2
	}
	return c.Notify.RatePerSecond
}
