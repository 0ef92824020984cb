package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Enabled reports whether enough settings are present to open a connection.
func (d DatabaseConfig) Enabled() bool {
	return d.DBName != ""
}

type AWSConfig struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
}

// Enabled reports whether screenshots and resumes should be archived to S3.
func (a AWSConfig) Enabled() bool {
	return a.Bucket != "" && a.Region != ""
}

type LoggerConfig struct {
	Level      string
	Format     string
	LogFile    string
	MaxSize    int
	MaxBackups int
	MaxAge     int
}

type BrowserConfig struct {
	Headless          bool
	NavigationTimeout time.Duration
	StepTimeout       time.Duration
	StepBudget        int
}

type AppConfig struct {
	Port              string
	Environment       string
	JWTSecret         string
	MaxConcurrentRuns int
	MaxUploadBytes    int64
	AutoConsent       bool
	RateLimit         int
	RateWindow        time.Duration
	ScreenshotDir     string
	AllowedOrigins    []string
	Database          DatabaseConfig
	AWS               AWSConfig
	Logger            LoggerConfig
	Browser           BrowserConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8001")
	v.SetDefault("environment", "development")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("max_concurrent_runs", 2)
	v.SetDefault("max_upload_bytes", 10<<20)
	v.SetDefault("auto_consent", true)
	v.SetDefault("rate_limit", 10)
	v.SetDefault("rate_window", time.Minute)
	v.SetDefault("screenshot_dir", "")
	v.SetDefault("allowed_origins", "*")

	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "")
	v.SetDefault("db_name", "")
	v.SetDefault("db_sslmode", "disable")

	v.SetDefault("aws_region", "")
	v.SetDefault("aws_s3_bucket", "")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size", 50)
	v.SetDefault("log_max_backups", 3)
	v.SetDefault("log_max_age", 28)

	v.SetDefault("headless", true)
	v.SetDefault("navigation_timeout", 30*time.Second)
	v.SetDefault("step_timeout", 60*time.Second)
	v.SetDefault("step_budget", 5)
}

// Load reads .env (if present) and the process environment into an AppConfig.
func Load() (AppConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// FromViper maps an already-populated viper instance onto AppConfig.
func FromViper(v *viper.Viper) AppConfig {
	return AppConfig{
		Port:              v.GetString("port"),
		Environment:       v.GetString("environment"),
		JWTSecret:         v.GetString("jwt_secret"),
		MaxConcurrentRuns: v.GetInt("max_concurrent_runs"),
		MaxUploadBytes:    v.GetInt64("max_upload_bytes"),
		AutoConsent:       v.GetBool("auto_consent"),
		RateLimit:         v.GetInt("rate_limit"),
		RateWindow:        v.GetDuration("rate_window"),
		ScreenshotDir:     v.GetString("screenshot_dir"),
		AllowedOrigins:    splitList(v.GetString("allowed_origins")),
		Database: DatabaseConfig{
			Host:     v.GetString("db_host"),
			Port:     v.GetInt("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			DBName:   v.GetString("db_name"),
			SSLMode:  v.GetString("db_sslmode"),
		},
		AWS: AWSConfig{
			AccessKeyID:     v.GetString("aws_access_key_id"),
			SecretAccessKey: v.GetString("aws_secret_access_key"),
			Region:          v.GetString("aws_region"),
			Bucket:          v.GetString("aws_s3_bucket"),
		},
		Logger: LoggerConfig{
			Level:      v.GetString("log_level"),
			Format:     v.GetString("log_format"),
			LogFile:    v.GetString("log_file"),
			MaxSize:    v.GetInt("log_max_size"),
			MaxBackups: v.GetInt("log_max_backups"),
			MaxAge:     v.GetInt("log_max_age"),
		},
		Browser: BrowserConfig{
			Headless:          v.GetBool("headless"),
			NavigationTimeout: v.GetDuration("navigation_timeout"),
			StepTimeout:       v.GetDuration("step_timeout"),
			StepBudget:        v.GetInt("step_budget"),
		},
	}
}

// Validate rejects settings the services cannot run with.
func (c AppConfig) Validate() error {
	if c.Browser.StepBudget < 1 {
		return fmt.Errorf("step_budget must be at least 1, got %d", c.Browser.StepBudget)
	}
	if c.Browser.StepTimeout <= 0 {
		return fmt.Errorf("step_timeout must be positive")
	}
	if c.Browser.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be positive")
	}
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("max_concurrent_runs must be at least 1, got %d", c.MaxConcurrentRuns)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs behind the production proxy.
func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
