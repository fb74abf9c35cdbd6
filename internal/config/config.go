// Package config loads the sluice configuration from flags, an optional
// sluice.yaml, SLUICE_* environment variables and a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. SLUICE_POLL_INTERVAL.
const EnvPrefix = "SLUICE"

// SMTPConfig configures the mail notifier. An empty host disables mail and
// notifications are logged instead.
type SMTPConfig struct {
	Host     string `mapstructure:"host" validate:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from" validate:"required_with=Host,omitempty,email"`
}

// Config is the resolved runtime configuration.
type Config struct {
	Dir          string        `mapstructure:"dir" validate:"required"`
	LogLevel     string        `mapstructure:"log_level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	LogFormat    string        `mapstructure:"log_format" validate:"oneof=text json"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	WaitInterval time.Duration `mapstructure:"wait_interval" validate:"gte=0"`
	RedisURL     string        `mapstructure:"redis_url" validate:"omitempty,url"`
	JobsFile     string        `mapstructure:"jobs_file"`
	StateDir     string        `mapstructure:"state_dir" validate:"required"`
	MetricsAddr  string        `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	HTTPAddr     string        `mapstructure:"http_addr" validate:"omitempty,hostname_port"`
	SMTP         SMTPConfig    `mapstructure:"smtp"`
}

// SetDefaults registers every key so that environment overrides apply even
// when neither a flag nor the config file mentions it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("dir", filepath.Join(".sluice", "schedules"))
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("poll_interval", 10*time.Second)
	v.SetDefault("wait_interval", 10*time.Second)
	v.SetDefault("redis_url", "")
	v.SetDefault("jobs_file", "jobs.yaml")
	v.SetDefault("state_dir", filepath.Join(".sluice", "jobs"))
	v.SetDefault("metrics_addr", "")
	v.SetDefault("http_addr", "localhost:8080")
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
}

// Options selects explicit files. Empty paths fall back to ./sluice.yaml
// and ./.env when they exist.
type Options struct {
	ConfigFile string
	EnvFile    string
}

// Load resolves the configuration on v. Flags bound to v before the call
// take precedence over the environment, which takes precedence over the file.
func Load(v *viper.Viper, opts Options) (*Config, error) {
	SetDefaults(v)

	envFile := opts.EnvFile
	if envFile == "" && exists(".env") {
		envFile = ".env"
	}
	if envFile != "" {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	switch {
	case opts.ConfigFile != "":
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	default:
		v.SetConfigName("sluice")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the struct tags and reports every offending key.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		msgs = append(msgs, fmt.Sprintf("%s: failed '%s' check (got %v)", key, fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
