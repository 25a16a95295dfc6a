package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the triage command line client.
type ClientConfig struct {
	APIURL          string `mapstructure:"api_url"`
	Username        string `mapstructure:"username"`
	CredentialsFile string `mapstructure:"credentials_file"`
	JiraBaseURL     string `mapstructure:"jira_base_url"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	RetryAttempts   int    `mapstructure:"retry_attempts"`
	LogLevel        string `mapstructure:"log_level"`
}

// Timeout returns the per-request timeout.
func (c ClientConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadClient reads triage.yaml (explicit path, or the user config dir when
// path is empty) and TRIAGE_* environment variables. A missing config file is
// not an error.
func LoadClient(path string) (*ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("api_url", "http://localhost:8080/api/")
	v.SetDefault("credentials_file", defaultCredentialsFile())
	v.SetDefault("timeout_seconds", 10)
	v.SetDefault("retry_attempts", 3)
	v.SetDefault("log_level", "warn")
	for _, key := range []string{"api_url", "username", "credentials_file", "jira_base_url", "timeout_seconds", "retry_attempts", "log_level"} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("triage")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "triage"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("read client config: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode client config: %w", err)
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("api_url must be set")
	}
	return &cfg, nil
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".triage-credentials.json"
	}
	return filepath.Join(dir, "triage", "credentials.json")
}
