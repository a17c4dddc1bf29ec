// Package config loads the daemon's process-wide configuration from
// environment variables (and, optionally, a config file), with defaults
// covering every option the system recognizes.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// CORSConfig mirrors the optional CORS knobs; the CORS middleware is only
// mounted if at least one field here is non-empty.
type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origin"`
	AllowMethods     []string `mapstructure:"allow_method"`
	AllowHeaders     []string `mapstructure:"allow_header"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

// Enabled reports whether any CORS setting was supplied.
func (c CORSConfig) Enabled() bool {
	return len(c.AllowOrigins) > 0 || len(c.AllowMethods) > 0 || len(c.AllowHeaders) > 0 || c.AllowCredentials
}

// Config is the full set of recognized daemon options (spec §6).
type Config struct {
	Host     string     `mapstructure:"host"`
	Port     int        `mapstructure:"port"`
	Token    string     `mapstructure:"token"`
	NoToken  bool       `mapstructure:"no_token"`
	CORS     CORSConfig `mapstructure:"cors"`
	LogLevel  string    `mapstructure:"log_level"`
	LogFormat string    `mapstructure:"log_format"`
}

// AuthEnabled reports whether bearer-token auth should be enforced.
func (c Config) AuthEnabled() bool {
	return !c.NoToken && c.Token != ""
}

// Addr is the host:port listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8787)
	v.SetDefault("token", "")
	v.SetDefault("no_token", false)
	v.SetDefault("cors.allow_origin", []string{})
	v.SetDefault("cors.allow_method", []string{})
	v.SetDefault("cors.allow_header", []string{})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// Load reads configuration from environment variables prefixed AGENTD_
// (e.g. AGENTD_PORT, AGENTD_CORS_ALLOW_ORIGIN) and from an optional
// agentd.yaml/json/toml config file on the default search path, falling
// back to defaults for anything unset.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath behaves like Load but also searches the given directory for
// a config file named "agentd".
func LoadWithPath(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGENTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("agentd")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return &cfg, nil
}
