// Package config loads client settings. Values come from, in increasing
// order of precedence: built-in defaults, a YAML file (--config,
// CHAT_CONFIG_FILE, or .chatclient.yaml in the working directory), CHAT_*
// environment variables, and command-line flags bound by the caller.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/whisper/chat-client/internal/notify"
	"github.com/whisper/chat-client/internal/typing"
	"github.com/whisper/chat-client/internal/ui"
	"github.com/whisper/chat-client/internal/ws"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CHAT_HOST.
	EnvPrefix = "CHAT"

	// ConfigFileEnv names an explicit config file.
	ConfigFileEnv = "CHAT_CONFIG_FILE"

	// DefaultConfigName is the file searched for in the working directory.
	DefaultConfigName = ".chatclient"
)

// Config holds every client setting.
type Config struct {
	Host               string        `mapstructure:"host"`
	Scheme             string        `mapstructure:"scheme"`
	Name               string        `mapstructure:"name"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	TypingDelay        time.Duration `mapstructure:"typing_delay"`
	NotifyTimeout      time.Duration `mapstructure:"notify_timeout"`
	Notify             bool          `mapstructure:"notify"`
	NATSURL            string        `mapstructure:"nats_url"`
	MetricsAddr        string        `mapstructure:"metrics_addr"`
	LogFile            string        `mapstructure:"log_file"`
	Scrollback         int           `mapstructure:"scrollback"`
}

// Default returns the built-in settings. Host has no default.
func Default() Config {
	wsConfig := ws.DefaultConfig()
	return Config{
		Scheme:        wsConfig.Scheme,
		DialTimeout:   wsConfig.DialTimeout,
		WriteTimeout:  wsConfig.WriteTimeout,
		TypingDelay:   typing.DefaultConfig().Delay,
		NotifyTimeout: notify.DefaultConfig().Timeout,
		Notify:        true,
		Scrollback:    ui.DefaultScrollback,
	}
}

// SetDefaults registers every key with its default on v, so that
// environment variables are honored for all of them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("host", d.Host)
	v.SetDefault("scheme", d.Scheme)
	v.SetDefault("name", d.Name)
	v.SetDefault("insecure_skip_verify", d.InsecureSkipVerify)
	v.SetDefault("dial_timeout", d.DialTimeout)
	v.SetDefault("write_timeout", d.WriteTimeout)
	v.SetDefault("typing_delay", d.TypingDelay)
	v.SetDefault("notify_timeout", d.NotifyTimeout)
	v.SetDefault("notify", d.Notify)
	v.SetDefault("nats_url", d.NATSURL)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("scrollback", d.Scrollback)
}

// NewViper creates a viper instance with defaults, environment binding and
// the config file read in. configFile, when set, takes precedence over
// CHAT_CONFIG_FILE and must exist. A missing default file is not an error.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	explicit := true
	if configFile == "" {
		configFile = os.Getenv(ConfigFileEnv)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		explicit = false
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", configFile, err)
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Name = strings.TrimSpace(cfg.Name)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings can start a session.
func (c Config) Validate() error {
	if _, err := ws.Endpoint(c.Scheme, c.Host); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("config: dial_timeout must be positive, got %s", c.DialTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("config: write_timeout must be positive, got %s", c.WriteTimeout)
	}
	if c.TypingDelay <= 0 {
		return fmt.Errorf("config: typing_delay must be positive, got %s", c.TypingDelay)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("config: notify_timeout must be positive, got %s", c.NotifyTimeout)
	}
	if c.Scrollback < 0 {
		return fmt.Errorf("config: scrollback must not be negative, got %d", c.Scrollback)
	}
	return nil
}

// WS returns the connection settings.
func (c Config) WS() ws.Config {
	wsConfig := ws.DefaultConfig()
	wsConfig.Scheme = c.Scheme
	wsConfig.Host = c.Host
	wsConfig.DialTimeout = c.DialTimeout
	wsConfig.WriteTimeout = c.WriteTimeout
	if c.InsecureSkipVerify {
		wsConfig.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return wsConfig
}
