package config

import "time"

// Config holds configuration of both the chat client and the document store service.
type Config struct {
	// Service
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	WSRateLimit       int           `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"` // inbound frames per minute, 0 disables

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file"`

	// Client
	StoreURL       string        `mapstructure:"store_url" yaml:"store_url"` // empty uses the embedded store at DatabasePath
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	SessionPath    string        `mapstructure:"session_path" yaml:"session_path"`
	MessageLimit   int           `mapstructure:"message_limit" yaml:"message_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		DatabasePath:      "roomchat.db",
		JWTSecret:         "change-me-in-production",
		JWTIssuer:         "roomchat",
		JWTAudience:       "roomchat-clients",
		TokenTTL:          24 * time.Hour,
		WSRateLimit:       120,
		LogLevel:          "info",
		LogFile:           "roomchat.log",
		RequestTimeout:    10 * time.Second,
		MessageLimit:      100,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setDuration := func(dst *time.Duration, v time.Duration) {
		if v != 0 {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}

	setString(&c.Addr, other.Addr)
	setDuration(&c.ReadHeaderTimeout, other.ReadHeaderTimeout)
	setDuration(&c.ShutdownTimeout, other.ShutdownTimeout)
	setString(&c.DatabasePath, other.DatabasePath)
	setString(&c.JWTSecret, other.JWTSecret)
	setString(&c.JWTIssuer, other.JWTIssuer)
	setString(&c.JWTAudience, other.JWTAudience)
	setDuration(&c.TokenTTL, other.TokenTTL)
	setInt(&c.WSRateLimit, other.WSRateLimit)
	setString(&c.LogLevel, other.LogLevel)
	setString(&c.LogFile, other.LogFile)
	setString(&c.StoreURL, other.StoreURL)
	setDuration(&c.RequestTimeout, other.RequestTimeout)
	setString(&c.SessionPath, other.SessionPath)
	setInt(&c.MessageLimit, other.MessageLimit)
}
