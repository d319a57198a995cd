// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN; empty runs the in-memory stores (dev/test only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// JWTAccessSecret signs access tokens (HS256). Required.
	JWTAccessSecret string `mapstructure:"JWT_ACCESS_SECRET"`
	// JWTRefreshSecret signs refresh tokens. Must differ from JWT_ACCESS_SECRET.
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTIssuer is the iss claim (e.g. "identity-core").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// Google OAuth. Web flow needs all three web values; mobile flows need the
	// platform client IDs. Unset values disable the corresponding flow.
	GoogleWebClientID     string `mapstructure:"GOOGLE_WEB_CLIENT_ID"`
	GoogleWebClientSecret string `mapstructure:"GOOGLE_WEB_CLIENT_SECRET"`
	GoogleWebRedirectURL  string `mapstructure:"GOOGLE_WEB_REDIRECT_URI"`
	GoogleIOSClientID     string `mapstructure:"GOOGLE_IOS_CLIENT_ID"`
	GoogleAndroidClientID string `mapstructure:"GOOGLE_ANDROID_CLIENT_ID"`

	// Apple Sign-In. The team/key values are only needed for the authorization
	// code flow (client secret generation); ID token verification works without them.
	AppleIOSClientID     string `mapstructure:"APPLE_IOS_CLIENT_ID"`
	AppleAndroidClientID string `mapstructure:"APPLE_ANDROID_CLIENT_ID"`
	// AppleExtraAudiences is a comma-separated list of additional accepted aud values
	// (e.g. a web services ID alongside the app bundle ID).
	AppleExtraAudiences string `mapstructure:"APPLE_EXTRA_AUDIENCES"`
	AppleTeamID         string `mapstructure:"APPLE_TEAM_ID"`
	AppleKeyID          string `mapstructure:"APPLE_KEY_ID"`
	// ApplePrivateKey is the PEM-encoded EC private key downloaded from the Apple
	// developer portal, or a path to the .p8 file.
	ApplePrivateKey string `mapstructure:"APPLE_PRIVATE_KEY"`

	// KafkaBrokers is a comma-separated list of broker addresses (e.g. "localhost:9092").
	// Empty runs the registration saga in-process on the memory bus.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the topic carrying registration domain events.
	KafkaTopic string `mapstructure:"KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the saga worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// RegistrationTimeout bounds how long Register waits for the new identity to
	// become readable before reporting the registration as still pending.
	RegistrationTimeout string `mapstructure:"REGISTRATION_TIMEOUT"`

	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// Empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_ISSUER", "identity-core")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "identity-registration")
	v.SetDefault("KAFKA_GROUP_ID", "identity-registration-saga")
	v.SetDefault("REGISTRATION_TIMEOUT", "3s")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.JWTAccessSecret == "" {
		return nil, errors.New("config: JWT_ACCESS_SECRET must be set")
	}
	if cfg.JWTRefreshSecret == "" {
		return nil, errors.New("config: JWT_REFRESH_SECRET must be set")
	}
	if cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		return nil, errors.New("config: JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	if len(cfg.KafkaBrokersList()) > 0 && cfg.DatabaseURL == "" {
		// The saga worker consumes registration events against the shared
		// database; with in-memory stores the profile could never appear.
		return nil, errors.New("config: KAFKA_BROKERS requires DATABASE_URL")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// RegistrationWait parses RegistrationTimeout as a time.Duration. Returns 3s if unset or invalid.
func (c *Config) RegistrationWait() time.Duration {
	d, err := time.ParseDuration(c.RegistrationTimeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means registration events stay on the in-process bus.
func (c *Config) KafkaBrokersList() []string {
	return splitList(c.KafkaBrokers)
}

// AppleExtraAudiencesList returns extra accepted Apple aud values from the comma-separated config.
func (c *Config) AppleExtraAudiencesList() []string {
	return splitList(c.AppleExtraAudiences)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
