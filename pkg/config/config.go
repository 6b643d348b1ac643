// Package config defines the runtime configuration surface of the
// authorization server core: token lifetimes, clock tolerance, and the
// tunables for the CIBA delivery engine and the SSRF-safe outbound fetcher.
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Options is the top-level configuration struct. It is intended to be
// populated from YAML via yaml.Unmarshal and then validated with Validate.
type Options struct {
	Issuer string `yaml:"issuer" validate:"required,url"`

	AccessTokenTTL       time.Duration `yaml:"access_token_ttl" validate:"required,gt=0"`
	RefreshTokenTTL      time.Duration `yaml:"refresh_token_ttl" validate:"required,gt=0"`
	AuthorizationCodeTTL time.Duration `yaml:"authorization_code_ttl" validate:"required,gt=0"`
	IdentityTokenTTL     time.Duration `yaml:"identity_token_ttl" validate:"required,gt=0"`

	ClockSkew    time.Duration `yaml:"clock_skew" validate:"gte=0"`
	JwksCacheTTL time.Duration `yaml:"jwks_cache_ttl" validate:"required,gt=0"`

	// MinReplayCacheTTL floors the replay-cache entry lifetime, independent
	// of how close a token's own exp is to "now" (see pkg/replaycache).
	MinReplayCacheTTL time.Duration `yaml:"min_replay_cache_ttl" validate:"gte=0"`

	BackChannelAuth BackChannelAuthOptions `yaml:"back_channel_auth" validate:"required"`
	SecureHTTPFetch SecureHTTPFetchOptions `yaml:"secure_http_fetch" validate:"required"`

	Log Log `yaml:"log"`
}

// BackChannelAuthOptions tunes the CIBA delivery engine (§ the CIBA module).
type BackChannelAuthOptions struct {
	PollInterval           time.Duration `yaml:"poll_interval" validate:"required,gt=0"`
	MaxLongPollSeconds     int           `yaml:"max_long_poll_seconds" validate:"gte=0"`
	UseLongPolling         bool          `yaml:"use_long_polling"`
	NotificationTimeout    time.Duration `yaml:"notification_timeout" validate:"required,gt=0"`
	HTTPHandlerLifetime    time.Duration `yaml:"http_handler_lifetime" validate:"required,gt=0"`
	RequestExpiry          time.Duration `yaml:"request_expiry" validate:"required,gt=0"`
}

// SecureHTTPFetchOptions configures the SSRF-safe outbound fetcher used for
// CIBA push-mode client notification callbacks and any other server-to-
// server HTTP call this library makes on the caller's behalf.
type SecureHTTPFetchOptions struct {
	AllowedSchemes       []string      `yaml:"allowed_schemes" validate:"required,min=1,dive,oneof=https http"`
	BlockPrivateNetworks bool          `yaml:"block_private_networks"`
	RequestTimeout       time.Duration `yaml:"request_timeout" validate:"required,gt=0"`
	MaxResponseBytes     int64         `yaml:"max_response_bytes" validate:"required,gt=0"`
}

// Log holds structured-logging configuration, mirroring how the rest of the
// ambient stack is configured.
type Log struct {
	Level      string `yaml:"level"`
	FolderPath string `yaml:"folder_path"`
	Production bool   `yaml:"production"`
}

// Default returns an Options populated with conservative, spec-aligned
// defaults; callers typically unmarshal YAML over a copy of this value.
func Default() Options {
	return Options{
		AccessTokenTTL:       1 * time.Hour,
		RefreshTokenTTL:      30 * 24 * time.Hour,
		AuthorizationCodeTTL: 60 * time.Second,
		IdentityTokenTTL:     1 * time.Hour,
		ClockSkew:            30 * time.Second,
		JwksCacheTTL:         10 * time.Minute,
		MinReplayCacheTTL:    10 * time.Second,
		BackChannelAuth: BackChannelAuthOptions{
			PollInterval:        5 * time.Second,
			MaxLongPollSeconds:  0,
			UseLongPolling:      false,
			NotificationTimeout: 10 * time.Second,
			HTTPHandlerLifetime: 30 * time.Second,
			RequestExpiry:       120 * time.Second,
		},
		SecureHTTPFetch: SecureHTTPFetchOptions{
			AllowedSchemes:       []string{"https"},
			BlockPrivateNetworks: true,
			RequestTimeout:       5 * time.Second,
			MaxResponseBytes:     1 << 20,
		},
	}
}

var validate = validator.New()

// Validate checks o against its struct tags.
func (o *Options) Validate() error {
	return validate.Struct(o)
}
