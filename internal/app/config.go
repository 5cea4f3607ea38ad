package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aeris-data/iagos-fetch/internal/download"
	"github.com/aeris-data/iagos-fetch/internal/tokensource"
	"github.com/aeris-data/iagos-fetch/internal/tokenstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTLP LogFormat = "otlp"
)

// TokenSourceType represents where static-method tokens come from.
type TokenSourceType string

const (
	TokenSourceTypePrompt  TokenSourceType = "prompt"
	TokenSourceTypeFile    TokenSourceType = "file"
	TokenSourceTypeEnv     TokenSourceType = "env"
	TokenSourceTypeKeyring TokenSourceType = "keyring"
)

// AuthenticationMethod represents the different authentication methods supported.
type AuthenticationMethod string

const (
	AuthenticationMethodStatic AuthenticationMethod = "static"
	AuthenticationMethodDevice AuthenticationMethod = "device"
)

// Default configuration values
const (
	DefaultConfigLogFormat      = LogFormatText
	DefaultConfigAuthMethod     = AuthenticationMethodDevice
	DefaultConfigAuthSource     = TokenSourceTypePrompt
	DefaultConfigMaxInterval    = 60 * time.Second
	DefaultConfigServiceBaseURL = "https://api.sedoo.fr/iagos-backend-test/v2.0/downloads"
	DefaultConfigRequestTimeout = 60 * time.Second
	DefaultConfigOutputDir      = "."
	DefaultConfigConcurrency    = 4
)

// keyringService is the service identifier under which operator-provisioned
// tokens are looked up in the OS keyring.
const keyringService = "iagos-fetch-token"

// tokenPrompt is shown when the static method reads the token interactively.
const tokenPrompt = "Enter your ENVRI-ID token: "

// DeviceConfig holds the OAuth2 device authorization grant settings.
type DeviceConfig struct {
	// ClientID is the public OAuth2 client identifier (no secret).
	ClientID string `json:"client_id"`

	// DeviceEndpoint and TokenEndpoint are the provider's RFC 8628 URLs.
	DeviceEndpoint string `json:"device_endpoint" validate:"omitempty,url"`
	TokenEndpoint  string `json:"token_endpoint" validate:"omitempty,url"`

	// Scope is the space-separated OAuth scope set requested.
	Scope string `json:"scope"`

	// MaxInterval caps polling interval growth under slow_down responses.
	MaxInterval time.Duration `json:"max_interval"`

	// NoBrowser suppresses opening the verification URL in a browser.
	NoBrowser bool `json:"no_browser"`
}

// AuthConfig represents the configuration for credential acquisition.
// Describes how to construct the token source run before downloading.
type AuthConfig struct {
	// Method selects the acquisition strategy: run the device flow, or use
	// a token the operator already has (static).
	Method AuthenticationMethod `json:"method" validate:"required,oneof=device static"`

	// Source configuration - where a static token comes from
	Source TokenSourceType `json:"source" validate:"required,oneof=prompt file env keyring"`

	// Source-specific settings (mutually exclusive based on Source type)
	File        string `json:"file,omitempty"`         // For file source: path to token file
	EnvKey      string `json:"env_key,omitempty"`      // For env source: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring source: user identifier

	// Device flow settings, used when Method is device.
	Device DeviceConfig `json:"device"`
}

// NewTokenStore creates a TokenStore from the authentication configuration.
// Only source types backed by storage have one; prompt does not.
func (a *AuthConfig) NewTokenStore() (tokenstore.TokenStore, error) {
	switch a.Source {
	case TokenSourceTypeFile:
		return tokenstore.NewFileStore(a.File)
	case TokenSourceTypeEnv:
		return tokenstore.NewEnvStore(a.EnvKey)
	case TokenSourceTypeKeyring:
		return tokenstore.NewKeyringStore(keyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("no token store for source type: %s", a.Source)
	}
}

// NewInput returns the token input for the static method: an interactive
// prompt, or the Read side of the configured store.
func (a *AuthConfig) NewInput() (tokensource.InputFunc, error) {
	if a.Source == TokenSourceTypePrompt {
		return tokensource.TerminalPrompt(tokenPrompt), nil
	}

	store, err := a.NewTokenStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}
	return store.Read, nil
}

// ServiceConfig holds data-service configuration.
type ServiceConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`

	// RequestTimeout bounds each download request end to end.
	RequestTimeout time.Duration `json:"request_timeout"`

	// Product selection forwarded as query parameters.
	Level  string `json:"level"`
	Format string `json:"format"`
	Type   string `json:"type"`
}

// DownloadConfig holds output and fan-out configuration.
type DownloadConfig struct {
	// OutputDir receives one <flight_id>.nc file per successful download.
	OutputDir string `json:"output_dir"`

	// Concurrency limits how many downloads run at once.
	Concurrency int `json:"concurrency" validate:"min=1"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otlp"`
	Auth      AuthConfig     `json:"auth"`
	Service   ServiceConfig  `json:"service"`
	Download  DownloadConfig `json:"download"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Auth.Method == "" {
		c.Auth.Method = DefaultConfigAuthMethod
	}
	if c.Auth.Source == "" {
		c.Auth.Source = DefaultConfigAuthSource
	}
	if c.Auth.Device.ClientID == "" {
		c.Auth.Device.ClientID = tokensource.ClientID
	}
	if c.Auth.Device.DeviceEndpoint == "" {
		c.Auth.Device.DeviceEndpoint = tokensource.DeviceAuthURL
	}
	if c.Auth.Device.TokenEndpoint == "" {
		c.Auth.Device.TokenEndpoint = tokensource.TokenURL
	}
	if c.Auth.Device.Scope == "" {
		c.Auth.Device.Scope = tokensource.Scope
	}
	if c.Auth.Device.MaxInterval == 0 {
		c.Auth.Device.MaxInterval = DefaultConfigMaxInterval
	}
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = DefaultConfigServiceBaseURL
	}
	if c.Service.RequestTimeout == 0 {
		c.Service.RequestTimeout = DefaultConfigRequestTimeout
	}
	if c.Service.Level == "" {
		c.Service.Level = download.DefaultLevel
	}
	if c.Service.Format == "" {
		c.Service.Format = download.DefaultFormat
	}
	if c.Service.Type == "" {
		c.Service.Type = download.DefaultType
	}
	if c.Download.OutputDir == "" {
		c.Download.OutputDir = DefaultConfigOutputDir
	}
	if c.Download.Concurrency == 0 {
		c.Download.Concurrency = DefaultConfigConcurrency
	}

	// Dynamic defaults based on source type
	switch c.Auth.Source {
	case TokenSourceTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, "iagos-fetch", "token")
		}
	case TokenSourceTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case TokenSourceTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Method {
	case AuthenticationMethodDevice:
		if c.Auth.Device.ClientID == "" {
			return errors.New("device.client_id required for device authentication")
		}
		if c.Auth.Device.DeviceEndpoint == "" || c.Auth.Device.TokenEndpoint == "" {
			return errors.New("device.device_endpoint and device.token_endpoint required for device authentication")
		}
	case AuthenticationMethodStatic:
		switch c.Auth.Source {
		case TokenSourceTypeFile:
			if c.Auth.File == "" {
				return errors.New("file path required for file source")
			}
		case TokenSourceTypeEnv:
			if c.Auth.EnvKey == "" {
				return errors.New("env_key required for env source")
			}
		case TokenSourceTypeKeyring:
			if c.Auth.KeyringUser == "" {
				return errors.New("keyring_user required for keyring source")
			}
		}
	}

	return nil
}
