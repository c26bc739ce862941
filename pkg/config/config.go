// Package config provides YAML configuration support for the zone signer.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration errors.
var (
	ErrConfigNotFound   = errors.New("configuration file not found")
	ErrInvalidAlgorithm = errors.New("invalid DNSSEC algorithm")
	ErrInvalidValidity  = errors.New("signature validity must be positive")
	ErrMissingOrigin    = errors.New("zone origin must be set")
)

// Algorithm mnemonics accepted in key generation config.
var validAlgorithms = map[string]bool{
	"RSASHA1":         true,
	"RSASHA256":       true,
	"RSASHA512":       true,
	"ECDSAP256SHA256": true,
	"ECDSAP384SHA384": true,
	"ED25519":         true,
}

// Config represents the complete zone signer configuration.
type Config struct {
	Zone    ZoneConfig    `yaml:"zone"`
	Keys    KeyConfig     `yaml:"keys"`
	Signing SigningConfig `yaml:"signing"`
	API     APIConfig     `yaml:"api"`
	Logging LoggingConfig `yaml:"logging"`
}

// ZoneConfig holds zone input and output settings.
type ZoneConfig struct {
	// Origin is the zone origin (e.g., "example.com.")
	Origin string `yaml:"origin"`

	// File is the path of the unsigned zone file
	File string `yaml:"file"`

	// OutputFile is the path the signed zone is written to (empty for stdout)
	OutputFile string `yaml:"output_file"`
}

// KeyConfig holds signing key settings.
type KeyConfig struct {
	// PublicFile is the path of the BIND-format .key file
	PublicFile string `yaml:"public_file"`

	// PrivateFile is the path of the BIND-format .private file
	PrivateFile string `yaml:"private_file"`

	// Algorithm is the algorithm mnemonic used when generating a fresh key
	// (e.g., "ECDSAP256SHA256")
	Algorithm string `yaml:"algorithm"`

	// Bits is the RSA modulus size when generating an RSA key
	Bits int `yaml:"bits"`

	// TTL is the TTL stamped on published DNSKEY records
	TTL uint32 `yaml:"ttl"`
}

// SigningConfig holds signature generation settings.
type SigningConfig struct {
	// Validity is how long generated signatures remain valid
	Validity time.Duration `yaml:"validity"`

	// InceptionSkew is subtracted from the inception time to tolerate
	// clock drift between the signer and validators
	InceptionSkew time.Duration `yaml:"inception_skew"`

	// NSECTTL is the TTL stamped on generated NSEC records
	NSECTTL uint32 `yaml:"nsec_ttl"`
}

// APIConfig holds the signing service configuration.
type APIConfig struct {
	// ListenAddress is the address the HTTP API listens on
	ListenAddress string `yaml:"listen_address"`

	// Password is the admin password (bcrypt-hashed at startup)
	Password string `yaml:"password"`

	// GracefulShutdownTimeout is the timeout for graceful shutdown
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// RateLimit holds per-client request limits
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds per-client token bucket settings.
type RateLimitConfig struct {
	// Enabled enables per-client rate limiting
	Enabled bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained request rate per client IP
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// BurstSize is the token bucket capacity
	BurstSize int `yaml:"burst_size"`
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error"
	Level string `yaml:"level"`

	// LogRuns enables logging of every signing run
	LogRuns bool `yaml:"log_runs"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Zone: ZoneConfig{
			Origin:     "",
			File:       "",
			OutputFile: "",
		},
		Keys: KeyConfig{
			PublicFile:  "",
			PrivateFile: "",
			Algorithm:   "ECDSAP256SHA256",
			Bits:        2048,
			TTL:         3600,
		},
		Signing: SigningConfig{
			Validity:      30 * 24 * time.Hour,
			InceptionSkew: time.Hour,
			NSECTTL:       3600,
		},
		API: APIConfig{
			ListenAddress:           ":8087",
			Password:                "",
			GracefulShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 10,
				BurstSize:         20,
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogRuns: true,
		},
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFileOrDefault loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration without error.
func LoadFromFileOrDefault(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			return DefaultConfig(), nil
		}

		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !validAlgorithms[c.Keys.Algorithm] {
		return fmt.Errorf("%w: %s", ErrInvalidAlgorithm, c.Keys.Algorithm)
	}

	if c.Signing.Validity <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidValidity, c.Signing.Validity)
	}

	if c.Signing.InceptionSkew < 0 {
		return fmt.Errorf("%w: negative inception skew", ErrInvalidValidity)
	}

	return nil
}

// ValidateForSigning checks the fields a signing run needs on top of
// Validate, which leaves zone settings optional for API-only use.
func (c *Config) ValidateForSigning() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Zone.Origin == "" {
		return ErrMissingOrigin
	}

	return nil
}

// SaveToFile saves the configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
