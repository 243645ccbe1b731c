// Package config loads the ussdpilot YAML configuration.
//
// Files are decoded with yaml.v3 into a generic map and then mapped onto
// Default() with mapstructure, so a file only needs the keys it changes.
// Durations accept Go duration strings ("90s", "500ms").
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/ngabopay/ussdpilot/pkg/executor"
	"github.com/ngabopay/ussdpilot/pkg/persistence/middleware"
	"github.com/ngabopay/ussdpilot/pkg/session"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the full application configuration.
type Config struct {
	Device  Device           `mapstructure:"device" yaml:"device"`
	Engine  Engine           `mapstructure:"engine" yaml:"engine"`
	Profile classify.Profile `mapstructure:"profile" yaml:"profile"`
	Store   Store            `mapstructure:"store" yaml:"store"`
	HTTP    HTTP             `mapstructure:"http" yaml:"http"`
	MCP     MCP              `mapstructure:"mcp" yaml:"mcp"`
	Log     Log              `mapstructure:"log" yaml:"log"`

	// Template is the payout code, e.g. "*185*9*{phone}*{amount}*{pin}#".
	Template string `mapstructure:"ussd_template" yaml:"ussd_template"`
}

// Device selects and drives the phone.
type Device struct {
	Serial        string        `mapstructure:"serial" yaml:"serial"`
	ADBPath       string        `mapstructure:"adb_path" yaml:"adb_path"`
	PollInterval  time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ActionTimeout time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	DumpPath      string        `mapstructure:"dump_path" yaml:"dump_path"`

	// Packages overrides the dialer package filter. Empty keeps the default.
	Packages []string `mapstructure:"packages" yaml:"packages"`
}

// Engine holds the session timings.
type Engine struct {
	SingleShotTimeout time.Duration `mapstructure:"single_shot_timeout" yaml:"single_shot_timeout"`
	StepsTimeout      time.Duration `mapstructure:"steps_timeout" yaml:"steps_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	StallPolicy       string        `mapstructure:"stall_policy" yaml:"stall_policy"`
}

// Store selects where results are kept and how the device lease is held.
type Store struct {
	Backend  string        `mapstructure:"backend" yaml:"backend"`
	RedisURL string        `mapstructure:"redis_url" yaml:"redis_url"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	LeaseTTL time.Duration `mapstructure:"lease_ttl" yaml:"lease_ttl"`

	// EncryptionKey is a base64 AES-256 key. When set, results are sealed
	// before they reach the backend. FallbackKeys decrypt results written
	// under previous keys.
	EncryptionKey string   `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
	FallbackKeys  []string `mapstructure:"fallback_keys" yaml:"fallback_keys,omitempty"`

	// PIIPatterns are masked in stored codes, messages and screen logs.
	PIIPatterns []string `mapstructure:"pii_patterns" yaml:"pii_patterns,omitempty"`
}

// Encryption decodes the configured keys. ok is false when encryption is off.
func (s Store) Encryption() (cfg middleware.EncryptionConfig, ok bool, err error) {
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return cfg, false, errors.New("store.fallback_keys needs store.encryption_key")
		}
		return cfg, false, nil
	}
	if cfg.ActiveKey, err = base64.StdEncoding.DecodeString(s.EncryptionKey); err != nil {
		return cfg, false, fmt.Errorf("store.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return cfg, false, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, false, fmt.Errorf("store: %w", err)
	}
	return cfg, true, nil
}

// Middleware returns the result store decorators the configuration enables,
// PII masking first.
func (s Store) Middleware() ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(s.PIIPatterns) > 0 {
		mw, err := middleware.NewPIIMiddleware(s.PIIPatterns)
		if err != nil {
			return nil, fmt.Errorf("store.pii_patterns: %w", err)
		}
		mws = append(mws, mw)
	}
	enc, ok, err := s.Encryption()
	if err != nil {
		return nil, err
	}
	if ok {
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

// HTTP configures the ops API.
type HTTP struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// MCP configures the SSE transport of the MCP server.
type MCP struct {
	Addr    string `mapstructure:"addr" yaml:"addr"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// Log configures the application logger.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: Device{
			ADBPath:       "adb",
			PollInterval:  700 * time.Millisecond,
			ActionTimeout: 5 * time.Second,
			DumpPath:      "/sdcard/ussdpilot_dump.xml",
		},
		Engine: Engine{
			SingleShotTimeout: session.DefaultSingleShotTimeout,
			StepsTimeout:      session.DefaultStepsTimeout,
			SettleDelay:       executor.DefaultSettleDelay,
			StallPolicy:       string(executor.StallConfirm),
		},
		Store: Store{
			Backend:  StoreMemory,
			Prefix:   "ussdpilot:",
			TTL:      7 * 24 * time.Hour,
			LeaseTTL: 30 * time.Second,
		},
		HTTP: HTTP{Addr: ":8080"},
		MCP:  MCP{Addr: ":8081", BaseURL: "http://localhost:8081"},
		Log:  Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	if raw != nil {
		if err := Decode(raw, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode maps raw onto out. Unknown keys are errors.
func Decode(raw map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks values the engine cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch executor.StallPolicy(c.Engine.StallPolicy) {
	case executor.StallConfirm, executor.StallWait:
	default:
		errs = append(errs, fmt.Errorf("engine.stall_policy: unknown policy %q", c.Engine.StallPolicy))
	}
	if c.Engine.SingleShotTimeout <= 0 || c.Engine.StepsTimeout <= 0 {
		errs = append(errs, errors.New("engine timeouts must be positive"))
	}
	if c.Engine.SettleDelay < 0 {
		errs = append(errs, errors.New("engine.settle_delay must not be negative"))
	}
	switch strings.ToLower(c.Store.Backend) {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend))
	}
	if _, err := c.Store.Middleware(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Profile.WithDefaults().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
