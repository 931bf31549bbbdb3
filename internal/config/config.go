// Package config loads server settings from defaults, a .env file, an
// optional YAML file and HRAMBA_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/erazemk/hramba/internal/auth"
	"github.com/erazemk/hramba/internal/capacity"
	"github.com/erazemk/hramba/internal/model"
	"github.com/erazemk/hramba/internal/receipt"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HRAMBA_"

// DotEnvFile is the optional dotenv file read by Load.
var DotEnvFile = ".env"

// Config is the server configuration.
type Config struct {
	DB          string        `yaml:"db" env:"DB"`
	Addr        string        `yaml:"addr" env:"ADDR"`
	Log         string        `yaml:"log" env:"LOG"`
	JWTSecret   string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenExpiry time.Duration `yaml:"token_expiry" env:"TOKEN_EXPIRY"`
	Metrics     bool          `yaml:"metrics" env:"METRICS"`
	ReceiptSize int           `yaml:"receipt_size" env:"RECEIPT_SIZE"`

	// Capacity overrides department ceilings, e.g. HRAMBA_CAPACITY=documents:50,photos:80.
	Capacity map[string]int `yaml:"capacity" env:"CAPACITY"`
	// RolePasswords sets role passwords on startup.
	RolePasswords map[string]string `yaml:"role_passwords" env:"ROLE_PASSWORDS"`
	// Roles overrides the capabilities of the listed roles.
	Roles map[string][]model.Capability `yaml:"roles"`

	Lockout Lockout `yaml:"lockout" envPrefix:"LOCKOUT_"`
}

// Lockout configures the login lockout.
type Lockout struct {
	MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	Duration    time.Duration `yaml:"duration" env:"DURATION"`
}

// Default returns the built-in configuration.
func Default() *Config {
	limits := capacity.DefaultLimits()
	caps := make(map[string]int, len(limits))
	for d, n := range limits {
		caps[string(d)] = n
	}

	return &Config{
		DB:          "hramba.sqlite3",
		Addr:        ":8080",
		TokenExpiry: auth.TokenExpiry,
		ReceiptSize: receipt.DefaultSize,
		Capacity:    caps,
		Lockout: Lockout{
			MaxAttempts: auth.DefaultMaxAttempts,
			Duration:    auth.DefaultLockoutDuration,
		},
	}
}

// Load builds the configuration. path names an optional YAML file; an
// empty path skips it. Map settings from later sources are merged key by
// key into earlier ones.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", DotEnvFile, err)
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	base := c.Capacity
	c.Capacity = nil

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	c.Capacity = merge(base, c.Capacity)
	return nil
}

func (c *Config) loadEnv() error {
	caps, passwords := c.Capacity, c.RolePasswords
	c.Capacity, c.RolePasswords = nil, nil

	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	c.Capacity = merge(caps, c.Capacity)
	c.RolePasswords = merge(passwords, c.RolePasswords)
	return nil
}

func merge[V any](base, over map[string]V) map[string]V {
	if base == nil && over == nil {
		return nil
	}
	out := make(map[string]V, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.TokenExpiry <= 0 {
		errs = append(errs, errors.New("token_expiry must be positive"))
	}
	if c.Lockout.MaxAttempts <= 0 {
		errs = append(errs, errors.New("lockout.max_attempts must be positive"))
	}
	if c.Lockout.Duration <= 0 {
		errs = append(errs, errors.New("lockout.duration must be positive"))
	}
	if c.ReceiptSize < receipt.MinSize || c.ReceiptSize > receipt.MaxSize {
		errs = append(errs, fmt.Errorf("receipt_size must be between %d and %d", receipt.MinSize, receipt.MaxSize))
	}

	for d := range c.Capacity {
		if !model.Department(d).Valid() {
			errs = append(errs, fmt.Errorf("capacity: unknown department %q", d))
		}
	}
	for role, password := range c.RolePasswords {
		switch {
		case !model.ValidRole(role):
			errs = append(errs, fmt.Errorf("role_passwords: unknown role %q", role))
		case !model.RequiresPassword(role):
			errs = append(errs, fmt.Errorf("role_passwords: role %q has no password", role))
		case len(password) < auth.MinPasswordLength:
			errs = append(errs, fmt.Errorf("role_passwords: %s password must be at least %d characters", role, auth.MinPasswordLength))
		}
	}
	for role, caps := range c.Roles {
		if !model.ValidRole(role) {
			errs = append(errs, fmt.Errorf("roles: unknown role %q", role))
		}
		for _, cp := range caps {
			if !model.ValidCapability(cp) {
				errs = append(errs, fmt.Errorf("roles: %s: unknown capability %q", role, cp))
			}
		}
	}

	return errors.Join(errs...)
}

// Limits returns the department ceilings.
func (c *Config) Limits() map[model.Department]int {
	limits := capacity.DefaultLimits()
	for d, n := range c.Capacity {
		limits[model.Department(d)] = n
	}
	return limits
}

// Permissions returns the role capabilities with overrides applied.
func (c *Config) Permissions() model.Permissions {
	perms := model.DefaultPermissions()
	for role, caps := range c.Roles {
		perms[role] = append([]model.Capability{}, caps...)
	}
	return perms
}
