package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30m" or "2h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Index     IndexConfig       `yaml:"index"`
	Pool      PoolConfig        `yaml:"pool"`
	Search    SearchConfig      `yaml:"search"`
	Tracker   TrackerConfig     `yaml:"tracker"`
	Scheduler SchedulerConfig   `yaml:"scheduler"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// IndexConfig holds the index database path and indexing behaviour.
type IndexConfig struct {
	DatabasePath      string   `yaml:"database_path"`
	Roots             []string `yaml:"roots"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	ReanalyzeInterval Duration `yaml:"reanalyze_interval"`
	Workers           int      `yaml:"workers"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatabasePath, validation.Required),
		validation.Field(&c.Roots, validation.Required, validation.Length(1, 0)),
	)
}

// PoolConfig holds connection pool sizing.
type PoolConfig struct {
	MaxConnections int      `yaml:"max_connections"`
	MinIdle        int      `yaml:"min_idle"`
	AcquireTimeout Duration `yaml:"acquire_timeout"`
	MaxIdleTime    Duration `yaml:"max_idle_time"`
}

// Validate validates the pool configuration.
func (c *PoolConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxConnections, validation.Min(1), validation.Max(100)),
		validation.Field(&c.MinIdle, validation.Min(0)),
	)
}

// SearchConfig holds query-side tuning.
type SearchConfig struct {
	CacheTTL     Duration `yaml:"cache_ttl"`
	DefaultLimit int      `yaml:"default_limit"`
}

// TrackerConfig holds delete/move correlation tuning.
type TrackerConfig struct {
	MoveTimeout Duration `yaml:"move_timeout"`
}

// SchedulerConfig holds the periodic task intervals.
type SchedulerConfig struct {
	QuickInterval        Duration `yaml:"quick_interval"`
	FullInterval         Duration `yaml:"full_interval"`
	HousekeepingInterval Duration `yaml:"housekeeping_interval"`
	QuickWindow          Duration `yaml:"quick_window"`
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Index: IndexConfig{
			DatabasePath:      "./raido.db",
			Roots:             []string{"./data"},
			ReanalyzeInterval: Duration(24 * time.Hour),
		},
		Pool: PoolConfig{
			MaxConnections: 10,
			MinIdle:        2,
			AcquireTimeout: Duration(10 * time.Second),
			MaxIdleTime:    Duration(5 * time.Minute),
		},
		Search: SearchConfig{
			CacheTTL:     Duration(time.Hour),
			DefaultLimit: 10,
		},
		Tracker: TrackerConfig{
			MoveTimeout: Duration(5 * time.Second),
		},
		Scheduler: SchedulerConfig{
			QuickInterval:        Duration(30 * time.Minute),
			FullInterval:         Duration(2 * time.Hour),
			HousekeepingInterval: Duration(24 * time.Hour),
			QuickWindow:          Duration(2 * time.Hour),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
