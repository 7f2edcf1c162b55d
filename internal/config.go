package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/gtdspace/internal/calendar"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Calendar  CalendarConfig    `yaml:"calendar"`
	Habits    HabitsConfig      `yaml:"habits"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Workspace.Validate(); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Calendar.Validate(); err != nil {
		return fmt.Errorf("calendar: %w", err)
	}
	if err := c.Habits.Validate(); err != nil {
		return fmt.Errorf("habits: %w", err)
	}
	return nil
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

// WorkspaceConfig points at the GTD workspace root. A leading ~ is expanded.
type WorkspaceConfig struct {
	Path     string `yaml:"path"`
	Timezone string `yaml:"timezone"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
	)
}

// Location resolves Timezone. An empty value means the host's local zone.
func (c *WorkspaceConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
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

// CalendarConfig controls the schedule view.
type CalendarConfig struct {
	// ExternalCache is the JSON file written by the external calendar sync.
	// Empty disables external events.
	ExternalCache    string        `yaml:"external_cache"`
	WeekStart        string        `yaml:"week_start"`
	DefaultKinds     []string      `yaml:"default_kinds"`
	NowTick          time.Duration `yaml:"now_tick"`
	ScheduleThrottle time.Duration `yaml:"schedule_throttle"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WeekStart, validation.By(func(any) error {
			_, err := c.FirstWeekday()
			return err
		})),
		validation.Field(&c.DefaultKinds, validation.By(func(any) error {
			_, err := c.Kinds()
			return err
		})),
		validation.Field(&c.NowTick, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.ScheduleThrottle, validation.Min(time.Duration(0))),
	)
}

// FirstWeekday parses WeekStart. Empty means Monday.
func (c *CalendarConfig) FirstWeekday() (time.Weekday, error) {
	if c.WeekStart == "" {
		return time.Monday, nil
	}
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(c.WeekStart))]
	if !ok {
		return 0, errors.New("must be a day name such as monday")
	}
	return d, nil
}

// Kinds returns the enabled entry kinds. An empty list enables all of them.
func (c *CalendarConfig) Kinds() (calendar.KindSet, error) {
	return calendar.ParseKinds(strings.Join(c.DefaultKinds, ","))
}

// HabitsConfig controls the periodic habit reset pass.
type HabitsConfig struct {
	// ResetInterval is how often habits are checked for a new period.
	// Zero disables the background pass.
	ResetInterval time.Duration `yaml:"reset_interval"`
}

// Validate validates the habits configuration.
func (c *HabitsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ResetInterval, validation.Min(time.Duration(0))),
	)
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
		Workspace: WorkspaceConfig{
			Path: "~/GTD Space",
		},
		SQLite: SQLiteConfig{
			Path: "./gtdspace.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Calendar: CalendarConfig{
			WeekStart:        "monday",
			NowTick:          time.Minute,
			ScheduleThrottle: 500 * time.Millisecond,
		},
		Habits: HabitsConfig{
			ResetInterval: time.Minute,
		},
	}
}
