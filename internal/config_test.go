package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/gtdspace/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	d, err := cfg.Calendar.FirstWeekday()
	if err != nil || d != time.Monday {
		t.Errorf("week start = %v, %v", d, err)
	}
	kinds, err := cfg.Calendar.Kinds()
	if err != nil || len(kinds) != 0 {
		t.Errorf("default kinds = %v, %v", kinds, err)
	}
}

func TestCalendarConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CalendarConfig)
		wantErr bool
	}{
		{"sunday start", func(c *CalendarConfig) { c.WeekStart = "Sunday" }, false},
		{"bad week start", func(c *CalendarConfig) { c.WeekStart = "someday" }, true},
		{"kinds subset", func(c *CalendarConfig) { c.DefaultKinds = []string{"due", "focus"} }, false},
		{"unknown kind", func(c *CalendarConfig) { c.DefaultKinds = []string{"birthdays"} }, true},
		{"missing tick", func(c *CalendarConfig) { c.NowTick = 0 }, true},
		{"tick too fast", func(c *CalendarConfig) { c.NowTick = time.Millisecond }, true},
		{"negative throttle", func(c *CalendarConfig) { c.ScheduleThrottle = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Calendar
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWorkspaceConfig_Timezone(t *testing.T) {
	cfg := WorkspaceConfig{Path: "/tmp/gtd", Timezone: "UTC"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("UTC should be valid: %v", err)
	}
	loc, _ := cfg.Location()
	if loc != time.UTC {
		t.Errorf("location = %v", loc)
	}

	cfg.Timezone = "Mars/Olympus_Mons"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown timezone should fail")
	}
}

func TestFullConfig_LoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "workspace:\n  path: ${GTD_TEST_ROOT}\ncalendar:\n  week_start: sunday\n  now_tick: 30s\n  default_kinds: [due, habit]\nhabits:\n  reset_interval: 5m\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GTD_TEST_ROOT", "/srv/gtd")

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workspace.Path != "/srv/gtd" {
		t.Errorf("workspace path = %q", cfg.Workspace.Path)
	}
	if cfg.Calendar.NowTick != 30*time.Second || cfg.Habits.ResetInterval != 5*time.Minute {
		t.Errorf("durations = %v, %v", cfg.Calendar.NowTick, cfg.Habits.ResetInterval)
	}
	if cfg.App.HTTP.Port != 8080 {
		t.Errorf("port default lost: %d", cfg.App.HTTP.Port)
	}
	if len(cfg.Calendar.DefaultKinds) != 2 {
		t.Errorf("kinds = %v", cfg.Calendar.DefaultKinds)
	}
}
