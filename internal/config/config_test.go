package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/slotgrid"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
clinic:
  timezone: UTC
  working_hours:
    start_hour: 8
    end_hour: 18
  slot_minutes: 20
reminders:
  offsets: ["24h", "1h"]
`)
	t.Setenv("GEMINI_API_KEY", "key-123")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Clinic.WorkingHours.StartHour)
	assert.Equal(t, 18, cfg.Clinic.WorkingHours.EndHour)
	assert.Equal(t, 20, cfg.Clinic.SlotMinutes)
	assert.Equal(t, 30, cfg.Clinic.AppointmentMinutes)
	assert.Equal(t, []time.Duration{24 * time.Hour, time.Hour}, cfg.Reminders.Offsets)
	assert.Equal(t, 30*time.Minute, cfg.Notifications.UpcomingWindow)
	assert.Equal(t, "key-123", cfg.Secrets.GeminiAPIKey)
	assert.Equal(t, "Your Clinic", cfg.Clinic.DefaultName)
	assert.Equal(t, "postgres", cfg.Database.Driver)

	grid, err := cfg.GridConfig()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, grid.Location)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, "clinic:\n  timezone: UTC\n")
	t.Setenv("CHAIRSIDE_SERVER_PORT", "9999")
	t.Setenv("CHAIRSIDE_CLINIC_SLOT_MINUTES", "60")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Clinic.SlotMinutes)
}

func TestLoadConfig_InvalidWorkingHoursFailsAtStartup(t *testing.T) {
	path := writeConfig(t, `
clinic:
  timezone: UTC
  working_hours:
    start_hour: 9
    end_hour: 17
  slot_minutes: 50
`)
	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, slotgrid.ErrInvalidConfig)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "postgres"},
			Auth:     AuthConfig{Provider: "firebase"},
			Clinic: ClinicConfig{
				Timezone:           "UTC",
				SlotMinutes:        30,
				AppointmentMinutes: 30,
			},
			Notifications: NotificationConfig{UpcomingWindow: time.Minute, PollInterval: time.Minute},
		}
	}

	c := base()
	c.Clinic.WorkingHours.StartHour, c.Clinic.WorkingHours.EndHour = 9, 17
	assert.NoError(t, c.Validate())

	c = base()
	c.Clinic.WorkingHours.StartHour, c.Clinic.WorkingHours.EndHour = 17, 9
	assert.ErrorIs(t, c.Validate(), slotgrid.ErrInvalidConfig)

	c = base()
	c.Clinic.WorkingHours.EndHour = 17
	c.Auth.Provider = "jwt"
	assert.Error(t, c.Validate())
	c.Secrets.JWTSecret = "s"
	assert.NoError(t, c.Validate())

	c.Clinic.Timezone = "Mars/Olympus"
	assert.Error(t, c.Validate())

	c = base()
	c.Clinic.WorkingHours.EndHour = 17
	c.Reminders.Offsets = []time.Duration{-time.Hour}
	assert.Error(t, c.Validate())

	c = base()
	c.Clinic.WorkingHours.EndHour = 17
	c.Database.Driver = "mysql"
	assert.Error(t, c.Validate())
	c.Database.Driver = "memory"
	assert.NoError(t, c.Validate())
}
