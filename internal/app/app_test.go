package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/config"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "memory"},
		Auth:     config.AuthConfig{Provider: "jwt", Issuer: "chairside"},
		Clinic: config.ClinicConfig{
			Timezone:           "UTC",
			WorkingHours:       model.WorkingHours{StartHour: 0, EndHour: 24},
			SlotMinutes:        30,
			AppointmentMinutes: 30,
		},
		Suggestions:   config.SuggestionConfig{Enabled: true},
		Reminders:     config.ReminderConfig{Enabled: true, Offsets: []time.Duration{time.Hour}},
		Notifications: config.NotificationConfig{UpcomingWindow: time.Hour, PollInterval: time.Minute},
		Secrets:       config.Secrets{JWTSecret: "secret"},
	}
}

func TestNew_MemoryDriver(t *testing.T) {
	m := metrics.NewMetricsWith(prometheus.NewRegistry(), "chairside", "test")
	a, err := New(context.Background(), memoryConfig(), nil, m)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Queue)
	assert.Nil(t, a.QueueClient)
	assert.Empty(t, a.Checks)
	assert.False(t, a.SuggestionsEnabled)
	require.NotNil(t, a.Verifier)

	ctx := context.Background()
	p, err := a.PatientService.Create(ctx, "t1", &model.CreatePatientRequest{Name: "Jane Doe", Phone: "5550100100"})
	require.NoError(t, err)

	start := time.Now().UTC().Truncate(30 * time.Minute).Add(2 * time.Hour)
	appt, err := a.AppointmentService.Create(ctx, model.Tenant{ID: "t1"}, &model.CreateAppointmentRequest{
		PatientID: p.ID,
		StartTime: start,
		Service:   "Cleaning",
	})
	require.NoError(t, err)

	cards, err := a.ReminderService.Cards(ctx, model.Tenant{ID: "t1"})
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, appt.ID, cards[0].AppointmentID)

	resp, err := a.SuggestionService.Suggest(ctx, "t1", &model.SuggestSlotsRequest{Date: start.Format("2006-01-02")})
	require.NoError(t, err)
	assert.True(t, resp.Degraded)
}

func TestNew_InvalidGrid(t *testing.T) {
	cfg := memoryConfig()
	cfg.Clinic.SlotMinutes = 50
	_, err := New(context.Background(), cfg, nil, nil)
	assert.Error(t, err)
}

func TestQueueOpt(t *testing.T) {
	opt, err := QueueOpt(config.RedisConfig{URL: "redis://:pw@cache:6380/0", QueueDB: 2, PoolSize: 7})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opt.Addr)
	assert.Equal(t, "pw", opt.Password)
	assert.Equal(t, 2, opt.DB)
	assert.Equal(t, 7, opt.PoolSize)

	_, err = QueueOpt(config.RedisConfig{URL: "http://nope"})
	assert.Error(t, err)
}
