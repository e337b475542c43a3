package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task, opts)
	return &asynq.TaskInfo{}, args.Error(0)
}

type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) DeleteTask(queue, id string) error {
	return m.Called(queue, id).Error(0)
}

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, p model.ReminderPayload) error {
	return m.Called(ctx, p).Error(0)
}

var now = time.Date(2024, time.June, 12, 8, 0, 0, 0, time.UTC)

func TestReminderScheduler_Schedule(t *testing.T) {
	client := new(MockEnqueuer)
	m := metrics.NewMetricsWith(prometheus.NewRegistry(), "test", "worker")
	s := NewReminderScheduler(client, nil, []time.Duration{24 * time.Hour, 2 * time.Hour}, m, nil)
	s.now = func() time.Time { return now }

	// 24h before is already past, so only the 2h reminder is queued.
	appt := &model.Appointment{Base: model.Base{ID: "a1"}, StartTime: now.Add(5 * time.Hour)}
	client.On("EnqueueContext", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		var p model.ReminderPayload
		return task.Type() == TypeSendReminder &&
			json.Unmarshal(task.Payload(), &p) == nil &&
			p.AppointmentID == "a1" && p.ClinicName == "Bright Smiles" && p.StartTime.Equal(appt.StartTime)
	}), mock.Anything).Return(nil).Once()

	err := s.Schedule(context.Background(), model.Tenant{ID: "t1", ClinicName: "Bright Smiles"}, appt)
	require.NoError(t, err)
	client.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemindersQueued))
}

func TestReminderScheduler_DuplicateIsNotAnError(t *testing.T) {
	client := new(MockEnqueuer)
	client.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(asynq.ErrTaskIDConflict)
	s := NewReminderScheduler(client, nil, []time.Duration{time.Hour}, nil, nil)
	s.now = func() time.Time { return now }

	err := s.Schedule(context.Background(), model.Tenant{ID: "t1"}, &model.Appointment{Base: model.Base{ID: "a1"}, StartTime: now.Add(3 * time.Hour)})
	assert.NoError(t, err)
}

func TestReminderScheduler_EnqueueError(t *testing.T) {
	client := new(MockEnqueuer)
	client.On("EnqueueContext", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))
	s := NewReminderScheduler(client, nil, []time.Duration{time.Hour}, nil, nil)
	s.now = func() time.Time { return now }

	err := s.Schedule(context.Background(), model.Tenant{ID: "t1"}, &model.Appointment{Base: model.Base{ID: "a1"}, StartTime: now.Add(3 * time.Hour)})
	assert.ErrorContains(t, err, "redis down")
}

func TestReminderScheduler_Cancel(t *testing.T) {
	inspector := new(MockDeleter)
	start := now.Add(5 * time.Hour)
	inspector.On("DeleteTask", ReminderQueue, ReminderTaskID("a1", start, 24*time.Hour)).Return(asynq.ErrTaskNotFound)
	inspector.On("DeleteTask", ReminderQueue, ReminderTaskID("a1", start, 2*time.Hour)).Return(nil)
	s := NewReminderScheduler(nil, inspector, []time.Duration{24 * time.Hour, 2 * time.Hour}, nil, nil)

	require.NoError(t, s.Cancel(context.Background(), &model.Appointment{Base: model.Base{ID: "a1"}, StartTime: start}))
	inspector.AssertExpectations(t)
}

func TestReminderTaskID(t *testing.T) {
	start := time.Unix(1718200000, 0)
	assert.Equal(t, "reminder:a1:1718200000:120", ReminderTaskID("a1", start, 2*time.Hour))
	assert.NotEqual(t, ReminderTaskID("a1", start, time.Hour), ReminderTaskID("a1", start.Add(time.Minute), time.Hour))
}

func TestReminderHandler(t *testing.T) {
	d := new(MockDeliverer)
	payload := model.ReminderPayload{TenantID: "t1", AppointmentID: "a1", StartTime: now}
	d.On("Deliver", mock.Anything, mock.MatchedBy(func(p model.ReminderPayload) bool {
		return p.AppointmentID == "a1" && p.StartTime.Equal(now)
	})).Return(nil)

	task, _, err := NewReminderTask(payload, now, "id")
	require.NoError(t, err)

	h := NewReminderHandler(d, nil)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	d.AssertExpectations(t)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TypeSendReminder, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
