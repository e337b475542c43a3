package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository/memory"
	"github.com/jwalitptl/chairside/pkg/messaging"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

type MockSMS struct {
	mock.Mock
}

func (m *MockSMS) Send(ctx context.Context, to, body string) error {
	return m.Called(ctx, to, body).Error(0)
}

func (m *MockSMS) ProviderID() string { return "mock" }

type MockPush struct {
	mock.Mock
}

func (m *MockPush) Send(ctx context.Context, tenantID, title, body string, data map[string]string) error {
	return m.Called(ctx, tenantID, title, body, data).Error(0)
}

func setup(t *testing.T, ch Channels) (*Service, *memory.Store, *metrics.Metrics) {
	t.Helper()
	store := memory.NewStore()
	m := metrics.NewMetricsWith(prometheus.NewRegistry(), "test", "notification")
	return NewService(store.Notifications(), ch, m, nil), store, m
}

func TestService_SendSMS(t *testing.T) {
	smsSender := new(MockSMS)
	smsSender.On("Send", mock.Anything, "5550100100", "Hi Jane").Return(nil)
	svc, store, m := setup(t, Channels{SMS: smsSender})
	ctx := context.Background()

	n := &model.Notification{TenantID: "t1", AppointmentID: "a1", Channel: model.ChannelSMS, Recipient: "5550100100", Content: "Hi Jane"}
	require.NoError(t, svc.Send(ctx, n))

	assert.Equal(t, model.NotificationStatusSent, n.Status)
	require.NotNil(t, n.SentAt)

	stored, err := store.Notifications().ListByAppointment(ctx, "t1", "a1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.NotificationStatusSent, stored[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("sms", "sent")))
	smsSender.AssertExpectations(t)
}

func TestService_SendFailureIsRecorded(t *testing.T) {
	smsSender := new(MockSMS)
	smsSender.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("gateway down"))
	svc, store, m := setup(t, Channels{SMS: smsSender})
	ctx := context.Background()

	err := svc.Send(ctx, &model.Notification{TenantID: "t1", AppointmentID: "a1", Channel: model.ChannelSMS, Recipient: "5550100100", Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway down")

	stored, err := svc.History(ctx, "t1", "a1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.NotificationStatusFailed, stored[0].Status)
	assert.Equal(t, "gateway down", stored[0].LastError)
	assert.Nil(t, stored[0].SentAt)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("sms", "failed")))

	all, err := store.Notifications().List(ctx, "t1", 10)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestService_SendDisabledChannel(t *testing.T) {
	svc, _, _ := setup(t, Channels{})
	err := svc.Send(context.Background(), &model.Notification{TenantID: "t1", Channel: model.ChannelEmail, Recipient: "a@b.c", Content: "x"})
	assert.ErrorIs(t, err, ErrChannelDisabled)
}

func TestService_SendPush(t *testing.T) {
	p := new(MockPush)
	p.On("Send", mock.Anything, "t1", "Upcoming appointment", "Jane at 10:00", mock.MatchedBy(func(d map[string]string) bool {
		return d["appointment_id"] == "a1" && d["notification_id"] != ""
	})).Return(nil)
	svc, _, _ := setup(t, Channels{Push: p})

	err := svc.Send(context.Background(), &model.Notification{
		TenantID: "t1", AppointmentID: "a1", Channel: model.ChannelPush,
		Subject: "Upcoming appointment", Content: "Jane at 10:00",
	})
	require.NoError(t, err)
	p.AssertExpectations(t)
}

func TestService_SendInApp(t *testing.T) {
	broker := messaging.NewMemoryBroker()
	defer broker.Close()
	svc, _, _ := setup(t, Channels{InApp: broker})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msgs, err := broker.Subscribe(ctx, model.ChangeChannel("t1", model.NotificationsCollection))
	require.NoError(t, err)

	require.NoError(t, svc.Send(ctx, &model.Notification{TenantID: "t1", Channel: model.ChannelInApp, Content: "Jane is due"}))

	select {
	case raw := <-msgs:
		var got model.Notification
		require.NoError(t, json.Unmarshal(raw, &got))
		assert.Equal(t, "Jane is due", got.Content)
	case <-ctx.Done():
		t.Fatal("in-app notification not published")
	}
}

func TestService_SendValidation(t *testing.T) {
	svc, _, _ := setup(t, Channels{})
	tests := []struct {
		name string
		n    model.Notification
	}{
		{"no tenant", model.Notification{Channel: model.ChannelSMS, Recipient: "1", Content: "x"}},
		{"no channel", model.Notification{TenantID: "t1", Recipient: "1", Content: "x"}},
		{"no recipient", model.Notification{TenantID: "t1", Channel: model.ChannelSMS, Content: "x"}},
		{"no content", model.Notification{TenantID: "t1", Channel: model.ChannelSMS, Recipient: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := tt.n
			assert.Error(t, svc.Send(context.Background(), &n))
		})
	}
}
