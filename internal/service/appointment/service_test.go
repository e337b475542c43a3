package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/repository/memory"
	"github.com/jwalitptl/chairside/internal/service/patient"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, tenant model.Tenant, appt *model.Appointment) error {
	return m.Called(ctx, tenant, appt).Error(0)
}

func (m *MockScheduler) Cancel(ctx context.Context, appt *model.Appointment) error {
	return m.Called(ctx, appt).Error(0)
}

var (
	now    = time.Date(2024, time.June, 12, 10, 5, 0, 0, time.UTC)
	tenant = model.Tenant{ID: "t1", ClinicName: "Bright Smiles", Phone: "5550199999"}
)

func at(hour, min int) time.Time {
	return time.Date(2024, time.June, 12, hour, min, 0, 0, time.UTC)
}

type fixture struct {
	svc       *Service
	store     *memory.Store
	patients  *patient.Service
	scheduler *MockScheduler
	metrics   *metrics.Metrics
	patientID string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	grid, err := slotgrid.New(slotgrid.Config{
		WorkingHours: model.WorkingHours{StartHour: 9, EndHour: 17},
		SlotMinutes:  30,
		Location:     time.UTC,
	})
	require.NoError(t, err)

	store := memory.NewStore()
	clock := slotgrid.FixedClock(now)
	patients := patient.NewService(store.Patients(), store.Appointments(), nil, clock)
	scheduler := new(MockScheduler)
	m := metrics.NewMetricsWith(prometheus.NewRegistry(), "test", "appointment")

	svc := NewService(store.Appointments(), patients, grid, Config{Duration: 30 * time.Minute},
		WithScheduler(scheduler), WithClock(clock), WithMetrics(m))

	p, err := patients.Create(context.Background(), tenant.ID, &model.CreatePatientRequest{Name: "Jane Doe", Phone: "5550100100"})
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, patients: patients, scheduler: scheduler, metrics: m, patientID: p.ID}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	f.scheduler.On("Schedule", mock.Anything, tenant, mock.AnythingOfType("*model.Appointment")).Return(nil)

	appt, err := f.svc.Create(context.Background(), tenant, &model.CreateAppointmentRequest{
		PatientID: f.patientID,
		StartTime: at(11, 0),
		Service:   "Cleaning",
	})
	require.NoError(t, err)

	assert.Equal(t, at(11, 30), appt.EndTime)
	assert.Equal(t, "Jane Doe", appt.PatientName)
	assert.Equal(t, "5550100100", appt.PatientPhone)
	f.scheduler.AssertExpectations(t)
}

func TestService_CreateWithInlinePatient(t *testing.T) {
	f := setup(t)
	f.scheduler.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	appt, err := f.svc.Create(context.Background(), tenant, &model.CreateAppointmentRequest{
		NewPatient: &model.CreatePatientRequest{Name: "Bob Roe", Phone: "5550100200"},
		StartTime:  at(14, 0),
		Service:    "Filling",
	})
	require.NoError(t, err)

	p, err := f.patients.Get(context.Background(), tenant.ID, appt.PatientID)
	require.NoError(t, err)
	assert.Equal(t, "Bob Roe", p.Name)
	assert.Equal(t, 1, p.TotalAppointments)
}

func TestService_CreateRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	existing := &model.Appointment{
		Base:      model.Base{TenantID: tenant.ID},
		PatientID: f.patientID,
		StartTime: at(11, 0),
		EndTime:   at(12, 0),
	}
	require.NoError(t, f.store.Appointments().Create(ctx, existing))

	tests := []struct {
		name   string
		start  time.Time
		code   apperrors.ErrorCode
		reason string
	}{
		{"anchored cell", at(11, 0), apperrors.ErrConflict, "occupied"},
		{"suppressed cell", at(11, 30), apperrors.ErrConflict, "occupied"},
		{"past slot", at(9, 30), apperrors.ErrBadRequest, "past"},
		{"off boundary", at(13, 15), apperrors.ErrBadRequest, "off_grid"},
		{"after hours", at(17, 0), apperrors.ErrBadRequest, "off_grid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(f.metrics.BookingsRejected.WithLabelValues(tt.reason))
			_, err := f.svc.Create(ctx, tenant, &model.CreateAppointmentRequest{
				PatientID: f.patientID,
				StartTime: tt.start,
				Service:   "Cleaning",
			})
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), err.Error())
			assert.Equal(t, before+1, testutil.ToFloat64(f.metrics.BookingsRejected.WithLabelValues(tt.reason)))
		})
	}

	t.Run("free cell after span", func(t *testing.T) {
		f.scheduler.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		_, err := f.svc.Create(ctx, tenant, &model.CreateAppointmentRequest{
			PatientID: f.patientID,
			StartTime: at(12, 0),
			Service:   "Cleaning",
		})
		assert.NoError(t, err)
	})
}

func TestService_CreateRejectedBookingLeavesNoPatient(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(context.Background(), tenant, &model.CreateAppointmentRequest{
		NewPatient: &model.CreatePatientRequest{Name: "Bob Roe", Phone: "5550100200"},
		StartTime:  at(9, 0),
		Service:    "Filling",
	})
	require.Error(t, err)

	all, err := f.patients.List(context.Background(), tenant.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

type failingAppointments struct {
	repository.AppointmentRepository
}

func (failingAppointments) Create(context.Context, *model.Appointment) error {
	return errors.New("db down")
}

func TestService_CreateInsertFailureRemovesInlinePatient(t *testing.T) {
	f := setup(t)
	grid, err := slotgrid.New(slotgrid.Config{
		WorkingHours: model.WorkingHours{StartHour: 9, EndHour: 17},
		SlotMinutes:  30,
		Location:     time.UTC,
	})
	require.NoError(t, err)
	svc := NewService(failingAppointments{f.store.Appointments()}, f.patients, grid,
		Config{Duration: 30 * time.Minute}, WithClock(slotgrid.FixedClock(now)))

	_, err = svc.Create(context.Background(), tenant, &model.CreateAppointmentRequest{
		NewPatient: &model.CreatePatientRequest{Name: "Bob Roe", Phone: "5550100200"},
		StartTime:  at(14, 0),
		Service:    "Filling",
	})
	require.Error(t, err)

	all, err := f.patients.List(context.Background(), tenant.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, f.patientID, all[0].ID)

	// An existing patient is never removed.
	_, err = svc.Create(context.Background(), tenant, &model.CreateAppointmentRequest{
		PatientID: f.patientID,
		StartTime: at(14, 0),
		Service:   "Filling",
	})
	require.Error(t, err)
	_, err = f.patients.Get(context.Background(), tenant.ID, f.patientID)
	assert.NoError(t, err)
}

func TestService_CreateUnknownPatient(t *testing.T) {
	f := setup(t)
	_, err := f.svc.Create(context.Background(), tenant, &model.CreateAppointmentRequest{
		PatientID: "missing",
		StartTime: at(14, 0),
		Service:   "Cleaning",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_UpdateMove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.scheduler.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.scheduler.On("Cancel", mock.Anything, mock.Anything).Return(nil)

	appt, err := f.svc.Create(ctx, tenant, &model.CreateAppointmentRequest{
		PatientID: f.patientID,
		StartTime: at(11, 0),
		Service:   "Cleaning",
	})
	require.NoError(t, err)

	// Lengthen in storage so the move has to keep a 60 minute span.
	appt.EndTime = at(12, 0)
	require.NoError(t, f.store.Appointments().Update(ctx, appt))

	// Moving into its own suppressed cell is allowed.
	start := at(11, 30)
	moved, err := f.svc.Update(ctx, tenant, appt.ID, &model.UpdateAppointmentRequest{StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, at(12, 30), moved.EndTime)

	f.scheduler.AssertNumberOfCalls(t, "Cancel", 1)
	f.scheduler.AssertNumberOfCalls(t, "Schedule", 2)
}

func TestService_UpdateNotesDoesNotReschedule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.scheduler.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	appt, err := f.svc.Create(ctx, tenant, &model.CreateAppointmentRequest{
		PatientID: f.patientID,
		StartTime: at(11, 0),
		Service:   "Cleaning",
	})
	require.NoError(t, err)

	notes := "sensitive upper right"
	got, err := f.svc.Update(ctx, tenant, appt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, got.Notes)
	f.scheduler.AssertNumberOfCalls(t, "Schedule", 1)
	f.scheduler.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.scheduler.On("Schedule", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.scheduler.On("Cancel", mock.Anything, mock.Anything).Return(nil)

	appt, err := f.svc.Create(ctx, tenant, &model.CreateAppointmentRequest{
		PatientID: f.patientID,
		StartTime: at(11, 0),
		Service:   "Cleaning",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, tenant.ID, appt.ID))
	_, err = f.svc.Get(ctx, tenant.ID, appt.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	err = f.svc.Delete(ctx, tenant.ID, appt.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	f.scheduler.AssertNumberOfCalls(t, "Cancel", 1)
}
