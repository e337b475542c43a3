package patient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository/memory"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
)

type change struct {
	collection string
	op         model.ChangeOp
	id         string
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []change
}

func (n *recordingNotifier) Changed(_ context.Context, _ string, collection string, op model.ChangeOp, id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change{collection, op, id})
}

var now = time.Date(2024, time.June, 12, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.NewStore()
	n := &recordingNotifier{}
	return NewService(store.Patients(), store.Appointments(), n, slotgrid.FixedClock(now)), store, n
}

func TestService_CreateAndGet(t *testing.T) {
	svc, store, n := setup(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, "t1", &model.CreatePatientRequest{Name: " Jane Doe ", Phone: "5550100100"})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", p.Name)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []change{{model.CollectionPatients, model.ChangeCreated, p.ID}}, n.changes)

	for _, start := range []time.Time{now.Add(-48 * time.Hour), now.Add(-24 * time.Hour), now.Add(24 * time.Hour)} {
		require.NoError(t, store.Appointments().Create(ctx, &model.Appointment{
			Base:      model.Base{TenantID: "t1"},
			PatientID: p.ID,
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
		}))
	}

	got, err := svc.Get(ctx, "t1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalAppointments)
	require.NotNil(t, got.LastVisit)
	assert.True(t, got.LastVisit.Equal(now.Add(-24*time.Hour)))
}

func TestService_CreateRejectsShortFields(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Create(context.Background(), "t1", &model.CreatePatientRequest{Name: "J", Phone: "5550100100"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestService_GetOtherTenantIsNotFound(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "t1", &model.CreatePatientRequest{Name: "Jane", Phone: "5550100100"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, "t2", p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_Update(t *testing.T) {
	svc, _, n := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "t1", &model.CreatePatientRequest{Name: "Jane", Phone: "5550100100"})
	require.NoError(t, err)

	email := "jane@example.com"
	got, err := svc.Update(ctx, "t1", p.ID, &model.UpdatePatientRequest{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
	assert.Equal(t, "Jane", got.Name)
	assert.Len(t, n.changes, 2)
	assert.Equal(t, model.ChangeUpdated, n.changes[1].op)
}

func TestService_DeleteKeepsAppointments(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "t1", &model.CreatePatientRequest{Name: "Jane", Phone: "5550100100"})
	require.NoError(t, err)
	a := &model.Appointment{Base: model.Base{TenantID: "t1"}, PatientID: p.ID, PatientName: "Jane", StartTime: now, EndTime: now.Add(time.Hour)}
	require.NoError(t, store.Appointments().Create(ctx, a))

	require.NoError(t, svc.Delete(ctx, "t1", p.ID))

	kept, err := store.Appointments().Get(ctx, "t1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", kept.PatientName)

	err = svc.Delete(ctx, "t1", p.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestService_ListSearch(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, "t1", &model.CreatePatientRequest{Name: "Jane Doe", Phone: "5550100100"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, "t1", &model.CreatePatientRequest{Name: "Bob Roe", Phone: "5550100200"})
	require.NoError(t, err)

	all, err := svc.List(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	found, err := svc.List(ctx, "t1", &model.PatientFilters{SearchTerm: "jane"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Jane Doe", found[0].Name)
	assert.Equal(t, 0, found[0].TotalAppointments)
}
