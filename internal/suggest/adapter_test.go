package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/model"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func request(slots ...model.SlotCandidate) model.SuggestionRequest {
	return model.SuggestionRequest{
		ClientHistory:                   "Six-monthly cleanings, sensitive to cold.",
		AppointmentNotes:                "Follow-up on filling #14.",
		DesiredAppointmentLengthMinutes: 30,
		AvailableTimeSlots:              slots,
	}
}

var (
	slotTen    = model.SlotCandidate{StartTime: "2024-06-03T10:00:00Z", EndTime: "2024-06-03T10:30:00Z"}
	slotTwelve = model.SlotCandidate{StartTime: "2024-06-03T12:00:00+02:00", EndTime: "2024-06-03T12:30:00+02:00"}
)

func TestSuggest_EmptySlotsSkipsModel(t *testing.T) {
	gen := new(MockGenerator)
	a := NewAdapter(gen, nil, nil)

	got, err := a.Suggest(context.Background(), request())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestSuggest_Success(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return assert.Contains(t, p, "Follow-up on filling #14.") &&
			assert.Contains(t, p, "2024-06-03T10:00:00Z")
	})).Return(`[
		{"startTime":"2024-06-03T12:00:00+02:00","endTime":"2024-06-03T12:30:00+02:00","reason":"Midday leaves time to prep."},
		{"startTime":"2024-06-03T10:00:00Z","endTime":"2024-06-03T10:30:00Z","reason":"Morning slot."}
	]`, nil)

	a := NewAdapter(gen, nil, nil)
	got, err := a.Suggest(context.Background(), request(slotTen, slotTwelve))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-06-03T12:00:00+02:00", got[0].StartTime)
	assert.Equal(t, "Morning slot.", got[1].Reason)
	gen.AssertExpectations(t)
}

func TestSuggest_FencedResponse(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).
		Return("```json\n[{\"startTime\":\"2024-06-03T10:00:00Z\",\"endTime\":\"2024-06-03T10:30:00Z\",\"reason\":\"ok\"}]\n```", nil)

	got, err := NewAdapter(gen, nil, nil).Suggest(context.Background(), request(slotTen))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSuggest_EmptyArrayIsValid(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(`[]`, nil)

	got, err := NewAdapter(gen, nil, nil).Suggest(context.Background(), request(slotTen))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggest_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing reason", `[{"startTime":"2024-06-03T10:00:00Z","endTime":"2024-06-03T10:30:00Z"}]`},
		{"empty reason", `[{"startTime":"2024-06-03T10:00:00Z","endTime":"2024-06-03T10:30:00Z","reason":""}]`},
		{"bad timestamp", `[{"startTime":"tomorrow at ten","endTime":"2024-06-03T10:30:00Z","reason":"x"}]`},
		{"no offset", `[{"startTime":"2024-06-03T10:00:00","endTime":"2024-06-03T10:30:00Z","reason":"x"}]`},
		{"object not array", `{"startTime":"2024-06-03T10:00:00Z"}`},
		{"wrong type", `[{"startTime":"2024-06-03T10:00:00Z","endTime":"2024-06-03T10:30:00Z","reason":7}]`},
		{"null", `null`},
		{"prose", `I would suggest 10am.`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(MockGenerator)
			gen.On("Generate", mock.Anything, mock.Anything).Return(tt.raw, nil)

			got, err := NewAdapter(gen, nil, nil).Suggest(context.Background(), request(slotTen))
			assert.Nil(t, got)
			assert.ErrorIs(t, err, ErrSchema)
			assert.NotErrorIs(t, err, ErrUpstream)
		})
	}
}

func TestSuggest_UpstreamError(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("dial tcp: connection refused"))

	got, err := NewAdapter(gen, nil, nil).Suggest(context.Background(), request(slotTen))
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrSchema)
}

func TestSuggest_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  model.SuggestionRequest
	}{
		{"zero length", func() model.SuggestionRequest { r := request(slotTen); r.DesiredAppointmentLengthMinutes = 0; return r }()},
		{"no history", func() model.SuggestionRequest { r := request(slotTen); r.ClientHistory = ""; return r }()},
		{"bad slot", request(model.SlotCandidate{StartTime: "10:00", EndTime: "10:30"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(MockGenerator)
			_, err := NewAdapter(gen, nil, nil).Suggest(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrSchema)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestSuggest_OutputIsValidInput(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).
		Return(`[{"startTime":"2024-06-03T12:00:00+02:00","endTime":"2024-06-03T12:30:00+02:00","reason":"r"}]`, nil)
	a := NewAdapter(gen, nil, nil)

	first, err := a.Suggest(context.Background(), request(slotTen, slotTwelve))
	require.NoError(t, err)

	next := make([]model.SlotCandidate, 0, len(first))
	for _, s := range first {
		next = append(next, s.Candidate())
	}
	_, err = a.Suggest(context.Background(), request(next...))
	assert.NoError(t, err)
}

func TestRenderPrompt(t *testing.T) {
	p, err := RenderPrompt(request(slotTen))
	require.NoError(t, err)

	assert.Contains(t, p, "helping a dentist schedule appointments")
	assert.Contains(t, p, "Client History: Six-monthly cleanings, sensitive to cold.")
	assert.Contains(t, p, "Desired Appointment Length (minutes): 30")

	slots, _ := json.Marshal([]model.SlotCandidate{slotTen})
	assert.Contains(t, p, "Available Time Slots: "+string(slots))
}

func TestSuggestionSchema(t *testing.T) {
	s := SuggestionSchema()
	require.NotNil(t, s.Items)
	assert.ElementsMatch(t, []string{"startTime", "endTime", "reason"}, s.Items.Required)
	assert.Len(t, s.Items.Properties, 3)
}
