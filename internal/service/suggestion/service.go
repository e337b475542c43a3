package suggestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	"github.com/jwalitptl/chairside/internal/suggest"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/logger"
)

const (
	noHistory      = "No previous appointments."
	noNotes        = "No notes provided."
	historyEntries = 10
)

// Recommender ranks offered slots.
type Recommender interface {
	Suggest(ctx context.Context, req model.SuggestionRequest) ([]model.SlotSuggestion, error)
}

// Calendar supplies the day's bookable slots.
type Calendar interface {
	ParseDate(value string) (time.Time, error)
	Available(ctx context.Context, tenantID string, day time.Time) ([]model.TimeSlot, error)
}

type Config struct {
	MaxResults      int
	DefaultDuration time.Duration
}

type Service struct {
	calendar    Calendar
	appts       repository.AppointmentRepository
	recommender Recommender
	cfg         Config
	logger      *logger.Logger
	clock       slotgrid.Clock
}

// NewService wires the suggestion flow. A nil recommender turns suggestions
// off; callers still get the available slots.
func NewService(calendar Calendar, appts repository.AppointmentRepository, recommender Recommender, cfg Config, clock slotgrid.Clock, log *logger.Logger) *Service {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = 30 * time.Minute
	}
	if clock == nil {
		clock = slotgrid.SystemClock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		calendar:    calendar,
		appts:       appts,
		recommender: recommender,
		cfg:         cfg,
		logger:      log,
		clock:       clock,
	}
}

// Suggest never fails because of the recommender: errors degrade to an
// empty suggestion list so the dentist can still pick a slot by hand.
func (s *Service) Suggest(ctx context.Context, tenantID string, req *model.SuggestSlotsRequest) (*model.SuggestSlotsResponse, error) {
	day, err := s.calendar.ParseDate(req.Date)
	if err != nil {
		return nil, apperrors.BadRequest("invalid date", err)
	}
	available, err := s.calendar.Available(ctx, tenantID, day)
	if err != nil {
		return nil, err
	}

	resp := &model.SuggestSlotsResponse{
		Suggestions: []model.SlotSuggestion{},
		Available:   available,
	}
	if s.recommender == nil {
		resp.Degraded = true
		resp.Message = "slot suggestions are disabled"
		return resp, nil
	}
	if len(available) == 0 {
		resp.Message = "no free slots on this day"
		return resp, nil
	}

	history, err := s.history(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	duration := s.cfg.DefaultDuration
	if req.DurationMinutes > 0 {
		duration = time.Duration(req.DurationMinutes) * time.Minute
	}

	suggestions, err := s.recommender.Suggest(ctx, model.SuggestionRequest{
		ClientHistory:                   history,
		AppointmentNotes:                orDefault(req.AppointmentNotes, noNotes),
		DesiredAppointmentLengthMinutes: int(duration / time.Minute),
		AvailableTimeSlots:              model.CandidatesFromSlots(available),
	})
	if err != nil {
		resp.Degraded = true
		resp.Message = degradedMessage(err)
		s.logger.WithContext(ctx).Warn("serving slots without suggestions", "tenant_id", tenantID, "error", err.Error())
		return resp, nil
	}

	if len(suggestions) > s.cfg.MaxResults {
		suggestions = suggestions[:s.cfg.MaxResults]
	}
	resp.Suggestions = suggestions
	return resp, nil
}

// history prefers free text; otherwise it summarises the patient's past visits.
func (s *Service) history(ctx context.Context, tenantID string, req *model.SuggestSlotsRequest) (string, error) {
	if h := strings.TrimSpace(req.ClientHistory); h != "" {
		return h, nil
	}
	if req.PatientID == "" {
		return noHistory, nil
	}

	past, err := s.appts.List(ctx, tenantID, &model.AppointmentFilters{
		PatientID: req.PatientID,
		To:        s.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to load patient history: %w", err)
	}
	if len(past) == 0 {
		return noHistory, nil
	}
	if len(past) > historyEntries {
		past = past[len(past)-historyEntries:]
	}

	lines := make([]string, 0, len(past))
	for _, a := range past {
		line := fmt.Sprintf("%s: %s", a.StartTime.Format("Jan 2, 2006 3:04 PM"), orDefault(a.Service, "appointment"))
		if a.Notes != "" {
			line += " (" + a.Notes + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func degradedMessage(err error) string {
	switch {
	case errors.Is(err, suggest.ErrUpstream):
		return "suggestion service is unavailable, pick a slot manually"
	case errors.Is(err, suggest.ErrSchema):
		return "suggestion service returned an unusable answer, pick a slot manually"
	}
	return "suggestions failed, pick a slot manually"
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
