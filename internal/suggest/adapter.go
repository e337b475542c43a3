package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/metrics"
	"github.com/jwalitptl/chairside/pkg/validator"
)

var (
	// ErrUpstream means the model could not be reached or refused the call.
	ErrUpstream = errors.New("recommendation service unavailable")
	// ErrSchema means a request or response did not match the contract.
	ErrSchema = errors.New("recommendation schema violation")
	// ErrInvalidRequest is the request-side flavour of ErrSchema.
	ErrInvalidRequest = errors.New("invalid recommendation request")
)

// Generator sends a prompt to a language model and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Adapter brokers one structured request/response with a Generator.
type Adapter struct {
	gen      Generator
	validate validator.Validator
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewAdapter(gen Generator, log *logger.Logger, m *metrics.Metrics) *Adapter {
	if log == nil {
		log = logger.Nop()
	}
	return &Adapter{
		gen:      gen,
		validate: validator.New(),
		logger:   log,
		metrics:  m,
	}
}

type response struct {
	Suggestions []model.SlotSuggestion `json:"suggestions" validate:"dive"`
}

// Suggest returns the model's ranked slots. The result is advisory: entries
// are not checked against the offered slots.
func (a *Adapter) Suggest(ctx context.Context, req model.SuggestionRequest) ([]model.SlotSuggestion, error) {
	if len(req.AvailableTimeSlots) == 0 {
		return []model.SlotSuggestion{}, nil
	}
	if err := a.validate.Validate(req); err != nil {
		a.metrics.ObserveSuggestion("invalid_request", 0)
		return nil, fmt.Errorf("%w: %w: %v", ErrSchema, ErrInvalidRequest, err)
	}

	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := a.gen.Generate(ctx, prompt)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		a.metrics.ObserveSuggestion("upstream_error", elapsed)
		a.logger.WithContext(ctx).Error(err, "slot recommendation call failed")
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	suggestions, err := a.parse(raw)
	if err != nil {
		a.metrics.ObserveSuggestion("schema_error", elapsed)
		a.logger.WithContext(ctx).Warn("slot recommendation response rejected", "error", err.Error())
		return nil, err
	}

	a.metrics.ObserveSuggestion("ok", elapsed)
	return suggestions, nil
}

func (a *Adapter) parse(raw string) ([]model.SlotSuggestion, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty response", ErrSchema)
	}

	var resp response
	if err := json.Unmarshal([]byte(body), &resp.Suggestions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if resp.Suggestions == nil {
		return nil, fmt.Errorf("%w: response is not an array", ErrSchema)
	}
	if err := a.validate.Validate(resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return resp.Suggestions, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
