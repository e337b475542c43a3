package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jwalitptl/chairside/pkg/circuitbreaker"
)

type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// GeminiGenerator asks Gemini for JSON constrained by the suggestion schema.
type GeminiGenerator struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	timeout time.Duration
	cb      *circuitbreaker.CircuitBreaker
}

func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	name := cfg.Model
	if name == "" {
		name = "gemini-1.5-flash"
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = SuggestionSchema()

	return &GeminiGenerator{
		client:  client,
		model:   model,
		timeout: cfg.Timeout,
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "gemini",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
			IsFailure: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
		}),
	}, nil
}

// SuggestionSchema mirrors model.SlotSuggestion as a Gemini response schema.
func SuggestionSchema() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: "Suggested optimal time slots with reasons.",
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"startTime": {Type: genai.TypeString, Description: "Suggested start time (RFC 3339)."},
				"endTime":   {Type: genai.TypeString, Description: "Suggested end time (RFC 3339)."},
				"reason":    {Type: genai.TypeString, Description: "Reason for suggesting this time slot."},
			},
			Required: []string{"startTime", "endTime", "reason"},
		},
	}
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var resp *genai.GenerateContentResponse
	err := g.cb.Execute(func() error {
		var err error
		resp, err = g.model.GenerateContent(ctx, genai.Text(prompt))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return sb.String(), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
