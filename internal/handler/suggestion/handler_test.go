package suggestion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside/internal/middleware"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository/memory"
	"github.com/jwalitptl/chairside/internal/service/calendar"
	"github.com/jwalitptl/chairside/internal/service/suggestion"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	"github.com/jwalitptl/chairside/internal/suggest"
	"github.com/jwalitptl/chairside/pkg/auth"
)

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func setupRouter(t *testing.T, rec suggestion.Recommender) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	grid, err := slotgrid.New(slotgrid.Config{
		WorkingHours: model.WorkingHours{StartHour: 9, EndHour: 12},
		SlotMinutes:  60,
		Location:     time.UTC,
	})
	require.NoError(t, err)

	store := memory.NewStore()
	now := time.Date(2024, time.June, 11, 8, 0, 0, 0, time.UTC)
	cal := calendar.NewService(store.Appointments(), grid, time.UTC, time.Hour, slotgrid.FixedClock(now))
	svc := suggestion.NewService(cal, store.Appointments(), rec, suggestion.Config{}, nil, nil)

	r := gin.New()
	api := r.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.ContextIdentity, &auth.Identity{TenantID: "t1"})
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)
	return r
}

func post(t *testing.T, r *gin.Engine, body interface{}) (*httptest.ResponseRecorder, model.SuggestSlotsResponse) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/suggestions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env struct {
		Data model.SuggestSlotsResponse `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env.Data
}

func TestHandler_Suggest(t *testing.T) {
	gen := generatorFunc(func(_ context.Context, prompt string) (string, error) {
		assert.Contains(t, prompt, "2024-06-12T10:00:00Z")
		return "```json\n" + `[{"startTime":"2024-06-12T10:00:00Z","endTime":"2024-06-12T11:00:00Z","reason":"mid-morning"}]` + "\n```", nil
	})
	r := setupRouter(t, suggest.NewAdapter(gen, nil, nil))

	w, resp := post(t, r, gin.H{"date": "2024-06-12", "appointment_notes": "crown fitting"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.False(t, resp.Degraded)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, "mid-morning", resp.Suggestions[0].Reason)
	assert.Len(t, resp.Available, 3)
}

func TestHandler_SuggestDegraded(t *testing.T) {
	gen := generatorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("quota exceeded")
	})
	r := setupRouter(t, suggest.NewAdapter(gen, nil, nil))

	w, resp := post(t, r, gin.H{"date": "2024-06-12"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Degraded)
	assert.Empty(t, resp.Suggestions)
	assert.Len(t, resp.Available, 3)
	assert.Contains(t, resp.Message, "unavailable")
}

func TestHandler_SuggestDisabled(t *testing.T) {
	r := setupRouter(t, nil)

	w, resp := post(t, r, gin.H{"date": "2024-06-12"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Degraded)
	assert.Equal(t, "slot suggestions are disabled", resp.Message)
}

func TestHandler_SuggestBadDate(t *testing.T) {
	r := setupRouter(t, nil)

	w, _ := post(t, r, gin.H{"date": "June 12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
