package calendar

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/chairside/internal/live"
	"github.com/jwalitptl/chairside/internal/middleware"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/service/calendar"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/httputil"
)

// StreamPath is exempt from the request timeout.
const StreamPath = "/api/v1/calendar/stream"

// Feed streams tenant snapshots.
type Feed interface {
	Subscribe(ctx context.Context, tenantID string, filters *model.AppointmentFilters, fn func(live.Snapshot) error) error
}

type Handler struct {
	service *calendar.Service
	feed    Feed
}

// NewHandler builds the calendar handler. A nil feed disables the stream.
func NewHandler(service *calendar.Service, feed Feed) *Handler {
	return &Handler{service: service, feed: feed}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cal := r.Group("/calendar")
	{
		cal.GET("/week", h.Week)
		cal.GET("/day", h.Day)
		cal.GET("/slots", h.Slots)
		cal.GET("/today", h.Today)
		cal.GET("/upcoming", h.Upcoming)
		cal.GET("/stream", h.Stream)
	}
}

func (h *Handler) Week(c *gin.Context) {
	ref, ok := h.date(c)
	if !ok {
		return
	}
	week, err := h.service.Week(c.Request.Context(), middleware.Tenant(c).ID, ref)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, week)
}

func (h *Handler) Day(c *gin.Context) {
	day, ok := h.date(c)
	if !ok {
		return
	}
	view, err := h.service.Day(c.Request.Context(), middleware.Tenant(c).ID, day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, view)
}

// Slots lists every start time of the day; available=true keeps only the
// bookable ones.
func (h *Handler) Slots(c *gin.Context) {
	day, ok := h.date(c)
	if !ok {
		return
	}
	if c.Query("available") != "true" {
		httputil.RespondWithSuccess(c, h.service.Slots(day))
		return
	}
	slots, err := h.service.Available(c.Request.Context(), middleware.Tenant(c).ID, day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) Today(c *gin.Context) {
	appts, err := h.service.Today(c.Request.Context(), middleware.Tenant(c).ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appts)
}

func (h *Handler) Upcoming(c *gin.Context) {
	appts, err := h.service.Upcoming(c.Request.Context(), middleware.Tenant(c).ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appts)
}

// Stream pushes the week view as server-sent events: once on connect and
// again after every change to the tenant's appointments or patients.
func (h *Handler) Stream(c *gin.Context) {
	if h.feed == nil {
		httputil.RespondWithError(c, apperrors.Unavailable("live updates are disabled", nil))
		return
	}
	ref, ok := h.date(c)
	if !ok {
		return
	}
	tenantID := middleware.Tenant(c).ID
	from, to := h.service.WeekRange(ref)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	// The server's write timeout would otherwise cut the stream.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	err := h.feed.Subscribe(c.Request.Context(), tenantID, &model.AppointmentFilters{From: from, To: to}, func(s live.Snapshot) error {
		c.SSEvent("week", h.service.RenderWeek(ref, s.Appointments))
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("calendar stream ended")
		c.SSEvent("error", gin.H{"message": "stream interrupted"})
		c.Writer.Flush()
	}
}

func (h *Handler) date(c *gin.Context) (time.Time, bool) {
	d, err := h.service.ParseDate(c.Query("date"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid date, expected YYYY-MM-DD", err))
		return d, false
	}
	return d, true
}
