package reminder

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/chairside/internal/middleware"
	"github.com/jwalitptl/chairside/internal/service/notification"
	"github.com/jwalitptl/chairside/internal/service/reminder"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/httputil"
)

const defaultNotificationLimit = 50

type Handler struct {
	service       *reminder.Service
	notifications *notification.Service
}

func NewHandler(service *reminder.Service, notifications *notification.Service) *Handler {
	return &Handler{service: service, notifications: notifications}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reminders := r.Group("/reminders")
	{
		reminders.GET("", h.ListReminders)
		reminders.POST("/:appointmentId/send", h.SendReminder)
	}
	r.GET("/notifications", h.ListNotifications)
}

func (h *Handler) ListReminders(c *gin.Context) {
	cards, err := h.service.Cards(c.Request.Context(), middleware.Tenant(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, cards)
}

func (h *Handler) SendReminder(c *gin.Context) {
	n, err := h.service.Send(c.Request.Context(), middleware.Tenant(c), c.Param("appointmentId"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, n)
}

func (h *Handler) ListNotifications(c *gin.Context) {
	limit := defaultNotificationLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			httputil.RespondWithError(c, apperrors.BadRequest("limit must be between 1 and 500", err))
			return
		}
		limit = n
	}

	out, err := h.notifications.List(c.Request.Context(), middleware.Tenant(c).ID, limit)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, out)
}
