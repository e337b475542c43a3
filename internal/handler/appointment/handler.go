package appointment

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/chairside/internal/middleware"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/service/appointment"
	"github.com/jwalitptl/chairside/internal/service/notification"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/httputil"
)

type Handler struct {
	service       *appointment.Service
	notifications *notification.Service
}

func NewHandler(service *appointment.Service, notifications *notification.Service) *Handler {
	return &Handler{service: service, notifications: notifications}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.CreateAppointment)
		appointments.GET("", h.ListAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
		appointments.GET("/:id/notifications", h.ListNotifications)
	}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	appt, err := h.service.Create(c.Request.Context(), middleware.Tenant(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, appt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	appt, err := h.service.Get(c.Request.Context(), middleware.Tenant(c).ID, c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

// ListAppointments accepts optional patient_id, from and to (RFC 3339).
func (h *Handler) ListAppointments(c *gin.Context) {
	filters := &model.AppointmentFilters{PatientID: c.Query("patient_id")}

	var err error
	if filters.From, err = parseTime(c.Query("from")); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid from", err))
		return
	}
	if filters.To, err = parseTime(c.Query("to")); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid to", err))
		return
	}

	appts, err := h.service.List(c.Request.Context(), middleware.Tenant(c).ID, filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appts)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	appt, err := h.service.Update(c.Request.Context(), middleware.Tenant(c), c.Param("id"), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.Tenant(c).ID, c.Param("id")); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "appointment deleted")
}

func (h *Handler) ListNotifications(c *gin.Context) {
	tenantID := middleware.Tenant(c).ID
	appt, err := h.service.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	history, err := h.notifications.History(c.Request.Context(), tenantID, appt.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, history)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
