package suggestion

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/chairside/internal/middleware"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/service/suggestion"
	"github.com/jwalitptl/chairside/pkg/httputil"
)

type Handler struct {
	service *suggestion.Service
}

func NewHandler(service *suggestion.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/suggestions", h.Suggest)
}

// Suggest returns up to three recommended slots plus every free slot of the
// day. A degraded response still carries the free slots.
func (h *Handler) Suggest(c *gin.Context) {
	var req model.SuggestSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	resp, err := h.service.Suggest(c.Request.Context(), middleware.Tenant(c).ID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}
