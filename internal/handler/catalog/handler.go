package catalog

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/pkg/httputil"
)

// Catalog is the clinic's static booking setup.
type Catalog struct {
	Services           []string           `json:"services"`
	WorkingHours       model.WorkingHours `json:"working_hours"`
	SlotMinutes        int                `json:"slot_minutes"`
	AppointmentMinutes int                `json:"appointment_minutes"`
	Timezone           string             `json:"timezone"`
	SuggestionsEnabled bool               `json:"suggestions_enabled"`
}

type Handler struct {
	catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	if catalog.Services == nil {
		catalog.Services = []string{}
	}
	return &Handler{catalog: catalog}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/services", h.ListServices)
	r.GET("/settings", h.GetSettings)
}

func (h *Handler) ListServices(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.catalog.Services)
}

func (h *Handler) GetSettings(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.catalog)
}
