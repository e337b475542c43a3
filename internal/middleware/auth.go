package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/pkg/auth"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/httputil"
)

const ContextIdentity = "identity"

type AuthMiddleware struct {
	verifier auth.Verifier
}

func NewAuthMiddleware(verifier auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate verifies the bearer token and stores the dentist's identity
// on both the gin and request contexts.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrMissingToken))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(auth.ErrInvalidToken))
			return
		}

		id, err := m.verifier.Verify(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized(err))
			return
		}

		c.Set(ContextIdentity, id)
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// Tenant returns the authenticated dentist as a tenant. Only valid behind
// Authenticate.
func Tenant(c *gin.Context) model.Tenant {
	v, _ := c.Get(ContextIdentity)
	id, _ := v.(*auth.Identity)
	if id == nil {
		return model.Tenant{}
	}
	return model.Tenant{ID: id.TenantID, ClinicName: id.ClinicName, Phone: id.Phone}
}
