package http

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/payment-requests/internal/domain/apperr"
	"github.com/garyjia/payment-requests/internal/domain/entity"
)

// UserIDHeader carries the id of the acting user. Credential issuance happens
// upstream; this service trusts the gateway that sets it.
const UserIDHeader = "X-User-ID"

const principalKey = "principal"

// PrincipalResolver turns a user id into the acting principal
type PrincipalResolver interface {
	Principal(ctx context.Context, userID int64) (*entity.Principal, error)
}

// authMiddleware resolves the principal or aborts with 401
func authMiddleware(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(UserIDHeader))
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			abortWithError(c, apperr.ErrUnauthenticated)
			return
		}

		p, err := resolver.Principal(c.Request.Context(), id)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// principalFrom returns the principal set by authMiddleware, or nil
func principalFrom(c *gin.Context) *entity.Principal {
	v, exists := c.Get(principalKey)
	if !exists {
		return nil
	}
	p, _ := v.(*entity.Principal)
	return p
}
