package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"university-user-service/internal/adapter/gin/response"
	pkgerrors "university-user-service/pkg/errors"
	"university-user-service/pkg/logger"
	"university-user-service/pkg/token"
)

const claimsKey = "auth.claims"

const (
	msgNoToken      = "no token"
	msgInvalidToken = "invalid or expired token"
)

// TokenVerifier checks a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// RevocationChecker reports whether a token ID has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticate rejects requests without a valid bearer token and attaches
// the decoded claims to the context. revoked may be nil.
func Authenticate(verifier TokenVerifier, revoked RevocationChecker, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Fail(c, pkgerrors.KindUnauthorized, msgNoToken)
			return
		}

		claims, err := verifier.Verify(raw)
		if err != nil {
			logger.WithContext(c.Request.Context(), log).Debug("token rejected", zap.Error(err))
			response.Fail(c, pkgerrors.KindUnauthorized, msgInvalidToken)
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.IsRevoked(c.Request.Context(), claims.TokenID())
			if err != nil {
				logger.WithContext(c.Request.Context(), log).Error("token denylist lookup failed", zap.Error(err))
				response.Error(c, pkgerrors.NewInternalError("token denylist lookup failed", err))
				return
			}
			if isRevoked {
				response.Fail(c, pkgerrors.KindUnauthorized, msgInvalidToken)
				return
			}
		}

		c.Set(claimsKey, claims)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// RequireRoles allows the request only when the caller's role is listed.
// It must run after Authenticate.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			response.Fail(c, pkgerrors.KindUnauthorized, msgNoToken)
			return
		}
		if !slices.Contains(roles, claims.Role) {
			response.Fail(c, pkgerrors.KindForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(c *gin.Context) (*token.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok && claims != nil
}

func bearerToken(header string) (string, bool) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}
