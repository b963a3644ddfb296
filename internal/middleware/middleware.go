package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"reserva/internal/auth"
	"reserva/internal/models"
)

// Ctx key and helpers for the verified principal
// Using unexported type to avoid collisions

type ctxKey string

const principalKey ctxKey = "principal"

func ContextWithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return auth.Principal{}, false
	}
	p, ok := v.(auth.Principal)
	return p, ok
}

// CORS handles cross-origin requests
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	}
}

// Logger emits one structured line per request
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)

		logFields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", c.Writer.Status(),
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if p, exists := c.Get("principal"); exists {
			if principal, ok := p.(auth.Principal); ok {
				logFields = append(logFields, "role", string(principal.Role))
			}
		}

		if c.Writer.Status() >= 500 {
			if len(c.Errors) > 0 {
				logFields = append(logFields, "error", c.Errors.String())
			}
			slog.Error("Request failed", logFields...)
		} else if c.Writer.Status() == http.StatusUnauthorized {
			// Credential failures are logged for security monitoring.
			slog.Warn("Unauthorized request", logFields...)
		}
	}
}

// Recovery converts panics into 500 responses with full logging
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		slog.Error("PANIC recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"client_ip", c.ClientIP(),
		)

		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		}
	})
}

// BearerAuth verifies the bearer credential with the isolation guard and
// attaches the resulting principal to the request context. Scope checks
// against a target tenant happen in the handlers, where the target is known.
func BearerAuth(guard *auth.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
			return
		}

		principal, err := guard.ParseCredential(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid credentials"})
			return
		}

		c.Set("principal", principal)
		c.Request = c.Request.WithContext(ContextWithPrincipal(c.Request.Context(), principal))

		c.Next()
	}
}

// RequireRole short-circuits requests whose principal lacks the role.
// Role-gated routes also hide behind 404 to avoid advertising their
// existence to the wrong audience.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := PrincipalFromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
			return
		}
		for _, role := range roles {
			if p.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Error: "Not found"})
	}
}
