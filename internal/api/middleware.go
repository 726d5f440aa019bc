package api

import (
	"alcyxob/coaching-platform/internal/domain"
	"alcyxob/coaching-platform/internal/logger"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// ContextPrincipalKey holds the authenticated caller.
const ContextPrincipalKey = "principal"

// jwtClaims is the payload issued by the identity provider. Coaches and
// clients are both identified by uid.
type jwtClaims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// principal is the caller a request acts for.
type principal struct {
	ID   string
	Role domain.Role
}

var errNoPrincipal = errors.New("no authenticated principal in context")

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware checks the HMAC-signed JWT of the request and stores the
// caller as a principal. Tokens without an expiry are refused.
func AuthMiddleware(log *logger.Logger, jwtSecret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(jwtSecret), nil }

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}
		raw, ok := bearerToken(authHeader)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims := &jwtClaims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortWithError(c, http.StatusUnauthorized, "Token has expired")
				return
			}
			log.Debug("rejected token", "path", c.FullPath(), "error", err)
			abortWithError(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		if claims.UserID == "" || claims.Role == "" {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}
		if claims.ExpiresAt == nil || !claims.ExpiresAt.Time.After(time.Now()) {
			abortWithError(c, http.StatusUnauthorized, "Token has no valid expiry")
			return
		}

		c.Set(ContextPrincipalKey, principal{ID: claims.UserID, Role: claims.Role})
		c.Next()
	}
}

func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// RoleMiddleware lets through principals holding one of allowedRoles.
// Must run after AuthMiddleware.
func RoleMiddleware(log *logger.Logger, allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := principalFrom(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, err.Error())
			return
		}
		for _, allowed := range allowedRoles {
			if p.Role == allowed {
				c.Next()
				return
			}
		}
		log.Warn("role denied", "userId", p.ID, "role", p.Role, "path", c.FullPath())
		abortWithError(c, http.StatusForbidden, fmt.Sprintf("Access denied: Role '%s' does not have permission", p.Role))
	}
}

func principalFrom(c *gin.Context) (principal, error) {
	raw, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return principal{}, errNoPrincipal
	}
	p, ok := raw.(principal)
	if !ok {
		return principal{}, errNoPrincipal
	}
	return p, nil
}
