package security

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"site-cloner/internal/middleware"
	"site-cloner/internal/utils"
	"site-cloner/pkg/response"
)

const claimsKey = "user_claims"

// AuthMiddleware provides JWT authentication middleware
type AuthMiddleware struct {
	jwtManager *JWTManager
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(jwtManager *JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
	}
}

// RequireAuth rejects requests without a valid bearer token.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.authenticate(c) {
			c.Next()
		}
	}
}

// RequireRole authenticates the request and then checks for role.
func (am *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !am.authenticate(c) {
			return
		}
		claims, _ := GetUserClaims(c)
		if !claims.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ForbiddenResponse(
				"Insufficient permissions",
				middleware.GetCorrelationID(c),
			))
			return
		}
		c.Next()
	}
}

// authenticate stores the token's claims on c, or aborts and returns false.
func (am *AuthMiddleware) authenticate(c *gin.Context) bool {
	token, err := ExtractTokenFromHeader(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.UnauthorizedResponse(
			err.Error(), middleware.GetCorrelationID(c),
		))
		return false
	}

	claims, err := am.jwtManager.ValidateToken(token)
	if errors.Is(err, ErrTokenExpired) {
		am.reject(c, utils.ErrCodeTokenExpired, "Token has expired")
		return false
	}
	if err != nil {
		am.reject(c, utils.ErrCodeInvalidToken, "Invalid token")
		return false
	}

	c.Set(claimsKey, claims)
	c.Set("user_id", claims.Subject)
	c.Set("username", claims.Username)
	return true
}

func (am *AuthMiddleware) reject(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse(
		code, message, "", middleware.GetCorrelationID(c),
	))
}

// GetUserClaims extracts user claims from context
func GetUserClaims(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
