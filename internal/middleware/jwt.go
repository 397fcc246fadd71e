package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ace-lms-api/internal/models"
	appErrors "github.com/noah-isme/ace-lms-api/pkg/errors"
	"github.com/noah-isme/ace-lms-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// Self lets a caller through RBAC when the :id route parameter is their own user ID.
const Self = "SELF"

// TokenValidator turns an access token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT rejects requests without a valid bearer access token and stores the claims for later handlers.
func JWT(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="ace-lms"`)
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "bearer token required"))
			return
		}
		claims, err := validator.ValidateToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="ace-lms", error="invalid_token"`)
			response.Error(c, err)
			return
		}
		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// CurrentUser returns the claims attached by JWT, or nil on anonymous requests.
func CurrentUser(c *gin.Context) *models.JWTClaims {
	claims, _ := c.Value(ContextUserKey).(*models.JWTClaims)
	return claims
}

// RBAC admits callers whose role is listed. Listing Self also admits a caller acting on
// their own :id.
func RBAC(allowed ...string) gin.HandlerFunc {
	roles := make(map[models.UserRole]bool, len(allowed))
	for _, a := range allowed {
		roles[models.UserRole(a)] = true
	}
	self := roles[Self]

	return func(c *gin.Context) {
		claims := CurrentUser(c)
		switch {
		case claims == nil:
			response.Error(c, appErrors.ErrUnauthorized)
		case roles[claims.Role], self && c.Param("id") != "" && c.Param("id") == claims.UserID:
			c.Next()
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" may not access this resource"))
		}
	}
}

// RequireRoles is RBAC without the Self rule.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// Staff admits admins and instructors.
func Staff() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleInstructor)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}
