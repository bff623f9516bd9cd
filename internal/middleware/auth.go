// internal/middleware/auth.go
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/collabhub/collab-backend/internal/config"
	"github.com/collabhub/collab-backend/internal/i18n"
	"github.com/collabhub/collab-backend/internal/models"
	"github.com/collabhub/collab-backend/internal/utils"
)

// AuthRequired validates the bearer token from the external identity service
// and places a typed actor identity in the request context. Lifecycle
// services receive that actor explicitly; nothing downstream reads raw
// claims.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": i18n.T(lang, i18n.KeyAuthRequired),
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": i18n.T(lang, i18n.KeyAuthInvalidToken),
			})
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": i18n.T(lang, i18n.KeyAuthTokenExpired),
			})
			c.Abort()
			return
		}

		actorID, err := uuid.Parse(claims.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": i18n.T(lang, i18n.KeyAuthInvalidToken),
			})
			c.Abort()
			return
		}

		var actorType models.ActorType
		switch claims.Role {
		case string(models.ActorTypeSponsor):
			actorType = models.ActorTypeSponsor
		case string(models.ActorTypeFulfiller):
			actorType = models.ActorTypeFulfiller
		default:
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": i18n.T(lang, i18n.KeyAuthInvalidToken),
			})
			c.Abort()
			return
		}

		c.Set("actor", models.Actor{Type: actorType, ID: actorID})
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// SystemRequired gates the privileged operations (payment release, payout
// advance, the auto-release trigger) behind the X-System-Key credential.
// When a bcrypt hash is configured it is preferred; the plain-key comparison
// is constant time.
func SystemRequired(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := utils.GetLangFromContext(c)

		key := c.GetHeader("X-System-Key")
		if key == "" || !systemKeyValid(cfg, key) {
			c.JSON(http.StatusForbidden, gin.H{
				"error": i18n.T(lang, i18n.KeySystemAccessDenied),
			})
			c.Abort()
			return
		}

		c.Set("actor", models.Actor{Type: models.ActorTypeSystem})
		c.Next()
	}
}

func systemKeyValid(cfg *config.Config, key string) bool {
	if cfg.System.KeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.System.KeyHash), []byte(key)) == nil
	}
	if cfg.System.Key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.System.Key), []byte(key)) == 1
}
