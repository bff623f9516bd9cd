// internal/handlers/common.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/collabhub/collab-backend/internal/services"
	"github.com/collabhub/collab-backend/internal/utils"
)

// handleServiceError maps the service error taxonomy onto HTTP responses.
// The resource name is the i18n prefix used for not-found messages.
func handleServiceError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		utils.NotFoundResponse(c, resource)
	case errors.Is(err, services.ErrUnauthorized):
		utils.ForbiddenResponse(c, err.Error())
	case errors.Is(err, services.ErrStateConflict):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrValidation):
		utils.BadRequestResponse(c, err.Error(), nil)
	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}
