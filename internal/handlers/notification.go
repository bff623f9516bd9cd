// internal/handlers/notification.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/collabhub/collab-backend/internal/services"
	"github.com/collabhub/collab-backend/internal/utils"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GET /notifications
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	notifications, err := h.notificationService.ListForUser(actor.ID, limit)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, notifications)
}

// POST /notifications/:id/read
func (h *NotificationHandler) MarkNotificationRead(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	notificationID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(actor.ID, notificationID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", "notification not found", nil)
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "notification marked read"})
}
