// internal/handlers/payout.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/collabhub/collab-backend/internal/i18n"
	"github.com/collabhub/collab-backend/internal/models"
	"github.com/collabhub/collab-backend/internal/services"
	"github.com/collabhub/collab-backend/internal/utils"
)

type PayoutHandler struct {
	payoutService *services.PayoutService
}

func NewPayoutHandler(payoutService *services.PayoutService) *PayoutHandler {
	return &PayoutHandler{
		payoutService: payoutService,
	}
}

// GET /balance
func (h *PayoutHandler) GetBalance(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	if actor.Type != models.ActorTypeFulfiller {
		utils.ForbiddenResponse(c, "")
		return
	}

	balance, err := h.payoutService.ComputeBalance(actor.ID)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, balance)
}

// POST /payouts
func (h *PayoutHandler) RequestPayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	payout, err := h.payoutService.Request(actor, &req)
	if err != nil {
		handleServiceError(c, err, "payout")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutRequested),
		"payout":  payout,
	})
}

// GET /payouts
func (h *PayoutHandler) ListPayouts(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	if actor.Type != models.ActorTypeFulfiller {
		utils.ForbiddenResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)

	payouts, total, err := h.payoutService.ListForFulfiller(actor.ID, params)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(payouts, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /payouts/:id
func (h *PayoutHandler) GetPayout(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	payoutID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	payout, err := h.payoutService.GetPayout(actor, payoutID)
	if err != nil {
		handleServiceError(c, err, "payout")
		return
	}

	utils.SuccessResponse(c, payout)
}

// POST /system/payouts/:id/advance
func (h *PayoutHandler) AdvancePayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	payoutID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.AdvancePayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	payout, err := h.payoutService.Advance(actor, payoutID, &req)
	if err != nil {
		handleServiceError(c, err, "payout")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutAdvanced),
		"payout":  payout,
	})
}
