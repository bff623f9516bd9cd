// internal/handlers/agreement.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/collabhub/collab-backend/internal/i18n"
	"github.com/collabhub/collab-backend/internal/services"
	"github.com/collabhub/collab-backend/internal/utils"
)

type AgreementHandler struct {
	agreementService *services.AgreementService
}

func NewAgreementHandler(agreementService *services.AgreementService) *AgreementHandler {
	return &AgreementHandler{
		agreementService: agreementService,
	}
}

// POST /agreements
func (h *AgreementHandler) CreateAgreement(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.CreateAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	agreement, err := h.agreementService.CreateAgreement(actor, &req)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	utils.CreatedResponse(c, agreement)
}

// GET /agreements
func (h *AgreementHandler) ListAgreements(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)

	agreements, total, err := h.agreementService.ListAgreements(actor, params)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	result := utils.CreatePaginationResult(agreements, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /agreements/:id
func (h *AgreementHandler) GetAgreement(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	agreement, err := h.agreementService.GetAgreement(actor, agreementID)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	utils.SuccessResponse(c, agreement)
}

// PUT /agreements/:id
func (h *AgreementHandler) UpdateAgreement(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	agreement, err := h.agreementService.UpdateAgreement(actor, agreementID, &req)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	utils.SuccessResponse(c, agreement)
}

// POST /agreements/:id/send
func (h *AgreementHandler) SendAgreement(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.SendAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	agreement, err := h.agreementService.Send(actor, agreementID, &req)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":   i18n.T(lang, i18n.KeyAgreementSent),
		"agreement": agreement,
	})
}

// POST /agreements/:id/respond
func (h *AgreementHandler) RespondToAgreement(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	agreement, err := h.agreementService.Respond(actor, agreementID, &req)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	messageKey := i18n.KeyAgreementAccepted
	if req.Decision == "reject" {
		messageKey = i18n.KeyAgreementRejected
	}
	utils.SuccessResponse(c, gin.H{
		"message":   i18n.T(lang, messageKey),
		"agreement": agreement,
	})
}

// GET /agreements/:id/activity
func (h *AgreementHandler) GetActivity(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	activity, err := h.agreementService.ListActivity(actor, agreementID)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	utils.SuccessResponse(c, activity)
}

// GET /agreements/:id/events
func (h *AgreementHandler) GetEvents(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	events, err := h.agreementService.ListEvents(actor, agreementID)
	if err != nil {
		handleServiceError(c, err, "agreement")
		return
	}

	utils.SuccessResponse(c, events)
}
