// internal/handlers/payment.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/collabhub/collab-backend/internal/i18n"
	"github.com/collabhub/collab-backend/internal/scheduler"
	"github.com/collabhub/collab-backend/internal/services"
	"github.com/collabhub/collab-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	autoRelease    *scheduler.AutoRelease
}

func NewPaymentHandler(paymentService *services.PaymentService, autoRelease *scheduler.AutoRelease) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		autoRelease:    autoRelease,
	}
}

// GET /agreements/:id/payments
func (h *PaymentHandler) ListAgreementPayments(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListForAgreement(actor, agreementID)
	if err != nil {
		handleServiceError(c, err, "payment")
		return
	}

	utils.SuccessResponse(c, payments)
}

// GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	paymentID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.GetPayment(actor, paymentID)
	if err != nil {
		handleServiceError(c, err, "payment")
		return
	}

	utils.SuccessResponse(c, payment)
}

// POST /payments/:id/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	paymentID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.Initiate(actor, paymentID)
	if err != nil {
		handleServiceError(c, err, "payment")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPaymentInitiated),
		"payment": payment,
	})
}

// POST /system/payments/:id/release
func (h *PaymentHandler) ReleasePayment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	paymentID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	payment, err := h.paymentService.Release(actor, paymentID)
	if err != nil {
		handleServiceError(c, err, "payment")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPaymentReleased),
		"payment": payment,
	})
}

// POST /system/payments/release-due
func (h *PaymentHandler) TriggerAutoRelease(c *gin.Context) {
	if _, exists := utils.GetActorFromContext(c); !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	h.autoRelease.RunOnce()

	utils.SuccessResponse(c, gin.H{"message": "release pass completed"})
}
