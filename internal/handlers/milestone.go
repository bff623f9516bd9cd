// internal/handlers/milestone.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/collabhub/collab-backend/internal/i18n"
	"github.com/collabhub/collab-backend/internal/services"
	"github.com/collabhub/collab-backend/internal/utils"
)

type MilestoneHandler struct {
	milestoneService *services.MilestoneService
	storageService   *services.StorageService
}

func NewMilestoneHandler(milestoneService *services.MilestoneService, storageService *services.StorageService) *MilestoneHandler {
	return &MilestoneHandler{
		milestoneService: milestoneService,
		storageService:   storageService,
	}
}

// POST /agreements/:id/milestones
func (h *MilestoneHandler) CreateMilestone(c *gin.Context) {
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

	var req services.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	milestone, err := h.milestoneService.CreateMilestone(actor, agreementID, &req)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.CreatedResponse(c, milestone)
}

// GET /agreements/:id/milestones
func (h *MilestoneHandler) ListMilestones(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	agreementID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	milestones, err := h.milestoneService.ListMilestones(actor, agreementID)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.SuccessResponse(c, milestones)
}

// GET /milestones/:id
func (h *MilestoneHandler) GetMilestone(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	milestoneID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestoneService.GetMilestone(actor, milestoneID)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.SuccessResponse(c, milestone)
}

// POST /milestones/:id/submit
func (h *MilestoneHandler) SubmitMilestone(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	milestoneID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req services.SubmitMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	milestone, err := h.milestoneService.Submit(actor, milestoneID, &req)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":   i18n.T(lang, i18n.KeyMilestoneSubmitted),
		"milestone": milestone,
	})
}

// POST /milestones/:id/approve
func (h *MilestoneHandler) ApproveMilestone(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	milestoneID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestoneService.Approve(actor, milestoneID)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":   i18n.T(lang, i18n.KeyMilestoneApproved),
		"milestone": milestone,
	})
}

// POST /milestones/:id/request-revision
func (h *MilestoneHandler) RequestRevision(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	milestoneID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestoneService.RequestRevision(actor, milestoneID)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":   i18n.T(lang, i18n.KeyMilestoneRevisionRequested),
		"milestone": milestone,
	})
}

// DELETE /milestones/:id
func (h *MilestoneHandler) DeleteMilestone(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	milestoneID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.milestoneService.DeleteMilestone(actor, milestoneID); err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyMilestoneDeleted),
	})
}

// POST /milestones/:id/attachments
func (h *MilestoneHandler) UploadAttachment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	milestoneID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	// The upload is only allowed to parties that can see the milestone; the
	// key it returns is later bound through the submit operation.
	if _, err := h.milestoneService.GetMilestone(actor, milestoneID); err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyFileUploadFailed), err.Error())
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadAttachment(file, header, milestoneID)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyFileUploadSuccess),
		"file":    result,
	})
}

// GET /milestones/:id/attachment-url?key=...
func (h *MilestoneHandler) GetAttachmentURL(c *gin.Context) {
	actor, exists := utils.GetActorFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	milestoneID, ok := utils.ParseUUIDParam(c, "id")
	if !ok {
		return
	}

	milestone, err := h.milestoneService.GetMilestone(actor, milestoneID)
	if err != nil {
		handleServiceError(c, err, "milestone")
		return
	}

	key := c.Query("key")
	found := false
	for _, ref := range milestone.FileRefs {
		if ref == key {
			found = true
			break
		}
	}
	if !found {
		utils.NotFoundResponse(c, "milestone")
		return
	}

	url, err := h.storageService.AttachmentURL(key, 15*time.Minute)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"url": url})
}
