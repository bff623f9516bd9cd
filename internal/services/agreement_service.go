// internal/services/agreement_service.go
package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/database"
	"github.com/collabhub/collab-backend/internal/models"
	"github.com/collabhub/collab-backend/internal/utils"
)

type AgreementService struct {
	db     *gorm.DB
	events *EventService
}

type DeliverableSpec struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description,omitempty"`
}

type CreateAgreementRequest struct {
	Title          string            `json:"title" validate:"required,max=255"`
	TotalAmount    float64           `json:"total_amount" validate:"required,gt=0"`
	Currency       string            `json:"currency,omitempty" validate:"omitempty,len=3"`
	PaymentTerms   string            `json:"payment_terms,omitempty"`
	CancelTerms    string            `json:"cancel_terms,omitempty"`
	RevisionPolicy string            `json:"revision_policy,omitempty"`
	UsageRights    string            `json:"usage_rights,omitempty"`
	Deliverables   []DeliverableSpec `json:"deliverables" validate:"required,min=1,dive"`
}

type UpdateAgreementRequest struct {
	Title          *string           `json:"title,omitempty" validate:"omitempty,max=255"`
	TotalAmount    *float64          `json:"total_amount,omitempty" validate:"omitempty,gt=0"`
	PaymentTerms   *string           `json:"payment_terms,omitempty"`
	CancelTerms    *string           `json:"cancel_terms,omitempty"`
	RevisionPolicy *string           `json:"revision_policy,omitempty"`
	UsageRights    *string           `json:"usage_rights,omitempty"`
	Deliverables   []DeliverableSpec `json:"deliverables,omitempty" validate:"omitempty,min=1,dive"`
}

type SendAgreementRequest struct {
	FulfillerID    uuid.UUID `json:"fulfiller_id" validate:"required"`
	FulfillerEmail string    `json:"fulfiller_email" validate:"required,email"`
}

type RespondRequest struct {
	Decision models.RespondDecision `json:"decision" validate:"required,oneof=accept reject"`
}

func NewAgreementService(db *gorm.DB, events *EventService) *AgreementService {
	return &AgreementService{
		db:     db,
		events: events,
	}
}

func (s *AgreementService) CreateAgreement(actor models.Actor, req *CreateAgreementRequest) (*models.Agreement, error) {
	if actor.Type != models.ActorTypeSponsor {
		return nil, fmt.Errorf("%w: only sponsors create agreements", ErrUnauthorized)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	agreement := &models.Agreement{
		SponsorID:      actor.ID,
		Title:          req.Title,
		TotalAmount:    req.TotalAmount,
		Currency:       currency,
		PaymentTerms:   req.PaymentTerms,
		CancelTerms:    req.CancelTerms,
		RevisionPolicy: req.RevisionPolicy,
		UsageRights:    req.UsageRights,
		Status:         models.AgreementStatusDraft,
	}
	for i, d := range req.Deliverables {
		agreement.Deliverables = append(agreement.Deliverables, models.Deliverable{
			Position:    i + 1,
			Title:       d.Title,
			Description: d.Description,
		})
	}

	if err := s.db.Create(agreement).Error; err != nil {
		return nil, fmt.Errorf("failed to create agreement: %w", err)
	}

	return agreement, nil
}

// UpdateAgreement edits a draft. Deliverables may only be replaced while the
// agreement has never been sent; afterwards nothing on the agreement changes
// through this path.
func (s *AgreementService) UpdateAgreement(actor models.Actor, agreementID uuid.UUID, req *UpdateAgreementRequest) (*models.Agreement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	agreement, err := s.getOwnedAgreement(actor, agreementID)
	if err != nil {
		return nil, err
	}
	if agreement.Status != models.AgreementStatusDraft {
		return nil, fmt.Errorf("%w: agreement is no longer editable", ErrStateConflict)
	}

	if req.Title != nil {
		agreement.Title = *req.Title
	}
	if req.TotalAmount != nil {
		agreement.TotalAmount = *req.TotalAmount
	}
	if req.PaymentTerms != nil {
		agreement.PaymentTerms = *req.PaymentTerms
	}
	if req.CancelTerms != nil {
		agreement.CancelTerms = *req.CancelTerms
	}
	if req.RevisionPolicy != nil {
		agreement.RevisionPolicy = *req.RevisionPolicy
	}
	if req.UsageRights != nil {
		agreement.UsageRights = *req.UsageRights
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if req.Deliverables != nil {
			if err := tx.Where("agreement_id = ?", agreement.ID).Delete(&models.Deliverable{}).Error; err != nil {
				return fmt.Errorf("failed to replace deliverables: %w", err)
			}
			agreement.Deliverables = nil
			for i, d := range req.Deliverables {
				agreement.Deliverables = append(agreement.Deliverables, models.Deliverable{
					AgreementID: agreement.ID,
					Position:    i + 1,
					Title:       d.Title,
					Description: d.Description,
				})
			}
		}
		return tx.Save(agreement).Error
	})
	if err != nil {
		return nil, err
	}

	return agreement, nil
}

func (s *AgreementService) GetAgreement(actor models.Actor, agreementID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	query := s.db.Preload("Deliverables", func(db *gorm.DB) *gorm.DB {
		return db.Order("position asc")
	}).Preload("Milestones")

	if !actor.IsSystem() {
		query = query.Where("sponsor_id = ? OR fulfiller_id = ?", actor.ID, actor.ID)
	}

	if err := query.First(&agreement, "id = ?", agreementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: agreement", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &agreement, nil
}

func (s *AgreementService) ListAgreements(actor models.Actor, params utils.PaginationParams) ([]models.Agreement, int64, error) {
	query := s.db.Model(&models.Agreement{})
	if !actor.IsSystem() {
		query = query.Where("sponsor_id = ? OR fulfiller_id = ?", actor.ID, actor.ID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count agreements: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "status", "total_amount"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var agreements []models.Agreement
	if err := query.Find(&agreements).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch agreements: %w", err)
	}

	return agreements, total, nil
}

// Send transitions DRAFT -> SENT and binds the fulfiller identity. Only the
// owning sponsor may send, and only when policy terms and at least one
// milestone exist.
func (s *AgreementService) Send(actor models.Actor, agreementID uuid.UUID, req *SendAgreementRequest) (*models.Agreement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	agreement, err := s.getOwnedAgreement(actor, agreementID)
	if err != nil {
		return nil, err
	}
	if agreement.Status != models.AgreementStatusDraft {
		return nil, fmt.Errorf("%w: agreement can only be sent from draft", ErrStateConflict)
	}
	if !agreement.HasPolicyTerms() {
		return nil, fmt.Errorf("%w: payment terms and usage rights must be set before sending", ErrValidation)
	}

	var milestoneCount int64
	if err := s.db.Model(&models.Milestone{}).Where("agreement_id = ?", agreement.ID).Count(&milestoneCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count milestones: %w", err)
	}
	if milestoneCount == 0 {
		return nil, fmt.Errorf("%w: at least one milestone is required before sending", ErrValidation)
	}

	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Agreement{}).
			Where("id = ? AND status = ?", agreement.ID, models.AgreementStatusDraft).
			Updates(map[string]interface{}{
				"status":          models.AgreementStatusSent,
				"fulfiller_id":    req.FulfillerID,
				"fulfiller_email": req.FulfillerEmail,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to send agreement: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: agreement can only be sent from draft", ErrStateConflict)
		}

		if err := appendActivity(tx, agreement.ID, fmt.Sprintf("Agreement sent to %s", req.FulfillerEmail)); err != nil {
			return err
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionAgreementSent, models.EntityTypeAgreement, agreement.ID, models.JSONB{
			"agreement_id":    agreement.ID.String(),
			"title":           agreement.Title,
			"fulfiller_id":    req.FulfillerID.String(),
			"fulfiller_email": req.FulfillerEmail,
			"recipient_id":    req.FulfillerID.String(),
			"recipient_email": req.FulfillerEmail,
		})
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)

	agreement.Status = models.AgreementStatusSent
	fulfillerID := req.FulfillerID
	agreement.FulfillerID = &fulfillerID
	agreement.FulfillerEmail = req.FulfillerEmail
	return agreement, nil
}

// Respond records the bound fulfiller's decision on a SENT agreement.
func (s *AgreementService) Respond(actor models.Actor, agreementID uuid.UUID, req *RespondRequest) (*models.Agreement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	agreement, err := s.GetAgreement(actor, agreementID)
	if err != nil {
		return nil, err
	}
	if actor.Type != models.ActorTypeFulfiller || agreement.FulfillerID == nil || *agreement.FulfillerID != actor.ID {
		return nil, fmt.Errorf("%w: only the invited fulfiller can respond", ErrUnauthorized)
	}
	if agreement.Status != models.AgreementStatusSent {
		return nil, fmt.Errorf("%w: agreement is not awaiting a response", ErrStateConflict)
	}

	nextStatus := models.AgreementStatusActive
	action := models.ActionAgreementAccepted
	activity := "Agreement accepted by fulfiller"
	if req.Decision == models.RespondDecisionReject {
		nextStatus = models.AgreementStatusRejected
		action = models.ActionAgreementRejected
		activity = "Agreement rejected by fulfiller"
	}

	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Agreement{}).
			Where("id = ? AND status = ?", agreement.ID, models.AgreementStatusSent).
			Update("status", nextStatus)
		if result.Error != nil {
			return fmt.Errorf("failed to record response: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: agreement is not awaiting a response", ErrStateConflict)
		}

		if err := appendActivity(tx, agreement.ID, activity); err != nil {
			return err
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, action, models.EntityTypeAgreement, agreement.ID, models.JSONB{
			"agreement_id": agreement.ID.String(),
			"title":        agreement.Title,
			"decision":     string(req.Decision),
			"recipient_id": agreement.SponsorID.String(),
		})
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)

	agreement.Status = nextStatus
	return agreement, nil
}

// RecomputeCompletion moves an ACTIVE agreement to COMPLETED once every
// milestone is completed and every payment released. It is invoked after each
// payment release and is a no-op when the conditions do not hold or the
// agreement already completed.
func (s *AgreementService) RecomputeCompletion(agreementID uuid.UUID) error {
	var agreement models.Agreement
	if err := s.db.First(&agreement, "id = ?", agreementID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: agreement", ErrNotFound)
		}
		return fmt.Errorf("database error: %w", err)
	}
	if agreement.Status != models.AgreementStatusActive {
		return nil
	}

	var openMilestones int64
	if err := s.db.Model(&models.Milestone{}).
		Where("agreement_id = ? AND status <> ?", agreementID, models.MilestoneStatusCompleted).
		Count(&openMilestones).Error; err != nil {
		return fmt.Errorf("failed to count open milestones: %w", err)
	}
	if openMilestones > 0 {
		return nil
	}

	var unreleasedPayments int64
	if err := s.db.Model(&models.Payment{}).
		Where("agreement_id = ? AND status <> ?", agreementID, models.PaymentStatusReleased).
		Count(&unreleasedPayments).Error; err != nil {
		return fmt.Errorf("failed to count unreleased payments: %w", err)
	}
	if unreleasedPayments > 0 {
		return nil
	}

	systemActor := models.Actor{Type: models.ActorTypeSystem}
	var entry *models.EventLog
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Agreement{}).
			Where("id = ? AND status = ?", agreementID, models.AgreementStatusActive).
			Update("status", models.AgreementStatusCompleted)
		if result.Error != nil {
			return fmt.Errorf("failed to complete agreement: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Another run already completed it.
			return nil
		}

		if err := appendActivity(tx, agreementID, "All milestones delivered and paid; agreement completed"); err != nil {
			return err
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, systemActor, models.ActionAgreementCompleted, models.EntityTypeAgreement, agreementID, models.JSONB{
			"agreement_id": agreementID.String(),
			"title":        agreement.Title,
		})
		return recordErr
	})
	if err != nil {
		return err
	}
	s.events.Emit(entry)
	return nil
}

// ListActivity returns the agreement's human-readable activity log, newest
// first, scoped to its parties.
func (s *AgreementService) ListActivity(actor models.Actor, agreementID uuid.UUID) ([]models.AgreementActivity, error) {
	if _, err := s.GetAgreement(actor, agreementID); err != nil {
		return nil, err
	}

	var activity []models.AgreementActivity
	if err := s.db.Where("agreement_id = ?", agreementID).
		Order("created_at desc").Find(&activity).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch activity: %w", err)
	}
	return activity, nil
}

// ListEvents exposes the agreement's slice of the event ledger to its parties.
func (s *AgreementService) ListEvents(actor models.Actor, agreementID uuid.UUID) ([]models.EventLog, error) {
	if _, err := s.GetAgreement(actor, agreementID); err != nil {
		return nil, err
	}
	return s.events.ListForEntity(models.EntityTypeAgreement, agreementID)
}

func (s *AgreementService) getOwnedAgreement(actor models.Actor, agreementID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	if err := s.db.First(&agreement, "id = ? AND sponsor_id = ?", agreementID, actor.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: agreement", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if actor.Type != models.ActorTypeSponsor {
		return nil, fmt.Errorf("%w: sponsor role required", ErrUnauthorized)
	}
	return &agreement, nil
}

func appendActivity(db *gorm.DB, agreementID uuid.UUID, message string) error {
	entry := &models.AgreementActivity{
		AgreementID: agreementID,
		Message:     message,
	}
	if err := db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}
