// internal/services/milestone_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/database"
	"github.com/collabhub/collab-backend/internal/models"
	"github.com/collabhub/collab-backend/internal/utils"
)

type MilestoneService struct {
	db     *gorm.DB
	events *EventService
}

type CreateMilestoneRequest struct {
	Title          string      `json:"title" validate:"required,max=255"`
	Amount         float64     `json:"amount" validate:"required,gt=0"`
	DeliverableIDs []uuid.UUID `json:"deliverable_ids" validate:"required,min=1"`
}

type SubmitMilestoneRequest struct {
	Note     string   `json:"note,omitempty"`
	Links    []string `json:"links,omitempty" validate:"omitempty,dive,url"`
	FileRefs []string `json:"file_refs,omitempty"`
}

func NewMilestoneService(db *gorm.DB, events *EventService) *MilestoneService {
	return &MilestoneService{
		db:     db,
		events: events,
	}
}

// CreateMilestone adds a milestone under an agreement the sponsor owns. The
// agreement must be in DRAFT or ACTIVE, and every referenced deliverable must
// exist on it.
func (s *MilestoneService) CreateMilestone(actor models.Actor, agreementID uuid.UUID, req *CreateMilestoneRequest) (*models.Milestone, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var agreement models.Agreement
	if err := s.db.Preload("Deliverables").First(&agreement, "id = ? AND sponsor_id = ?", agreementID, actor.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: agreement", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if actor.Type != models.ActorTypeSponsor {
		return nil, fmt.Errorf("%w: sponsor role required", ErrUnauthorized)
	}
	if agreement.Status != models.AgreementStatusDraft && agreement.Status != models.AgreementStatusActive {
		return nil, fmt.Errorf("%w: milestones can only be added to draft or active agreements", ErrStateConflict)
	}

	known := make(map[uuid.UUID]bool, len(agreement.Deliverables))
	for _, d := range agreement.Deliverables {
		known[d.ID] = true
	}
	for _, id := range req.DeliverableIDs {
		if !known[id] {
			return nil, fmt.Errorf("%w: deliverable %s does not belong to this agreement", ErrValidation, id)
		}
	}

	milestone := &models.Milestone{
		AgreementID:    agreement.ID,
		Title:          req.Title,
		Amount:         req.Amount,
		DeliverableIDs: models.UUIDList(req.DeliverableIDs),
		Status:         models.MilestoneStatusPending,
	}
	if err := s.db.Create(milestone).Error; err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	return milestone, nil
}

func (s *MilestoneService) ListMilestones(actor models.Actor, agreementID uuid.UUID) ([]models.Milestone, error) {
	if _, err := s.loadAgreement(actor, agreementID); err != nil {
		return nil, err
	}

	var milestones []models.Milestone
	if err := s.db.Where("agreement_id = ?", agreementID).
		Order("created_at asc").Find(&milestones).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch milestones: %w", err)
	}
	return milestones, nil
}

func (s *MilestoneService) GetMilestone(actor models.Actor, milestoneID uuid.UUID) (*models.Milestone, error) {
	milestone, _, err := s.loadMilestone(actor, milestoneID)
	return milestone, err
}

// Submit records the fulfiller's work on a PENDING or REVISION milestone and
// moves it to IN_PROGRESS. The parent agreement must be ACTIVE.
func (s *MilestoneService) Submit(actor models.Actor, milestoneID uuid.UUID, req *SubmitMilestoneRequest) (*models.Milestone, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	milestone, agreement, err := s.loadMilestone(actor, milestoneID)
	if err != nil {
		return nil, err
	}
	if actor.Type != models.ActorTypeFulfiller || agreement.FulfillerID == nil || *agreement.FulfillerID != actor.ID {
		return nil, fmt.Errorf("%w: only the agreement's fulfiller can submit work", ErrUnauthorized)
	}
	if agreement.Status != models.AgreementStatusActive {
		return nil, fmt.Errorf("%w: agreement is not active", ErrStateConflict)
	}
	if milestone.Status != models.MilestoneStatusPending && milestone.Status != models.MilestoneStatusRevision {
		return nil, fmt.Errorf("%w: milestone is not open for submission", ErrStateConflict)
	}

	now := time.Now()
	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Milestone{}).
			Where("id = ? AND status IN ?", milestone.ID, []models.MilestoneStatus{models.MilestoneStatusPending, models.MilestoneStatusRevision}).
			Updates(map[string]interface{}{
				"status":           models.MilestoneStatusInProgress,
				"submission_note":  req.Note,
				"submission_links": models.StringList(req.Links),
				"file_refs":        models.StringList(req.FileRefs),
				"submitted_at":     now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to submit milestone: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: milestone is not open for submission", ErrStateConflict)
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionDeliverableSubmitted, models.EntityTypeMilestone, milestone.ID, models.JSONB{
			"agreement_id": agreement.ID.String(),
			"milestone_id": milestone.ID.String(),
			"title":        milestone.Title,
			"recipient_id": agreement.SponsorID.String(),
		})
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)

	milestone.Status = models.MilestoneStatusInProgress
	milestone.SubmissionNote = req.Note
	milestone.SubmissionLinks = models.StringList(req.Links)
	milestone.FileRefs = models.StringList(req.FileRefs)
	milestone.SubmittedAt = &now
	return milestone, nil
}

// Approve completes an IN_PROGRESS or REVISION milestone and creates its
// escrow payment in PENDING. The payment amount is copied from the milestone
// at this moment. Re-approving a milestone that already completed (including a
// concurrent duplicate request) is an idempotent success and never creates a
// second payment; the unique index on payments.milestone_id backstops the
// race.
func (s *MilestoneService) Approve(actor models.Actor, milestoneID uuid.UUID) (*models.Milestone, error) {
	milestone, agreement, err := s.loadMilestone(actor, milestoneID)
	if err != nil {
		return nil, err
	}
	if actor.Type != models.ActorTypeSponsor || agreement.SponsorID != actor.ID {
		return nil, fmt.Errorf("%w: only the sponsor can approve milestones", ErrUnauthorized)
	}
	if milestone.Status == models.MilestoneStatusCompleted {
		return milestone, nil
	}
	if milestone.Status != models.MilestoneStatusInProgress && milestone.Status != models.MilestoneStatusRevision {
		return nil, fmt.Errorf("%w: milestone has not been submitted for review", ErrStateConflict)
	}
	if agreement.FulfillerID == nil {
		return nil, fmt.Errorf("%w: agreement has no bound fulfiller", ErrStateConflict)
	}

	now := time.Now()
	alreadyApproved := false
	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Milestone{}).
			Where("id = ? AND status IN ?", milestone.ID, []models.MilestoneStatus{models.MilestoneStatusInProgress, models.MilestoneStatusRevision}).
			Updates(map[string]interface{}{
				"status":      models.MilestoneStatusCompleted,
				"approved_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to approve milestone: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var current models.Milestone
			if err := tx.First(&current, "id = ?", milestone.ID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if current.Status == models.MilestoneStatusCompleted {
				alreadyApproved = true
				return nil
			}
			return fmt.Errorf("%w: milestone has not been submitted for review", ErrStateConflict)
		}

		payment := &models.Payment{
			AgreementID: agreement.ID,
			MilestoneID: milestone.ID,
			SponsorID:   agreement.SponsorID,
			FulfillerID: *agreement.FulfillerID,
			Amount:      milestone.Amount,
			Status:      models.PaymentStatusPending,
		}
		// The insert runs inside a savepoint: on Postgres a failed statement
		// aborts the whole transaction, so a duplicate-key conflict has to be
		// rolled back to here before the transaction can continue.
		if err := tx.SavePoint("escrow_payment").Error; err != nil {
			return fmt.Errorf("failed to create escrow payment: %w", err)
		}
		if err := tx.Create(payment).Error; err != nil {
			if !isDuplicateKey(err) {
				return fmt.Errorf("failed to create escrow payment: %w", err)
			}
			// A concurrent approval already created the payment. Discard the
			// failed insert and keep this transaction's milestone update.
			if err := tx.RollbackTo("escrow_payment").Error; err != nil {
				return fmt.Errorf("failed to create escrow payment: %w", err)
			}
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionMilestoneApproved, models.EntityTypeMilestone, milestone.ID, models.JSONB{
			"agreement_id": agreement.ID.String(),
			"milestone_id": milestone.ID.String(),
			"title":        milestone.Title,
			"amount":       milestone.Amount,
			"recipient_id": agreement.FulfillerID.String(),
		})
		if recordErr != nil {
			return recordErr
		}

		return appendActivity(tx, agreement.ID, fmt.Sprintf("Milestone %q approved; payment of %.2f %s held in escrow", milestone.Title, milestone.Amount, agreement.Currency))
	})
	if err != nil {
		return nil, err
	}
	if !alreadyApproved {
		s.events.Emit(entry)
	}

	milestone.Status = models.MilestoneStatusCompleted
	milestone.ApprovedAt = &now
	return milestone, nil
}

// RequestRevision sends an IN_PROGRESS milestone back to the fulfiller. A
// milestone that was never submitted cannot be sent back.
func (s *MilestoneService) RequestRevision(actor models.Actor, milestoneID uuid.UUID) (*models.Milestone, error) {
	milestone, agreement, err := s.loadMilestone(actor, milestoneID)
	if err != nil {
		return nil, err
	}
	if actor.Type != models.ActorTypeSponsor || agreement.SponsorID != actor.ID {
		return nil, fmt.Errorf("%w: only the sponsor can request revisions", ErrUnauthorized)
	}
	if milestone.Status != models.MilestoneStatusInProgress {
		return nil, fmt.Errorf("%w: only submitted work can be sent back for revision", ErrStateConflict)
	}

	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Milestone{}).
			Where("id = ? AND status = ?", milestone.ID, models.MilestoneStatusInProgress).
			Updates(map[string]interface{}{
				"status":      models.MilestoneStatusRevision,
				"approved_at": nil,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to request revision: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: only submitted work can be sent back for revision", ErrStateConflict)
		}

		metadata := models.JSONB{
			"agreement_id": agreement.ID.String(),
			"milestone_id": milestone.ID.String(),
			"title":        milestone.Title,
		}
		if agreement.FulfillerID != nil {
			metadata["recipient_id"] = agreement.FulfillerID.String()
			metadata["recipient_email"] = agreement.FulfillerEmail
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionMilestoneRevisionRequested, models.EntityTypeMilestone, milestone.ID, metadata)
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)

	milestone.Status = models.MilestoneStatusRevision
	milestone.ApprovedAt = nil
	return milestone, nil
}

// DeleteMilestone removes a milestone during draft editing. Once the
// agreement has been sent the milestone set is fixed.
func (s *MilestoneService) DeleteMilestone(actor models.Actor, milestoneID uuid.UUID) error {
	milestone, agreement, err := s.loadMilestone(actor, milestoneID)
	if err != nil {
		return err
	}
	if actor.Type != models.ActorTypeSponsor || agreement.SponsorID != actor.ID {
		return fmt.Errorf("%w: only the sponsor can remove milestones", ErrUnauthorized)
	}
	if agreement.Status != models.AgreementStatusDraft {
		return fmt.Errorf("%w: milestones can only be removed while the agreement is a draft", ErrStateConflict)
	}

	if err := s.db.Delete(&models.Milestone{}, "id = ?", milestone.ID).Error; err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}
	return nil
}

func (s *MilestoneService) loadAgreement(actor models.Actor, agreementID uuid.UUID) (*models.Agreement, error) {
	var agreement models.Agreement
	query := s.db
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

func (s *MilestoneService) loadMilestone(actor models.Actor, milestoneID uuid.UUID) (*models.Milestone, *models.Agreement, error) {
	var milestone models.Milestone
	if err := s.db.First(&milestone, "id = ?", milestoneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: milestone", ErrNotFound)
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	agreement, err := s.loadAgreement(actor, milestone.AgreementID)
	if err != nil {
		// Scope errors surface as not-found so milestone existence is not
		// leaked across agreements.
		return nil, nil, fmt.Errorf("%w: milestone", ErrNotFound)
	}
	return &milestone, agreement, nil
}

// isDuplicateKey recognizes a unique-constraint violation from both the
// translated gorm error and the raw postgres driver error.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
