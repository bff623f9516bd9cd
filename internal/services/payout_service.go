// internal/services/payout_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/config"
	"github.com/collabhub/collab-backend/internal/database"
	"github.com/collabhub/collab-backend/internal/models"
	"github.com/collabhub/collab-backend/internal/utils"
)

type PayoutService struct {
	db      *gorm.DB
	events  *EventService
	gateway PayoutGateway
	config  *config.Config
}

type RequestPayoutRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

type AdvancePayoutRequest struct {
	Action models.PayoutAction `json:"action" validate:"required,oneof=process complete fail"`
}

func NewPayoutService(db *gorm.DB, events *EventService, gateway PayoutGateway, cfg *config.Config) *PayoutService {
	if gateway == nil {
		gateway = NoopGateway{}
	}
	return &PayoutService{
		db:      db,
		events:  events,
		gateway: gateway,
		config:  cfg,
	}
}

// ComputeBalance aggregates a fulfiller's balance from the payment and payout
// tables on every call. Nothing is cached or materialized, so the result is
// always consistent with the underlying records.
func (s *PayoutService) ComputeBalance(fulfillerID uuid.UUID) (*models.Balance, error) {
	var totalEarned float64
	if err := s.db.Model(&models.Payment{}).
		Where("fulfiller_id = ? AND status = ?", fulfillerID, models.PaymentStatusReleased).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalEarned).Error; err != nil {
		return nil, fmt.Errorf("failed to sum released payments: %w", err)
	}

	var locked float64
	if err := s.db.Model(&models.Payout{}).
		Where("fulfiller_id = ? AND status IN ?", fulfillerID, []models.PayoutStatus{models.PayoutStatusRequested, models.PayoutStatusProcessing}).
		Select("COALESCE(SUM(amount), 0)").Scan(&locked).Error; err != nil {
		return nil, fmt.Errorf("failed to sum locked payouts: %w", err)
	}

	var paidOut float64
	if err := s.db.Model(&models.Payout{}).
		Where("fulfiller_id = ? AND status = ?", fulfillerID, models.PayoutStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&paidOut).Error; err != nil {
		return nil, fmt.Errorf("failed to sum completed payouts: %w", err)
	}

	available := totalEarned - locked - paidOut
	if available < 0 {
		available = 0
	}

	return &models.Balance{
		TotalEarned: totalEarned,
		Locked:      locked,
		PaidOut:     paidOut,
		Available:   available,
		Currency:    s.config.Payout.Currency,
	}, nil
}

// Request creates a payout in REQUESTED after validating the amount against
// the balance computed at this moment. The amount is not re-validated later;
// the lock the REQUESTED row places on the balance is what keeps later
// requests honest.
func (s *PayoutService) Request(actor models.Actor, req *RequestPayoutRequest) (*models.Payout, error) {
	if actor.Type != models.ActorTypeFulfiller {
		return nil, fmt.Errorf("%w: only fulfillers request payouts", ErrUnauthorized)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Amount < s.config.Payout.MinimumPayout {
		return nil, fmt.Errorf("%w: amount is below the minimum payout of %.2f", ErrValidation, s.config.Payout.MinimumPayout)
	}

	balance, err := s.ComputeBalance(actor.ID)
	if err != nil {
		return nil, err
	}
	if req.Amount > balance.Available {
		return nil, fmt.Errorf("%w: requested amount %.2f exceeds available balance %.2f", ErrValidation, req.Amount, balance.Available)
	}

	payout := &models.Payout{
		FulfillerID: actor.ID,
		Amount:      req.Amount,
		Status:      models.PayoutStatusRequested,
	}

	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(payout).Error; err != nil {
			return fmt.Errorf("failed to create payout: %w", err)
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionPayoutRequested, models.EntityTypePayout, payout.ID, models.JSONB{
			"payout_id": payout.ID.String(),
			"amount":    payout.Amount,
		})
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	// Self-initiated: the action code is outside the notification allowlist,
	// so this only feeds the ledger.
	s.events.Emit(entry)

	return payout, nil
}

func (s *PayoutService) GetPayout(actor models.Actor, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	query := s.db
	if !actor.IsSystem() {
		query = query.Where("fulfiller_id = ?", actor.ID)
	}
	if err := query.First(&payout, "id = ?", payoutID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payout", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &payout, nil
}

func (s *PayoutService) ListForFulfiller(fulfillerID uuid.UUID, params utils.PaginationParams) ([]models.Payout, int64, error) {
	query := s.db.Model(&models.Payout{}).Where("fulfiller_id = ?", fulfillerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "amount", "status"})
	query = utils.ApplyPagination(query, params)

	var payouts []models.Payout
	if err := query.Find(&payouts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payouts: %w", err)
	}
	return payouts, total, nil
}

// Advance drives the system-only payout state machine:
//
//	process:  REQUESTED -> PROCESSING (re-running on PROCESSING is a no-op)
//	complete: PROCESSING -> COMPLETED (hard error from anywhere else)
//	fail:     REQUESTED/PROCESSING -> FAILED (hard error once COMPLETED)
//
// COMPLETE is the step that actually moves money: the gateway is called
// first, and only a successful gateway send is committed.
func (s *PayoutService) Advance(actor models.Actor, payoutID uuid.UUID, req *AdvancePayoutRequest) (*models.Payout, error) {
	if !actor.IsSystem() {
		return nil, fmt.Errorf("%w: payout advance requires system credentials", ErrUnauthorized)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	payout, err := s.GetPayout(actor, payoutID)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case models.PayoutActionProcess:
		return s.process(actor, payout)
	case models.PayoutActionComplete:
		return s.complete(actor, payout)
	case models.PayoutActionFail:
		return s.fail(actor, payout)
	default:
		return nil, fmt.Errorf("%w: unknown payout action %q", ErrValidation, req.Action)
	}
}

func (s *PayoutService) process(actor models.Actor, payout *models.Payout) (*models.Payout, error) {
	if payout.Status == models.PayoutStatusProcessing {
		return payout, nil
	}

	var entry *models.EventLog
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Payout{}).
			Where("id = ? AND status = ?", payout.ID, models.PayoutStatusRequested).
			Update("status", models.PayoutStatusProcessing)
		if result.Error != nil {
			return fmt.Errorf("failed to process payout: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var current models.Payout
			if err := tx.First(&current, "id = ?", payout.ID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if current.Status == models.PayoutStatusProcessing {
				*payout = current
				return nil
			}
			return fmt.Errorf("%w: payout cannot enter processing from status %s", ErrStateConflict, current.Status)
		}
		payout.Status = models.PayoutStatusProcessing

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionPayoutProcessing, models.EntityTypePayout, payout.ID, models.JSONB{
			"payout_id": payout.ID.String(),
			"amount":    payout.Amount,
		})
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)
	return payout, nil
}

func (s *PayoutService) complete(actor models.Actor, payout *models.Payout) (*models.Payout, error) {
	if payout.Status != models.PayoutStatusProcessing {
		return nil, fmt.Errorf("%w: payout must be processing before completion", ErrStateConflict)
	}

	ref, err := s.gateway.SendPayout(payout)
	if err != nil {
		return nil, fmt.Errorf("payout gateway error: %w", err)
	}

	now := time.Now()
	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Payout{}).
			Where("id = ? AND status = ?", payout.ID, models.PayoutStatusProcessing).
			Updates(map[string]interface{}{
				"status":       models.PayoutStatusCompleted,
				"gateway_ref":  ref,
				"processed_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to complete payout: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: payout must be processing before completion", ErrStateConflict)
		}
		payout.Status = models.PayoutStatusCompleted
		payout.GatewayRef = ref
		payout.ProcessedAt = &now

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionPayoutCompleted, models.EntityTypePayout, payout.ID, models.JSONB{
			"payout_id":    payout.ID.String(),
			"amount":       payout.Amount,
			"gateway_ref":  ref,
			"recipient_id": payout.FulfillerID.String(),
		})
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)
	return payout, nil
}

func (s *PayoutService) fail(actor models.Actor, payout *models.Payout) (*models.Payout, error) {
	if payout.Status == models.PayoutStatusCompleted {
		return nil, fmt.Errorf("%w: a completed payout cannot be failed", ErrStateConflict)
	}
	if payout.Status == models.PayoutStatusFailed {
		return payout, nil
	}

	var entry *models.EventLog
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Payout{}).
			Where("id = ? AND status IN ?", payout.ID, []models.PayoutStatus{models.PayoutStatusRequested, models.PayoutStatusProcessing}).
			Update("status", models.PayoutStatusFailed)
		if result.Error != nil {
			return fmt.Errorf("failed to fail payout: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var current models.Payout
			if err := tx.First(&current, "id = ?", payout.ID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if current.Status == models.PayoutStatusFailed {
				*payout = current
				return nil
			}
			return fmt.Errorf("%w: a completed payout cannot be failed", ErrStateConflict)
		}
		payout.Status = models.PayoutStatusFailed

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionPayoutFailed, models.EntityTypePayout, payout.ID, models.JSONB{
			"payout_id": payout.ID.String(),
			"amount":    payout.Amount,
		})
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)
	return payout, nil
}
