// internal/services/payment_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/database"
	"github.com/collabhub/collab-backend/internal/models"
)

// PaymentService owns the escrow records between milestone approval and
// release. The status column is the single point of contention between the
// sponsor's initiate call, a manual system release, and the auto-release
// scheduler, so every transition is a conditional write on the expected prior
// status.
type PaymentService struct {
	db         *gorm.DB
	events     *EventService
	agreements *AgreementService
}

func NewPaymentService(db *gorm.DB, events *EventService, agreements *AgreementService) *PaymentService {
	return &PaymentService{
		db:         db,
		events:     events,
		agreements: agreements,
	}
}

func (s *PaymentService) GetPayment(actor models.Actor, paymentID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := s.db
	if !actor.IsSystem() {
		query = query.Where("sponsor_id = ? OR fulfiller_id = ?", actor.ID, actor.ID)
	}
	if err := query.First(&payment, "id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: payment", ErrNotFound)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &payment, nil
}

// ListForAgreement returns the agreement's payments, oldest first, to either
// party.
func (s *PaymentService) ListForAgreement(actor models.Actor, agreementID uuid.UUID) ([]models.Payment, error) {
	if _, err := s.agreements.GetAgreement(actor, agreementID); err != nil {
		return nil, err
	}

	var payments []models.Payment
	if err := s.db.Where("agreement_id = ?", agreementID).
		Order("created_at asc").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch payments: %w", err)
	}
	return payments, nil
}

// Initiate commits a PENDING payment into the holding period. Only the
// sponsor may initiate. If a concurrent request already moved the payment
// onward, the call succeeds without writing anything.
func (s *PaymentService) Initiate(actor models.Actor, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.GetPayment(actor, paymentID)
	if err != nil {
		return nil, err
	}
	if actor.Type != models.ActorTypeSponsor || payment.SponsorID != actor.ID {
		return nil, fmt.Errorf("%w: only the sponsor can initiate a payment", ErrUnauthorized)
	}

	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Update("status", models.PaymentStatusInitiated)
		if result.Error != nil {
			return fmt.Errorf("failed to initiate payment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var current models.Payment
			if err := tx.First(&current, "id = ?", payment.ID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if current.Status == models.PaymentStatusInitiated || current.Status == models.PaymentStatusReleased {
				*payment = current
				return nil
			}
			return fmt.Errorf("%w: payment cannot be initiated from status %s", ErrStateConflict, current.Status)
		}
		payment.Status = models.PaymentStatusInitiated

		if err := appendActivity(tx, payment.AgreementID, "Escrow payment initiated; holding period started"); err != nil {
			return err
		}

		metadata := models.JSONB{
			"agreement_id": payment.AgreementID.String(),
			"payment_id":   payment.ID.String(),
			"amount":       payment.Amount,
			"recipient_id": payment.FulfillerID.String(),
		}
		if title, ok := s.milestoneTitle(tx, payment.MilestoneID); ok {
			metadata["title"] = title
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionPaymentInitiated, models.EntityTypePayment, payment.ID, metadata)
		return recordErr
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(entry)

	return payment, nil
}

// Release finalizes an INITIATED payment. System-only: it is reached through
// the privileged manual endpoint or the auto-release scheduler. Releasing an
// already-released payment is a no-op success with no second ledger entry.
// After a successful release the agreement's completion state is recomputed.
func (s *PaymentService) Release(actor models.Actor, paymentID uuid.UUID) (*models.Payment, error) {
	if !actor.IsSystem() {
		return nil, fmt.Errorf("%w: release requires system credentials", ErrUnauthorized)
	}

	payment, err := s.GetPayment(actor, paymentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	released := false
	var entry *models.EventLog
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		result := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusInitiated).
			Updates(map[string]interface{}{
				"status":      models.PaymentStatusReleased,
				"released_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to release payment: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			var current models.Payment
			if err := tx.First(&current, "id = ?", payment.ID).Error; err != nil {
				return fmt.Errorf("database error: %w", err)
			}
			if current.Status == models.PaymentStatusReleased {
				*payment = current
				return nil
			}
			return fmt.Errorf("%w: payment cannot be released from status %s", ErrStateConflict, current.Status)
		}
		released = true
		payment.Status = models.PaymentStatusReleased
		payment.ReleasedAt = &now

		if err := appendActivity(tx, payment.AgreementID, fmt.Sprintf("Escrow payment of %.2f released", payment.Amount)); err != nil {
			return err
		}

		metadata := models.JSONB{
			"agreement_id": payment.AgreementID.String(),
			"payment_id":   payment.ID.String(),
			"amount":       payment.Amount,
			"recipient_id": payment.FulfillerID.String(),
		}
		if title, ok := s.milestoneTitle(tx, payment.MilestoneID); ok {
			metadata["title"] = title
		}
		if email, ok := s.fulfillerEmail(tx, payment.AgreementID); ok {
			metadata["recipient_email"] = email
		}

		var recordErr error
		entry, recordErr = s.events.Record(tx, actor, models.ActionPaymentReleased, models.EntityTypePayment, payment.ID, metadata)
		return recordErr
	})
	if err != nil {
		return nil, err
	}

	if released {
		s.events.Emit(entry)
		if err := s.agreements.RecomputeCompletion(payment.AgreementID); err != nil {
			logrus.WithError(err).WithField("agreement_id", payment.AgreementID).Error("Failed to recompute agreement completion")
		}
	}

	return payment, nil
}

// ReleaseDue releases every INITIATED payment whose holding period has
// elapsed. It is safe to run concurrently or back to back: each release is a
// conditional write, and a payment another run already moved is skipped, not
// an error. Returns the number of payments this run released.
func (s *PaymentService) ReleaseDue(delay time.Duration) (int, error) {
	cutoff := time.Now().Add(-delay)

	var due []models.Payment
	if err := s.db.Where("status = ? AND updated_at < ?", models.PaymentStatusInitiated, cutoff).
		Order("updated_at asc").Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to query due payments: %w", err)
	}

	systemActor := models.Actor{Type: models.ActorTypeSystem}
	released := 0
	for _, payment := range due {
		if _, err := s.Release(systemActor, payment.ID); err != nil {
			if errors.Is(err, ErrStateConflict) || errors.Is(err, ErrNotFound) {
				continue
			}
			logrus.WithError(err).WithField("payment_id", payment.ID).Error("Auto-release failed for payment")
			continue
		}
		released++
	}
	return released, nil
}

func (s *PaymentService) milestoneTitle(tx *gorm.DB, milestoneID uuid.UUID) (string, bool) {
	var milestone models.Milestone
	if err := tx.Select("title").First(&milestone, "id = ?", milestoneID).Error; err != nil {
		return "", false
	}
	return milestone.Title, true
}

func (s *PaymentService) fulfillerEmail(tx *gorm.DB, agreementID uuid.UUID) (string, bool) {
	var agreement models.Agreement
	if err := tx.Select("fulfiller_email").First(&agreement, "id = ?", agreementID).Error; err != nil {
		return "", false
	}
	return agreement.FulfillerEmail, agreement.FulfillerEmail != ""
}
