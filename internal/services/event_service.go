// internal/services/event_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/collabhub/collab-backend/internal/models"
)

// Notifier is the trigger contract into the notification subsystem. It is
// invoked exactly once per allowlisted ledger entry, after the entry is
// written.
type Notifier interface {
	Dispatch(entry *models.EventLog)
}

// notifiableActions is the closed set of action codes that reach the
// dispatcher. PAYOUT_REQUESTED is deliberately absent: the requester does not
// get notified about their own action.
var notifiableActions = map[models.EventAction]bool{
	models.ActionAgreementSent:              true,
	models.ActionAgreementAccepted:          true,
	models.ActionAgreementRejected:          true,
	models.ActionMilestoneApproved:          true,
	models.ActionMilestoneRevisionRequested: true,
	models.ActionDeliverableSubmitted:       true,
	models.ActionPaymentReleased:            true,
	models.ActionPaymentInitiated:           true,
	models.ActionPayoutCompleted:            true,
}

// EventService owns the append-only ledger. Entries are written only after
// the state transition they describe has been applied, and are never updated
// or deleted.
type EventService struct {
	db       *gorm.DB
	notifier Notifier
}

func NewEventService(db *gorm.DB, notifier Notifier) *EventService {
	return &EventService{
		db:       db,
		notifier: notifier,
	}
}

// Record appends one ledger entry using the given handle, which may be a
// transaction so the entry commits atomically with the transition it records.
func (s *EventService) Record(db *gorm.DB, actor models.Actor, action models.EventAction, entityType models.EntityType, entityID uuid.UUID, metadata models.JSONB) (*models.EventLog, error) {
	entry := &models.EventLog{
		ActorType:  actor.Type,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
	}
	if actor.ID != uuid.Nil {
		id := actor.ID
		entry.ActorID = &id
	}

	if err := db.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to write ledger entry: %w", err)
	}

	return entry, nil
}

// Emit dispatches the downstream notification trigger for an already-written
// entry. Call it after the surrounding transaction has committed so triggers
// never fire for mutations that were rolled back.
func (s *EventService) Emit(entry *models.EventLog) {
	if entry == nil || s.notifier == nil {
		return
	}
	if !notifiableActions[entry.Action] {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("action", entry.Action).Errorf("notification dispatch panicked: %v", r)
			}
		}()
		s.notifier.Dispatch(entry)
	}()
}

// RecordAndEmit is the single-write convenience used by operations that do
// not run inside a broader transaction.
func (s *EventService) RecordAndEmit(actor models.Actor, action models.EventAction, entityType models.EntityType, entityID uuid.UUID, metadata models.JSONB) (*models.EventLog, error) {
	entry, err := s.Record(s.db, actor, action, entityType, entityID, metadata)
	if err != nil {
		return nil, err
	}
	s.Emit(entry)
	return entry, nil
}

// ListForEntity returns the ledger slice for one entity, oldest first, for
// activity feeds.
func (s *EventService) ListForEntity(entityType models.EntityType, entityID uuid.UUID) ([]models.EventLog, error) {
	var entries []models.EventLog
	if err := s.db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at asc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch ledger entries: %w", err)
	}
	return entries, nil
}
