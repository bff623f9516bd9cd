// internal/models/event.go
package models

import (
	"github.com/google/uuid"
)

// EventAction is the closed vocabulary of ledger action codes.
type EventAction string

const (
	ActionAgreementSent              EventAction = "AGREEMENT_SENT"
	ActionAgreementAccepted          EventAction = "AGREEMENT_ACCEPTED"
	ActionAgreementRejected          EventAction = "AGREEMENT_REJECTED"
	ActionAgreementCompleted         EventAction = "AGREEMENT_COMPLETED"
	ActionDeliverableSubmitted       EventAction = "DELIVERABLE_SUBMITTED"
	ActionMilestoneApproved          EventAction = "MILESTONE_APPROVED"
	ActionMilestoneRevisionRequested EventAction = "MILESTONE_REVISION_REQUESTED"
	ActionPaymentInitiated           EventAction = "PAYMENT_INITIATED"
	ActionPaymentReleased            EventAction = "PAYMENT_RELEASED"
	ActionPayoutRequested            EventAction = "PAYOUT_REQUESTED"
	ActionPayoutProcessing           EventAction = "PAYOUT_PROCESSING"
	ActionPayoutCompleted            EventAction = "PAYOUT_COMPLETED"
	ActionPayoutFailed               EventAction = "PAYOUT_FAILED"
)

type EntityType string

const (
	EntityTypeAgreement EntityType = "agreement"
	EntityTypeMilestone EntityType = "milestone"
	EntityTypePayment   EntityType = "payment"
	EntityTypePayout    EntityType = "payout"
)

// EventLog is the append-only record of every state transition: the sole
// source of truth for what happened and when. Rows are never updated or
// deleted once written.
type EventLog struct {
	BaseModel
	ActorType  ActorType   `json:"actor_type" gorm:"type:varchar(20);not null;index"`
	ActorID    *uuid.UUID  `json:"actor_id" gorm:"type:uuid;index"`
	Action     EventAction `json:"action" gorm:"size:50;not null;index"`
	EntityType EntityType  `json:"entity_type" gorm:"size:20;not null;index"`
	EntityID   uuid.UUID   `json:"entity_id" gorm:"type:uuid;not null;index"`
	Metadata   JSONB       `json:"metadata" gorm:"type:jsonb"`
}
