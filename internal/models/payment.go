// internal/models/payment.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment is the escrow record created when a milestone is approved. The
// unique index on MilestoneID is what enforces at most one payment per
// milestone, even under concurrent approvals. Amount is copied from the
// milestone at approval time and never changes afterward.
type Payment struct {
	BaseModel
	AgreementID uuid.UUID     `json:"agreement_id" gorm:"type:uuid;not null;index"`
	MilestoneID uuid.UUID     `json:"milestone_id" gorm:"type:uuid;not null;uniqueIndex"`
	SponsorID   uuid.UUID     `json:"sponsor_id" gorm:"type:uuid;not null;index"`
	FulfillerID uuid.UUID     `json:"fulfiller_id" gorm:"type:uuid;not null;index"`
	Amount      float64       `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status      PaymentStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ReleasedAt  *time.Time    `json:"released_at"`

	// Relationships
	Agreement *Agreement `json:"agreement,omitempty" gorm:"foreignKey:AgreementID"`
	Milestone *Milestone `json:"milestone,omitempty" gorm:"foreignKey:MilestoneID"`
}
