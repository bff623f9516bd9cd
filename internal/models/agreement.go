// internal/models/agreement.go
package models

import (
	"github.com/google/uuid"
)

type Agreement struct {
	BaseModel
	SponsorID      uuid.UUID       `json:"sponsor_id" gorm:"type:uuid;not null;index"`
	FulfillerID    *uuid.UUID      `json:"fulfiller_id" gorm:"type:uuid;index"`
	FulfillerEmail string          `json:"fulfiller_email" gorm:"size:255"`
	Title          string          `json:"title" gorm:"size:255;not null"`
	TotalAmount    float64         `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	Currency       string          `json:"currency" gorm:"size:3;default:'USD'"`
	PaymentTerms   string          `json:"payment_terms" gorm:"type:text"`
	CancelTerms    string          `json:"cancel_terms" gorm:"type:text"`
	RevisionPolicy string          `json:"revision_policy" gorm:"type:text"`
	UsageRights    string          `json:"usage_rights" gorm:"type:text"`
	Status         AgreementStatus `json:"status" gorm:"type:varchar(20);default:'draft';index"`

	// Relationships
	Deliverables []Deliverable       `json:"deliverables,omitempty" gorm:"foreignKey:AgreementID"`
	Milestones   []Milestone         `json:"milestones,omitempty" gorm:"foreignKey:AgreementID"`
	Activity     []AgreementActivity `json:"activity,omitempty" gorm:"foreignKey:AgreementID"`
}

// HasPolicyTerms reports whether the terms required before sending are set.
func (a *Agreement) HasPolicyTerms() bool {
	return a.PaymentTerms != "" && a.UsageRights != ""
}

// Deliverable is one unit of work promised under an agreement. Milestones
// reference deliverables by id; the order is the sponsor's authoring order.
type Deliverable struct {
	BaseModel
	AgreementID uuid.UUID `json:"agreement_id" gorm:"type:uuid;not null;index"`
	Position    int       `json:"position" gorm:"not null"`
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
}

// AgreementActivity is the append-only human-readable activity log shown on
// the agreement page. The event ledger stays the machine-readable record.
type AgreementActivity struct {
	BaseModel
	AgreementID uuid.UUID `json:"agreement_id" gorm:"type:uuid;not null;index"`
	Message     string    `json:"message" gorm:"type:text;not null"`
}
