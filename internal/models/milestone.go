// internal/models/milestone.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Milestone struct {
	BaseModel
	AgreementID    uuid.UUID       `json:"agreement_id" gorm:"type:uuid;not null;index"`
	Title          string          `json:"title" gorm:"size:255;not null"`
	Amount         float64         `json:"amount" gorm:"type:decimal(10,2);not null"`
	DeliverableIDs UUIDList        `json:"deliverable_ids" gorm:"type:jsonb;not null"`
	Status         MilestoneStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`

	// Submission record, set when the fulfiller submits work.
	SubmissionNote  string     `json:"submission_note,omitempty" gorm:"type:text"`
	SubmissionLinks StringList `json:"submission_links,omitempty" gorm:"type:jsonb"`
	FileRefs        StringList `json:"file_refs,omitempty" gorm:"type:jsonb"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	ApprovedAt      *time.Time `json:"approved_at"`

	// Relationships
	Agreement *Agreement `json:"agreement,omitempty" gorm:"foreignKey:AgreementID"`
	Payment   *Payment   `json:"payment,omitempty" gorm:"foreignKey:MilestoneID"`
}
