// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the ID client-side; the column carries no database
// default so the schema migrates on every supported dialect.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
}

// UUIDList stores an ordered set of UUIDs as a JSON array column.
type UUIDList []uuid.UUID

func (l UUIDList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported uuid list source type %T", value)
	}
}

// StringList stores a JSON array of strings (links, file keys).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported string list source type %T", value)
	}
}

func (l UUIDList) Contains(id uuid.UUID) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Enums
type ActorType string

const (
	ActorTypeSponsor   ActorType = "sponsor"
	ActorTypeFulfiller ActorType = "fulfiller"
	ActorTypeSystem    ActorType = "system"
)

// Actor is the typed identity every lifecycle operation receives. Role checks
// compare it against the entity's bound sponsor/fulfiller id instead of
// reading ambient request state.
type Actor struct {
	Type ActorType
	ID   uuid.UUID
}

func (a Actor) IsSystem() bool {
	return a.Type == ActorTypeSystem
}

type AgreementStatus string

const (
	AgreementStatusDraft     AgreementStatus = "draft"
	AgreementStatusSent      AgreementStatus = "sent"
	AgreementStatusActive    AgreementStatus = "active"
	AgreementStatusRejected  AgreementStatus = "rejected"
	AgreementStatusCompleted AgreementStatus = "completed"
)

type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusRevision   MilestoneStatus = "revision"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusInitiated PaymentStatus = "initiated"
	PaymentStatusReleased  PaymentStatus = "released"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type PayoutStatus string

const (
	PayoutStatusRequested  PayoutStatus = "requested"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
)

// PayoutAction drives the system-only payout advance operation.
type PayoutAction string

const (
	PayoutActionProcess  PayoutAction = "process"
	PayoutActionComplete PayoutAction = "complete"
	PayoutActionFail     PayoutAction = "fail"
)

type RespondDecision string

const (
	RespondDecisionAccept RespondDecision = "accept"
	RespondDecisionReject RespondDecision = "reject"
)
