// internal/models/notification.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is the in-app message created by the dispatcher for a ledger
// entry. User ids are opaque references into the external identity service.
type Notification struct {
	BaseModel
	UserID            uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	Type              string     `json:"type" gorm:"type:varchar(50);not null;index"`
	Title             string     `json:"title" gorm:"size:255;not null"`
	Message           string     `json:"message" gorm:"type:text;not null"`
	RelatedEntityType string     `json:"related_entity_type,omitempty" gorm:"size:20"`
	RelatedEntityID   *uuid.UUID `json:"related_entity_id" gorm:"type:uuid"`
	Status            string     `json:"status" gorm:"type:varchar(20);default:'unread';index"`
	ReadAt            *time.Time `json:"read_at"`
}
