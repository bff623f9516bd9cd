// internal/models/payout.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Payout is a fulfiller's withdrawal request. The amount is validated against
// the computed available balance at request time only.
type Payout struct {
	BaseModel
	FulfillerID uuid.UUID    `json:"fulfiller_id" gorm:"type:uuid;not null;index"`
	Amount      float64      `json:"amount" gorm:"type:decimal(10,2);not null"`
	Status      PayoutStatus `json:"status" gorm:"type:varchar(20);default:'requested';index"`
	GatewayRef  string       `json:"gateway_ref,omitempty" gorm:"size:255"`
	ProcessedAt *time.Time   `json:"processed_at"`
}

// Balance is the read-time aggregation over payments and payouts. It is never
// stored; every query recomputes it from the underlying records.
type Balance struct {
	TotalEarned float64 `json:"total_earned"`
	Locked      float64 `json:"locked"`
	PaidOut     float64 `json:"paid_out"`
	Available   float64 `json:"available"`
	Currency    string  `json:"currency"`
}
