package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Earning is an append-only payout line for one candidate and one job.
// Exactly one of OrderID and TransportAssignmentID is set.
type Earning struct {
	ID                    uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CandidateID           uuid.UUID       `gorm:"column:candidate_id;type:uuid;not null"`
	OrderID               *uuid.UUID      `gorm:"column:order_id;type:uuid"`
	TransportAssignmentID *uuid.UUID      `gorm:"column:transport_assignment_id;type:uuid"`
	Amount                decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt             time.Time       `gorm:"column:created_at;autoCreateTime"`
}
