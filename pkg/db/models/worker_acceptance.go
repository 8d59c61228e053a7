package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
)

// WorkerAcceptance is one candidate's offer on an order. Entries from earlier
// assignment rounds that were rejected stay as history with Active=false.
type WorkerAcceptance struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	CandidateID uuid.UUID              `gorm:"column:candidate_id;type:uuid;not null"`
	Gender      *enums.Gender          `gorm:"column:gender;type:gender"`
	Status      enums.AcceptanceStatus `gorm:"column:status;type:acceptance_status;not null;default:'pending'"`
	Decision    *enums.Decision        `gorm:"column:decision;type:offer_decision"`
	Active      bool                   `gorm:"column:active;not null;default:true"`
	OfferedAt   time.Time              `gorm:"column:offered_at;not null"`
	Deadline    time.Time              `gorm:"column:deadline;not null"`
	DecidedAt   *time.Time             `gorm:"column:decided_at"`
	CompletedAt *time.Time             `gorm:"column:completed_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
