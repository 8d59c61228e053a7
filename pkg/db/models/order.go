package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/farmlabor-backend/pkg/db/types"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

// Order is a farmer's request for labor. WorkerIDs holds the live set of
// offered or engaged candidates; AttemptedWorkers only grows.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID         uuid.UUID             `gorm:"column:farmer_id;type:uuid;not null"`
	ServiceType      enums.ServiceType     `gorm:"column:service_type;type:service_type;not null"`
	Skill            *string               `gorm:"column:skill"`
	MaleWorkers      int                   `gorm:"column:male_workers;not null;default:0"`
	FemaleWorkers    int                   `gorm:"column:female_workers;not null;default:0"`
	TotalWorkers     int                   `gorm:"column:total_workers;not null;default:0"`
	BundleDetails    *types.BundleDetails  `gorm:"column:bundle_details;type:jsonb;serializer:json"`
	StartDate        time.Time             `gorm:"column:start_date;type:date;not null"`
	Cost             decimal.Decimal       `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	WorkerIDs        dbtypes.UUIDArray     `gorm:"column:worker_ids;type:uuid[];not null;default:'{}'"`
	AttemptedWorkers dbtypes.UUIDArray     `gorm:"column:attempted_workers;type:uuid[];not null;default:'{}'"`
	Status           enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus    enums.PaymentStatus   `gorm:"column:payment_status;type:payment_status;not null;default:'none'"`
	AssignmentMode   *enums.AssignmentMode `gorm:"column:assignment_mode;type:assignment_mode"`
	Timeout          *time.Time            `gorm:"column:timeout"`
	Version          int                   `gorm:"column:version;not null;default:0"`
	Acceptances      []WorkerAcceptance    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
