package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/farmlabor-backend/pkg/db/types"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
)

// TransportAssignment is a driver job carrying a group of workers.
type TransportAssignment struct {
	ID                uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	WorkerIDs         dbtypes.UUIDArray     `gorm:"column:worker_ids;type:uuid[];not null;default:'{}'"`
	DriverID          *uuid.UUID            `gorm:"column:driver_id;type:uuid"`
	VehicleType       string                `gorm:"column:vehicle_type;not null"`
	PickupPincode     string                `gorm:"column:pickup_pincode;not null;default:''"`
	PickupDate        time.Time             `gorm:"column:pickup_date;type:date;not null"`
	Status            enums.TransportStatus `gorm:"column:status;type:transport_status;not null;default:'pending'"`
	RejectedDriverIDs dbtypes.UUIDArray     `gorm:"column:rejected_driver_ids;type:uuid[];not null;default:'{}'"`
	Timeout           *time.Time            `gorm:"column:timeout"`
	Cost              decimal.Decimal       `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	Version           int                   `gorm:"column:version;not null;default:0"`
	AcceptedAt        *time.Time            `gorm:"column:accepted_at"`
	CompletedAt       *time.Time            `gorm:"column:completed_at"`
	CreatedAt         time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
