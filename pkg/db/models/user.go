package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

// User is any marketplace identity. Workers and drivers are the candidates
// offers are made to.
type User struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Role             enums.UserRole         `gorm:"column:role;type:user_role;not null"`
	Name             string                 `gorm:"column:name;not null"`
	Phone            string                 `gorm:"column:phone;not null"`
	Pincode          string                 `gorm:"column:pincode;not null;default:''"`
	Gender           *enums.Gender          `gorm:"column:gender;type:gender"`
	Skills           []string               `gorm:"column:skills;type:jsonb;serializer:json"`
	ApprovalStatus   enums.ApprovalStatus   `gorm:"column:approval_status;type:approval_status;not null;default:'pending'"`
	EngagementStatus enums.EngagementStatus `gorm:"column:engagement_status;type:engagement_status;not null;default:'ready'"`
	Availability     *types.Availability    `gorm:"column:availability;type:jsonb;serializer:json"`
	VehicleType      *string                `gorm:"column:vehicle_type"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
