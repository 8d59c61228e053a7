package transport

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// SystemActor drives deadline expiry.
var SystemActor = Actor{Role: enums.UserRoleAdmin}

type AssignResult struct {
	DriverID uuid.UUID `json:"driverId"`
	Timeout  time.Time `json:"timeout"`
}

type DecisionResult struct {
	Status enums.TransportStatus `json:"status"`
}

// AssignmentView is the API shape of a transport job.
type AssignmentView struct {
	ID                uuid.UUID             `json:"id"`
	OrderID           *uuid.UUID            `json:"orderId,omitempty"`
	WorkerIDs         []uuid.UUID           `json:"workerIds"`
	DriverID          *uuid.UUID            `json:"driverId,omitempty"`
	VehicleType       string                `json:"vehicleType"`
	PickupPincode     string                `json:"pickupPincode"`
	PickupDate        string                `json:"pickupDate"`
	Status            enums.TransportStatus `json:"status"`
	RejectedDriverIDs []uuid.UUID           `json:"rejectedDriverIds"`
	Timeout           *time.Time            `json:"timeout,omitempty"`
	Cost              string                `json:"cost"`
	Version           int                   `json:"version"`
	AcceptedAt        *time.Time            `json:"acceptedAt,omitempty"`
	CompletedAt       *time.Time            `json:"completedAt,omitempty"`
}

func viewFromModel(job models.TransportAssignment) AssignmentView {
	workers := []uuid.UUID(job.WorkerIDs)
	if workers == nil {
		workers = []uuid.UUID{}
	}
	rejected := []uuid.UUID(job.RejectedDriverIDs)
	if rejected == nil {
		rejected = []uuid.UUID{}
	}
	return AssignmentView{
		ID:                job.ID,
		OrderID:           job.OrderID,
		WorkerIDs:         workers,
		DriverID:          job.DriverID,
		VehicleType:       job.VehicleType,
		PickupPincode:     job.PickupPincode,
		PickupDate:        types.DateKey(job.PickupDate),
		Status:            job.Status,
		RejectedDriverIDs: rejected,
		Timeout:           job.Timeout,
		Cost:              job.Cost.StringFixed(2),
		Version:           job.Version,
		AcceptedAt:        job.AcceptedAt,
		CompletedAt:       job.CompletedAt,
	}
}
