package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
)

// CandidateOfferedEvent asks the notifier to tell a candidate about a new offer.
type CandidateOfferedEvent struct {
	OrderID     uuid.UUID            `json:"order_id"`
	CandidateID uuid.UUID            `json:"candidate_id"`
	Phone       string               `json:"phone"`
	Name        string               `json:"name,omitempty"`
	ServiceType enums.ServiceType    `json:"service_type"`
	StartDate   string               `json:"start_date"`
	Deadline    time.Time            `json:"deadline"`
	Mode        enums.AssignmentMode `json:"mode"`
}

// OfferDecidedEvent records a candidate's accept, reject or timeout.
type OfferDecidedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	CandidateID uuid.UUID         `json:"candidate_id"`
	Decision    enums.Decision    `json:"decision"`
	OrderStatus enums.OrderStatus `json:"order_status"`
}

// OrderStatusChangedEvent is emitted whenever the derived order status moves.
type OrderStatusChangedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	From          enums.OrderStatus   `json:"from"`
	To            enums.OrderStatus   `json:"to"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	FarmerPhone   string              `json:"farmer_phone,omitempty"`
}

// OrderCompletedEvent closes an order and lists who gets paid.
type OrderCompletedEvent struct {
	OrderID      uuid.UUID   `json:"order_id"`
	CandidateIDs []uuid.UUID `json:"candidate_ids"`
	Cost         string      `json:"cost"`
}

// DriverOfferedEvent asks the notifier to tell a driver about a transport job.
type DriverOfferedEvent struct {
	AssignmentID  uuid.UUID            `json:"assignment_id"`
	DriverID      uuid.UUID            `json:"driver_id"`
	Phone         string               `json:"phone"`
	VehicleType   string               `json:"vehicle_type"`
	PickupPincode string               `json:"pickup_pincode"`
	PickupDate    string               `json:"pickup_date"`
	Deadline      time.Time            `json:"deadline"`
	Mode          enums.AssignmentMode `json:"mode"`
}

// TransportDecidedEvent records a driver's answer on a transport job.
type TransportDecidedEvent struct {
	AssignmentID uuid.UUID             `json:"assignment_id"`
	DriverID     uuid.UUID             `json:"driver_id"`
	Decision     enums.Decision        `json:"decision"`
	Status       enums.TransportStatus `json:"status"`
}

// EarningRecordedEvent is emitted per earnings line appended.
type EarningRecordedEvent struct {
	EarningID             uuid.UUID  `json:"earning_id"`
	CandidateID           uuid.UUID  `json:"candidate_id"`
	OrderID               *uuid.UUID `json:"order_id,omitempty"`
	TransportAssignmentID *uuid.UUID `json:"transport_assignment_id,omitempty"`
	Amount                string     `json:"amount"`
}
