package assignment

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// SystemActor is used for transitions the deadline monitor and cron jobs drive.
var SystemActor = Actor{Role: enums.UserRoleAdmin}

func (a Actor) isSystem() bool {
	return a.UserID == uuid.Nil && a.Role == enums.UserRoleAdmin
}

func (a Actor) outboxRef() *outbox.ActorRef {
	if a.isSystem() {
		return outbox.SystemActor
	}
	return &outbox.ActorRef{UserID: a.UserID, Role: string(a.Role)}
}

// AssignResult is returned by both assignment modes.
type AssignResult struct {
	WorkerIDs []uuid.UUID `json:"workerIds"`
	Timeout   time.Time   `json:"timeout"`
}

// DecisionResult carries the order status after a decision or completion.
type DecisionResult struct {
	OrderStatus   enums.OrderStatus   `json:"orderStatus"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
}

// BucketView is a remaining head count in API form.
type BucketView struct {
	Gender *enums.Gender `json:"gender,omitempty"`
	Count  int           `json:"count"`
}

// ReassignmentView answers whether an operator has to assign again.
type ReassignmentView struct {
	ReassignmentNeeded bool         `json:"reassignmentNeeded"`
	Remaining          []BucketView `json:"remaining"`
}

type AcceptanceView struct {
	CandidateID uuid.UUID              `json:"candidateId"`
	Gender      *enums.Gender          `json:"gender,omitempty"`
	Status      enums.AcceptanceStatus `json:"status"`
	Decision    *enums.Decision        `json:"decision,omitempty"`
	Active      bool                   `json:"active"`
	OfferedAt   time.Time              `json:"offeredAt"`
	Deadline    time.Time              `json:"deadline"`
	DecidedAt   *time.Time             `json:"decidedAt,omitempty"`
	CompletedAt *time.Time             `json:"completedAt,omitempty"`
}

// OrderDetail is the full order snapshot including acceptance history.
type OrderDetail struct {
	OrderSummary
	BundleDetails    *types.BundleDetails `json:"bundleDetails,omitempty"`
	WorkerIDs        []uuid.UUID          `json:"workerIds"`
	AttemptedWorkers []uuid.UUID          `json:"attemptedWorkers"`
	Acceptances      []AcceptanceView     `json:"acceptances"`
	Version          int                  `json:"version"`
}

type OrderSummary struct {
	ID             uuid.UUID             `json:"id"`
	FarmerID       uuid.UUID             `json:"farmerId"`
	ServiceType    enums.ServiceType     `json:"serviceType"`
	Skill          *string               `json:"skill,omitempty"`
	MaleWorkers    int                   `json:"maleWorkers"`
	FemaleWorkers  int                   `json:"femaleWorkers"`
	TotalWorkers   int                   `json:"totalWorkers"`
	StartDate      string                `json:"startDate"`
	Cost           string                `json:"cost"`
	Status         enums.OrderStatus     `json:"status"`
	PaymentStatus  enums.PaymentStatus   `json:"paymentStatus"`
	AssignmentMode *enums.AssignmentMode `json:"assignmentMode,omitempty"`
	Timeout        *time.Time            `json:"timeout,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
}

type OrderFilters struct {
	Status        *enums.OrderStatus
	ServiceType   *enums.ServiceType
	PaymentStatus *enums.PaymentStatus
	FarmerID      *uuid.UUID
}

type OrderList struct {
	Items      []OrderSummary `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// OfferItem is a pending offer as shown to the candidate holding it.
type OfferItem struct {
	OrderID     uuid.UUID         `json:"orderId"`
	ServiceType enums.ServiceType `json:"serviceType"`
	Skill       *string           `json:"skill,omitempty"`
	StartDate   string            `json:"startDate"`
	OfferedAt   time.Time         `json:"offeredAt"`
	Deadline    time.Time         `json:"deadline"`
}

func summaryFromModel(order models.Order) OrderSummary {
	return OrderSummary{
		ID:             order.ID,
		FarmerID:       order.FarmerID,
		ServiceType:    order.ServiceType,
		Skill:          order.Skill,
		MaleWorkers:    order.MaleWorkers,
		FemaleWorkers:  order.FemaleWorkers,
		TotalWorkers:   order.TotalWorkers,
		StartDate:      types.DateKey(order.StartDate),
		Cost:           order.Cost.StringFixed(2),
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		AssignmentMode: order.AssignmentMode,
		Timeout:        order.Timeout,
		CreatedAt:      order.CreatedAt,
	}
}

func detailFromModel(order models.Order) OrderDetail {
	acceptances := make([]AcceptanceView, 0, len(order.Acceptances))
	for _, entry := range order.Acceptances {
		acceptances = append(acceptances, AcceptanceView{
			CandidateID: entry.CandidateID,
			Gender:      entry.Gender,
			Status:      entry.Status,
			Decision:    entry.Decision,
			Active:      entry.Active,
			OfferedAt:   entry.OfferedAt,
			Deadline:    entry.Deadline,
			DecidedAt:   entry.DecidedAt,
			CompletedAt: entry.CompletedAt,
		})
	}
	return OrderDetail{
		OrderSummary:     summaryFromModel(order),
		BundleDetails:    order.BundleDetails,
		WorkerIDs:        nonNil(order.WorkerIDs),
		AttemptedWorkers: nonNil(order.AttemptedWorkers),
		Acceptances:      acceptances,
		Version:          order.Version,
	}
}

func offerFromModel(entry models.WorkerAcceptance, order models.Order) OfferItem {
	return OfferItem{
		OrderID:     order.ID,
		ServiceType: order.ServiceType,
		Skill:       order.Skill,
		StartDate:   types.DateKey(order.StartDate),
		OfferedAt:   entry.OfferedAt,
		Deadline:    entry.Deadline,
	}
}

func bucketViews(buckets []Bucket) []BucketView {
	out := make([]BucketView, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, BucketView{Gender: b.Gender, Count: b.Count})
	}
	return out
}

func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
