package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/api/middleware"
	"github.com/angelmondragon/farmlabor-backend/api/responses"
	"github.com/angelmondragon/farmlabor-backend/api/validators"
	"github.com/angelmondragon/farmlabor-backend/internal/assignment"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

type assignRequest struct {
	CandidateIDs []uuid.UUID `json:"candidateIds" validate:"required,min=1,unique,dive,required"`
}

type decisionRequest struct {
	CandidateID *uuid.UUID `json:"candidateId,omitempty"`
	Decision    string     `json:"decision" validate:"required,oneof=accept reject"`
}

type completeRequest struct {
	CandidateID uuid.UUID `json:"candidateId" validate:"required"`
}

// target is the caller and the order named in the path.
type target struct {
	actor   assignment.Actor
	orderID uuid.UUID
}

type orderFunc func(r *http.Request, t target) (any, error)

// onOrder resolves the caller and {orderId} before fn runs.
func onOrder(svc assignment.Service, logg *logger.Logger, fn orderFunc) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable")
		}
		actor, err := actorFromRequest(r)
		if err != nil {
			return nil, err
		}
		orderID, err := parseOrderID(r)
		if err != nil {
			return nil, err
		}
		return fn(r, target{actor: actor, orderID: orderID})
	})
}

// AutoAssign offers the order to the best ranked eligible candidates.
func AutoAssign(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc, logg, func(r *http.Request, t target) (any, error) {
		return svc.AutoAssign(r.Context(), t.actor, t.orderID)
	})
}

// ManualAssign offers the order to an operator-chosen set of candidates.
func ManualAssign(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc, logg, func(r *http.Request, t target) (any, error) {
		req, err := validators.DecodeJSON[assignRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.ManualAssign(r.Context(), t.actor, t.orderID, req.CandidateIDs)
	})
}

// Decision records a candidate's accept or reject. Candidates answer for
// themselves; admins may answer on behalf of a named candidate.
func Decision(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc, logg, func(r *http.Request, t target) (any, error) {
		req, err := validators.DecodeJSON[decisionRequest](r)
		if err != nil {
			return nil, err
		}
		decision, err := enums.ParseDecision(req.Decision)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision")
		}
		candidateID := t.actor.UserID
		if req.CandidateID != nil {
			candidateID = *req.CandidateID
		}
		return svc.RecordDecision(r.Context(), assignment.DecisionInput{
			OrderID:     t.orderID,
			CandidateID: candidateID,
			Decision:    decision,
			Actor:       t.actor,
		})
	})
}

// Complete marks an accepted candidate's work done.
func Complete(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc, logg, func(r *http.Request, t target) (any, error) {
		req, err := validators.DecodeJSON[completeRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.CompleteWork(r.Context(), t.actor, t.orderID, req.CandidateID)
	})
}

// Detail returns the order snapshot with its acceptance history.
func Detail(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc, logg, func(r *http.Request, t target) (any, error) {
		return svc.GetOrder(r.Context(), t.actor, t.orderID)
	})
}

// Reassignment reports whether the order still needs candidates. Callers who
// cannot see the order detail cannot see this either.
func Reassignment(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return onOrder(svc, logg, func(r *http.Request, t target) (any, error) {
		if _, err := svc.GetOrder(r.Context(), t.actor, t.orderID); err != nil {
			return nil, err
		}
		return svc.ReassignmentStatus(r.Context(), t.orderID)
	})
}

// AdminList pages through orders for operators, newest first.
func AdminList(svc assignment.Service, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable")
		}
		page, err := validators.PageParams(r)
		if err != nil {
			return nil, err
		}
		filters, err := buildFilters(r)
		if err != nil {
			return nil, err
		}
		return svc.ListOrders(r.Context(), page, filters)
	})
}

func buildFilters(r *http.Request) (assignment.OrderFilters, error) {
	var (
		filters assignment.OrderFilters
		err     error
	)
	if filters.Status, err = enumFilter(r, "status", enums.ParseOrderStatus); err != nil {
		return filters, err
	}
	if filters.ServiceType, err = enumFilter(r, "serviceType", enums.ParseServiceType); err != nil {
		return filters, err
	}
	if filters.PaymentStatus, err = enumFilter(r, "paymentStatus", enums.ParsePaymentStatus); err != nil {
		return filters, err
	}
	if filters.FarmerID, err = validators.ParseQueryUUID(r, "farmerId"); err != nil {
		return filters, err
	}
	return filters, nil
}

func enumFilter[T any](r *http.Request, key string, parse func(string) (T, error)) (*T, error) {
	raw := validators.QueryString(r, key, 0)
	if raw == "" {
		return nil, nil
	}
	value, err := parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key+" filter")
	}
	return &value, nil
}

func actorFromRequest(r *http.Request) (assignment.Actor, error) {
	userID, role, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return assignment.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return assignment.Actor{UserID: userID, Role: role}, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}
