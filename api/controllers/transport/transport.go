package transport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/api/middleware"
	"github.com/angelmondragon/farmlabor-backend/api/responses"
	"github.com/angelmondragon/farmlabor-backend/api/validators"
	internaltransport "github.com/angelmondragon/farmlabor-backend/internal/transport"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
)

type assignRequest struct {
	DriverIDs []uuid.UUID `json:"driverIds" validate:"required,min=1,unique,dive,required"`
}

type decisionRequest struct {
	DriverID *uuid.UUID `json:"driverId,omitempty"`
	Decision string     `json:"decision" validate:"required,oneof=accept reject"`
}

type jobFunc func(r *http.Request, actor internaltransport.Actor, id uuid.UUID) (any, error)

func onJob(svc internaltransport.Service, logg *logger.Logger, fn jobFunc) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "transport service unavailable")
		}
		actor, id, err := parseRequest(r)
		if err != nil {
			return nil, err
		}
		return fn(r, actor, id)
	})
}

func AutoAssign(svc internaltransport.Service, logg *logger.Logger) http.HandlerFunc {
	return onJob(svc, logg, func(r *http.Request, actor internaltransport.Actor, id uuid.UUID) (any, error) {
		return svc.AutoAssign(r.Context(), actor, id)
	})
}

// ManualAssign offers the job to the first eligible driver in the given order.
func ManualAssign(svc internaltransport.Service, logg *logger.Logger) http.HandlerFunc {
	return onJob(svc, logg, func(r *http.Request, actor internaltransport.Actor, id uuid.UUID) (any, error) {
		req, err := validators.DecodeJSON[assignRequest](r)
		if err != nil {
			return nil, err
		}
		return svc.ManualAssign(r.Context(), actor, id, req.DriverIDs)
	})
}

func Decision(svc internaltransport.Service, logg *logger.Logger) http.HandlerFunc {
	return onJob(svc, logg, func(r *http.Request, actor internaltransport.Actor, id uuid.UUID) (any, error) {
		req, err := validators.DecodeJSON[decisionRequest](r)
		if err != nil {
			return nil, err
		}
		decision, err := enums.ParseDecision(req.Decision)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision")
		}
		driverID := actor.UserID
		if req.DriverID != nil {
			driverID = *req.DriverID
		}
		return svc.RecordDecision(r.Context(), internaltransport.DecisionInput{
			AssignmentID: id,
			DriverID:     driverID,
			Decision:     decision,
			Actor:        actor,
		})
	})
}

func Complete(svc internaltransport.Service, logg *logger.Logger) http.HandlerFunc {
	return onJob(svc, logg, func(r *http.Request, actor internaltransport.Actor, id uuid.UUID) (any, error) {
		return svc.Complete(r.Context(), actor, id)
	})
}

func Detail(svc internaltransport.Service, logg *logger.Logger) http.HandlerFunc {
	return onJob(svc, logg, func(r *http.Request, actor internaltransport.Actor, id uuid.UUID) (any, error) {
		return svc.Get(r.Context(), actor, id)
	})
}

func parseRequest(r *http.Request) (internaltransport.Actor, uuid.UUID, error) {
	userID, role, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return internaltransport.Actor{}, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	raw := strings.TrimSpace(chi.URLParam(r, "assignmentId"))
	if raw == "" {
		return internaltransport.Actor{}, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return internaltransport.Actor{}, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid assignment id")
	}
	return internaltransport.Actor{UserID: userID, Role: role}, id, nil
}
