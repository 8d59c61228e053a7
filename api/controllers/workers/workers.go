package workers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/api/middleware"
	"github.com/angelmondragon/farmlabor-backend/api/responses"
	"github.com/angelmondragon/farmlabor-backend/api/validators"
	"github.com/angelmondragon/farmlabor-backend/internal/assignment"
	"github.com/angelmondragon/farmlabor-backend/internal/earnings"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/pagination"
)

type offerLister interface {
	ListOffers(ctx context.Context, candidateID uuid.UUID) ([]assignment.OfferItem, error)
}

type earningsLister interface {
	ListByCandidate(ctx context.Context, candidateID uuid.UUID, params pagination.Params) (*earnings.List, error)
}

func callerID(r *http.Request) (uuid.UUID, error) {
	userID, _, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return userID, nil
}

// Offers lists the caller's pending offers with their deadlines.
func Offers(svc offerLister, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (any, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "assignment service unavailable")
		}
		userID, err := callerID(r)
		if err != nil {
			return nil, err
		}
		items, err := svc.ListOffers(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []assignment.OfferItem{}
		}
		return map[string]any{"items": items}, nil
	})
}

// Earnings pages through the caller's earnings, newest first.
func Earnings(repo earningsLister, logg *logger.Logger) http.HandlerFunc {
	return responses.Handle(logg, func(r *http.Request) (any, error) {
		if repo == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "earnings repository unavailable")
		}
		userID, err := callerID(r)
		if err != nil {
			return nil, err
		}
		page, err := validators.PageParams(r)
		if err != nil {
			return nil, err
		}
		list, err := repo.ListByCandidate(r.Context(), userID, page)
		switch {
		case errors.Is(err, pagination.ErrInvalidCursor):
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		case err != nil:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list earnings")
		}
		return list, nil
	})
}
