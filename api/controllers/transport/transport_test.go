package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/api/middleware"
	internaltransport "github.com/angelmondragon/farmlabor-backend/internal/transport"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
)

type stubTransportService struct {
	autoAssign   func(ctx context.Context, actor internaltransport.Actor, id uuid.UUID) (*internaltransport.AssignResult, error)
	manualAssign func(ctx context.Context, actor internaltransport.Actor, id uuid.UUID, driverIDs []uuid.UUID) (*internaltransport.AssignResult, error)
	decision     func(ctx context.Context, input internaltransport.DecisionInput) (*internaltransport.DecisionResult, error)
	complete     func(ctx context.Context, actor internaltransport.Actor, id uuid.UUID) (*internaltransport.DecisionResult, error)
	get          func(ctx context.Context, actor internaltransport.Actor, id uuid.UUID) (*internaltransport.AssignmentView, error)
}

func (s *stubTransportService) AutoAssign(ctx context.Context, actor internaltransport.Actor, id uuid.UUID) (*internaltransport.AssignResult, error) {
	return s.autoAssign(ctx, actor, id)
}

func (s *stubTransportService) ManualAssign(ctx context.Context, actor internaltransport.Actor, id uuid.UUID, driverIDs []uuid.UUID) (*internaltransport.AssignResult, error) {
	return s.manualAssign(ctx, actor, id, driverIDs)
}

func (s *stubTransportService) RecordDecision(ctx context.Context, input internaltransport.DecisionInput) (*internaltransport.DecisionResult, error) {
	return s.decision(ctx, input)
}

func (s *stubTransportService) Complete(ctx context.Context, actor internaltransport.Actor, id uuid.UUID) (*internaltransport.DecisionResult, error) {
	return s.complete(ctx, actor, id)
}

func (s *stubTransportService) Get(ctx context.Context, actor internaltransport.Actor, id uuid.UUID) (*internaltransport.AssignmentView, error) {
	return s.get(ctx, actor, id)
}

func (s *stubTransportService) ExpirePendingOffers(context.Context, uuid.UUID, time.Time) (int, error) {
	panic("not implemented")
}

// call runs h against assignment id as the given caller and checks the status.
func call(t *testing.T, h http.HandlerFunc, id, body string, role enums.UserRole, callerID uuid.UUID, want int) []byte {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transport-assignments/"+id, strings.NewReader(body))
	rc := chi.NewRouteContext()
	rc.URLParams.Add("assignmentId", id)
	ctx := middleware.WithRole(middleware.WithUserID(context.WithValue(req.Context(), chi.RouteCtxKey, rc), callerID.String()), string(role))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != want {
		t.Fatalf("status %d, want %d: %s", rec.Code, want, rec.Body.String())
	}
	return rec.Body.Bytes()
}

func dataAs[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return envelope.Data
}

func TestDecisionUsesCallerAsDriver(t *testing.T) {
	driverID, jobID := uuid.New(), uuid.New()
	svc := &stubTransportService{
		decision: func(_ context.Context, input internaltransport.DecisionInput) (*internaltransport.DecisionResult, error) {
			if input.DriverID != driverID || input.AssignmentID != jobID || input.Decision != enums.DecisionReject {
				t.Fatalf("unexpected input %+v", input)
			}
			return &internaltransport.DecisionResult{Status: enums.TransportStatusPending}, nil
		},
	}

	raw := call(t, Decision(svc, nil), jobID.String(), `{"decision":"reject"}`, enums.UserRoleDriver, driverID, http.StatusOK)
	if got := dataAs[internaltransport.DecisionResult](t, raw); got.Status != enums.TransportStatusPending {
		t.Fatalf("unexpected status %s", got.Status)
	}
}

func TestManualAssign(t *testing.T) {
	var forwarded int
	svc := &stubTransportService{
		manualAssign: func(context.Context, internaltransport.Actor, uuid.UUID, []uuid.UUID) (*internaltransport.AssignResult, error) {
			forwarded++
			return nil, pkgerrors.New(pkgerrors.CodeIneligible, "no listed driver is eligible")
		},
	}
	admin := uuid.New()

	call(t, ManualAssign(svc, nil), uuid.NewString(), `{"driverIds":[]}`, enums.UserRoleAdmin, admin, http.StatusBadRequest)
	if forwarded != 0 {
		t.Fatal("an empty driver list must not reach the service")
	}
	call(t, ManualAssign(svc, nil), uuid.NewString(), `{"driverIds":["`+uuid.NewString()+`"]}`, enums.UserRoleAdmin, admin, http.StatusConflict)
	if forwarded != 1 {
		t.Fatalf("expected one forwarded call, got %d", forwarded)
	}
}

func TestCompleteThenDetail(t *testing.T) {
	jobID := uuid.New()
	svc := &stubTransportService{
		complete: func(_ context.Context, _ internaltransport.Actor, id uuid.UUID) (*internaltransport.DecisionResult, error) {
			if id != jobID {
				t.Fatalf("unexpected id %s", id)
			}
			return &internaltransport.DecisionResult{Status: enums.TransportStatusCompleted}, nil
		},
		get: func(_ context.Context, _ internaltransport.Actor, id uuid.UUID) (*internaltransport.AssignmentView, error) {
			return &internaltransport.AssignmentView{ID: id, Status: enums.TransportStatusCompleted, Cost: "450.00"}, nil
		},
	}
	driver := uuid.New()

	done := dataAs[internaltransport.DecisionResult](t, call(t, Complete(svc, nil), jobID.String(), "", enums.UserRoleDriver, driver, http.StatusOK))
	if done.Status != enums.TransportStatusCompleted {
		t.Fatalf("unexpected completion %+v", done)
	}
	view := dataAs[internaltransport.AssignmentView](t, call(t, Detail(svc, nil), jobID.String(), "", enums.UserRoleDriver, driver, http.StatusOK))
	if view.ID != jobID || view.Cost != "450.00" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestInvalidAssignmentID(t *testing.T) {
	call(t, AutoAssign(&stubTransportService{}, nil), "bad", "", enums.UserRoleAdmin, uuid.New(), http.StatusBadRequest)
}
