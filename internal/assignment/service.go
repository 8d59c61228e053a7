package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlabor-backend/internal/candidates"
	"github.com/angelmondragon/farmlabor-backend/internal/earnings"
	"github.com/angelmondragon/farmlabor-backend/internal/repo"
	"github.com/angelmondragon/farmlabor-backend/pkg/db"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/metrics"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlabor-backend/pkg/pagination"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

// DeadlineKind names order deadlines in the timeout monitor and metrics.
const DeadlineKind = "orders"

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type deadlineScheduler interface {
	Arm(ctx context.Context, kind string, id uuid.UUID, at time.Time)
	Disarm(ctx context.Context, kind string, id uuid.UUID)
}

// Service assigns candidates to orders and reconciles their answers.
type Service interface {
	AutoAssign(ctx context.Context, actor Actor, orderID uuid.UUID) (*AssignResult, error)
	ManualAssign(ctx context.Context, actor Actor, orderID uuid.UUID, candidateIDs []uuid.UUID) (*AssignResult, error)
	RecordDecision(ctx context.Context, input DecisionInput) (*DecisionResult, error)
	CompleteWork(ctx context.Context, actor Actor, orderID, candidateID uuid.UUID) (*DecisionResult, error)
	GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDetail, error)
	ReassignmentStatus(ctx context.Context, orderID uuid.UUID) (*ReassignmentView, error)
	ListOffers(ctx context.Context, candidateID uuid.UUID) ([]OfferItem, error)
	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ExpirePendingOffers(ctx context.Context, orderID uuid.UUID, now time.Time) (int, error)
}

// DecisionInput carries a candidate's answer to an offer.
type DecisionInput struct {
	OrderID     uuid.UUID
	CandidateID uuid.UUID
	Decision    enums.Decision
	Actor       Actor
}

type ServiceParams struct {
	Repo       Repository
	Candidates candidates.Repository
	Earnings   earnings.Repository
	Tx         db.TxRunner
	Outbox     outboxPublisher
	Deadlines  deadlineScheduler
	Metrics    *metrics.AssignmentMetrics
	Logger     *logger.Logger
	Window     time.Duration
	Clock      func() time.Time
}

type service struct {
	repo       Repository
	candidates candidates.Repository
	earnings   earnings.Repository
	tx         db.TxRunner
	outbox     outboxPublisher
	deadlines  deadlineScheduler
	metrics    *metrics.AssignmentMetrics
	logg       *logger.Logger
	window     time.Duration
	now        func() time.Time
}

// NewService builds the order assignment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("assignment repository required")
	}
	if params.Candidates == nil {
		return nil, fmt.Errorf("candidates repository required")
	}
	if params.Earnings == nil {
		return nil, fmt.Errorf("earnings repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Window <= 0 {
		return nil, fmt.Errorf("offer window must be positive")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	deadlines := params.Deadlines
	if deadlines == nil {
		deadlines = noopScheduler{}
	}
	return &service{
		repo:       params.Repo,
		candidates: params.Candidates,
		earnings:   params.Earnings,
		tx:         params.Tx,
		outbox:     params.Outbox,
		deadlines:  deadlines,
		metrics:    params.Metrics,
		logg:       params.Logger,
		window:     params.Window,
		now:        func() time.Time { return clock().UTC() },
	}, nil
}

func (s *service) AutoAssign(ctx context.Context, actor Actor, orderID uuid.UUID) (*AssignResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.assign(ctx, actor, orderID, enums.AssignmentModeAuto, func(ctx context.Context, people candidates.Repository, order models.Order, remaining []Bucket) ([]models.User, error) {
		roster, err := people.ListRoster(ctx, enums.UserRoleWorker)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load candidate roster")
		}
		selected, err := AutoSelect(order, roster, remaining, s.requesterPincode(ctx, people, order))
		if err != nil {
			s.metrics.IncInsufficient(DeadlineKind)
			return nil, err
		}
		return selected, nil
	})
}

func (s *service) ManualAssign(ctx context.Context, actor Actor, orderID uuid.UUID, candidateIDs []uuid.UUID) (*AssignResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.assign(ctx, actor, orderID, enums.AssignmentModeManual, func(ctx context.Context, people candidates.Repository, order models.Order, remaining []Bucket) ([]models.User, error) {
		found, err := people.GetByIDs(ctx, candidateIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load selected candidates")
		}
		return ValidateManual(order, remaining, candidateIDs, found)
	})
}

type selector func(ctx context.Context, people candidates.Repository, order models.Order, remaining []Bucket) ([]models.User, error)

// assign runs one assignment round. Nothing is written unless selection
// succeeds, so a failed round leaves the order untouched.
func (s *service) assign(ctx context.Context, actor Actor, orderID uuid.UUID, mode enums.AssignmentMode, pick selector) (*AssignResult, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	var result *AssignResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orders := s.repo.WithTx(tx)
		people := s.candidates.WithTx(tx)

		order, err := loadOrder(ctx, orders, orderID)
		if err != nil {
			return err
		}
		remaining, err := Plan(*order)
		if err != nil {
			return err
		}
		selected, err := pick(ctx, people, *order, remaining)
		if err != nil {
			return err
		}

		now := s.now()
		expected := order.Version
		offered, retired := Offer(order, selected, mode, now, s.window)
		if err := orders.SaveOrder(ctx, order, expected); err != nil {
			return s.writeError(err, "save order")
		}
		if err := orders.RetireAcceptances(ctx, retired); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire rejected offers")
		}
		if err := orders.InsertAcceptances(ctx, offered); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert offers")
		}

		for _, candidate := range selected {
			event := outbox.DomainEvent{
				EventType:     enums.EventCandidateOffered,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actor.outboxRef(),
				OccurredAt:    now,
				Data: payloads.CandidateOfferedEvent{
					OrderID:     order.ID,
					CandidateID: candidate.ID,
					Phone:       candidate.Phone,
					Name:        candidate.Name,
					ServiceType: order.ServiceType,
					StartDate:   types.DateKey(order.StartDate),
					Deadline:    *order.Timeout,
					Mode:        mode,
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue offer notification")
			}
		}

		ids := make([]uuid.UUID, 0, len(selected))
		for _, candidate := range selected {
			ids = append(ids, candidate.ID)
		}
		result = &AssignResult{WorkerIDs: ids, Timeout: *order.Timeout}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddOffers(DeadlineKind, string(mode), len(result.WorkerIDs))
	s.deadlines.Arm(ctx, DeadlineKind, orderID, result.Timeout)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"mode":       mode,
		"candidates": len(result.WorkerIDs),
		"deadline":   result.Timeout,
	}), "candidates offered")
	return result, nil
}

func (s *service) RecordDecision(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CandidateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "candidate id required")
	}
	if input.Actor.Role != enums.UserRoleAdmin && input.Actor.UserID != input.CandidateID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "candidates can only answer their own offers")
	}
	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	ctx = s.logg.WithCandidateID(ctx, input.CandidateID.String())

	var (
		result  *DecisionResult
		pending bool
		timeout *time.Time
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orders := s.repo.WithTx(tx)
		people := s.candidates.WithTx(tx)

		order, err := loadOrder(ctx, orders, input.OrderID)
		if err != nil {
			return err
		}
		if input.Decision == enums.DecisionAccept {
			if err := candidates.RequireFree(ctx, people, input.CandidateID); err != nil {
				return err
			}
		}
		prev := order.Status
		expected := order.Version
		entry, err := ApplyDecision(order, input.CandidateID, input.Decision, s.now())
		if err != nil {
			return err
		}
		if err := s.persistDecisions(ctx, tx, orders, people, order, []models.WorkerAcceptance{*entry}, expected, prev, input.Actor); err != nil {
			return err
		}

		result = &DecisionResult{OrderStatus: order.Status, PaymentStatus: order.PaymentStatus}
		pending = HasPendingOffers(*order)
		timeout = order.Timeout
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDecision(DeadlineKind, string(input.Decision))
	s.reschedule(ctx, input.OrderID, pending, timeout)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"decision":     input.Decision,
		"order_status": result.OrderStatus,
	}), "offer decided")
	return result, nil
}

// ExpirePendingOffers times out every active offer on the order whose
// deadline is at or before now. It is what the timeout monitor and the sweep
// call; an order with nothing expired is left alone.
func (s *service) ExpirePendingOffers(ctx context.Context, orderID uuid.UUID, now time.Time) (int, error) {
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	now = now.UTC()

	var (
		expired int
		pending bool
		timeout *time.Time
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orders := s.repo.WithTx(tx)
		people := s.candidates.WithTx(tx)

		order, err := loadOrder(ctx, orders, orderID)
		if err != nil {
			return err
		}
		ids := Expired(*order, now)
		pending = HasPendingOffers(*order)
		timeout = order.Timeout
		if len(ids) == 0 {
			return nil
		}

		prev := order.Status
		expected := order.Version
		settled := make([]models.WorkerAcceptance, 0, len(ids))
		for _, id := range ids {
			entry, err := ApplyDecision(order, id, enums.DecisionTimeout, now)
			if err != nil {
				return err
			}
			settled = append(settled, *entry)
		}
		if err := s.persistDecisions(ctx, tx, orders, people, order, settled, expected, prev, SystemActor); err != nil {
			return err
		}

		expired = len(settled)
		pending = HasPendingOffers(*order)
		timeout = order.Timeout
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := 0; i < expired; i++ {
		s.metrics.IncTimeout(DeadlineKind)
		s.metrics.IncDecision(DeadlineKind, string(enums.DecisionTimeout))
	}
	s.reschedule(ctx, orderID, pending, timeout)
	if expired > 0 {
		s.logg.Info(s.logg.WithField(ctx, "expired", expired), "offers timed out")
	}
	return expired, nil
}

// persistDecisions writes settled entries and the recomputed order, adjusts
// candidate engagement and queues the notifications.
func (s *service) persistDecisions(ctx context.Context, tx *gorm.DB, orders Repository, people candidates.Repository, order *models.Order, settled []models.WorkerAcceptance, expected int, prev enums.OrderStatus, actor Actor) error {
	for _, entry := range settled {
		if err := orders.SettleAcceptance(ctx, entry); err != nil {
			return s.writeError(err, "settle offer")
		}
	}
	if err := orders.SaveOrder(ctx, order, expected); err != nil {
		return s.writeError(err, "save order")
	}

	for _, entry := range settled {
		var err error
		if entry.Status == enums.AcceptanceStatusAccepted {
			err = people.SetEngagement(ctx, entry.CandidateID, enums.EngagementStatusBusy)
		} else {
			err = people.Release(ctx, entry.CandidateID)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update candidate engagement")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOfferDecided,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actor.outboxRef(),
			Data: payloads.OfferDecidedEvent{
				OrderID:     order.ID,
				CandidateID: entry.CandidateID,
				Decision:    *entry.Decision,
				OrderStatus: order.Status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue decision event")
		}
	}
	// The last open offer can be rejected after the rest of the crew finished.
	if order.Status == enums.OrderStatusCompleted && prev != enums.OrderStatusCompleted {
		if err := s.recordEarnings(ctx, tx, *order, actor); err != nil {
			return err
		}
	}
	return s.emitStatusChange(ctx, tx, people, *order, prev, actor)
}

func (s *service) CompleteWork(ctx context.Context, actor Actor, orderID, candidateID uuid.UUID) (*DecisionResult, error) {
	if orderID == uuid.Nil || candidateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and candidate id required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())
	ctx = s.logg.WithCandidateID(ctx, candidateID.String())

	var result *DecisionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orders := s.repo.WithTx(tx)
		people := s.candidates.WithTx(tx)

		order, err := loadOrder(ctx, orders, orderID)
		if err != nil {
			return err
		}
		if actor.Role != enums.UserRoleAdmin && actor.UserID != order.FarmerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the farmer or an admin can complete work")
		}

		prev := order.Status
		expected := order.Version
		entry, err := Complete(order, candidateID, s.now())
		if err != nil {
			return err
		}
		if err := orders.CompleteAcceptance(ctx, *entry); err != nil {
			return s.writeError(err, "complete offer")
		}
		if err := orders.SaveOrder(ctx, order, expected); err != nil {
			return s.writeError(err, "save order")
		}
		if err := people.Release(ctx, candidateID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release candidate")
		}
		if order.Status == enums.OrderStatusCompleted {
			if err := s.recordEarnings(ctx, tx, *order, actor); err != nil {
				return err
			}
		}
		if err := s.emitStatusChange(ctx, tx, people, *order, prev, actor); err != nil {
			return err
		}

		result = &DecisionResult{OrderStatus: order.Status, PaymentStatus: order.PaymentStatus}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "order_status", result.OrderStatus), "work completed")
	return result, nil
}

// recordEarnings splits the order cost across the completed candidates.
func (s *service) recordEarnings(ctx context.Context, tx *gorm.DB, order models.Order, actor Actor) error {
	var completed []uuid.UUID
	for _, entry := range order.Acceptances {
		if entry.Active && entry.Status == enums.AcceptanceStatusCompleted {
			completed = append(completed, entry.CandidateID)
		}
	}
	shares := earnings.Split(order.Cost, len(completed))
	orderID := order.ID
	rows := make([]models.Earning, 0, len(completed))
	for i, candidateID := range completed {
		rows = append(rows, models.Earning{
			CandidateID: candidateID,
			OrderID:     &orderID,
			Amount:      shares[i],
		})
	}
	if err := s.earnings.WithTx(tx).Append(ctx, rows); err != nil {
		if errors.Is(err, earnings.ErrAlreadyRecorded) {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "earnings already recorded for this order")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append earnings")
	}

	for _, row := range rows {
		event := outbox.DomainEvent{
			EventType:     enums.EventEarningRecorded,
			AggregateType: enums.AggregateEarning,
			AggregateID:   row.ID,
			Actor:         actor.outboxRef(),
			Data: payloads.EarningRecordedEvent{
				EarningID:   row.ID,
				CandidateID: row.CandidateID,
				OrderID:     &orderID,
				Amount:      row.Amount.StringFixed(2),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue earning event")
		}
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.outboxRef(),
		Data: payloads.OrderCompletedEvent{
			OrderID:      order.ID,
			CandidateIDs: completed,
			Cost:         order.Cost.StringFixed(2),
		},
	})
}

func (s *service) emitStatusChange(ctx context.Context, tx *gorm.DB, people candidates.Repository, order models.Order, prev enums.OrderStatus, actor Actor) error {
	if order.Status == prev {
		return nil
	}
	data := payloads.OrderStatusChangedEvent{
		OrderID:       order.ID,
		From:          prev,
		To:            order.Status,
		PaymentStatus: order.PaymentStatus,
	}
	if order.Status == enums.OrderStatusAssigned {
		farmer, err := people.Get(ctx, order.FarmerID)
		switch {
		case err == nil:
			data.FarmerPhone = farmer.Phone
		case errors.Is(err, gorm.ErrRecordNotFound):
			s.logg.Warn(ctx, "farmer profile missing; assignment notice skipped")
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer")
		}
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actor.outboxRef(),
		Data:          data,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue status event")
	}
	return nil
}

func (s *service) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDetail, error) {
	order, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != order.FarmerID && !order.AttemptedWorkers.Contains(actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order is not visible to this user")
	}
	detail := detailFromModel(*order)
	return &detail, nil
}

func (s *service) ReassignmentStatus(ctx context.Context, orderID uuid.UUID) (*ReassignmentView, error) {
	order, err := loadOrder(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	return &ReassignmentView{
		ReassignmentNeeded: ReassignmentNeeded(*order),
		Remaining:          bucketViews(Remaining(*order)),
	}, nil
}

func (s *service) ListOffers(ctx context.Context, candidateID uuid.UUID) ([]OfferItem, error) {
	if candidateID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	items, err := s.repo.ListPendingOffers(ctx, candidateID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offers")
	}
	return items, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	list, err := s.repo.ListOrders(ctx, params, filters)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) requesterPincode(ctx context.Context, people candidates.Repository, order models.Order) string {
	farmer, err := people.Get(ctx, order.FarmerID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, fmt.Sprintf("farmer lookup failed, ranking without pincode: %v", err))
		}
		return ""
	}
	return farmer.Pincode
}

func (s *service) reschedule(ctx context.Context, orderID uuid.UUID, pending bool, timeout *time.Time) {
	if pending && timeout != nil {
		s.deadlines.Arm(ctx, DeadlineKind, orderID, *timeout)
		return
	}
	s.deadlines.Disarm(ctx, DeadlineKind, orderID)
}

func (s *service) writeError(err error, action string) error {
	switch {
	case errors.Is(err, repo.ErrVersionConflict):
		s.metrics.IncConflict(DeadlineKind)
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order changed concurrently; reload and retry")
	case errors.Is(err, errAlreadySettled):
		return pkgerrors.Wrap(pkgerrors.CodeInvalidState, err, "offer already settled")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func loadOrder(ctx context.Context, orders Repository, id uuid.UUID) (*models.Order, error) {
	order, err := orders.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func requireAdmin(actor Actor) error {
	if actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

type noopScheduler struct{}

func (noopScheduler) Arm(context.Context, string, uuid.UUID, time.Time) {}
func (noopScheduler) Disarm(context.Context, string, uuid.UUID)         {}
