package transport

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
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

// DeadlineKind names transport deadlines in the timeout monitor and metrics.
const DeadlineKind = "transport"

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type deadlineScheduler interface {
	Arm(ctx context.Context, kind string, id uuid.UUID, at time.Time)
	Disarm(ctx context.Context, kind string, id uuid.UUID)
}

// Service assigns drivers to transport jobs.
type Service interface {
	AutoAssign(ctx context.Context, actor Actor, id uuid.UUID) (*AssignResult, error)
	ManualAssign(ctx context.Context, actor Actor, id uuid.UUID, driverIDs []uuid.UUID) (*AssignResult, error)
	RecordDecision(ctx context.Context, input DecisionInput) (*DecisionResult, error)
	Complete(ctx context.Context, actor Actor, id uuid.UUID) (*DecisionResult, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*AssignmentView, error)
	ExpirePendingOffers(ctx context.Context, id uuid.UUID, now time.Time) (int, error)
}

type DecisionInput struct {
	AssignmentID uuid.UUID
	DriverID     uuid.UUID
	Decision     enums.Decision
	Actor        Actor
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

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("transport repository required")
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
	var deadlines deadlineScheduler = noopScheduler{}
	if params.Deadlines != nil {
		deadlines = params.Deadlines
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

func (s *service) AutoAssign(ctx context.Context, actor Actor, id uuid.UUID) (*AssignResult, error) {
	return s.assign(ctx, actor, id, enums.AssignmentModeAuto, func(ctx context.Context, people candidates.Repository, job models.TransportAssignment) (models.User, error) {
		roster, err := people.ListRoster(ctx, enums.UserRoleDriver)
		if err != nil {
			return models.User{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver roster")
		}
		driver, err := AutoSelect(job, roster)
		if err != nil {
			s.metrics.IncInsufficient(DeadlineKind)
		}
		return driver, err
	})
}

func (s *service) ManualAssign(ctx context.Context, actor Actor, id uuid.UUID, driverIDs []uuid.UUID) (*AssignResult, error) {
	return s.assign(ctx, actor, id, enums.AssignmentModeManual, func(ctx context.Context, people candidates.Repository, job models.TransportAssignment) (models.User, error) {
		found, err := people.GetByIDs(ctx, driverIDs)
		if err != nil {
			return models.User{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load selected driver")
		}
		return ValidateManual(job, driverIDs, found)
	})
}

type selector func(ctx context.Context, people candidates.Repository, job models.TransportAssignment) (models.User, error)

func (s *service) assign(ctx context.Context, actor Actor, id uuid.UUID, mode enums.AssignmentMode, pick selector) (*AssignResult, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	ctx = s.logg.WithAssignmentID(ctx, id.String())

	var result *AssignResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		jobs := s.repo.WithTx(tx)
		job, err := loadJob(ctx, jobs, id)
		if err != nil {
			return err
		}
		if err := Plan(*job); err != nil {
			return err
		}
		driver, err := pick(ctx, s.candidates.WithTx(tx), *job)
		if err != nil {
			return err
		}

		expected := job.Version
		deadline := Offer(job, driver, s.now(), s.window)
		if err := jobs.Save(ctx, job, expected); err != nil {
			return s.writeError(err)
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventDriverOffered,
			AggregateType: enums.AggregateTransportAssignment,
			AggregateID:   job.ID,
			Actor:         actorRef(actor),
			Data: payloads.DriverOfferedEvent{
				AssignmentID:  job.ID,
				DriverID:      driver.ID,
				Phone:         driver.Phone,
				VehicleType:   job.VehicleType,
				PickupPincode: job.PickupPincode,
				PickupDate:    types.DateKey(job.PickupDate),
				Deadline:      deadline,
				Mode:          mode,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue driver offer")
		}
		result = &AssignResult{DriverID: driver.ID, Timeout: deadline}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddOffers(DeadlineKind, string(mode), 1)
	s.deadlines.Arm(ctx, DeadlineKind, id, result.Timeout)
	s.logg.Info(s.logg.WithField(ctx, "driver_id", result.DriverID.String()), "driver offered")
	return result, nil
}

func (s *service) RecordDecision(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	if input.AssignmentID == uuid.Nil || input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "assignment id and driver id required")
	}
	if input.Actor.Role != enums.UserRoleAdmin && input.Actor.UserID != input.DriverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "drivers can only answer their own offers")
	}
	ctx = s.logg.WithAssignmentID(ctx, input.AssignmentID.String())
	ctx = s.logg.WithCandidateID(ctx, input.DriverID.String())

	var result *DecisionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		jobs := s.repo.WithTx(tx)
		job, err := loadJob(ctx, jobs, input.AssignmentID)
		if err != nil {
			return err
		}
		if input.Decision == enums.DecisionAccept {
			if err := candidates.RequireFree(ctx, s.candidates.WithTx(tx), input.DriverID); err != nil {
				return err
			}
		}
		expected := job.Version
		if err := ApplyDecision(job, input.DriverID, input.Decision, s.now()); err != nil {
			return err
		}
		if err := s.persistDecision(ctx, tx, job, expected, input.DriverID, input.Decision, input.Actor); err != nil {
			return err
		}
		result = &DecisionResult{Status: job.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDecision(DeadlineKind, string(input.Decision))
	s.deadlines.Disarm(ctx, DeadlineKind, input.AssignmentID)
	s.logg.Info(s.logg.WithField(ctx, "status", result.Status), "driver decided")
	return result, nil
}

// ExpirePendingOffers times out the driver offer when its deadline has
// passed. It returns 1 when a timeout was recorded.
func (s *service) ExpirePendingOffers(ctx context.Context, id uuid.UUID, now time.Time) (int, error) {
	ctx = s.logg.WithAssignmentID(ctx, id.String())
	now = now.UTC()

	expired := 0
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		jobs := s.repo.WithTx(tx)
		job, err := loadJob(ctx, jobs, id)
		if err != nil {
			return err
		}
		if !Expired(*job, now) {
			return nil
		}
		driverID := *job.DriverID
		expected := job.Version
		if err := ApplyDecision(job, driverID, enums.DecisionTimeout, now); err != nil {
			return err
		}
		if err := s.persistDecision(ctx, tx, job, expected, driverID, enums.DecisionTimeout, SystemActor); err != nil {
			return err
		}
		expired = 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.metrics.IncTimeout(DeadlineKind)
		s.metrics.IncDecision(DeadlineKind, string(enums.DecisionTimeout))
		s.logg.Info(ctx, "driver offer timed out")
	}
	s.deadlines.Disarm(ctx, DeadlineKind, id)
	return expired, nil
}

func (s *service) persistDecision(ctx context.Context, tx *gorm.DB, job *models.TransportAssignment, expected int, driverID uuid.UUID, decision enums.Decision, actor Actor) error {
	if err := s.repo.WithTx(tx).Save(ctx, job, expected); err != nil {
		return s.writeError(err)
	}
	people := s.candidates.WithTx(tx)
	var err error
	if job.Status == enums.TransportStatusAccepted {
		err = people.SetEngagement(ctx, driverID, enums.EngagementStatusBusy)
	} else {
		err = people.Release(ctx, driverID)
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update driver engagement")
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventTransportDecided,
		AggregateType: enums.AggregateTransportAssignment,
		AggregateID:   job.ID,
		Actor:         actorRef(actor),
		Data: payloads.TransportDecidedEvent{
			AssignmentID: job.ID,
			DriverID:     driverID,
			Decision:     decision,
			Status:       job.Status,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue decision event")
	}
	return nil
}

// Complete closes the job and pays its driver the full cost.
func (s *service) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*DecisionResult, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	ctx = s.logg.WithAssignmentID(ctx, id.String())

	var result *DecisionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		jobs := s.repo.WithTx(tx)
		job, err := loadJob(ctx, jobs, id)
		if err != nil {
			return err
		}
		expected := job.Version
		if err := Complete(job, s.now()); err != nil {
			return err
		}
		if err := jobs.Save(ctx, job, expected); err != nil {
			return s.writeError(err)
		}
		driverID := *job.DriverID
		if err := s.candidates.WithTx(tx).Release(ctx, driverID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release driver")
		}

		jobID := job.ID
		row := models.Earning{
			CandidateID:           driverID,
			TransportAssignmentID: &jobID,
			Amount:                earnings.Split(job.Cost, 1)[0],
		}
		rows := []models.Earning{row}
		if err := s.earnings.WithTx(tx).Append(ctx, rows); err != nil {
			if errors.Is(err, earnings.ErrAlreadyRecorded) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "earning already recorded for this job")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append earning")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventEarningRecorded,
			AggregateType: enums.AggregateEarning,
			AggregateID:   rows[0].ID,
			Actor:         actorRef(actor),
			Data: payloads.EarningRecordedEvent{
				EarningID:             rows[0].ID,
				CandidateID:           driverID,
				TransportAssignmentID: &jobID,
				Amount:                rows[0].Amount.StringFixed(2),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue earning event")
		}
		result = &DecisionResult{Status: job.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(ctx, "transport job completed")
	return result, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*AssignmentView, error) {
	job, err := loadJob(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	isDriver := job.DriverID != nil && *job.DriverID == actor.UserID
	if actor.Role != enums.UserRoleAdmin && !isDriver && !job.RejectedDriverIDs.Contains(actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "transport job is not visible to this user")
	}
	view := viewFromModel(*job)
	return &view, nil
}

func (s *service) writeError(err error) error {
	if errors.Is(err, repo.ErrVersionConflict) {
		s.metrics.IncConflict(DeadlineKind)
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "transport job changed concurrently; reload and retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save transport job")
}

func loadJob(ctx context.Context, jobs Repository, id uuid.UUID) (*models.TransportAssignment, error) {
	job, err := jobs.Find(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transport job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transport job")
	}
	return job, nil
}

func actorRef(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil {
		return outbox.SystemActor
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}

type noopScheduler struct{}

func (noopScheduler) Arm(context.Context, string, uuid.UUID, time.Time) {}
func (noopScheduler) Disarm(context.Context, string, uuid.UUID)         {}
