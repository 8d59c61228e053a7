package candidates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlabor-backend/internal/repo"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
)

// Repository reads candidate profiles and tracks whether they are engaged.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	ListRoster(ctx context.Context, role enums.UserRole) ([]models.User, error)
	SetEngagement(ctx context.Context, id uuid.UUID, status enums.EngagementStatus) error
	HoldsAcceptedWork(ctx context.Context, id uuid.UUID) (bool, error)
	Release(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	base repo.Base
}

// NewRepository builds a candidates repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.base.DB(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs returns the users found, in no particular order. Missing ids are
// simply absent from the result.
func (r *repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.base.DB(ctx).
		Where("id IN ?", ids).
		Find(&users).Error
	return users, err
}

// ListRoster returns approved, ready candidates of role in registration order.
// Skill, gender and availability are left to the eligibility rules.
func (r *repository) ListRoster(ctx context.Context, role enums.UserRole) ([]models.User, error) {
	var users []models.User
	err := r.base.DB(ctx).
		Where("role = ? AND approval_status = ? AND engagement_status = ?", role, enums.ApprovalStatusApproved, enums.EngagementStatusReady).
		Order("created_at ASC").
		Order("id ASC").
		Find(&users).Error
	return users, err
}

func (r *repository) SetEngagement(ctx context.Context, id uuid.UUID, status enums.EngagementStatus) error {
	return r.base.DB(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("engagement_status", status).Error
}

// HoldsAcceptedWork reports whether the candidate still has an accepted order
// slot or transport job.
func (r *repository) HoldsAcceptedWork(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.WorkerAcceptance{}).
		Where("candidate_id = ? AND status = ? AND active = ?", id, enums.AcceptanceStatusAccepted, true).
		Count(&count).Error
	if err != nil || count > 0 {
		return count > 0, err
	}
	err = r.base.DB(ctx).
		Model(&models.TransportAssignment{}).
		Where("driver_id = ? AND status = ?", id, enums.TransportStatusAccepted).
		Count(&count).Error
	return count > 0, err
}

// Release moves the candidate back to ready unless other accepted work keeps
// them busy.
func (r *repository) Release(ctx context.Context, id uuid.UUID) error {
	busy, err := r.HoldsAcceptedWork(ctx, id)
	if err != nil {
		return err
	}
	if busy {
		return nil
	}
	return r.SetEngagement(ctx, id, enums.EngagementStatusReady)
}

// RequireFree refuses with INVALID_STATE when the candidate already holds
// accepted work, so one person cannot accept two jobs at once.
func RequireFree(ctx context.Context, people Repository, id uuid.UUID) error {
	busy, err := people.HoldsAcceptedWork(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check candidate engagement")
	}
	if busy {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "candidate already holds accepted work")
	}
	return nil
}
