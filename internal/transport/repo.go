package transport

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlabor-backend/internal/repo"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
)

// Repository defines persistence for transport jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Find(ctx context.Context, id uuid.UUID) (*models.TransportAssignment, error)
	Save(ctx context.Context, job *models.TransportAssignment, expectedVersion int) error
	FindExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a transport repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.TransportAssignment, error) {
	var job models.TransportAssignment
	if err := r.base.DB(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// Save writes the assignment state of job guarded by expectedVersion.
func (r *repository) Save(ctx context.Context, job *models.TransportAssignment, expectedVersion int) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"driver_id":           job.DriverID,
		"status":              job.Status,
		"rejected_driver_ids": job.RejectedDriverIDs,
		"timeout":             job.Timeout,
		"accepted_at":         job.AcceptedAt,
		"completed_at":        job.CompletedAt,
		"updated_at":          now,
	}
	if err := r.base.UpdateVersioned(ctx, &models.TransportAssignment{}, job.ID, expectedVersion, updates); err != nil {
		return err
	}
	job.Version = expectedVersion + 1
	job.UpdatedAt = now
	return nil
}

// FindExpired returns jobs whose driver offer deadline is at or before now.
func (r *repository) FindExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.base.DB(ctx).
		Model(&models.TransportAssignment{}).
		Where("status = ? AND driver_id IS NOT NULL AND timeout <= ?", enums.TransportStatusPending, now).
		Order("timeout ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}
