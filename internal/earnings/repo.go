package earnings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlabor-backend/internal/repo"
	"github.com/angelmondragon/farmlabor-backend/pkg/db"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/pagination"
)

// ErrAlreadyRecorded means a payout for the same job and candidate exists.
var ErrAlreadyRecorded = errors.New("earning already recorded")

// Repository appends and lists payout lines. Rows are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, rows []models.Earning) error
	ListByCandidate(ctx context.Context, candidateID uuid.UUID, params pagination.Params) (*List, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// Append inserts rows, assigning ids where missing. The unique index on
// (job, candidate) rejects a second payout for the same job.
func (r *repository) Append(ctx context.Context, rows []models.Earning) error {
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].ID == uuid.Nil {
			rows[i].ID = uuid.New()
		}
		if rows[i].CreatedAt.IsZero() {
			rows[i].CreatedAt = now
		}
	}
	if err := r.base.DB(ctx).Create(&rows).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return fmt.Errorf("%w: %v", ErrAlreadyRecorded, err)
		}
		return err
	}
	return nil
}

func (r *repository) ListByCandidate(ctx context.Context, candidateID uuid.UUID, params pagination.Params) (*List, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	var rows []models.Earning
	err = r.base.DB(ctx).
		Where("candidate_id = ?", candidateID).
		Scopes(pagination.Keyset(cursor, params.Limit)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	page, next := pagination.Trim(rows, params.Limit, func(e models.Earning) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	items := make([]Item, 0, len(page))
	for _, row := range page {
		items = append(items, itemFromModel(row))
	}
	return &List{Items: items, NextCursor: next}, nil
}
