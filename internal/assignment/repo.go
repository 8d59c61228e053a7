package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlabor-backend/internal/repo"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/pagination"
)

// errAlreadySettled means a guarded acceptance write found the entry no
// longer in the state it was read in.
var errAlreadySettled = errors.New("acceptance already settled")

// Repository defines persistence for orders and their acceptances.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order, expectedVersion int) error
	InsertAcceptances(ctx context.Context, entries []models.WorkerAcceptance) error
	RetireAcceptances(ctx context.Context, ids []uuid.UUID) error
	SettleAcceptance(ctx context.Context, entry models.WorkerAcceptance) error
	CompleteAcceptance(ctx context.Context, entry models.WorkerAcceptance) error
	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	ListPendingOffers(ctx context.Context, candidateID uuid.UUID) ([]OfferItem, error)
	FindOrdersWithExpiredOffers(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds an assignment repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// FindOrder loads the order with every acceptance entry, oldest first.
func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.DB(ctx).
		Preload("Acceptances", func(db *gorm.DB) *gorm.DB {
			return db.Order("offered_at ASC").Order("id ASC")
		}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// SaveOrder writes the assignment fields of the order if nobody else wrote it
// since expectedVersion was read. On success order.Version is advanced.
func (r *repository) SaveOrder(ctx context.Context, order *models.Order, expectedVersion int) error {
	now := time.Now().UTC()
	updates := map[string]any{
		"worker_ids":        order.WorkerIDs,
		"attempted_workers": order.AttemptedWorkers,
		"status":            order.Status,
		"payment_status":    order.PaymentStatus,
		"assignment_mode":   order.AssignmentMode,
		"timeout":           order.Timeout,
		"updated_at":        now,
	}
	if err := r.base.UpdateVersioned(ctx, &models.Order{}, order.ID, expectedVersion, updates); err != nil {
		return err
	}
	order.Version = expectedVersion + 1
	order.UpdatedAt = now
	return nil
}

func (r *repository) InsertAcceptances(ctx context.Context, entries []models.WorkerAcceptance) error {
	if len(entries) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&entries).Error
}

func (r *repository) RetireAcceptances(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.base.DB(ctx).
		Model(&models.WorkerAcceptance{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()}).Error
}

// SettleAcceptance records a decision on an entry that is still pending.
func (r *repository) SettleAcceptance(ctx context.Context, entry models.WorkerAcceptance) error {
	return r.guardedUpdate(ctx, entry.ID, enums.AcceptanceStatusPending, map[string]any{
		"status":     entry.Status,
		"decision":   entry.Decision,
		"decided_at": entry.DecidedAt,
	})
}

// CompleteAcceptance records completion on an entry that is still accepted.
func (r *repository) CompleteAcceptance(ctx context.Context, entry models.WorkerAcceptance) error {
	return r.guardedUpdate(ctx, entry.ID, enums.AcceptanceStatusAccepted, map[string]any{
		"status":       entry.Status,
		"completed_at": entry.CompletedAt,
	})
}

func (r *repository) guardedUpdate(ctx context.Context, id uuid.UUID, from enums.AcceptanceStatus, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.base.DB(ctx).
		Model(&models.WorkerAcceptance{}).
		Where("id = ? AND status = ? AND active = ?", id, from, true).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errAlreadySettled
	}
	return nil
}

// ListOrders pages through orders newest first.
func (r *repository) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	query := r.base.DB(ctx).Model(&models.Order{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ServiceType != nil {
		query = query.Where("service_type = ?", *filters.ServiceType)
	}
	if filters.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filters.PaymentStatus)
	}
	if filters.FarmerID != nil {
		query = query.Where("farmer_id = ?", *filters.FarmerID)
	}

	var rows []models.Order
	if err := query.Scopes(pagination.Keyset(cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, err
	}

	page, next := pagination.Trim(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OrderSummary, 0, len(page))
	for _, row := range page {
		items = append(items, summaryFromModel(row))
	}
	return &OrderList{Items: items, NextCursor: next}, nil
}

// ListPendingOffers returns the candidate's undecided offers, soonest deadline first.
func (r *repository) ListPendingOffers(ctx context.Context, candidateID uuid.UUID) ([]OfferItem, error) {
	var entries []models.WorkerAcceptance
	err := r.base.DB(ctx).
		Where("candidate_id = ? AND status = ? AND active = ?", candidateID, enums.AcceptanceStatusPending, true).
		Order("deadline ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []OfferItem{}, nil
	}

	orderIDs := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		orderIDs = append(orderIDs, entry.OrderID)
	}
	var orders []models.Order
	if err := r.base.DB(ctx).Where("id IN ?", orderIDs).Find(&orders).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Order, len(orders))
	for _, order := range orders {
		byID[order.ID] = order
	}

	items := make([]OfferItem, 0, len(entries))
	for _, entry := range entries {
		order, ok := byID[entry.OrderID]
		if !ok {
			continue
		}
		items = append(items, offerFromModel(entry, order))
	}
	return items, nil
}

// FindOrdersWithExpiredOffers returns orders holding an active pending offer
// whose deadline is at or before now.
func (r *repository) FindOrdersWithExpiredOffers(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.base.DB(ctx).
		Model(&models.WorkerAcceptance{}).
		Distinct("order_id").
		Where("status = ? AND active = ? AND deadline <= ?", enums.AcceptanceStatusPending, true, now).
		Order("order_id").
		Limit(limit).
		Pluck("order_id", &ids).Error
	return ids, err
}
