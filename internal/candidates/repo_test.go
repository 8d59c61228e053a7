package candidates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
)

func seedUser(t *testing.T, db *gorm.DB, role enums.UserRole, approval enums.ApprovalStatus, engagement enums.EngagementStatus, createdAt time.Time) models.User {
	t.Helper()
	user := models.User{
		ID:               uuid.New(),
		Role:             role,
		Name:             "candidate",
		Phone:            uuid.NewString(),
		Skills:           []string{enums.SkillFarmWorker},
		ApprovalStatus:   approval,
		EngagementStatus: engagement,
		CreatedAt:        createdAt,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestListRosterFiltersAndOrders(t *testing.T) {
	db := dbtest.Open(t)
	r := NewRepository(db)
	now := time.Now().UTC()

	second := seedUser(t, db, enums.UserRoleWorker, enums.ApprovalStatusApproved, enums.EngagementStatusReady, now)
	first := seedUser(t, db, enums.UserRoleWorker, enums.ApprovalStatusApproved, enums.EngagementStatusReady, now.Add(-time.Hour))
	seedUser(t, db, enums.UserRoleWorker, enums.ApprovalStatusPending, enums.EngagementStatusReady, now)
	seedUser(t, db, enums.UserRoleWorker, enums.ApprovalStatusApproved, enums.EngagementStatusBusy, now)
	seedUser(t, db, enums.UserRoleDriver, enums.ApprovalStatusApproved, enums.EngagementStatusReady, now)

	roster, err := r.ListRoster(context.Background(), enums.UserRoleWorker)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	require.Equal(t, first.ID, roster[0].ID)
	require.Equal(t, second.ID, roster[1].ID)
	require.Equal(t, []string{enums.SkillFarmWorker}, roster[0].Skills)
}

func TestGetByIDsSkipsUnknown(t *testing.T) {
	db := dbtest.Open(t)
	r := NewRepository(db)
	u := seedUser(t, db, enums.UserRoleWorker, enums.ApprovalStatusApproved, enums.EngagementStatusReady, time.Now().UTC())

	users, err := r.GetByIDs(context.Background(), []uuid.UUID{u.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, users, 1)

	_, err = r.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReleaseKeepsCandidateBusyWhileHoldingWork(t *testing.T) {
	db := dbtest.Open(t)
	r := NewRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()
	u := seedUser(t, db, enums.UserRoleWorker, enums.ApprovalStatusApproved, enums.EngagementStatusBusy, now)

	held := models.WorkerAcceptance{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		CandidateID: u.ID,
		Status:      enums.AcceptanceStatusAccepted,
		Active:      true,
		OfferedAt:   now,
		Deadline:    now.Add(10 * time.Minute),
	}
	require.NoError(t, db.Create(&held).Error)

	require.NoError(t, r.Release(ctx, u.ID))
	reloaded, err := r.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, enums.EngagementStatusBusy, reloaded.EngagementStatus)

	require.NoError(t, db.Model(&models.WorkerAcceptance{}).Where("id = ?", held.ID).Update("status", enums.AcceptanceStatusCompleted).Error)
	require.NoError(t, r.Release(ctx, u.ID))
	reloaded, err = r.Get(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, enums.EngagementStatusReady, reloaded.EngagementStatus)
}

func TestHoldsAcceptedWorkSeesTransportJobs(t *testing.T) {
	db := dbtest.Open(t)
	r := NewRepository(db)
	now := time.Now().UTC()
	driver := seedUser(t, db, enums.UserRoleDriver, enums.ApprovalStatusApproved, enums.EngagementStatusBusy, now)

	job := models.TransportAssignment{
		ID:          uuid.New(),
		DriverID:    &driver.ID,
		VehicleType: "tractor",
		PickupDate:  now,
		Status:      enums.TransportStatusAccepted,
	}
	require.NoError(t, db.Create(&job).Error)

	busy, err := r.WithTx(db).HoldsAcceptedWork(context.Background(), driver.ID)
	require.NoError(t, err)
	require.True(t, busy)

	err = RequireFree(context.Background(), r, driver.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidState))

	idle := seedUser(t, db, enums.UserRoleDriver, enums.ApprovalStatusApproved, enums.EngagementStatusReady, now)
	require.NoError(t, RequireFree(context.Background(), r, idle.ID))
}
