// Package transport assigns drivers to transport jobs. A job has exactly one
// driver slot, so every round offers a single driver and a rejection sends
// the job back to the pool with that driver excluded.
package transport

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/internal/eligibility"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
)

// Plan checks the job can be offered to a driver. Only a pending job with no
// driver, or a rejected one, can be offered again.
func Plan(job models.TransportAssignment) error {
	switch {
	case job.Status == enums.TransportStatusPending && job.DriverID == nil:
		return nil
	case job.Status == enums.TransportStatusRejected:
		return nil
	case job.Status == enums.TransportStatusPending:
		return pkgerrors.New(pkgerrors.CodeInvalidState, "driver offer is still awaiting a decision")
	}
	return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("transport job is %s and cannot be reassigned", job.Status))
}

// AutoSelect returns the best eligible driver, preferring ones in the pickup
// pincode.
func AutoSelect(job models.TransportAssignment, roster []models.User) (models.User, error) {
	pool := eligibility.Rank(eligibility.Filter(roster, eligibility.ForTransport(job)), job.PickupPincode)
	if len(pool) == 0 {
		return models.User{}, pkgerrors.New(pkgerrors.CodeInsufficient, fmt.Sprintf("need 1 %s driver, found 0", job.VehicleType))
	}
	return pool[0], nil
}

// ValidateManual checks an operator's pick. found holds the profiles loaded
// for ids.
func ValidateManual(job models.TransportAssignment, ids []uuid.UUID, found []models.User) (models.User, error) {
	if len(ids) != 1 {
		return models.User{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("expected 1 driver, got %d", len(ids))).
			WithDetails(map[string]any{"expected": 1, "got": len(ids)})
	}
	for _, driver := range found {
		if driver.ID != ids[0] {
			continue
		}
		if reasons := eligibility.Reasons(driver, eligibility.ForTransport(job)); len(reasons) > 0 {
			return models.User{}, pkgerrors.New(pkgerrors.CodeIneligible, "selected driver is not eligible").
				WithDetails(map[string][]string{driver.ID.String(): reasons})
		}
		return driver, nil
	}
	return models.User{}, pkgerrors.New(pkgerrors.CodeIneligible, "selected driver is not eligible").
		WithDetails(map[string][]string{ids[0].String(): {"unknown candidate"}})
}

// Offer puts driver on the job with a fresh deadline.
func Offer(job *models.TransportAssignment, driver models.User, now time.Time, window time.Duration) time.Time {
	id := driver.ID
	deadline := now.Add(window)
	job.DriverID = &id
	job.Status = enums.TransportStatusPending
	job.Timeout = &deadline
	job.AcceptedAt = nil
	return deadline
}

// ApplyDecision settles the driver's offer. Reject and timeout free the job
// and exclude the driver from later rounds.
func ApplyDecision(job *models.TransportAssignment, driverID uuid.UUID, decision enums.Decision, now time.Time) error {
	if !decision.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", decision))
	}
	if job.RejectedDriverIDs.Contains(driverID) {
		return pkgerrors.New(pkgerrors.CodeInvalidState, "offer already settled")
	}
	if job.DriverID == nil || *job.DriverID != driverID {
		return pkgerrors.New(pkgerrors.CodeValidation, "driver is not assigned to this job")
	}
	if job.Status != enums.TransportStatusPending {
		return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("offer already settled as %s", job.Status))
	}
	deadline := now
	if job.Timeout != nil {
		deadline = *job.Timeout
	}
	switch decision {
	case enums.DecisionTimeout:
		if now.Before(deadline) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "offer deadline has not passed")
		}
	case enums.DecisionAccept:
		if now.After(deadline) {
			return pkgerrors.New(pkgerrors.CodeInvalidState, "offer deadline has passed")
		}
	}

	job.Timeout = nil
	if decision == enums.DecisionAccept {
		acceptedAt := now
		job.Status = enums.TransportStatusAccepted
		job.AcceptedAt = &acceptedAt
		return nil
	}
	job.Status = enums.TransportStatusRejected
	job.DriverID = nil
	job.RejectedDriverIDs = job.RejectedDriverIDs.Union(driverID)
	return nil
}

// Complete closes an accepted job.
func Complete(job *models.TransportAssignment, now time.Time) error {
	if job.Status != enums.TransportStatusAccepted || job.DriverID == nil {
		return pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("transport job is %s, not accepted", job.Status))
	}
	completedAt := now
	job.Status = enums.TransportStatusCompleted
	job.CompletedAt = &completedAt
	return nil
}

// Expired reports whether the driver's offer deadline has passed at now.
func Expired(job models.TransportAssignment, now time.Time) bool {
	return job.Status == enums.TransportStatusPending && job.DriverID != nil && job.Timeout != nil && !now.Before(*job.Timeout)
}
