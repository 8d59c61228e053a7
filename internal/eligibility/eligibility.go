// Package eligibility decides which candidates may be offered a job and in
// what order they are tried. Everything here is pure and operates on loaded
// snapshots.
package eligibility

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/farmlabor-backend/pkg/db/types"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

// Requirement is one slot type a candidate has to fill.
type Requirement struct {
	Role        enums.UserRole
	Skill       string
	VehicleType string
	Gender      *enums.Gender
	Date        time.Time
	Excluded    dbtypes.UUIDArray
}

// ForOrder builds the requirement for an order bucket. A nil gender accepts
// any candidate.
func ForOrder(order models.Order, gender *enums.Gender) Requirement {
	skill := ""
	if order.Skill != nil {
		skill = *order.Skill
	}
	return Requirement{
		Role:     enums.UserRoleWorker,
		Skill:    order.ServiceType.Skill(skill),
		Gender:   gender,
		Date:     order.StartDate,
		Excluded: order.AttemptedWorkers,
	}
}

// ForTransport builds the driver requirement of a transport job.
func ForTransport(assignment models.TransportAssignment) Requirement {
	return Requirement{
		Role:        enums.UserRoleDriver,
		VehicleType: assignment.VehicleType,
		Date:        assignment.PickupDate,
		Excluded:    assignment.RejectedDriverIDs,
	}
}

// IsAvailable applies the availability precedence: no record, or a record
// with both lists empty, means available; an off day always wins; an empty
// working list means every other day is a working day.
func IsAvailable(availability *types.Availability, date time.Time) bool {
	if availability == nil {
		return true
	}
	if availability.IsEmpty() {
		return true
	}
	day := types.DateKey(date)
	if availability.Off(day) {
		return false
	}
	if len(availability.WorkingDays) == 0 {
		return true
	}
	return availability.Works(day)
}

// Reasons lists every predicate the candidate fails. An empty result means
// the candidate is eligible.
func Reasons(candidate models.User, req Requirement) []string {
	var reasons []string
	if req.Role != "" && candidate.Role != req.Role {
		reasons = append(reasons, fmt.Sprintf("role %s cannot take %s jobs", candidate.Role, req.Role))
	}
	if candidate.ApprovalStatus != enums.ApprovalStatusApproved {
		reasons = append(reasons, "profile not approved")
	}
	if candidate.EngagementStatus != enums.EngagementStatusReady {
		reasons = append(reasons, "candidate is busy")
	}
	if req.Skill != "" && !hasSkill(candidate.Skills, req.Skill) {
		reasons = append(reasons, fmt.Sprintf("missing skill %s", req.Skill))
	}
	if req.VehicleType != "" && !sameVehicle(candidate.VehicleType, req.VehicleType) {
		reasons = append(reasons, fmt.Sprintf("no %s vehicle", req.VehicleType))
	}
	if req.Gender != nil && (candidate.Gender == nil || *candidate.Gender != *req.Gender) {
		reasons = append(reasons, fmt.Sprintf("%s candidate required", *req.Gender))
	}
	if !IsAvailable(candidate.Availability, req.Date) {
		reasons = append(reasons, fmt.Sprintf("unavailable on %s", types.DateKey(req.Date)))
	}
	if req.Excluded.Contains(candidate.ID) {
		reasons = append(reasons, "already offered this job")
	}
	return reasons
}

// Eligible reports whether the candidate passes every predicate.
func Eligible(candidate models.User, req Requirement) bool {
	return len(Reasons(candidate, req)) == 0
}

// Filter keeps the eligible candidates in roster order.
func Filter(roster []models.User, req Requirement) []models.User {
	out := make([]models.User, 0, len(roster))
	for _, candidate := range roster {
		if Eligible(candidate, req) {
			out = append(out, candidate)
		}
	}
	return out
}

func hasSkill(skills []string, want string) bool {
	for _, skill := range skills {
		if strings.EqualFold(strings.TrimSpace(skill), want) {
			return true
		}
	}
	return false
}

func sameVehicle(have *string, want string) bool {
	return have != nil && strings.EqualFold(strings.TrimSpace(*have), strings.TrimSpace(want))
}
