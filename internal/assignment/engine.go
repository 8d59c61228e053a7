package assignment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/internal/eligibility"
	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/farmlabor-backend/pkg/db/types"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
)

// Bucket is a head count for one gender, or for anyone when Gender is nil.
type Bucket struct {
	Gender *enums.Gender
	Count  int
}

func (b Bucket) label(order models.Order) string {
	skill := ""
	if order.Skill != nil {
		skill = *order.Skill
	}
	name := order.ServiceType.Skill(skill)
	if b.Gender != nil {
		return fmt.Sprintf("%s %s", *b.Gender, name)
	}
	return name
}

func total(buckets []Bucket) int {
	n := 0
	for _, b := range buckets {
		n += b.Count
	}
	return n
}

// Need returns the order's full requirement. Farm-worker orders split by
// gender, and a bundle overrides the order's own counts.
func Need(order models.Order) []Bucket {
	male, female := order.MaleWorkers, order.FemaleWorkers
	if order.BundleDetails != nil {
		male, female = order.BundleDetails.Male, order.BundleDetails.Female
	}

	if order.ServiceType.Gendered() && male+female > 0 {
		var out []Bucket
		if male > 0 {
			g := enums.GenderMale
			out = append(out, Bucket{Gender: &g, Count: male})
		}
		if female > 0 {
			g := enums.GenderFemale
			out = append(out, Bucket{Gender: &g, Count: female})
		}
		return out
	}

	count := order.TotalWorkers
	if order.BundleDetails != nil {
		count = order.BundleDetails.Total()
	}
	if count == 0 {
		count = male + female
	}
	if count == 0 {
		return nil
	}
	return []Bucket{{Count: count}}
}

// Remaining subtracts the active accepted and completed entries from Need.
// Gendered buckets are reduced by the gender recorded on the entry.
func Remaining(order models.Order) []Bucket {
	buckets := Need(order)
	for _, entry := range order.Acceptances {
		if !entry.Active || !entry.Status.Holds() {
			continue
		}
		for i := range buckets {
			if buckets[i].Count == 0 {
				continue
			}
			if buckets[i].Gender != nil && entry.Gender != nil && *buckets[i].Gender != *entry.Gender {
				continue
			}
			buckets[i].Count--
			break
		}
	}
	out := buckets[:0]
	for _, b := range buckets {
		if b.Count > 0 {
			out = append(out, b)
		}
	}
	return out
}

// Plan checks the order can take a new assignment round and returns what is
// left to fill.
func Plan(order models.Order) ([]Bucket, error) {
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("order is %s and cannot be reassigned", order.Status))
	}
	if order.ServiceType == enums.ServiceTypeOtherSkillTypes && (order.Skill == nil || strings.TrimSpace(*order.Skill) == "") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "other-skill-types orders must name a skill")
	}
	for _, entry := range order.Acceptances {
		if entry.Active && entry.Status == enums.AcceptanceStatusPending {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "offers on this order are still awaiting decisions")
		}
	}
	remaining := Remaining(order)
	if total(remaining) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "order requirement is already covered")
	}
	return remaining, nil
}

// AutoSelect picks candidates for every bucket from the roster, ranked by the
// requester's pincode. A shortfall in any bucket fails the whole selection.
func AutoSelect(order models.Order, roster []models.User, remaining []Bucket, pincode string) ([]models.User, error) {
	taken := make(map[uuid.UUID]bool)
	var selected []models.User
	var shortfalls []string

	for _, bucket := range remaining {
		pool := eligibility.Rank(eligibility.Filter(roster, eligibility.ForOrder(order, bucket.Gender)), pincode)
		found := 0
		for _, candidate := range pool {
			if found == bucket.Count {
				break
			}
			if taken[candidate.ID] {
				continue
			}
			taken[candidate.ID] = true
			selected = append(selected, candidate)
			found++
		}
		if found < bucket.Count {
			shortfalls = append(shortfalls, fmt.Sprintf("need %d %s candidates, found %d", bucket.Count, bucket.label(order), found))
		}
	}

	if len(shortfalls) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, strings.Join(shortfalls, "; "))
	}
	return selected, nil
}

// ValidateManual checks an operator's picks: the count must equal what is
// left, each candidate must be eligible, and the gender mix must match.
// found holds the profiles loaded for ids.
func ValidateManual(order models.Order, remaining []Bucket, ids []uuid.UUID, found []models.User) ([]models.User, error) {
	want := total(remaining)
	if len(ids) != want {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("expected %d candidates, got %d", want, len(ids))).
			WithDetails(map[string]any{"expected": want, "got": len(ids)})
	}

	byID := make(map[uuid.UUID]models.User, len(found))
	for _, candidate := range found {
		byID[candidate.ID] = candidate
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	selected := make([]models.User, 0, len(ids))
	ineligible := map[string][]string{}
	for _, id := range ids {
		if seen[id] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("candidate %s listed twice", id))
		}
		seen[id] = true

		candidate, ok := byID[id]
		if !ok {
			ineligible[id.String()] = []string{"unknown candidate"}
			continue
		}
		if reasons := eligibility.Reasons(candidate, eligibility.ForOrder(order, nil)); len(reasons) > 0 {
			ineligible[id.String()] = reasons
			continue
		}
		selected = append(selected, candidate)
	}
	if len(ineligible) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeIneligible, fmt.Sprintf("%d selected candidates are not eligible", len(ineligible))).
			WithDetails(ineligible)
	}

	for _, bucket := range remaining {
		if bucket.Gender == nil {
			continue
		}
		got := 0
		for _, candidate := range selected {
			if candidate.Gender != nil && *candidate.Gender == *bucket.Gender {
				got++
			}
		}
		if got != bucket.Count {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("need %d %s candidates, selection has %d", bucket.Count, bucket.label(order), got))
		}
	}
	return selected, nil
}

// Offer starts an assignment round on the order snapshot: rejected entries of
// earlier rounds are retired, one pending entry per candidate is created and
// the live worker set, attempted set and deadline are refreshed. It returns
// the new entries and the ids of the retired ones.
func Offer(order *models.Order, selected []models.User, mode enums.AssignmentMode, now time.Time, window time.Duration) ([]models.WorkerAcceptance, []uuid.UUID) {
	var retired []uuid.UUID
	for i := range order.Acceptances {
		entry := &order.Acceptances[i]
		if entry.Active && entry.Status == enums.AcceptanceStatusRejected {
			entry.Active = false
			retired = append(retired, entry.ID)
		}
	}

	deadline := now.Add(window)
	offered := make([]models.WorkerAcceptance, 0, len(selected))
	ids := make([]uuid.UUID, 0, len(selected))
	for _, candidate := range selected {
		offered = append(offered, models.WorkerAcceptance{
			ID:          uuid.New(),
			OrderID:     order.ID,
			CandidateID: candidate.ID,
			Gender:      candidate.Gender,
			Status:      enums.AcceptanceStatusPending,
			Active:      true,
			OfferedAt:   now,
			Deadline:    deadline,
		})
		ids = append(ids, candidate.ID)
	}
	order.Acceptances = append(order.Acceptances, offered...)

	order.WorkerIDs = liveWorkers(*order)
	order.AttemptedWorkers = order.AttemptedWorkers.Union(ids...)
	order.AssignmentMode = &mode
	order.Timeout = &deadline
	return offered, retired
}

// ApplyDecision settles the candidate's active entry and recomputes the order.
// A timeout is refused before the deadline; an accept is refused after it.
func ApplyDecision(order *models.Order, candidateID uuid.UUID, decision enums.Decision, now time.Time) (*models.WorkerAcceptance, error) {
	if !decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid decision %q", decision))
	}
	entry, err := activeEntry(order, candidateID)
	if err != nil {
		return nil, err
	}
	if entry.Status != enums.AcceptanceStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("offer already settled as %s", entry.Status))
	}
	switch decision {
	case enums.DecisionTimeout:
		if now.Before(entry.Deadline) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "offer deadline has not passed")
		}
	case enums.DecisionAccept:
		if now.After(entry.Deadline) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "offer deadline has passed")
		}
	}

	d := decision
	decidedAt := now
	entry.Status = decision.Outcome()
	entry.Decision = &d
	entry.DecidedAt = &decidedAt
	if entry.Status == enums.AcceptanceStatusRejected {
		order.AttemptedWorkers = order.AttemptedWorkers.Union(candidateID)
	}
	order.WorkerIDs = liveWorkers(*order)
	Recompute(order)
	return entry, nil
}

// Complete marks an accepted candidate's work done and recomputes the order.
// Any accepted entry can complete, whatever the order status.
func Complete(order *models.Order, candidateID uuid.UUID, now time.Time) (*models.WorkerAcceptance, error) {
	if order.Status == enums.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "order is already completed")
	}
	entry, err := activeEntry(order, candidateID)
	if err != nil {
		return nil, err
	}
	if entry.Status != enums.AcceptanceStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, fmt.Sprintf("offer is %s, not accepted", entry.Status))
	}
	completedAt := now
	entry.Status = enums.AcceptanceStatusCompleted
	entry.CompletedAt = &completedAt
	Recompute(order)
	return entry, nil
}

// Recompute derives the order status from its active entries: all holding
// with at least one still accepted is assigned, all terminal with at least
// one completed is completed, anything else is pending. It reports whether
// the status changed.
func Recompute(order *models.Order) bool {
	var active, holding, terminal, completed, pending int
	var latest *time.Time
	for i := range order.Acceptances {
		entry := order.Acceptances[i]
		if !entry.Active {
			continue
		}
		active++
		if entry.Status.Holds() {
			holding++
		}
		if entry.Status.IsTerminal() {
			terminal++
		}
		switch entry.Status {
		case enums.AcceptanceStatusCompleted:
			completed++
		case enums.AcceptanceStatusPending:
			pending++
			if latest == nil || entry.Deadline.After(*latest) {
				d := entry.Deadline
				latest = &d
			}
		}
	}

	prev := order.Status
	switch {
	case active > 0 && terminal == active && completed > 0:
		order.Status = enums.OrderStatusCompleted
		order.PaymentStatus = enums.PaymentStatusDue
	case active > 0 && holding == active:
		order.Status = enums.OrderStatusAssigned
		order.PaymentStatus = enums.PaymentStatusPayable
	default:
		order.Status = enums.OrderStatusPending
	}
	if pending == 0 {
		order.Timeout = nil
	} else {
		order.Timeout = latest
	}
	return prev != order.Status
}

// ReassignmentNeeded is true while the order is pending, an active offer was
// rejected or timed out, and part of the requirement is still unfilled.
func ReassignmentNeeded(order models.Order) bool {
	if order.Status != enums.OrderStatusPending {
		return false
	}
	rejected := false
	for _, entry := range order.Acceptances {
		if entry.Active && entry.Status == enums.AcceptanceStatusRejected {
			rejected = true
			break
		}
	}
	return rejected && total(Remaining(order)) > 0
}

// HasPendingOffers reports whether any active entry still awaits a decision.
func HasPendingOffers(order models.Order) bool {
	for _, entry := range order.Acceptances {
		if entry.Active && entry.Status == enums.AcceptanceStatusPending {
			return true
		}
	}
	return false
}

// Expired returns the candidates whose active pending offers are past their
// deadline at now.
func Expired(order models.Order, now time.Time) []uuid.UUID {
	var out []uuid.UUID
	for _, entry := range order.Acceptances {
		if entry.Active && entry.Status == enums.AcceptanceStatusPending && !now.Before(entry.Deadline) {
			out = append(out, entry.CandidateID)
		}
	}
	return out
}

func activeEntry(order *models.Order, candidateID uuid.UUID) (*models.WorkerAcceptance, error) {
	known := false
	for i := range order.Acceptances {
		entry := &order.Acceptances[i]
		if entry.CandidateID != candidateID {
			continue
		}
		if entry.Active {
			return entry, nil
		}
		known = true
	}
	if known {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidState, "offer already settled")
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, "candidate is not assigned to this order")
}

// liveWorkers lists active candidates that have not rejected, in offer order.
func liveWorkers(order models.Order) dbtypes.UUIDArray {
	out := dbtypes.UUIDArray{}
	for _, entry := range order.Acceptances {
		if entry.Active && entry.Status != enums.AcceptanceStatusRejected {
			out = out.Union(entry.CandidateID)
		}
	}
	return out
}
