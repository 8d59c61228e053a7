package assignment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlabor-backend/pkg/errors"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

var (
	jobDate = time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	offerAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
)

const window = 10 * time.Minute

func genderPtr(g enums.Gender) *enums.Gender { return &g }

func newWorker(g enums.Gender, pincode string) models.User {
	return models.User{
		ID:               uuid.New(),
		Role:             enums.UserRoleWorker,
		Phone:            "+15550000000",
		Pincode:          pincode,
		Gender:           genderPtr(g),
		Skills:           []string{enums.SkillFarmWorker},
		ApprovalStatus:   enums.ApprovalStatusApproved,
		EngagementStatus: enums.EngagementStatusReady,
	}
}

func farmWorkersOrder(male, female int) models.Order {
	return models.Order{
		ID:            uuid.New(),
		FarmerID:      uuid.New(),
		ServiceType:   enums.ServiceTypeFarmWorkers,
		MaleWorkers:   male,
		FemaleWorkers: female,
		StartDate:     jobDate,
		Cost:          decimal.NewFromInt(300),
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusNone,
	}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if !pkgerrors.IsCode(err, code) {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

func offerTo(t *testing.T, order *models.Order, roster ...models.User) {
	t.Helper()
	Offer(order, roster, enums.AssignmentModeAuto, offerAt, window)
}

func TestNeedSplitsFarmWorkersByGender(t *testing.T) {
	order := farmWorkersOrder(2, 1)
	need := Need(order)
	if len(need) != 2 || *need[0].Gender != enums.GenderMale || need[0].Count != 2 || *need[1].Gender != enums.GenderFemale || need[1].Count != 1 {
		t.Fatalf("unexpected buckets %+v", need)
	}

	order.BundleDetails = &types.BundleDetails{Male: 0, Female: 4}
	need = Need(order)
	if len(need) != 1 || *need[0].Gender != enums.GenderFemale || need[0].Count != 4 {
		t.Fatalf("bundle should override counts, got %+v", need)
	}

	skilled := models.Order{ServiceType: enums.ServiceTypeTractorDrivers, TotalWorkers: 1}
	need = Need(skilled)
	if len(need) != 1 || need[0].Gender != nil || need[0].Count != 1 {
		t.Fatalf("expected one ungendered slot, got %+v", need)
	}
}

func TestAutoSelectTwoMalesOneFemalePincodeFirst(t *testing.T) {
	order := farmWorkersOrder(2, 1)
	far := newWorker(enums.GenderMale, "560002")
	near := newWorker(enums.GenderMale, "560001")
	female := newWorker(enums.GenderFemale, "560009")
	roster := []models.User{far, female, near}

	remaining, err := Plan(order)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	selected, err := AutoSelect(order, roster, remaining, "560001")
	if err != nil {
		t.Fatalf("auto select: %v", err)
	}
	if len(selected) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(selected))
	}
	if selected[0].ID != near.ID || selected[1].ID != far.ID || selected[2].ID != female.ID {
		t.Fatalf("unexpected selection order %v %v %v", selected[0].ID, selected[1].ID, selected[2].ID)
	}

	Offer(&order, selected, enums.AssignmentModeAuto, offerAt, window)
	if order.Timeout == nil || !order.Timeout.Equal(offerAt.Add(window)) {
		t.Fatalf("expected timeout at %v, got %v", offerAt.Add(window), order.Timeout)
	}
	for _, c := range selected {
		if !order.AttemptedWorkers.Contains(c.ID) || !order.WorkerIDs.Contains(c.ID) {
			t.Fatalf("candidate %s missing from worker sets", c.ID)
		}
	}
	if len(order.Acceptances) != 3 {
		t.Fatalf("expected 3 acceptance entries, got %d", len(order.Acceptances))
	}
}

func TestAutoSelectInsufficientNamesShortfall(t *testing.T) {
	order := farmWorkersOrder(2, 1)
	roster := []models.User{newWorker(enums.GenderMale, ""), newWorker(enums.GenderFemale, "")}

	remaining, _ := Plan(order)
	for i := 0; i < 2; i++ {
		_, err := AutoSelect(order, roster, remaining, "")
		requireCode(t, err, pkgerrors.CodeInsufficient)
		if got := pkgerrors.As(err).Message(); got != "need 2 male farm-worker candidates, found 1" {
			t.Fatalf("unexpected message %q", got)
		}
	}
	if len(order.Acceptances) != 0 || len(order.AttemptedWorkers) != 0 {
		t.Fatalf("failed selection must not touch the order")
	}
}

func TestValidateManualRules(t *testing.T) {
	order := models.Order{
		ID:           uuid.New(),
		ServiceType:  enums.ServiceTypeOtherSkillTypes,
		Skill:        strPtr("pruning"),
		TotalWorkers: 1,
		StartDate:    jobDate,
		Status:       enums.OrderStatusPending,
	}
	pruner := newWorker(enums.GenderMale, "")
	pruner.Skills = []string{"Pruning"}
	other := newWorker(enums.GenderFemale, "")
	third := newWorker(enums.GenderFemale, "")
	remaining, err := Plan(order)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	_, err = ValidateManual(order, remaining, []uuid.UUID{pruner.ID, other.ID, third.ID}, []models.User{pruner, other, third})
	requireCode(t, err, pkgerrors.CodeValidation)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok || details["expected"] != 1 || details["got"] != 3 {
		t.Fatalf("unexpected cardinality details %#v", pkgerrors.As(err).Details())
	}

	_, err = ValidateManual(order, remaining, []uuid.UUID{other.ID}, []models.User{other})
	requireCode(t, err, pkgerrors.CodeIneligible)
	reasons := pkgerrors.As(err).Details().(map[string][]string)
	if len(reasons[other.ID.String()]) == 0 {
		t.Fatalf("expected reasons for %s", other.ID)
	}

	_, err = ValidateManual(order, remaining, []uuid.UUID{uuid.New()}, nil)
	requireCode(t, err, pkgerrors.CodeIneligible)

	selected, err := ValidateManual(order, remaining, []uuid.UUID{pruner.ID}, []models.User{pruner})
	if err != nil || len(selected) != 1 {
		t.Fatalf("expected pruner accepted, got %v %v", selected, err)
	}
}

func TestValidateManualGenderMix(t *testing.T) {
	order := farmWorkersOrder(1, 1)
	a := newWorker(enums.GenderMale, "")
	b := newWorker(enums.GenderMale, "")
	remaining, _ := Plan(order)

	_, err := ValidateManual(order, remaining, []uuid.UUID{a.ID, b.ID}, []models.User{a, b})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = ValidateManual(order, remaining, []uuid.UUID{a.ID, a.ID}, []models.User{a})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestDecisionsDriveOrderStatus(t *testing.T) {
	order := farmWorkersOrder(1, 1)
	m := newWorker(enums.GenderMale, "")
	f := newWorker(enums.GenderFemale, "")
	offerTo(t, &order, m, f)

	if _, err := ApplyDecision(&order, m.ID, enums.DecisionAccept, offerAt.Add(time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("one of two accepted should stay pending, got %s", order.Status)
	}
	if _, err := ApplyDecision(&order, f.ID, enums.DecisionAccept, offerAt.Add(2*time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if order.Status != enums.OrderStatusAssigned || order.PaymentStatus != enums.PaymentStatusPayable {
		t.Fatalf("all accepted should be assigned/payable, got %s/%s", order.Status, order.PaymentStatus)
	}
	if order.Timeout != nil {
		t.Fatalf("timeout should clear once nothing is pending")
	}

	if _, err := Complete(&order, m.ID, offerAt.Add(time.Hour)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if order.Status != enums.OrderStatusAssigned {
		t.Fatalf("partially completed order should stay assigned, got %s", order.Status)
	}
	if _, err := Complete(&order, f.ID, offerAt.Add(time.Hour)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if order.Status != enums.OrderStatusCompleted || order.PaymentStatus != enums.PaymentStatusDue {
		t.Fatalf("expected completed/due, got %s/%s", order.Status, order.PaymentStatus)
	}
}

func TestRejectionLeadsToReassignment(t *testing.T) {
	order := farmWorkersOrder(2, 0)
	a := newWorker(enums.GenderMale, "")
	b := newWorker(enums.GenderMale, "")
	offerTo(t, &order, a, b)

	if _, err := ApplyDecision(&order, a.ID, enums.DecisionAccept, offerAt); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := ApplyDecision(&order, b.ID, enums.DecisionReject, offerAt); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending after rejection, got %s", order.Status)
	}
	if order.WorkerIDs.Contains(b.ID) || !order.WorkerIDs.Contains(a.ID) {
		t.Fatalf("rejected candidate should leave the live set, got %v", order.WorkerIDs)
	}
	if !ReassignmentNeeded(order) {
		t.Fatalf("expected reassignment needed")
	}
	remaining, err := Plan(order)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if total(remaining) != 1 {
		t.Fatalf("expected one slot left, got %+v", remaining)
	}

	c := newWorker(enums.GenderMale, "")
	selected, err := AutoSelect(order, []models.User{b, c}, remaining, "")
	if err != nil || len(selected) != 1 || selected[0].ID != c.ID {
		t.Fatalf("rejected candidate must not be picked again: %v %v", selected, err)
	}
	_, retired := Offer(&order, selected, enums.AssignmentModeAuto, offerAt.Add(time.Minute), window)
	if len(retired) != 1 {
		t.Fatalf("expected the rejected entry to be retired, got %d", len(retired))
	}

	attempts := 0
	for _, id := range order.AttemptedWorkers {
		if id == b.ID {
			attempts++
		}
	}
	if attempts != 1 {
		t.Fatalf("rejected candidate should appear once in attempted workers, got %d", attempts)
	}

	_, err = ApplyDecision(&order, b.ID, enums.DecisionAccept, offerAt.Add(time.Minute))
	requireCode(t, err, pkgerrors.CodeInvalidState)
}

func TestStaleTimeoutAfterAccept(t *testing.T) {
	order := farmWorkersOrder(1, 0)
	a := newWorker(enums.GenderMale, "")
	offerTo(t, &order, a)

	if _, err := ApplyDecision(&order, a.ID, enums.DecisionAccept, offerAt.Add(time.Minute)); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err := ApplyDecision(&order, a.ID, enums.DecisionTimeout, offerAt.Add(window))
	requireCode(t, err, pkgerrors.CodeInvalidState)
	if order.Status != enums.OrderStatusAssigned || order.Acceptances[0].Status != enums.AcceptanceStatusAccepted {
		t.Fatalf("stale timeout overwrote the decision: %s %s", order.Status, order.Acceptances[0].Status)
	}
}

func TestDecisionTiming(t *testing.T) {
	order := farmWorkersOrder(1, 0)
	a := newWorker(enums.GenderMale, "")
	offerTo(t, &order, a)

	_, err := ApplyDecision(&order, a.ID, enums.DecisionTimeout, offerAt.Add(time.Minute))
	requireCode(t, err, pkgerrors.CodeInvalidState)

	_, err = ApplyDecision(&order, a.ID, enums.DecisionAccept, offerAt.Add(window+time.Second))
	requireCode(t, err, pkgerrors.CodeInvalidState)

	if got := Expired(order, offerAt.Add(window)); len(got) != 1 || got[0] != a.ID {
		t.Fatalf("expected %s expired, got %v", a.ID, got)
	}
	if _, err := ApplyDecision(&order, a.ID, enums.DecisionTimeout, offerAt.Add(window)); err != nil {
		t.Fatalf("timeout at deadline: %v", err)
	}

	_, err = ApplyDecision(&order, uuid.New(), enums.DecisionAccept, offerAt)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestPlanRefusesWhilePendingOrCovered(t *testing.T) {
	order := farmWorkersOrder(1, 0)
	a := newWorker(enums.GenderMale, "")
	offerTo(t, &order, a)

	_, err := Plan(order)
	requireCode(t, err, pkgerrors.CodeInvalidState)

	if _, err := ApplyDecision(&order, a.ID, enums.DecisionAccept, offerAt); err != nil {
		t.Fatalf("accept: %v", err)
	}
	_, err = Plan(order)
	requireCode(t, err, pkgerrors.CodeInvalidState)
	if ReassignmentNeeded(order) {
		t.Fatalf("assigned order never needs reassignment")
	}
}

func TestAcceptedNeverExceedsRequirement(t *testing.T) {
	order := farmWorkersOrder(1, 0)
	a := newWorker(enums.GenderMale, "")
	b := newWorker(enums.GenderMale, "")
	offerTo(t, &order, a)
	if _, err := ApplyDecision(&order, a.ID, enums.DecisionReject, offerAt); err != nil {
		t.Fatalf("reject: %v", err)
	}
	remaining, err := Plan(order)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	selected, err := AutoSelect(order, []models.User{a, b}, remaining, "")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	Offer(&order, selected, enums.AssignmentModeAuto, offerAt, window)
	if _, err := ApplyDecision(&order, b.ID, enums.DecisionAccept, offerAt); err != nil {
		t.Fatalf("accept: %v", err)
	}

	held := 0
	for _, entry := range order.Acceptances {
		if entry.Active && entry.Status.Holds() {
			held++
		}
	}
	if held > total(Need(order)) {
		t.Fatalf("held %d slots for a requirement of %d", held, total(Need(order)))
	}
}

func strPtr(s string) *string { return &s }

func TestCompleteAfterPartnerRejects(t *testing.T) {
	order := farmWorkersOrder(2, 0)
	a := newWorker(enums.GenderMale, "")
	b := newWorker(enums.GenderMale, "")
	offerTo(t, &order, a, b)

	if _, err := ApplyDecision(&order, a.ID, enums.DecisionAccept, offerAt); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := ApplyDecision(&order, b.ID, enums.DecisionReject, offerAt); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending after rejection, got %s", order.Status)
	}

	_, err := Complete(&order, b.ID, offerAt.Add(time.Hour))
	requireCode(t, err, pkgerrors.CodeInvalidState)

	if _, err := Complete(&order, a.ID, offerAt.Add(time.Hour)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if order.Status != enums.OrderStatusCompleted || order.PaymentStatus != enums.PaymentStatusDue {
		t.Fatalf("expected completed/due, got %s/%s", order.Status, order.PaymentStatus)
	}

	_, err = Complete(&order, a.ID, offerAt.Add(2*time.Hour))
	requireCode(t, err, pkgerrors.CodeInvalidState)
}

func TestPlanRequiresSkillForOtherSkillTypes(t *testing.T) {
	for name, skill := range map[string]*string{
		"missing": nil,
		"blank":   strPtr("  "),
	} {
		t.Run(name, func(t *testing.T) {
			order := farmWorkersOrder(0, 0)
			order.ServiceType = enums.ServiceTypeOtherSkillTypes
			order.TotalWorkers = 1
			order.Skill = skill

			_, err := Plan(order)
			requireCode(t, err, pkgerrors.CodeValidation)
		})
	}

	order := farmWorkersOrder(0, 0)
	order.ServiceType = enums.ServiceTypeOtherSkillTypes
	order.TotalWorkers = 1
	order.Skill = strPtr("pruning")
	remaining, err := Plan(order)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if total(remaining) != 1 {
		t.Fatalf("expected one slot, got %+v", remaining)
	}
}
