package eligibility

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/farmlabor-backend/pkg/db/types"
	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/types"
)

var startDate = time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

func gender(g enums.Gender) *enums.Gender { return &g }

func worker(g enums.Gender, pincode string) models.User {
	return models.User{
		ID:               uuid.New(),
		Role:             enums.UserRoleWorker,
		Pincode:          pincode,
		Gender:           gender(g),
		Skills:           []string{enums.SkillFarmWorker},
		ApprovalStatus:   enums.ApprovalStatusApproved,
		EngagementStatus: enums.EngagementStatusReady,
	}
}

func farmOrder() models.Order {
	return models.Order{
		ID:            uuid.New(),
		ServiceType:   enums.ServiceTypeFarmWorkers,
		MaleWorkers:   2,
		FemaleWorkers: 1,
		StartDate:     startDate,
	}
}

func TestIsAvailablePrecedence(t *testing.T) {
	day := "2026-03-05"
	other := "2026-03-06"
	tests := []struct {
		name  string
		avail *types.Availability
		want  bool
	}{
		{"no record", nil, true},
		{"empty record", &types.Availability{}, true},
		{"off day wins over working day", &types.Availability{WorkingDays: []string{day}, OffDays: []string{day}}, false},
		{"off day only", &types.Availability{OffDays: []string{day}}, false},
		{"other day off, no working list", &types.Availability{OffDays: []string{other}}, true},
		{"listed working day", &types.Availability{WorkingDays: []string{day}}, true},
		{"not a listed working day", &types.Availability{WorkingDays: []string{other}}, false},
	}
	for _, tt := range tests {
		if got := IsAvailable(tt.avail, startDate); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
}

func TestReasonsCoversEveryPredicate(t *testing.T) {
	order := farmOrder()
	base := worker(enums.GenderMale, "560001")
	req := ForOrder(order, gender(enums.GenderMale))

	if reasons := Reasons(base, req); len(reasons) != 0 {
		t.Fatalf("expected eligible, got %v", reasons)
	}

	tests := []struct {
		name   string
		mutate func(*models.User, *Requirement)
		want   string
	}{
		{"unapproved", func(u *models.User, _ *Requirement) { u.ApprovalStatus = enums.ApprovalStatusPending }, "not approved"},
		{"busy", func(u *models.User, _ *Requirement) { u.EngagementStatus = enums.EngagementStatusBusy }, "busy"},
		{"skill", func(u *models.User, _ *Requirement) { u.Skills = []string{"harvesting"} }, "missing skill farm-worker"},
		{"gender", func(u *models.User, _ *Requirement) { u.Gender = gender(enums.GenderFemale) }, "male candidate required"},
		{"gender unknown", func(u *models.User, _ *Requirement) { u.Gender = nil }, "male candidate required"},
		{"availability", func(u *models.User, _ *Requirement) {
			u.Availability = &types.Availability{OffDays: []string{"2026-03-05"}}
		}, "unavailable on 2026-03-05"},
		{"attempted", func(u *models.User, r *Requirement) { r.Excluded = dbtypes.UUIDArray{u.ID} }, "already offered"},
		{"role", func(u *models.User, _ *Requirement) { u.Role = enums.UserRoleDriver }, "role driver"},
	}
	for _, tt := range tests {
		candidate := base
		r := req
		tt.mutate(&candidate, &r)
		reasons := Reasons(candidate, r)
		if len(reasons) != 1 || !strings.Contains(reasons[0], tt.want) {
			t.Fatalf("%s: expected single reason containing %q, got %v", tt.name, tt.want, reasons)
		}
		if Eligible(candidate, r) {
			t.Fatalf("%s: expected ineligible", tt.name)
		}
	}
}

func TestForOrderResolvesSkillByServiceType(t *testing.T) {
	order := farmOrder()
	order.ServiceType = enums.ServiceTypeTractorDrivers
	if got := ForOrder(order, nil).Skill; got != enums.SkillTractorDriver {
		t.Fatalf("expected tractor skill, got %q", got)
	}

	skill := "Pruning"
	order.ServiceType = enums.ServiceTypeOtherSkillTypes
	order.Skill = &skill
	candidate := worker(enums.GenderFemale, "")
	candidate.Skills = []string{" pruning "}
	if !Eligible(candidate, ForOrder(order, nil)) {
		t.Fatalf("skill match should ignore case and spacing")
	}
}

func TestForTransportMatchesVehicle(t *testing.T) {
	tractor := "Tractor"
	van := "van"
	driver := models.User{
		ID:               uuid.New(),
		Role:             enums.UserRoleDriver,
		ApprovalStatus:   enums.ApprovalStatusApproved,
		EngagementStatus: enums.EngagementStatusReady,
		VehicleType:      &tractor,
	}
	job := models.TransportAssignment{VehicleType: "tractor", PickupDate: startDate}
	if !Eligible(driver, ForTransport(job)) {
		t.Fatalf("expected driver eligible, got %v", Reasons(driver, ForTransport(job)))
	}

	driver.VehicleType = &van
	if Eligible(driver, ForTransport(job)) {
		t.Fatalf("vehicle mismatch should be ineligible")
	}

	driver.VehicleType = &tractor
	job.RejectedDriverIDs = dbtypes.UUIDArray{driver.ID}
	if Eligible(driver, ForTransport(job)) {
		t.Fatalf("rejected driver should be excluded")
	}
}

func TestFilterTwoMaleOneFemaleRoster(t *testing.T) {
	order := farmOrder()
	m1 := worker(enums.GenderMale, "")
	m2 := worker(enums.GenderMale, "")
	f1 := worker(enums.GenderFemale, "")
	busy := worker(enums.GenderMale, "")
	busy.EngagementStatus = enums.EngagementStatusBusy
	roster := []models.User{m1, f1, busy, m2}

	males := Filter(roster, ForOrder(order, gender(enums.GenderMale)))
	if len(males) != 2 || males[0].ID != m1.ID || males[1].ID != m2.ID {
		t.Fatalf("unexpected male filter result %v", males)
	}
	females := Filter(roster, ForOrder(order, gender(enums.GenderFemale)))
	if len(females) != 1 || females[0].ID != f1.ID {
		t.Fatalf("unexpected female filter result %v", females)
	}
}

func TestRankPrefersPincodeAndKeepsOrder(t *testing.T) {
	a := worker(enums.GenderMale, "111111")
	b := worker(enums.GenderMale, "560001")
	c := worker(enums.GenderMale, "222222")
	d := worker(enums.GenderMale, "560001")
	roster := []models.User{a, b, c, d}

	ranked := Rank(roster, " 560001 ")
	want := []uuid.UUID{b.ID, d.ID, a.ID, c.ID}
	for i, id := range want {
		if ranked[i].ID != id {
			t.Fatalf("position %d: expected %s got %s", i, id, ranked[i].ID)
		}
	}
	if roster[0].ID != a.ID {
		t.Fatalf("rank must not reorder the input slice")
	}

	unranked := Rank(roster, "")
	for i := range roster {
		if unranked[i].ID != roster[i].ID {
			t.Fatalf("empty pincode should keep order")
		}
	}
}
