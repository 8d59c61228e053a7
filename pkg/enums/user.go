package enums

import "fmt"

// UserRole identifies which side of the marketplace a user acts on.
type UserRole string

const (
	UserRoleFarmer UserRole = "farmer"
	UserRoleWorker UserRole = "worker"
	UserRoleDriver UserRole = "driver"
	UserRoleAdmin  UserRole = "admin"
)

var validUserRoles = []UserRole{UserRoleFarmer, UserRoleWorker, UserRoleDriver, UserRoleAdmin}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsCandidate reports whether the role can receive offers.
func (r UserRole) IsCandidate() bool {
	return r == UserRoleWorker || r == UserRoleDriver
}

func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}

// ApprovalStatus is the admin review state of a candidate profile.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

func (a ApprovalStatus) String() string {
	return string(a)
}

// EngagementStatus is whether a candidate currently holds accepted work.
// Drivers reported as "available" are stored as ready.
type EngagementStatus string

const (
	EngagementStatusReady EngagementStatus = "ready"
	EngagementStatusBusy  EngagementStatus = "busy"
)

func (e EngagementStatus) String() string {
	return string(e)
}

// Gender is recorded on candidates for gendered requirements.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) String() string {
	return string(g)
}
