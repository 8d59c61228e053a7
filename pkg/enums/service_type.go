package enums

import "fmt"

// ServiceType classifies what an order asks for.
type ServiceType string

const (
	ServiceTypeFarmWorkers     ServiceType = "farm-workers"
	ServiceTypeTractorDrivers  ServiceType = "tractor-drivers"
	ServiceTypeOtherSkillTypes ServiceType = "other-skill-types"
)

const (
	SkillFarmWorker    = "farm-worker"
	SkillTractorDriver = "tractor-driver"
)

var validServiceTypes = []ServiceType{
	ServiceTypeFarmWorkers,
	ServiceTypeTractorDrivers,
	ServiceTypeOtherSkillTypes,
}

func (s ServiceType) String() string {
	return string(s)
}

func (s ServiceType) IsValid() bool {
	for _, candidate := range validServiceTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// Gendered reports whether requirements of this type are split by gender.
func (s ServiceType) Gendered() bool {
	return s == ServiceTypeFarmWorkers
}

// Skill returns the skill tag a candidate must carry. Orders of
// other-skill-types name the skill themselves.
func (s ServiceType) Skill(orderSkill string) string {
	switch s {
	case ServiceTypeFarmWorkers:
		return SkillFarmWorker
	case ServiceTypeTractorDrivers:
		return SkillTractorDriver
	default:
		return orderSkill
	}
}

func ParseServiceType(value string) (ServiceType, error) {
	for _, candidate := range validServiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service type %q", value)
}
