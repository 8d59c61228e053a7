package enums

// AssignmentMode distinguishes system-selected from operator-selected offers.
type AssignmentMode string

const (
	AssignmentModeAuto   AssignmentMode = "auto"
	AssignmentModeManual AssignmentMode = "manual"
)

func (m AssignmentMode) String() string {
	return string(m)
}
