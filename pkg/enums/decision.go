package enums

import "fmt"

// Decision is a candidate's answer to an offer. Timeout is only produced by
// the deadline monitor, never accepted from a client.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionReject  Decision = "reject"
	DecisionTimeout Decision = "timeout"
)

var validDecisions = []Decision{
	DecisionAccept,
	DecisionReject,
	DecisionTimeout,
}

func (d Decision) String() string {
	return string(d)
}

func (d Decision) IsValid() bool {
	for _, candidate := range validDecisions {
		if candidate == d {
			return true
		}
	}
	return false
}

// Outcome maps the decision onto the acceptance status it produces.
func (d Decision) Outcome() AcceptanceStatus {
	if d == DecisionAccept {
		return AcceptanceStatusAccepted
	}
	return AcceptanceStatusRejected
}

// ParseDecision converts raw input into a Decision.
func ParseDecision(value string) (Decision, error) {
	for _, candidate := range validDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid decision %q", value)
}
