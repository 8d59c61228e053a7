package enums

// AcceptanceStatus is the per-candidate decision state on an offer.
type AcceptanceStatus string

const (
	AcceptanceStatusPending   AcceptanceStatus = "pending"
	AcceptanceStatusAccepted  AcceptanceStatus = "accepted"
	AcceptanceStatusRejected  AcceptanceStatus = "rejected"
	AcceptanceStatusCompleted AcceptanceStatus = "completed"
)

func (s AcceptanceStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further decision can change the entry.
func (s AcceptanceStatus) IsTerminal() bool {
	return s == AcceptanceStatusRejected || s == AcceptanceStatusCompleted
}

// Holds reports whether the entry occupies one of the order's required slots.
func (s AcceptanceStatus) Holds() bool {
	return s == AcceptanceStatusAccepted || s == AcceptanceStatusCompleted
}
