package enums

// TransportStatus tracks a driver transport job.
type TransportStatus string

const (
	TransportStatusPending   TransportStatus = "pending"
	TransportStatusAccepted  TransportStatus = "accepted"
	TransportStatusRejected  TransportStatus = "rejected"
	TransportStatusCompleted TransportStatus = "completed"
)

func (t TransportStatus) String() string {
	return string(t)
}
