package notifier

import (
	"fmt"
	"time"
)

const deadlineLayout = "02 Jan 15:04 MST"

// OfferMessage is the text a candidate receives when an order is offered.
func OfferMessage(service, startDate string, deadline time.Time) string {
	return fmt.Sprintf("New %s job starting %s. Please accept or reject before %s.", service, startDate, deadline.UTC().Format(deadlineLayout))
}

// DriverOfferMessage is the text a driver receives for a transport job.
func DriverOfferMessage(vehicleType, pickupPincode, pickupDate string, deadline time.Time) string {
	return fmt.Sprintf("New %s transport job: pickup at %s on %s. Please respond before %s.", vehicleType, pickupPincode, pickupDate, deadline.UTC().Format(deadlineLayout))
}

// AssignedMessage tells the farmer their order is fully staffed.
func AssignedMessage(orderID string) string {
	return fmt.Sprintf("Your order %s is fully assigned. Payment is now due to confirm the booking.", orderID)
}
