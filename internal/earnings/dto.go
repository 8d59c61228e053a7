package earnings

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/db/models"
)

// Item is one payout line as returned to candidates.
type Item struct {
	ID                    uuid.UUID  `json:"id"`
	OrderID               *uuid.UUID `json:"orderId,omitempty"`
	TransportAssignmentID *uuid.UUID `json:"transportAssignmentId,omitempty"`
	Amount                string     `json:"amount"`
	CreatedAt             time.Time  `json:"createdAt"`
}

type List struct {
	Items      []Item `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

func itemFromModel(row models.Earning) Item {
	return Item{
		ID:                    row.ID,
		OrderID:               row.OrderID,
		TransportAssignmentID: row.TransportAssignmentID,
		Amount:                row.Amount.StringFixed(2),
		CreatedAt:             row.CreatedAt,
	}
}
