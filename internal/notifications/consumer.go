package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/notifier"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlabor-backend/pkg/outbox/registry"
)

const assignmentNotificationConsumer = "assignment-notifications"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// Consumer turns offer and staffing events into SMS notifications. Delivery is
// best effort: a send failure is logged and the message is still acked.
type Consumer struct {
	sender       notifier.Sender
	subscription receiver
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// NewConsumer builds the assignment notification consumer.
func NewConsumer(sender notifier.Sender, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if sender == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	return newConsumer(sender, subscription, manager, logg)
}

func newConsumer(sender notifier.Sender, subscription receiver, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		sender:       sender,
		subscription: subscription,
		idempotency:  manager,
		decoders:     newDecoders(),
		logg:         logg,
	}, nil
}

func newDecoders() *registry.DecoderRegistry {
	reg := registry.NewDecoderRegistry()
	reg.Register(enums.EventCandidateOffered, 1, registry.DecodeJSON[payloads.CandidateOfferedEvent])
	reg.Register(enums.EventDriverOffered, 1, registry.DecodeJSON[payloads.DriverOfferedEvent])
	reg.Register(enums.EventOrderStatusChanged, 1, registry.DecodeJSON[payloads.OrderStatusChangedEvent])
	return reg
}

// Run receives until ctx is canceled. Only a failed dedupe check nacks; every
// other outcome acks so a bad message cannot loop.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, messageID string, attributes map[string]string, data []byte) bool {
	ctx = c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attributes["event_type"],
	})

	eventType, err := enums.ParseOutboxEventType(attributes["event_type"])
	if err != nil {
		c.logg.Warn(ctx, "dropping message with unknown event type")
		return true
	}
	if !notifies(eventType) {
		c.logg.Debug(ctx, "skipping event without a notification")
		return true
	}

	eventID, payload, err := c.decode(eventType, data)
	if err != nil {
		c.logg.Error(ctx, "dropping undecodable notification event", err)
		return true
	}
	ctx = c.logg.WithField(ctx, "event_id", eventID.String())

	seen, err := c.idempotency.CheckAndMarkProcessed(ctx, assignmentNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return false
	}
	if seen {
		c.logg.Info(ctx, "duplicate delivery ignored")
		return true
	}

	phone, message := render(payload)
	if phone == "" {
		c.logg.Debug(ctx, "no recipient for event")
		return true
	}
	if err := c.sender.Send(ctx, phone, message); err != nil {
		c.logg.Error(ctx, "notification delivery failed", err)
		return true
	}
	c.logg.Info(ctx, "notification sent")
	return true
}

func notifies(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventCandidateOffered, enums.EventDriverOffered, enums.EventOrderStatusChanged:
		return true
	}
	return false
}

// decode unwraps the outbox envelope and the versioned payload inside it.
func (c *Consumer) decode(eventType enums.OutboxEventType, data []byte) (uuid.UUID, any, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return uuid.Nil, nil, fmt.Errorf("envelope: %w", err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("event id: %w", err)
	}
	payload, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("payload: %w", err)
	}
	return eventID, payload, nil
}

// render picks the recipient and text for a decoded payload. An empty phone
// means the event does not notify anyone.
func render(payload any) (string, string) {
	switch p := payload.(type) {
	case *payloads.CandidateOfferedEvent:
		return p.Phone, notifier.OfferMessage(string(p.ServiceType), p.StartDate, p.Deadline)
	case *payloads.DriverOfferedEvent:
		return p.Phone, notifier.DriverOfferMessage(p.VehicleType, p.PickupPincode, p.PickupDate, p.Deadline)
	case *payloads.OrderStatusChangedEvent:
		if p.To != enums.OrderStatusAssigned {
			return "", ""
		}
		return p.FarmerPhone, notifier.AssignedMessage(p.OrderID.String())
	}
	return "", ""
}
