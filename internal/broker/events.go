package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"saladas-service/internal/models"
	"saladas-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter writes a keyed event to the bus
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer EventWriter) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishShipmentCreated publishes ShipmentCreated event
func (ep *EventPublisher) PublishShipmentCreated(ctx context.Context, event *models.ShipmentCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, shipmentKey(event.ShipmentID), event)
}

// PublishDeliveryRecorded publishes DeliveryRecorded event
func (ep *EventPublisher) PublishDeliveryRecorded(ctx context.Context, event *models.DeliveryRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, shipmentKey(event.ShipmentID), event)
}

// PublishShipmentShipped publishes ShipmentShipped event
func (ep *EventPublisher) PublishShipmentShipped(ctx context.Context, event *models.ShipmentShippedEvent) error {
	return ep.producer.PublishEvent(ctx, shipmentKey(event.ShipmentID), event)
}

// PublishLossRecorded publishes LossRecorded event
func (ep *EventPublisher) PublishLossRecorded(ctx context.Context, event *models.LossRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, lossKey(event.LossID), event)
}

// PublishLossCorrected publishes LossCorrected event
func (ep *EventPublisher) PublishLossCorrected(ctx context.Context, event *models.LossCorrectedEvent) error {
	return ep.producer.PublishEvent(ctx, lossKey(event.LossID), event)
}

func shipmentKey(id int64) string { return fmt.Sprintf("shipment-%d", id) }

func lossKey(id int64) string { return fmt.Sprintf("loss-%d", id) }

// EventHandler handles incoming events
type EventHandler struct {
	onShipmentCreated  func(context.Context, *models.ShipmentCreatedEvent) error
	onDeliveryRecorded func(context.Context, *models.DeliveryRecordedEvent) error
	onShipmentShipped  func(context.Context, *models.ShipmentShippedEvent) error
	onLossRecorded     func(context.Context, *models.LossRecordedEvent) error
	onLossCorrected    func(context.Context, *models.LossCorrectedEvent) error
	logger             *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnShipmentCreated registers a handler for ShipmentCreated events
func (eh *EventHandler) OnShipmentCreated(handler func(context.Context, *models.ShipmentCreatedEvent) error) {
	eh.onShipmentCreated = handler
}

// OnDeliveryRecorded registers a handler for DeliveryRecorded events
func (eh *EventHandler) OnDeliveryRecorded(handler func(context.Context, *models.DeliveryRecordedEvent) error) {
	eh.onDeliveryRecorded = handler
}

// OnShipmentShipped registers a handler for ShipmentShipped events
func (eh *EventHandler) OnShipmentShipped(handler func(context.Context, *models.ShipmentShippedEvent) error) {
	eh.onShipmentShipped = handler
}

// OnLossRecorded registers a handler for LossRecorded events
func (eh *EventHandler) OnLossRecorded(handler func(context.Context, *models.LossRecordedEvent) error) {
	eh.onLossRecorded = handler
}

// OnLossCorrected registers a handler for LossCorrected events
func (eh *EventHandler) OnLossCorrected(handler func(context.Context, *models.LossCorrectedEvent) error) {
	eh.onLossCorrected = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeShipmentCreated:
		if eh.onShipmentCreated != nil {
			var event models.ShipmentCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ShipmentCreated event: %w", err)
			}
			return eh.onShipmentCreated(ctx, &event)
		}

	case models.EventTypeDeliveryRecorded:
		if eh.onDeliveryRecorded != nil {
			var event models.DeliveryRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal DeliveryRecorded event: %w", err)
			}
			return eh.onDeliveryRecorded(ctx, &event)
		}

	case models.EventTypeShipmentShipped:
		if eh.onShipmentShipped != nil {
			var event models.ShipmentShippedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal ShipmentShipped event: %w", err)
			}
			return eh.onShipmentShipped(ctx, &event)
		}

	case models.EventTypeLossRecorded:
		if eh.onLossRecorded != nil {
			var event models.LossRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal LossRecorded event: %w", err)
			}
			return eh.onLossRecorded(ctx, &event)
		}

	case models.EventTypeLossCorrected:
		if eh.onLossCorrected != nil {
			var event models.LossCorrectedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal LossCorrected event: %w", err)
			}
			return eh.onLossCorrected(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
