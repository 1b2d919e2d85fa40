package models

import "time"

// Event types
const (
	EventTypeShipmentCreated  = "SHIPMENT_CREATED"
	EventTypeDeliveryRecorded = "DELIVERY_RECORDED"
	EventTypeShipmentShipped  = "SHIPMENT_SHIPPED"
	EventTypeLossRecorded     = "LOSS_RECORDED"
	EventTypeLossCorrected    = "LOSS_CORRECTED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   int64     `json:"actor_id"`
}

// ShipmentCreatedEvent published when a store order is stored
type ShipmentCreatedEvent struct {
	BaseEvent
	ShipmentID     int64              `json:"shipment_id"`
	ShipmentNumber string             `json:"shipment_number"`
	StoreID        int64              `json:"store_id"`
	RequestedDate  time.Time          `json:"requested_date"`
	TotalItems     int                `json:"total_items"`
	Items          []ShipmentLineData `json:"items"`
}

// DeliveryRecordedEvent published after deliveries were upserted for a shipment
type DeliveryRecordedEvent struct {
	BaseEvent
	ShipmentID    int64              `json:"shipment_id"`
	StoreID       int64              `json:"store_id"`
	RequestedDate time.Time          `json:"requested_date"`
	BatchNumber   string             `json:"batch_number"`
	Status        string             `json:"status"`
	Lines         []ShipmentLineData `json:"lines"`
}

// ShipmentShippedEvent published when every line of a shipment is satisfied
type ShipmentShippedEvent struct {
	BaseEvent
	ShipmentID    int64     `json:"shipment_id"`
	StoreID       int64     `json:"store_id"`
	RequestedDate time.Time `json:"requested_date"`
}

// LossRecordedEvent published when a store loss submission is stored
type LossRecordedEvent struct {
	BaseEvent
	LossID     int64     `json:"loss_id"`
	LossNumber string    `json:"loss_number"`
	StoreID    int64     `json:"store_id"`
	LossDate   time.Time `json:"loss_date"`
	Merged     bool      `json:"merged"`
	AddedItems int       `json:"added_items"`
	AddedValue string    `json:"added_value"`
}

// LossCorrectedEvent published when an admin registers a late loss
type LossCorrectedEvent struct {
	BaseEvent
	CorrectionID int64     `json:"correction_id"`
	LossID       int64     `json:"loss_id"`
	StoreID      int64     `json:"store_id"`
	LossDate     time.Time `json:"loss_date"`
	Quantity     int       `json:"quantity"`
	Reason       string    `json:"reason"`
}

// ShipmentLineData represents a shipment line in events
type ShipmentLineData struct {
	SaladTypeID int64 `json:"salad_type_id"`
	Quantity    int   `json:"quantity"`
}
