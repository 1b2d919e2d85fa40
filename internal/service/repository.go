package service

import (
	"context"
	"time"

	"saladas-service/internal/models"
)

// CatalogRepository reads stores, salad types and sauces
type CatalogRepository interface {
	ListStores(ctx context.Context) ([]models.Store, error)
	GetStore(ctx context.Context, id int64) (*models.Store, error)
	ListSaladTypes(ctx context.Context) ([]models.SaladType, error)
	GetSaladTypesByIDs(ctx context.Context, ids []int64) ([]models.SaladType, error)
	ListSauces(ctx context.Context) ([]models.Sauce, error)
	GetSaucesByIDs(ctx context.Context, ids []int64) ([]models.Sauce, error)
}

// UserRepository resolves users together with their profile
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// OrderRepository persists store orders
type OrderRepository interface {
	CreateShipment(ctx context.Context, shipment *models.Shipment, items []models.ShipmentItem) error
	ListRecentShipments(ctx context.Context, storeID int64, limit int) ([]models.Shipment, error)
	GetShipment(ctx context.Context, id int64) (*models.ShipmentDetail, error)
}

// FulfillmentRepository reads the production board and records deliveries
type FulfillmentRepository interface {
	LoadDailyBoard(ctx context.Context, date time.Time) (*models.DailyBoardRows, error)
	GetShipment(ctx context.Context, id int64) (*models.ShipmentDetail, error)
	ApplyDeliveries(ctx context.Context, shipmentID int64, lines []models.DeliveryLine, batch string, userID int64) (*models.ShipmentDetail, error)
}

// LossRepository persists store losses and admin corrections
type LossRepository interface {
	RecordLoss(ctx context.Context, policy models.LossPolicy, header models.Loss, items []models.LossItem) (*models.LossWriteResult, error)
	RecordCorrection(ctx context.Context, correction *models.Correction, item models.LossItem) (*models.Loss, error)
}

// ReportRepository fetches the raw rows reports are reduced from
type ReportRepository interface {
	ShipmentLines(ctx context.Context, from, to time.Time, storeID int64) ([]models.ShipmentLineRow, error)
	LossLines(ctx context.Context, from, to time.Time, storeID int64) ([]models.LossLineRow, error)
	DeliveredByBatch(ctx context.Context, batches []string, storeID int64) ([]models.BatchDeliveryRow, error)
	ListCorrections(ctx context.Context, limit int) ([]models.CorrectionRow, error)
	ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// EventPublisher emits domain events after a successful write
type EventPublisher interface {
	PublishShipmentCreated(ctx context.Context, event *models.ShipmentCreatedEvent) error
	PublishDeliveryRecorded(ctx context.Context, event *models.DeliveryRecordedEvent) error
	PublishShipmentShipped(ctx context.Context, event *models.ShipmentShippedEvent) error
	PublishLossRecorded(ctx context.Context, event *models.LossRecordedEvent) error
	PublishLossCorrected(ctx context.Context, event *models.LossCorrectedEvent) error
}

// Locker guards operations that must not run twice at once
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// ReportCache stores rendered reports keyed by filter
type ReportCache interface {
	GetReport(ctx context.Context, key string, dest interface{}) (bool, error)
	SetReport(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// TokenRevoker tracks logged-out token ids
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// IdempotencyStore remembers the result of a request retried with the same key
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value string, ttl time.Duration) error
}
