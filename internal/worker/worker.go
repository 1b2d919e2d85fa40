package worker

import (
	"context"
	"fmt"
	"time"

	"saladas-service/internal/broker"
	"saladas-service/internal/models"
	"saladas-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Source delivers bus messages to a handler until ctx is done
type Source interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// AuditStore persists audit rows and consumer offsets by event id
type AuditStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	InsertAudit(ctx context.Context, entry *models.AuditEntry) error
}

// ReportInvalidator drops cached reports
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context) (int64, error)
}

// AuditWorker writes one audit row per domain event
type AuditWorker struct {
	source       Source
	store        AuditStore
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(source Source, store AuditStore) *AuditWorker {
	w := &AuditWorker{
		source:       source,
		store:        store,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnShipmentCreated(func(ctx context.Context, e *models.ShipmentCreatedEvent) error {
		return w.record(ctx, e.BaseEvent, "shipment", e.ShipmentID, e.StoreID,
			fmt.Sprintf("Order %s created with %d salads for %s",
				e.ShipmentNumber, e.TotalItems, e.RequestedDate.Format("2006-01-02")))
	})
	w.eventHandler.OnDeliveryRecorded(func(ctx context.Context, e *models.DeliveryRecordedEvent) error {
		return w.record(ctx, e.BaseEvent, "shipment", e.ShipmentID, e.StoreID,
			fmt.Sprintf("Deliveries recorded for %d salad types in batch %s, status %s",
				len(e.Lines), e.BatchNumber, e.Status))
	})
	w.eventHandler.OnShipmentShipped(func(ctx context.Context, e *models.ShipmentShippedEvent) error {
		return w.record(ctx, e.BaseEvent, "shipment", e.ShipmentID, e.StoreID,
			fmt.Sprintf("Shipment for %s fully shipped", e.RequestedDate.Format("2006-01-02")))
	})
	w.eventHandler.OnLossRecorded(func(ctx context.Context, e *models.LossRecordedEvent) error {
		action := "created"
		if e.Merged {
			action = "merged into"
		}
		return w.record(ctx, e.BaseEvent, "loss", e.LossID, e.StoreID,
			fmt.Sprintf("%d loss items worth %s %s %s",
				e.AddedItems, e.AddedValue, action, e.LossNumber))
	})
	w.eventHandler.OnLossCorrected(func(ctx context.Context, e *models.LossCorrectedEvent) error {
		return w.record(ctx, e.BaseEvent, "loss", e.LossID, e.StoreID,
			fmt.Sprintf("Correction of %d salads (%s) for %s",
				e.Quantity, e.Reason, e.LossDate.Format("2006-01-02")))
	})

	return w
}

// Handle processes one bus message
func (w *AuditWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

func (w *AuditWorker) record(ctx context.Context, base models.BaseEvent, entity string, entityID, storeID int64, summary string) error {
	processed, err := w.store.IsEventProcessed(ctx, base.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", base.EventID))
		return nil
	}

	createdAt := base.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	entry := &models.AuditEntry{
		EventID:    base.EventID,
		EventType:  base.EventType,
		EntityType: entity,
		EntityID:   entityID,
		StoreID:    storeID,
		ActorID:    base.ActorID,
		Summary:    summary,
		CreatedAt:  createdAt,
	}
	if err := w.store.InsertAudit(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	if err := w.store.MarkEventProcessed(ctx, base.EventID, base.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	util.EventsConsumedTotal.WithLabelValues("audit", base.EventType).Inc()
	return nil
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.source.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.source.Close()
}

// CacheWorker drops cached reports whenever the underlying data changes
type CacheWorker struct {
	source       Source
	cache        ReportInvalidator
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache worker
func NewCacheWorker(source Source, cache ReportInvalidator) *CacheWorker {
	w := &CacheWorker{
		source:       source,
		cache:        cache,
		eventHandler: broker.NewEventHandler(),
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnShipmentCreated(func(ctx context.Context, e *models.ShipmentCreatedEvent) error {
		return w.invalidate(ctx, e.BaseEvent)
	})
	w.eventHandler.OnDeliveryRecorded(func(ctx context.Context, e *models.DeliveryRecordedEvent) error {
		return w.invalidate(ctx, e.BaseEvent)
	})
	w.eventHandler.OnShipmentShipped(func(ctx context.Context, e *models.ShipmentShippedEvent) error {
		return w.invalidate(ctx, e.BaseEvent)
	})
	w.eventHandler.OnLossRecorded(func(ctx context.Context, e *models.LossRecordedEvent) error {
		return w.invalidate(ctx, e.BaseEvent)
	})
	w.eventHandler.OnLossCorrected(func(ctx context.Context, e *models.LossCorrectedEvent) error {
		return w.invalidate(ctx, e.BaseEvent)
	})

	return w
}

// Handle processes one bus message
func (w *CacheWorker) Handle(ctx context.Context, msg kafka.Message) error {
	return w.eventHandler.HandleMessage(ctx, msg)
}

func (w *CacheWorker) invalidate(ctx context.Context, base models.BaseEvent) error {
	n, err := w.cache.InvalidateReports(ctx)
	if err != nil {
		return fmt.Errorf("failed to invalidate reports: %w", err)
	}

	w.logger.Debug("Report cache invalidated",
		zap.String("event_type", base.EventType),
		zap.Int64("keys", n))
	util.EventsConsumedTotal.WithLabelValues("cache", base.EventType).Inc()
	return nil
}

// Start starts the worker
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.source.StartConsuming(ctx, w.Handle)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.source.Close()
}
