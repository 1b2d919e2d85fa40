package service

import (
	"context"

	"saladas-service/internal/models"
	"saladas-service/internal/util"

	"go.uber.org/zap"
)

// ReportInvalidator drops every cached report
type ReportInvalidator interface {
	InvalidateReports(ctx context.Context) (int64, error)
}

// invalidatingPublisher clears the report cache before each event goes out.
// Services publish only after a committed write.
type invalidatingPublisher struct {
	next   EventPublisher
	cache  ReportInvalidator
	logger *zap.Logger
}

// NewInvalidatingPublisher wraps next so every publish first invalidates cached reports
func NewInvalidatingPublisher(next EventPublisher, cache ReportInvalidator) EventPublisher {
	return &invalidatingPublisher{
		next:   next,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

func (p *invalidatingPublisher) invalidate(ctx context.Context, eventType string) {
	n, err := p.cache.InvalidateReports(ctx)
	if err != nil {
		p.logger.Warn("Failed to invalidate cached reports",
			zap.String("event_type", eventType), zap.Error(err))
		return
	}
	p.logger.Debug("Report cache invalidated",
		zap.String("event_type", eventType), zap.Int64("keys", n))
}

func (p *invalidatingPublisher) PublishShipmentCreated(ctx context.Context, event *models.ShipmentCreatedEvent) error {
	p.invalidate(ctx, event.EventType)
	return p.next.PublishShipmentCreated(ctx, event)
}

func (p *invalidatingPublisher) PublishDeliveryRecorded(ctx context.Context, event *models.DeliveryRecordedEvent) error {
	p.invalidate(ctx, event.EventType)
	return p.next.PublishDeliveryRecorded(ctx, event)
}

func (p *invalidatingPublisher) PublishShipmentShipped(ctx context.Context, event *models.ShipmentShippedEvent) error {
	p.invalidate(ctx, event.EventType)
	return p.next.PublishShipmentShipped(ctx, event)
}

func (p *invalidatingPublisher) PublishLossRecorded(ctx context.Context, event *models.LossRecordedEvent) error {
	p.invalidate(ctx, event.EventType)
	return p.next.PublishLossRecorded(ctx, event)
}

func (p *invalidatingPublisher) PublishLossCorrected(ctx context.Context, event *models.LossCorrectedEvent) error {
	p.invalidate(ctx, event.EventType)
	return p.next.PublishLossCorrected(ctx, event)
}
