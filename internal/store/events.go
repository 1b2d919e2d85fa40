package store

import (
	"context"

	"saladas-service/internal/models"
)

// InsertAudit writes an audit row; a repeated event id is ignored
func (s *Store) InsertAudit(ctx context.Context, entry *models.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_id, event_type, entity_type, entity_id, store_id, actor_id, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		entry.EventID, entry.EventType, entry.EntityType, entry.EntityID,
		entry.StoreID, entry.ActorID, entry.Summary, entry.CreatedAt)
	return err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM processed_events WHERE event_id = $1", eventID)
	return count > 0, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		eventID, eventType)
	return err
}
