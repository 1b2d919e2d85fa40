package store

import (
	"context"
	"fmt"
	"time"

	"saladas-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ShipmentLines retrieves requested lines with their delivered quantity for
// orders whose requested date falls in [from, to]. storeID 0 means all stores.
func (s *Store) ShipmentLines(ctx context.Context, from, to time.Time, storeID int64) ([]models.ShipmentLineRow, error) {
	rows := []models.ShipmentLineRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT ps.id AS shipment_id, ps.store_id, st.name AS store_name,
			pi.salad_type_id, sa.name AS salad_name, pi.quantity AS requested,
			COALESCE(d.delivered_quantity, 0) AS delivered, pi.unit_price
		FROM production_shipments ps
		JOIN stores st ON st.id = ps.store_id
		JOIN production_items pi ON pi.shipment_id = ps.id
		JOIN salad_types sa ON sa.id = pi.salad_type_id
		LEFT JOIN shipment_deliveries d ON d.shipment_id = pi.shipment_id AND d.salad_type_id = pi.salad_type_id
		WHERE ps.requested_date BETWEEN $1 AND $2
			AND ($3 = 0 OR ps.store_id = $3)
		ORDER BY st.name, sa.name, ps.id`, from, to, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipment lines: %w", err)
	}
	return rows, nil
}

// LossLines retrieves completed loss items dated in [from, to]. Corrected
// losses are listed by ListCorrections only. storeID 0 means all stores.
func (s *Store) LossLines(ctx context.Context, from, to time.Time, storeID int64) ([]models.LossLineRow, error) {
	rows := []models.LossLineRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT l.id AS loss_id, l.loss_number, l.store_id, st.name AS store_name, l.loss_date, l.status,
			li.salad_type_id, sa.name AS salad_name, li.quantity, li.batch_number, li.reason,
			li.loss_value, li.notes
		FROM losses l
		JOIN loss_items li ON li.loss_id = l.id
		JOIN stores st ON st.id = l.store_id
		JOIN salad_types sa ON sa.id = li.salad_type_id
		WHERE l.loss_date BETWEEN $1 AND $2
			AND l.status = $3
			AND ($4 = 0 OR l.store_id = $4)
		ORDER BY l.loss_date DESC, st.name, li.id`,
		from, to, models.LossStatusCompleted, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loss lines: %w", err)
	}
	return rows, nil
}

// DeliveredByBatch sums delivered quantities for each of the given batch numbers.
// storeID 0 means all stores.
func (s *Store) DeliveredByBatch(ctx context.Context, batches []string, storeID int64) ([]models.BatchDeliveryRow, error) {
	rows := []models.BatchDeliveryRow{}
	if len(batches) == 0 {
		return rows, nil
	}

	query, args, err := sqlx.In(`
		SELECT d.batch_number, COALESCE(SUM(d.delivered_quantity), 0) AS delivered
		FROM shipment_deliveries d
		JOIN production_shipments ps ON ps.id = d.shipment_id
		WHERE d.batch_number IN (?)
			AND (? = 0 OR ps.store_id = ?)
		GROUP BY d.batch_number`, batches, storeID, storeID)
	if err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load batch deliveries: %w", err)
	}
	return rows, nil
}

// ListCorrections retrieves the latest admin corrections with display names
func (s *Store) ListCorrections(ctx context.Context, limit int) ([]models.CorrectionRow, error) {
	rows := []models.CorrectionRow{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.loss_id, c.store_id, c.salad_type_id, c.quantity, c.batch_date, c.loss_date,
			c.correction_date, c.loss_reason, c.correction_reason, c.corrected_by, c.total_value,
			c.notes, c.created_at,
			st.name AS store_name, sa.name AS salad_name,
			COALESCE(NULLIF(u.full_name, ''), u.email) AS corrected_by_name,
			l.loss_number
		FROM loss_corrections c
		JOIN stores st ON st.id = c.store_id
		JOIN salad_types sa ON sa.id = c.salad_type_id
		JOIN users u ON u.id = c.corrected_by
		JOIN losses l ON l.id = c.loss_id
		ORDER BY c.created_at DESC, c.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	return rows, nil
}

// ListAudit retrieves the latest audit log entries
func (s *Store) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	rows := []models.AuditEntry{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, event_id, event_type, entity_type, entity_id, store_id, actor_id, summary, created_at
		FROM audit_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return rows, nil
}
