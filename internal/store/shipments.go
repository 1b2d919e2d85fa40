package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"saladas-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const shipmentColumns = `ps.id, ps.shipment_number, ps.store_id, st.name AS store_name, ps.status,
	ps.requested_date, ps.fulfilled_date, ps.total_items, ps.notes, ps.created_by, ps.created_at, ps.updated_at`

const itemColumns = `pi.id, pi.shipment_id, pi.salad_type_id, sa.name AS salad_name, pi.sauce_id, pi.quantity, pi.unit_price`

const deliveryColumns = `d.id, d.shipment_id, d.salad_type_id, d.requested_quantity, d.delivered_quantity,
	d.batch_number, d.delivered_by, d.delivered_at`

// CreateShipment inserts a store order and its items in one transaction.
// The shipment number continues the store's last one, and total_items is the sum of the item rows.
func (s *Store) CreateShipment(ctx context.Context, shipment *models.Shipment, items []models.ShipmentItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockKey(ctx, tx, fmt.Sprintf("shipment-seq:%d", shipment.StoreID)); err != nil {
		return err
	}

	last, err := lastNumber(ctx, tx,
		"SELECT shipment_number FROM production_shipments WHERE store_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1",
		shipment.StoreID)
	if err != nil {
		return fmt.Errorf("failed to read last shipment number: %w", err)
	}
	shipment.ShipmentNumber = models.NextSequenceNumber(models.ShipmentPrefix, s.now(), last)
	shipment.Status = models.ShipmentStatusPending

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO production_shipments (shipment_number, store_id, status, requested_date, total_items, notes, created_by)
		VALUES ($1, $2, $3, $4, 0, $5, $6)
		RETURNING id, created_at, updated_at`,
		shipment.ShipmentNumber, shipment.StoreID, shipment.Status, shipment.RequestedDate,
		shipment.Notes, shipment.CreatedBy,
	).Scan(&shipment.ID, &shipment.CreatedAt, &shipment.UpdatedAt)
	if IsUniqueViolation(err) {
		return fmt.Errorf("shipment %s: %w", shipment.ShipmentNumber, ErrDuplicateNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}

	for i := range items {
		items[i].ShipmentID = shipment.ID
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO production_items (shipment_id, salad_type_id, sauce_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			shipment.ID, items[i].SaladTypeID, items[i].SauceID, items[i].Quantity, items[i].UnitPrice,
		).Scan(&items[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert shipment item: %w", err)
		}
	}

	err = tx.GetContext(ctx, &shipment.TotalItems, `
		UPDATE production_shipments
		SET total_items = (SELECT COALESCE(SUM(quantity), 0) FROM production_items WHERE shipment_id = $1)
		WHERE id = $1
		RETURNING total_items`, shipment.ID)
	if err != nil {
		return fmt.Errorf("failed to update shipment totals: %w", err)
	}

	return tx.Commit()
}

// ListRecentShipments retrieves a store's latest orders
func (s *Store) ListRecentShipments(ctx context.Context, storeID int64, limit int) ([]models.Shipment, error) {
	shipments := []models.Shipment{}
	err := s.db.SelectContext(ctx, &shipments, `
		SELECT `+shipmentColumns+`
		FROM production_shipments ps
		JOIN stores st ON st.id = ps.store_id
		WHERE ps.store_id = $1
		ORDER BY ps.created_at DESC, ps.id DESC
		LIMIT $2`, storeID, limit)
	return shipments, err
}

// GetShipment retrieves a shipment with its items and deliveries
func (s *Store) GetShipment(ctx context.Context, id int64) (*models.ShipmentDetail, error) {
	return s.shipmentDetail(ctx, s.db, id)
}

// LoadDailyBoard reads every pending or shipped order for a requested date
// from a single snapshot, so deliveries and items always agree.
func (s *Store) LoadDailyBoard(ctx context.Context, date time.Time) (*models.DailyBoardRows, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows := &models.DailyBoardRows{Shipments: []models.Shipment{}, Items: []models.ShipmentItem{}, Deliveries: []models.Delivery{}}
	err = tx.SelectContext(ctx, &rows.Shipments, `
		SELECT `+shipmentColumns+`
		FROM production_shipments ps
		JOIN stores st ON st.id = ps.store_id
		WHERE ps.requested_date = $1 AND ps.status IN ($2, $3)
		ORDER BY st.name, ps.created_at`,
		date, models.ShipmentStatusPending, models.ShipmentStatusShipped)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipments: %w", err)
	}
	if len(rows.Shipments) == 0 {
		return rows, tx.Commit()
	}

	ids := make([]int64, len(rows.Shipments))
	for i, sh := range rows.Shipments {
		ids[i] = sh.ID
	}

	query, args, err := sqlx.In(`
		SELECT `+itemColumns+`
		FROM production_items pi
		JOIN salad_types sa ON sa.id = pi.salad_type_id
		WHERE pi.shipment_id IN (?)
		ORDER BY pi.shipment_id, sa.name`, ids)
	if err != nil {
		return nil, err
	}
	if err := tx.SelectContext(ctx, &rows.Items, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load shipment items: %w", err)
	}

	query, args, err = sqlx.In(`
		SELECT `+deliveryColumns+`
		FROM shipment_deliveries d
		WHERE d.shipment_id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	if err := tx.SelectContext(ctx, &rows.Deliveries, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}

	return rows, tx.Commit()
}

// ApplyDeliveries upserts the cumulative delivered quantity per salad type,
// then marks the shipment shipped only if every item is fully delivered.
// The shipment row is locked for the whole transaction.
func (s *Store) ApplyDeliveries(ctx context.Context, shipmentID int64, lines []models.DeliveryLine, batch string, userID int64) (*models.ShipmentDetail, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var locked int64
	err = tx.GetContext(ctx, &locked, "SELECT id FROM production_shipments WHERE id = $1 FOR UPDATE", shipmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shipment %d: %w", shipmentID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock shipment: %w", err)
	}

	for _, line := range lines {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO shipment_deliveries
				(shipment_id, salad_type_id, requested_quantity, delivered_quantity, batch_number, delivered_by, delivered_at)
			SELECT pi.shipment_id, pi.salad_type_id, pi.quantity, $3, $4, $5, NOW()
			FROM production_items pi
			WHERE pi.shipment_id = $1 AND pi.salad_type_id = $2
			ON CONFLICT (shipment_id, salad_type_id) DO UPDATE SET
				requested_quantity = EXCLUDED.requested_quantity,
				delivered_quantity = EXCLUDED.delivered_quantity,
				batch_number = EXCLUDED.batch_number,
				delivered_by = EXCLUDED.delivered_by,
				delivered_at = EXCLUDED.delivered_at`,
			shipmentID, line.SaladTypeID, line.Quantity, batch, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert delivery: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("salad type %d: %w", line.SaladTypeID, ErrItemNotInShipment)
		}
	}

	var unfulfilled int
	err = tx.GetContext(ctx, &unfulfilled, `
		SELECT COUNT(*)
		FROM production_items pi
		LEFT JOIN shipment_deliveries d ON d.shipment_id = pi.shipment_id AND d.salad_type_id = pi.salad_type_id
		WHERE pi.shipment_id = $1 AND COALESCE(d.delivered_quantity, 0) < pi.quantity`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check completion: %w", err)
	}

	status := models.ShipmentStatusPending
	var fulfilled sql.NullTime
	if unfulfilled == 0 {
		status = models.ShipmentStatusShipped
		fulfilled = sql.NullTime{Time: s.now(), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE production_shipments SET status = $1, fulfilled_date = $2, updated_at = NOW() WHERE id = $3",
		status, fulfilled, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to update shipment status: %w", err)
	}

	detail, err := s.shipmentDetail(ctx, tx, shipmentID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Store) shipmentDetail(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.ShipmentDetail, error) {
	detail := &models.ShipmentDetail{Items: []models.ShipmentItem{}, Deliveries: []models.Delivery{}}
	err := sqlx.GetContext(ctx, q, &detail.Shipment, `
		SELECT `+shipmentColumns+`
		FROM production_shipments ps
		JOIN stores st ON st.id = ps.store_id
		WHERE ps.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shipment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	err = sqlx.SelectContext(ctx, q, &detail.Items, `
		SELECT `+itemColumns+`
		FROM production_items pi
		JOIN salad_types sa ON sa.id = pi.salad_type_id
		WHERE pi.shipment_id = $1
		ORDER BY sa.name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipment items: %w", err)
	}

	err = sqlx.SelectContext(ctx, q, &detail.Deliveries, `
		SELECT `+deliveryColumns+`
		FROM shipment_deliveries d
		WHERE d.shipment_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load deliveries: %w", err)
	}
	return detail, nil
}

func lastNumber(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (string, error) {
	var last string
	err := tx.GetContext(ctx, &last, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return last, err
}
