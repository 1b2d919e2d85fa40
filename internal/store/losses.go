package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"saladas-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const lossColumns = `id, loss_number, store_id, loss_date, status, total_items, total_value, notes, created_by, created_at`

// RecordLoss stores a store's loss submission.
//
// With merge-by-day the items join the store's completed loss for that date,
// creating it when absent, and a line that repeats (salad, batch, reason)
// adds to the existing line. With always-new every submission gets its own
// loss row and a repeated line is skipped. A new loss that ends up with no
// lines is removed. Totals are recomputed from the item rows before commit.
func (s *Store) RecordLoss(ctx context.Context, policy models.LossPolicy, header models.Loss, items []models.LossItem) (*models.LossWriteResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockKey(ctx, tx, fmt.Sprintf("loss-seq:%d", header.StoreID)); err != nil {
		return nil, err
	}

	result := &models.LossWriteResult{}
	loss := &models.Loss{}
	if policy == models.LossPolicyMergeByDay {
		err = tx.GetContext(ctx, loss, `
			SELECT `+lossColumns+`
			FROM losses
			WHERE store_id = $1 AND loss_date = $2 AND status = $3
			ORDER BY id
			LIMIT 1
			FOR UPDATE`, header.StoreID, header.LossDate, models.LossStatusCompleted)
		switch {
		case err == nil:
			result.Merged = true
		case errors.Is(err, sql.ErrNoRows):
		default:
			return nil, fmt.Errorf("failed to find loss for day: %w", err)
		}
	}

	if !result.Merged {
		header.Status = models.LossStatusCompleted
		if err := s.insertLoss(ctx, tx, &header); err != nil {
			return nil, err
		}
		loss = &header
	}

	upsert := `
		INSERT INTO loss_items (loss_id, store_id, loss_date, salad_type_id, quantity, batch_number, reason, loss_value, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if policy == models.LossPolicyMergeByDay {
		upsert += `
		ON CONFLICT (store_id, loss_date, salad_type_id, batch_number, reason) DO UPDATE SET
			quantity = loss_items.quantity + EXCLUDED.quantity,
			loss_value = loss_items.loss_value + EXCLUDED.loss_value,
			notes = CASE WHEN EXCLUDED.notes = '' THEN loss_items.notes ELSE EXCLUDED.notes END
		WHERE loss_items.loss_id = EXCLUDED.loss_id
		RETURNING (xmax = 0) AS inserted`
	} else {
		upsert += `
		ON CONFLICT (store_id, loss_date, salad_type_id, batch_number, reason) DO NOTHING
		RETURNING TRUE AS inserted`
	}

	for _, item := range items {
		var inserted bool
		err := tx.QueryRowxContext(ctx, upsert,
			loss.ID, loss.StoreID, loss.LossDate, item.SaladTypeID, item.Quantity,
			item.BatchNumber, item.Reason, item.LossValue, item.Notes,
		).Scan(&inserted)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			result.Skipped = append(result.Skipped, item)
		case err != nil:
			return nil, fmt.Errorf("failed to insert loss item: %w", err)
		case inserted:
			result.Inserted++
		default:
			result.MergedLines++
		}
	}

	if !result.Merged && result.Inserted == 0 {
		if _, err := tx.ExecContext(ctx, "DELETE FROM losses WHERE id = $1", loss.ID); err != nil {
			return nil, fmt.Errorf("failed to drop empty loss: %w", err)
		}
		return result, tx.Commit()
	}

	err = tx.GetContext(ctx, loss, `
		UPDATE losses SET
			total_items = (SELECT COALESCE(SUM(quantity), 0) FROM loss_items WHERE loss_id = $1),
			total_value = (SELECT COALESCE(SUM(loss_value), 0) FROM loss_items WHERE loss_id = $1)
		WHERE id = $1
		RETURNING `+lossColumns, loss.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update loss totals: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	result.Loss = loss
	return result, nil
}

// RecordCorrection stores an admin-entered late loss: a corrected loss row,
// its single item and the correction audit row.
func (s *Store) RecordCorrection(ctx context.Context, correction *models.Correction, item models.LossItem) (*models.Loss, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockKey(ctx, tx, fmt.Sprintf("loss-seq:%d", correction.StoreID)); err != nil {
		return nil, err
	}

	loss := &models.Loss{
		StoreID:    correction.StoreID,
		LossDate:   correction.LossDate,
		Status:     models.LossStatusCorrected,
		TotalItems: item.Quantity,
		TotalValue: item.LossValue,
		Notes:      correction.Notes,
		CreatedBy:  correction.CorrectedBy,
	}
	if err := s.insertLoss(ctx, tx, loss); err != nil {
		return nil, err
	}

	var itemID int64
	err = tx.GetContext(ctx, &itemID, `
		INSERT INTO loss_items (loss_id, store_id, loss_date, salad_type_id, quantity, batch_number, reason, loss_value, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (store_id, loss_date, salad_type_id, batch_number, reason) DO NOTHING
		RETURNING id`,
		loss.ID, loss.StoreID, loss.LossDate, item.SaladTypeID, item.Quantity,
		item.BatchNumber, item.Reason, item.LossValue, item.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDuplicateLossLine
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert correction item: %w", err)
	}

	correction.LossID = loss.ID
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO loss_corrections
			(loss_id, store_id, salad_type_id, quantity, batch_date, loss_date, correction_date,
			 loss_reason, correction_reason, corrected_by, total_value, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`,
		correction.LossID, correction.StoreID, correction.SaladTypeID, correction.Quantity,
		correction.BatchDate, correction.LossDate, correction.CorrectionDate,
		correction.LossReason, correction.CorrectionReason, correction.CorrectedBy,
		correction.TotalValue, correction.Notes,
	).Scan(&correction.ID, &correction.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert correction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return loss, nil
}

// insertLoss assigns the next loss number for the store and inserts the row.
// The caller must hold the store's loss sequence lock.
func (s *Store) insertLoss(ctx context.Context, tx *sqlx.Tx, loss *models.Loss) error {
	last, err := lastNumber(ctx, tx,
		"SELECT loss_number FROM losses WHERE store_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1",
		loss.StoreID)
	if err != nil {
		return fmt.Errorf("failed to read last loss number: %w", err)
	}
	loss.LossNumber = models.NextSequenceNumber(models.LossPrefix, s.now(), last)

	err = tx.QueryRowxContext(ctx, `
		INSERT INTO losses (loss_number, store_id, loss_date, status, total_items, total_value, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		loss.LossNumber, loss.StoreID, loss.LossDate, loss.Status,
		loss.TotalItems, loss.TotalValue, loss.Notes, loss.CreatedBy,
	).Scan(&loss.ID, &loss.CreatedAt)
	if IsUniqueViolation(err) {
		return fmt.Errorf("loss %s: %w", loss.LossNumber, ErrDuplicateNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to insert loss: %w", err)
	}
	return nil
}
