package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saladas-service/internal/models"
	"saladas-service/internal/store"
	"saladas-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LossService records store spoilage and admin corrections
type LossService struct {
	catalog   CatalogRepository
	losses    LossRepository
	publisher EventPublisher
	policy    models.LossPolicy
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewLossService creates a new loss service
func NewLossService(
	catalog CatalogRepository,
	losses LossRepository,
	publisher EventPublisher,
	policy models.LossPolicy,
	location *time.Location,
) *LossService {
	if !policy.Valid() {
		policy = models.LossPolicyMergeByDay
	}
	return &LossService{
		catalog:   catalog,
		losses:    losses,
		publisher: publisher,
		policy:    policy,
		location:  location,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// Policy returns the configured same-day loss policy
func (s *LossService) Policy() models.LossPolicy {
	return s.policy
}

// RecordLossRequest is a store's loss cart
type RecordLossRequest struct {
	StoreID int64          `json:"store_id,omitempty"`
	Items   []LossCartItem `json:"items" binding:"required,min=1,dive"`
	Notes   string         `json:"notes,omitempty"`
}

// LossCartItem is one loss line
type LossCartItem struct {
	SaladTypeID int64  `json:"salad_type_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	BatchNumber string `json:"batch_number" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Notes       string `json:"notes,omitempty"`
}

// LossSubmission is the outcome of a loss submission
type LossSubmission struct {
	Policy   models.LossPolicy       `json:"policy"`
	Result   *models.LossWriteResult `json:"result"`
	Warnings []string                `json:"warnings,omitempty"`
}

// RecordLosses stores today's losses for a store. A repeated line is merged
// or skipped with a warning depending on the configured policy; it never
// aborts the rest of the submission.
func (s *LossService) RecordLosses(ctx context.Context, sess *Session, req *RecordLossRequest) (*LossSubmission, error) {
	ctx, span := util.StartSpan(ctx, "LossService.RecordLosses")
	defer span.End()

	storeID, err := sess.ScopeStore(req.StoreID)
	if err != nil {
		return nil, err
	}

	items, err := s.priceLossCart(ctx, req.Items)
	if err != nil {
		util.ValidationFailuresTotal.WithLabelValues("record_losses").Inc()
		return nil, err
	}

	lossDate := today(s.now(), s.location)
	header := models.Loss{
		StoreID:   storeID,
		LossDate:  lossDate,
		Notes:     req.Notes,
		CreatedBy: sess.User.ID,
	}

	result, err := s.losses.RecordLoss(ctx, s.policy, header, items)
	if err != nil {
		util.RecordError(span, err)
		s.logger.Error("Failed to record losses", zap.Int64("store_id", storeID), zap.Error(err))
		return nil, fmt.Errorf("failed to record losses: %w", err)
	}

	submission := &LossSubmission{Policy: s.policy, Result: result}
	for _, skipped := range result.Skipped {
		submission.Warnings = append(submission.Warnings, fmt.Sprintf(
			"duplicate loss line skipped: salad %d, batch %s, reason %s",
			skipped.SaladTypeID, skipped.BatchNumber, skipped.Reason))
	}
	util.LossItemsSkippedTotal.Add(float64(len(result.Skipped)))

	if result.Loss == nil {
		util.LossesRecordedTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn("Loss submission had only duplicate lines",
			zap.Int64("store_id", storeID),
			zap.Int("skipped", len(result.Skipped)))
		return submission, nil
	}

	outcome := "created"
	if result.Merged {
		outcome = "merged"
	}
	util.LossesRecordedTotal.WithLabelValues(outcome).Inc()

	addedItems, addedValue := appliedTotals(items, result.Skipped)
	s.logger.Info("Losses recorded",
		zap.Int64("loss_id", result.Loss.ID),
		zap.String("loss_number", result.Loss.LossNumber),
		zap.Int64("store_id", storeID),
		zap.Bool("merged", result.Merged),
		zap.Int("added_items", addedItems),
		zap.Int("skipped", len(result.Skipped)))

	event := &models.LossRecordedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeLossRecorded, sess.User.ID),
		LossID:     result.Loss.ID,
		LossNumber: result.Loss.LossNumber,
		StoreID:    storeID,
		LossDate:   lossDate,
		Merged:     result.Merged,
		AddedItems: addedItems,
		AddedValue: addedValue.StringFixed(2),
	}
	if err := s.publisher.PublishLossRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish LossRecorded event", zap.Error(err))
	}

	return submission, nil
}

// CorrectionRequest is the admin form for a loss the store failed to report
type CorrectionRequest struct {
	StoreID          int64  `json:"store_id" binding:"required"`
	SaladTypeID      int64  `json:"salad_type_id" binding:"required"`
	Quantity         int    `json:"quantity" binding:"required,min=1"`
	BatchNumber      string `json:"batch_number,omitempty"`
	BatchDate        string `json:"batch_date" binding:"required"`
	LossDate         string `json:"loss_date" binding:"required"`
	CorrectionDate   string `json:"correction_date,omitempty"`
	LossReason       string `json:"loss_reason" binding:"required"`
	CorrectionReason string `json:"correction_reason" binding:"required"`
	Notes            string `json:"notes,omitempty"`
}

// CorrectionResult is the stored correction with its loss
type CorrectionResult struct {
	Loss       *models.Loss       `json:"loss"`
	Correction *models.Correction `json:"correction"`
	DelayDays  int                `json:"delay_days"`
}

// RecordCorrection stores a late loss entered by an admin
func (s *LossService) RecordCorrection(ctx context.Context, sess *Session, req *CorrectionRequest) (*CorrectionResult, error) {
	ctx, span := util.StartSpan(ctx, "LossService.RecordCorrection")
	defer span.End()

	correction, item, err := s.buildCorrection(ctx, sess, req)
	if err != nil {
		util.ValidationFailuresTotal.WithLabelValues("record_correction").Inc()
		return nil, err
	}

	loss, err := s.losses.RecordCorrection(ctx, correction, item)
	if errors.Is(err, store.ErrDuplicateLossLine) {
		return nil, &ValidationError{
			Field:   "batch_number",
			Message: "a loss with the same salad, batch and reason is already recorded for that day",
			Err:     err,
		}
	}
	if err != nil {
		util.RecordError(span, err)
		s.logger.Error("Failed to record correction", zap.Int64("store_id", req.StoreID), zap.Error(err))
		return nil, fmt.Errorf("failed to record correction: %w", err)
	}

	util.CorrectionsRecordedTotal.Inc()
	delay := int(correction.CorrectionDate.Sub(correction.LossDate).Hours() / 24)
	s.logger.Info("Loss correction recorded",
		zap.Int64("correction_id", correction.ID),
		zap.Int64("loss_id", loss.ID),
		zap.Int64("store_id", correction.StoreID),
		zap.Int("delay_days", delay))

	event := &models.LossCorrectedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeLossCorrected, sess.User.ID),
		CorrectionID: correction.ID,
		LossID:       loss.ID,
		StoreID:      correction.StoreID,
		LossDate:     correction.LossDate,
		Quantity:     correction.Quantity,
		Reason:       correction.CorrectionReason,
	}
	if err := s.publisher.PublishLossCorrected(ctx, event); err != nil {
		s.logger.Error("Failed to publish LossCorrected event", zap.Error(err))
	}

	return &CorrectionResult{Loss: loss, Correction: correction, DelayDays: delay}, nil
}

func (s *LossService) buildCorrection(ctx context.Context, sess *Session, req *CorrectionRequest) (*models.Correction, models.LossItem, error) {
	var item models.LossItem

	if req.Quantity < 1 {
		return nil, item, invalid("quantity", "quantity must be at least 1")
	}
	if !contains(models.CorrectionLossReasons, req.LossReason) {
		return nil, item, invalid("loss_reason", "unknown loss reason %q", req.LossReason)
	}
	if !contains(models.CorrectionReasons, req.CorrectionReason) {
		return nil, item, invalid("correction_reason", "unknown correction reason %q", req.CorrectionReason)
	}

	batchDate, err := parseDateField("batch_date", req.BatchDate)
	if err != nil {
		return nil, item, err
	}
	lossDate, err := parseDateField("loss_date", req.LossDate)
	if err != nil {
		return nil, item, err
	}
	now := today(s.now(), s.location)
	correctionDate := now
	if req.CorrectionDate != "" {
		if correctionDate, err = parseDateField("correction_date", req.CorrectionDate); err != nil {
			return nil, item, err
		}
	}
	if err := ValidateCorrectionDates(batchDate, lossDate, correctionDate, now); err != nil {
		return nil, item, err
	}

	batch := req.BatchNumber
	if batch == "" {
		batch = DefaultBatchNumber(batchDate)
	} else if !ValidateBatchNumber(batch) {
		return nil, item, &ValidationError{Field: "batch_number", Message: ErrInvalidBatchNumber.Error(), Err: ErrInvalidBatchNumber}
	}

	if _, err := s.catalog.GetStore(ctx, req.StoreID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, item, invalid("store_id", "unknown store %d", req.StoreID)
		}
		return nil, item, fmt.Errorf("failed to load store: %w", err)
	}
	salads, err := s.catalog.GetSaladTypesByIDs(ctx, []int64{req.SaladTypeID})
	if err != nil {
		return nil, item, fmt.Errorf("failed to load salad type: %w", err)
	}
	if len(salads) == 0 {
		return nil, item, invalid("salad_type_id", "unknown salad type %d", req.SaladTypeID)
	}

	value := salads[0].SalePrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
	correction := &models.Correction{
		StoreID:          req.StoreID,
		SaladTypeID:      req.SaladTypeID,
		Quantity:         req.Quantity,
		BatchDate:        batchDate,
		LossDate:         lossDate,
		CorrectionDate:   correctionDate,
		LossReason:       req.LossReason,
		CorrectionReason: req.CorrectionReason,
		CorrectedBy:      sess.User.ID,
		TotalValue:       value,
		Notes:            req.Notes,
	}
	item = models.LossItem{
		StoreID:     req.StoreID,
		LossDate:    lossDate,
		SaladTypeID: req.SaladTypeID,
		Quantity:    req.Quantity,
		BatchNumber: batch,
		Reason:      req.LossReason,
		LossValue:   value,
		Notes:       req.Notes,
	}
	return correction, item, nil
}

// priceLossCart validates each line and computes loss_value = quantity × sale_price.
// Lines repeating (salad, batch, reason) inside one cart are summed.
func (s *LossService) priceLossCart(ctx context.Context, cart []LossCartItem) ([]models.LossItem, error) {
	if len(cart) == 0 {
		return nil, &ValidationError{Field: "items", Message: ErrEmptyCart.Error(), Err: ErrEmptyCart}
	}

	ids := make([]int64, len(cart))
	for i, line := range cart {
		switch {
		case line.Quantity < 1:
			return nil, invalid(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		case !ValidateBatchNumber(line.BatchNumber):
			return nil, &ValidationError{
				Field:   fmt.Sprintf("items[%d].batch_number", i),
				Message: ErrInvalidBatchNumber.Error(),
				Err:     ErrInvalidBatchNumber,
			}
		case !contains(models.LossReasons, line.Reason):
			return nil, invalid(fmt.Sprintf("items[%d].reason", i), "unknown loss reason %q", line.Reason)
		}
		ids[i] = line.SaladTypeID
	}

	salads, err := s.catalog.GetSaladTypesByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load salad types: %w", err)
	}
	prices := make(map[int64]decimal.Decimal, len(salads))
	for _, st := range salads {
		prices[st.ID] = st.SalePrice
	}

	type lineKey struct {
		saladTypeID   int64
		batch, reason string
	}
	index := make(map[lineKey]int, len(cart))
	items := make([]models.LossItem, 0, len(cart))
	for i, line := range cart {
		price, ok := prices[line.SaladTypeID]
		if !ok {
			return nil, invalid(fmt.Sprintf("items[%d].salad_type_id", i), "unknown salad type %d", line.SaladTypeID)
		}
		value := price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)

		key := lineKey{line.SaladTypeID, line.BatchNumber, line.Reason}
		if idx, ok := index[key]; ok {
			items[idx].Quantity += line.Quantity
			items[idx].LossValue = items[idx].LossValue.Add(value)
			if line.Notes != "" {
				items[idx].Notes = line.Notes
			}
			continue
		}
		index[key] = len(items)
		items = append(items, models.LossItem{
			SaladTypeID: line.SaladTypeID,
			Quantity:    line.Quantity,
			BatchNumber: line.BatchNumber,
			Reason:      line.Reason,
			LossValue:   value,
			Notes:       line.Notes,
		})
	}
	return items, nil
}

// appliedTotals sums the lines that were not skipped
func appliedTotals(items, skipped []models.LossItem) (int, decimal.Decimal) {
	qty, value := 0, decimal.Zero
	for _, it := range items {
		qty += it.Quantity
		value = value.Add(it.LossValue)
	}
	for _, it := range skipped {
		qty -= it.Quantity
		value = value.Sub(it.LossValue)
	}
	return qty, value
}

func parseDateField(field, raw string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, invalid(field, "%s must be YYYY-MM-DD", field)
	}
	return t, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
