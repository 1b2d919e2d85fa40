package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"saladas-service/internal/models"
	"saladas-service/internal/store"
	"saladas-service/internal/util"

	"go.uber.org/zap"
)

const sendAllLockTTL = 2 * time.Minute

// FulfillmentService reconciles store orders against production deliveries
type FulfillmentService struct {
	repo      FulfillmentRepository
	publisher EventPublisher
	locker    Locker
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewFulfillmentService creates a new fulfillment service
func NewFulfillmentService(repo FulfillmentRepository, publisher EventPublisher, locker Locker, location *time.Location) *FulfillmentService {
	return &FulfillmentService{
		repo:      repo,
		publisher: publisher,
		locker:    locker,
		location:  location,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// BoardItem is one requested line with what has been delivered so far
type BoardItem struct {
	SaladTypeID int64  `json:"salad_type_id"`
	SaladName   string `json:"salad_name"`
	Requested   int    `json:"requested_quantity"`
	Delivered   int    `json:"delivered_quantity"`
	Pending     int    `json:"pending_quantity"`
	BatchNumber string `json:"batch_number,omitempty"`
}

// BoardShipment is a shipment as production sees it
type BoardShipment struct {
	ShipmentID     int64       `json:"shipment_id"`
	ShipmentNumber string      `json:"shipment_number"`
	StoreID        int64       `json:"store_id"`
	StoreName      string      `json:"store_name"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	TotalItems     int         `json:"total_items"`
	Items          []BoardItem `json:"items"`
}

// SaladSummary totals one salad type across the day's shipments
type SaladSummary struct {
	SaladTypeID int64  `json:"salad_type_id"`
	SaladName   string `json:"salad_name"`
	Requested   int    `json:"total_requested"`
	Delivered   int    `json:"total_delivered"`
	Pending     int    `json:"total_pending"`
	StoresCount int    `json:"stores_count"`
}

// BoardStats are the headline numbers of the production board
type BoardStats struct {
	TotalStores    int `json:"total_stores"`
	TotalShipments int `json:"total_shipments"`
	TotalRequested int `json:"total_requested"`
	TotalDelivered int `json:"total_delivered"`
	TotalPending   int `json:"total_pending"`
}

// DailyBoard is everything production needs for one delivery date
type DailyBoard struct {
	Date         string          `json:"date"`
	DefaultBatch string          `json:"default_batch_number"`
	Shipments    []BoardShipment `json:"shipments"`
	Salads       []SaladSummary  `json:"salad_summaries"`
	Stats        BoardStats      `json:"stats"`
}

// DailyBoard builds the production board for a delivery date (YYYY-MM-DD, empty means today)
func (s *FulfillmentService) DailyBoard(ctx context.Context, rawDate string) (*DailyBoard, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.DailyBoard")
	defer span.End()

	date, err := s.parseDate(rawDate)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.LoadDailyBoard(ctx, date)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load daily board: %w", err)
	}

	board := BuildDailyBoard(rows)
	board.Date = date.Format(dateLayout)
	board.DefaultBatch = DefaultBatchNumber(today(s.now(), s.location))
	return board, nil
}

// BuildDailyBoard joins shipments, items and deliveries in memory.
// Pending never goes below zero; salad summaries are sorted by pending, highest first.
func BuildDailyBoard(rows *models.DailyBoardRows) *DailyBoard {
	type deliveryKey struct{ shipmentID, saladTypeID int64 }
	delivered := make(map[deliveryKey]models.Delivery, len(rows.Deliveries))
	for _, d := range rows.Deliveries {
		delivered[deliveryKey{d.ShipmentID, d.SaladTypeID}] = d
	}

	itemsByShipment := make(map[int64][]models.ShipmentItem, len(rows.Shipments))
	for _, item := range rows.Items {
		itemsByShipment[item.ShipmentID] = append(itemsByShipment[item.ShipmentID], item)
	}

	board := &DailyBoard{Shipments: make([]BoardShipment, 0, len(rows.Shipments)), Salads: []SaladSummary{}}
	stores := make(map[int64]struct{})
	summaries := make(map[int64]*SaladSummary)
	summaryStores := make(map[int64]map[int64]struct{})

	for _, sh := range rows.Shipments {
		stores[sh.StoreID] = struct{}{}
		bs := BoardShipment{
			ShipmentID:     sh.ID,
			ShipmentNumber: sh.ShipmentNumber,
			StoreID:        sh.StoreID,
			StoreName:      sh.StoreName,
			Status:         sh.Status,
			CreatedAt:      sh.CreatedAt,
			TotalItems:     sh.TotalItems,
			Items:          []BoardItem{},
		}

		for _, item := range itemsByShipment[sh.ID] {
			d := delivered[deliveryKey{sh.ID, item.SaladTypeID}]
			bi := BoardItem{
				SaladTypeID: item.SaladTypeID,
				SaladName:   item.SaladName,
				Requested:   item.Quantity,
				Delivered:   d.DeliveredQuantity,
				Pending:     pendingOf(item.Quantity, d.DeliveredQuantity),
				BatchNumber: d.BatchNumber,
			}
			bs.Items = append(bs.Items, bi)

			board.Stats.TotalRequested += bi.Requested
			board.Stats.TotalDelivered += bi.Delivered
			board.Stats.TotalPending += bi.Pending

			sum, ok := summaries[item.SaladTypeID]
			if !ok {
				sum = &SaladSummary{SaladTypeID: item.SaladTypeID, SaladName: item.SaladName}
				summaries[item.SaladTypeID] = sum
				summaryStores[item.SaladTypeID] = make(map[int64]struct{})
			}
			sum.Requested += bi.Requested
			sum.Delivered += bi.Delivered
			sum.Pending += bi.Pending
			summaryStores[item.SaladTypeID][sh.StoreID] = struct{}{}
		}
		board.Shipments = append(board.Shipments, bs)
	}

	for id, sum := range summaries {
		sum.StoresCount = len(summaryStores[id])
		board.Salads = append(board.Salads, *sum)
	}
	sort.SliceStable(board.Salads, func(i, j int) bool {
		if board.Salads[i].Pending != board.Salads[j].Pending {
			return board.Salads[i].Pending > board.Salads[j].Pending
		}
		return board.Salads[i].SaladName < board.Salads[j].SaladName
	})

	board.Stats.TotalStores = len(stores)
	board.Stats.TotalShipments = len(rows.Shipments)
	return board
}

// SendShipmentRequest carries the cumulative quantities production has sent
type SendShipmentRequest struct {
	BatchNumber string                `json:"batch_number" binding:"required"`
	Quantities  []models.DeliveryLine `json:"quantities" binding:"dive"`
}

// SendShipmentResult is the reconciled shipment after a send
type SendShipmentResult struct {
	Shipment models.ShipmentDetail `json:"shipment"`
	Shipped  bool                  `json:"shipped"`
}

// SendShipment records deliveries for one shipment. A quantity is the total
// sent for that salad type, so repeating a send does not double count.
// Zero quantities are skipped and at least one must be positive.
func (s *FulfillmentService) SendShipment(ctx context.Context, sess *Session, shipmentID int64, req *SendShipmentRequest) (*SendShipmentResult, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.SendShipment")
	defer span.End()

	if !ValidateBatchNumber(req.BatchNumber) {
		util.ValidationFailuresTotal.WithLabelValues("send_shipment").Inc()
		return nil, &ValidationError{Field: "batch_number", Message: ErrInvalidBatchNumber.Error(), Err: ErrInvalidBatchNumber}
	}

	current, err := s.repo.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	lines, err := validateDeliveryLines(current, req.Quantities)
	if err != nil {
		util.ValidationFailuresTotal.WithLabelValues("send_shipment").Inc()
		return nil, err
	}
	if len(lines) == 0 {
		util.ValidationFailuresTotal.WithLabelValues("send_shipment").Inc()
		return nil, invalid("quantities", "at least one quantity must be greater than zero")
	}

	detail, err := s.repo.ApplyDeliveries(ctx, shipmentID, lines, req.BatchNumber, sess.User.ID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotInShipment) {
			return nil, &ValidationError{Field: "quantities", Message: err.Error(), Err: err}
		}
		util.RecordError(span, err)
		s.logger.Error("Failed to record deliveries", zap.Int64("shipment_id", shipmentID), zap.Error(err))
		return nil, fmt.Errorf("failed to record deliveries: %w", err)
	}

	shipped := detail.Shipment.Status == models.ShipmentStatusShipped
	s.afterSend(ctx, sess, current.Shipment.Status, detail, lines, req.BatchNumber)

	return &SendShipmentResult{Shipment: *detail, Shipped: shipped}, nil
}

// SendAllRequest sends everything still pending for a delivery date
type SendAllRequest struct {
	Date        string `json:"date"`
	BatchNumber string `json:"batch_number" binding:"required"`
}

// SendAllItemResult is the outcome for one shipment of a send-all run
type SendAllItemResult struct {
	ShipmentID     int64  `json:"shipment_id"`
	ShipmentNumber string `json:"shipment_number"`
	StoreName      string `json:"store_name"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// SendAllResult summarizes a send-all run
type SendAllResult struct {
	Date        string              `json:"date"`
	BatchNumber string              `json:"batch_number"`
	Shipped     int                 `json:"shipped"`
	Failed      int                 `json:"failed"`
	Skipped     int                 `json:"skipped"`
	Results     []SendAllItemResult `json:"results"`
}

// SendAllShipments delivers the full requested quantity of every pending
// shipment for the date under one batch number. Each shipment commits on
// its own; a failure is reported in the result and does not stop the run.
func (s *FulfillmentService) SendAllShipments(ctx context.Context, sess *Session, req *SendAllRequest) (*SendAllResult, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.SendAllShipments")
	defer span.End()

	if !ValidateBatchNumber(req.BatchNumber) {
		util.ValidationFailuresTotal.WithLabelValues("send_all").Inc()
		return nil, &ValidationError{Field: "batch_number", Message: ErrInvalidBatchNumber.Error(), Err: ErrInvalidBatchNumber}
	}
	date, err := s.parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	lockKey := "send-all:" + date.Format(dateLayout)
	token, ok, err := s.locker.AcquireLock(ctx, lockKey, sendAllLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire send-all lock: %w", err)
	}
	if !ok {
		return nil, ErrSendAllInProgress
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.Background(), lockKey, token); err != nil {
			s.logger.Warn("Failed to release send-all lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	rows, err := s.repo.LoadDailyBoard(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily board: %w", err)
	}
	board := BuildDailyBoard(rows)

	result := &SendAllResult{Date: date.Format(dateLayout), BatchNumber: req.BatchNumber, Results: []SendAllItemResult{}}
	for _, sh := range board.Shipments {
		if sh.Status == models.ShipmentStatusShipped {
			result.Skipped++
			continue
		}

		lines := make([]models.DeliveryLine, 0, len(sh.Items))
		for _, item := range sh.Items {
			if item.Pending > 0 {
				lines = append(lines, models.DeliveryLine{SaladTypeID: item.SaladTypeID, Quantity: item.Requested})
			}
		}

		item := SendAllItemResult{ShipmentID: sh.ShipmentID, ShipmentNumber: sh.ShipmentNumber, StoreName: sh.StoreName}
		detail, err := s.repo.ApplyDeliveries(ctx, sh.ShipmentID, lines, req.BatchNumber, sess.User.ID)
		if err != nil {
			util.SendAllFailuresTotal.Inc()
			s.logger.Error("Failed to send shipment during send-all",
				zap.Int64("shipment_id", sh.ShipmentID),
				zap.String("shipment_number", sh.ShipmentNumber),
				zap.Error(err))
			item.Status = sh.Status
			item.Error = err.Error()
			result.Failed++
			result.Results = append(result.Results, item)
			continue
		}

		item.Status = detail.Shipment.Status
		if item.Status == models.ShipmentStatusShipped {
			result.Shipped++
		}
		result.Results = append(result.Results, item)
		s.afterSend(ctx, sess, sh.Status, detail, lines, req.BatchNumber)
	}

	s.logger.Info("Send-all finished",
		zap.String("date", result.Date),
		zap.String("batch_number", req.BatchNumber),
		zap.Int("shipped", result.Shipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *FulfillmentService) afterSend(ctx context.Context, sess *Session, previous string, detail *models.ShipmentDetail, lines []models.DeliveryLine, batch string) {
	sh := detail.Shipment
	util.DeliveriesRecordedTotal.Add(float64(len(lines)))
	s.logger.Info("Deliveries recorded",
		zap.Int64("shipment_id", sh.ID),
		zap.Int64("store_id", sh.StoreID),
		zap.String("batch_number", batch),
		zap.String("status", sh.Status))

	data := make([]models.ShipmentLineData, len(lines))
	for i, l := range lines {
		data[i] = models.ShipmentLineData{SaladTypeID: l.SaladTypeID, Quantity: l.Quantity}
	}
	recorded := &models.DeliveryRecordedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeDeliveryRecorded, sess.User.ID),
		ShipmentID:    sh.ID,
		StoreID:       sh.StoreID,
		RequestedDate: sh.RequestedDate,
		BatchNumber:   batch,
		Status:        sh.Status,
		Lines:         data,
	}
	if err := s.publisher.PublishDeliveryRecorded(ctx, recorded); err != nil {
		s.logger.Error("Failed to publish DeliveryRecorded event", zap.Error(err))
	}

	if sh.Status != models.ShipmentStatusShipped || previous == models.ShipmentStatusShipped {
		return
	}
	util.ShipmentsShippedTotal.Inc()
	shipped := &models.ShipmentShippedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeShipmentShipped, sess.User.ID),
		ShipmentID:    sh.ID,
		StoreID:       sh.StoreID,
		RequestedDate: sh.RequestedDate,
	}
	if err := s.publisher.PublishShipmentShipped(ctx, shipped); err != nil {
		s.logger.Error("Failed to publish ShipmentShipped event", zap.Error(err))
	}
}

func (s *FulfillmentService) parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return today(s.now(), s.location), nil
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, invalid("date", "date must be YYYY-MM-DD")
	}
	return date, nil
}

// validateDeliveryLines drops zero quantities and rejects negatives,
// unknown salad types and anything above the requested quantity.
func validateDeliveryLines(detail *models.ShipmentDetail, quantities []models.DeliveryLine) ([]models.DeliveryLine, error) {
	requested := make(map[int64]int, len(detail.Items))
	for _, item := range detail.Items {
		requested[item.SaladTypeID] = item.Quantity
	}

	lines := make([]models.DeliveryLine, 0, len(quantities))
	seen := make(map[int64]bool, len(quantities))
	for i, q := range quantities {
		field := fmt.Sprintf("quantities[%d].quantity", i)
		req, ok := requested[q.SaladTypeID]
		switch {
		case !ok:
			return nil, invalid(fmt.Sprintf("quantities[%d].salad_type_id", i), "salad type %d is not part of this order", q.SaladTypeID)
		case seen[q.SaladTypeID]:
			return nil, invalid(fmt.Sprintf("quantities[%d].salad_type_id", i), "salad type %d listed twice", q.SaladTypeID)
		case q.Quantity < 0:
			return nil, invalid(field, "quantity cannot be negative")
		case q.Quantity > req:
			return nil, invalid(field, "quantity cannot be greater than %d (requested)", req)
		}
		seen[q.SaladTypeID] = true
		if q.Quantity == 0 {
			continue
		}
		lines = append(lines, q)
	}
	return lines, nil
}

func pendingOf(requested, delivered int) int {
	if delivered >= requested {
		return 0
	}
	return requested - delivered
}
