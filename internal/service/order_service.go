package service

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"saladas-service/internal/models"
	"saladas-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	recentOrdersLimit = 5
	idempotencyTTL    = 24 * time.Hour
	dateLayout        = "2006-01-02"
)

// OrderService handles store order intake
type OrderService struct {
	catalog     CatalogRepository
	orders      OrderRepository
	publisher   EventPublisher
	idempotency IdempotencyStore
	location    *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(
	catalog CatalogRepository,
	orders OrderRepository,
	publisher EventPublisher,
	idempotency IdempotencyStore,
	location *time.Location,
) *OrderService {
	return &OrderService{
		catalog:     catalog,
		orders:      orders,
		publisher:   publisher,
		idempotency: idempotency,
		location:    location,
		logger:      util.GetLogger(),
		now:         time.Now,
	}
}

// SubmitOrderRequest represents a store's cart
type SubmitOrderRequest struct {
	StoreID        int64      `json:"store_id,omitempty"`
	DeliveryDate   string     `json:"delivery_date" binding:"required"`
	Notes          string     `json:"notes,omitempty"`
	Items          []CartItem `json:"items" binding:"required,min=1,dive"`
	IdempotencyKey string     `json:"-"`
}

// CartItem is one cart line
type CartItem struct {
	SaladTypeID int64  `json:"salad_type_id" binding:"required"`
	SauceID     *int64 `json:"sauce_id,omitempty"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// SubmitOrder validates the cart and stores the shipment with its items atomically
func (s *OrderService) SubmitOrder(ctx context.Context, sess *Session, req *SubmitOrderRequest) (*models.ShipmentDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SubmitOrder")
	defer span.End()

	storeID, err := sess.ScopeStore(req.StoreID)
	if err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if detail, ok := s.replay(ctx, storeID, req.IdempotencyKey); ok {
			return detail, nil
		}
	}

	deliveryDate, err := s.parseDeliveryDate(req.DeliveryDate)
	if err != nil {
		util.ValidationFailuresTotal.WithLabelValues("submit_order").Inc()
		return nil, err
	}

	items, err := s.priceCart(ctx, req.Items)
	if err != nil {
		util.ValidationFailuresTotal.WithLabelValues("submit_order").Inc()
		return nil, err
	}

	notes := req.Notes
	if notes == "" {
		notes = "Entrega desejada: " + deliveryDate.Format(dateLayout)
	}

	shipment := &models.Shipment{
		StoreID:       storeID,
		RequestedDate: deliveryDate,
		Notes:         notes,
		CreatedBy:     sess.User.ID,
	}

	if err := s.orders.CreateShipment(ctx, shipment, items); err != nil {
		util.RecordError(span, err)
		s.logger.Error("Failed to create shipment", zap.Int64("store_id", storeID), zap.Error(err))
		return nil, fmt.Errorf("failed to create shipment: %w", err)
	}

	util.ShipmentsCreatedTotal.Inc()
	util.ShipmentItemsRequestedTotal.Add(float64(shipment.TotalItems))
	s.logger.Info("Shipment created",
		zap.Int64("shipment_id", shipment.ID),
		zap.String("shipment_number", shipment.ShipmentNumber),
		zap.Int64("store_id", storeID),
		zap.Int("total_items", shipment.TotalItems))

	if req.IdempotencyKey != "" {
		if err := s.idempotency.SetIdempotencyKey(ctx, idempotencyKey(storeID, req.IdempotencyKey),
			strconv.FormatInt(shipment.ID, 10), idempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	lines := make([]models.ShipmentLineData, len(items))
	for i, item := range items {
		lines[i] = models.ShipmentLineData{SaladTypeID: item.SaladTypeID, Quantity: item.Quantity}
	}
	event := &models.ShipmentCreatedEvent{
		BaseEvent:      newBaseEvent(models.EventTypeShipmentCreated, sess.User.ID),
		ShipmentID:     shipment.ID,
		ShipmentNumber: shipment.ShipmentNumber,
		StoreID:        storeID,
		RequestedDate:  deliveryDate,
		TotalItems:     shipment.TotalItems,
		Items:          lines,
	}
	if err := s.publisher.PublishShipmentCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish ShipmentCreated event", zap.Error(err))
	}

	return &models.ShipmentDetail{Shipment: *shipment, Items: items, Deliveries: []models.Delivery{}}, nil
}

// RecentOrders lists the store's latest orders
func (s *OrderService) RecentOrders(ctx context.Context, sess *Session, storeID int64) ([]models.Shipment, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.RecentOrders")
	defer span.End()

	storeID, err := sess.ScopeStore(storeID)
	if err != nil {
		return nil, err
	}
	return s.orders.ListRecentShipments(ctx, storeID, recentOrdersLimit)
}

func (s *OrderService) replay(ctx context.Context, storeID int64, key string) (*models.ShipmentDetail, bool) {
	val, ok, err := s.idempotency.GetIdempotencyKey(ctx, idempotencyKey(storeID, key))
	if err != nil || !ok {
		return nil, false
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, false
	}
	detail, err := s.orders.GetShipment(ctx, id)
	if err != nil {
		return nil, false
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("shipment_id", id))
	return detail, true
}

func (s *OrderService) parseDeliveryDate(raw string) (time.Time, error) {
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, invalid("delivery_date", "delivery date must be YYYY-MM-DD")
	}
	if date.Before(today(s.now(), s.location)) {
		return time.Time{}, invalid("delivery_date", "delivery date cannot be in the past")
	}
	return date, nil
}

// priceCart checks every line against the catalog, merges repeated
// (salad, sauce) lines and sets unit_price = salad price + sauce price.
func (s *OrderService) priceCart(ctx context.Context, cart []CartItem) ([]models.ShipmentItem, error) {
	if len(cart) == 0 {
		return nil, &ValidationError{Field: "items", Message: ErrEmptyCart.Error(), Err: ErrEmptyCart}
	}

	saladIDs := make([]int64, 0, len(cart))
	sauceIDs := make([]int64, 0, len(cart))
	for i, line := range cart {
		if line.Quantity < 1 {
			return nil, invalid(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
		saladIDs = append(saladIDs, line.SaladTypeID)
		if line.SauceID != nil {
			sauceIDs = append(sauceIDs, *line.SauceID)
		}
	}

	salads, err := s.catalog.GetSaladTypesByIDs(ctx, uniqueIDs(saladIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load salad types: %w", err)
	}
	saladMap := make(map[int64]models.SaladType, len(salads))
	for _, st := range salads {
		saladMap[st.ID] = st
	}

	sauces, err := s.catalog.GetSaucesByIDs(ctx, uniqueIDs(sauceIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load sauces: %w", err)
	}
	sauceMap := make(map[int64]models.Sauce, len(sauces))
	for _, sc := range sauces {
		sauceMap[sc.ID] = sc
	}

	items := make([]models.ShipmentItem, 0, len(cart))
	bySalad := make(map[int64]int, len(cart))
	for i, line := range cart {
		salad, ok := saladMap[line.SaladTypeID]
		if !ok {
			return nil, invalid(fmt.Sprintf("items[%d].salad_type_id", i), "unknown salad type %d", line.SaladTypeID)
		}

		price := salad.SalePrice
		var sauceID sql.NullInt64
		if line.SauceID != nil {
			sauce, ok := sauceMap[*line.SauceID]
			if !ok {
				return nil, invalid(fmt.Sprintf("items[%d].sauce_id", i), "unknown sauce %d", *line.SauceID)
			}
			price = price.Add(sauce.Price)
			sauceID = sql.NullInt64{Int64: sauce.ID, Valid: true}
		} else if salad.RequiresSauce {
			return nil, invalid(fmt.Sprintf("items[%d].sauce_id", i), "%s requires a sauce", salad.Name)
		}

		if idx, seen := bySalad[salad.ID]; seen {
			if items[idx].SauceID != sauceID {
				return nil, invalid(fmt.Sprintf("items[%d].sauce_id", i),
					"%s is already in the cart with a different sauce", salad.Name)
			}
			items[idx].Quantity += line.Quantity
			continue
		}

		bySalad[salad.ID] = len(items)
		items = append(items, models.ShipmentItem{
			SaladTypeID: salad.ID,
			SaladName:   salad.Name,
			SauceID:     sauceID,
			Quantity:    line.Quantity,
			UnitPrice:   price.Round(2),
		})
	}
	return items, nil
}

func idempotencyKey(storeID int64, key string) string {
	return fmt.Sprintf("order:%d:%s", storeID, key)
}

func newBaseEvent(eventType string, actorID int64) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
		ActorID:   actorID,
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
