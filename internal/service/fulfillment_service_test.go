package service

import (
	"context"
	"errors"
	"testing"

	"saladas-service/internal/models"
	"saladas-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func boardRows() *models.DailyBoardRows {
	return &models.DailyBoardRows{
		Shipments: []models.Shipment{
			{ID: 1, ShipmentNumber: "PED-20240115-0001", StoreID: 10, StoreName: "Centro", Status: models.ShipmentStatusPending, TotalItems: 8},
			{ID: 2, ShipmentNumber: "PED-20240115-0001", StoreID: 20, StoreName: "Praia", Status: models.ShipmentStatusShipped, TotalItems: 3},
		},
		Items: []models.ShipmentItem{
			{ShipmentID: 1, SaladTypeID: 100, SaladName: "Caesar", Quantity: 5},
			{ShipmentID: 1, SaladTypeID: 200, SaladName: "Verde", Quantity: 3},
			{ShipmentID: 2, SaladTypeID: 100, SaladName: "Caesar", Quantity: 3},
		},
		Deliveries: []models.Delivery{
			{ShipmentID: 1, SaladTypeID: 100, DeliveredQuantity: 2, BatchNumber: "LOTE-20240115"},
			{ShipmentID: 2, SaladTypeID: 100, DeliveredQuantity: 4, BatchNumber: "LOTE-20240115"},
		},
	}
}

func TestBuildDailyBoard(t *testing.T) {
	board := BuildDailyBoard(boardRows())

	require.Len(t, board.Shipments, 2)
	first := board.Shipments[0]
	require.Len(t, first.Items, 2)
	assert.Equal(t, 3, first.Items[0].Pending)
	assert.Equal(t, "LOTE-20240115", first.Items[0].BatchNumber)
	assert.Equal(t, 3, first.Items[1].Pending)
	assert.Equal(t, 0, first.Items[1].Delivered)

	// over-delivery never produces negative pending
	assert.Equal(t, 0, board.Shipments[1].Items[0].Pending)

	assert.Equal(t, BoardStats{
		TotalStores:    2,
		TotalShipments: 2,
		TotalRequested: 11,
		TotalDelivered: 6,
		TotalPending:   6,
	}, board.Stats)

	require.Len(t, board.Salads, 2)
	// equal pending sorts by name
	assert.Equal(t, "Caesar", board.Salads[0].SaladName)
	assert.Equal(t, 2, board.Salads[0].StoresCount)
	assert.Equal(t, 8, board.Salads[0].Requested)
	assert.Equal(t, "Verde", board.Salads[1].SaladName)
	assert.Equal(t, 1, board.Salads[1].StoresCount)
}

func TestBuildDailyBoardEmpty(t *testing.T) {
	board := BuildDailyBoard(&models.DailyBoardRows{})
	assert.NotNil(t, board.Shipments)
	assert.NotNil(t, board.Salads)
	assert.Zero(t, board.Stats)
}

func TestDailyBoardDefaultsToToday(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	repo.On("LoadDailyBoard", mock.Anything, day(2024, 1, 15)).Return(boardRows(), nil)
	svc := NewFulfillmentService(repo, &nopPublisher{}, newMemoryKV(), nil)
	svc.now = fixedNow

	board, err := svc.DailyBoard(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", board.Date)
	assert.Equal(t, "LOTE-20240115", board.DefaultBatch)

	_, err = svc.DailyBoard(context.Background(), "15-01-2024")
	assert.True(t, IsValidation(err))
}

func shipmentDetail(status string) *models.ShipmentDetail {
	return &models.ShipmentDetail{
		Shipment: models.Shipment{ID: 1, StoreID: 10, Status: status},
		Items: []models.ShipmentItem{
			{ShipmentID: 1, SaladTypeID: 100, Quantity: 5},
			{ShipmentID: 1, SaladTypeID: 200, Quantity: 3},
		},
	}
}

func TestValidateDeliveryLines(t *testing.T) {
	detail := shipmentDetail(models.ShipmentStatusPending)

	lines, err := validateDeliveryLines(detail, []models.DeliveryLine{
		{SaladTypeID: 100, Quantity: 5},
		{SaladTypeID: 200, Quantity: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, []models.DeliveryLine{{SaladTypeID: 100, Quantity: 5}}, lines)

	tests := []struct {
		name  string
		lines []models.DeliveryLine
		field string
	}{
		{"above requested", []models.DeliveryLine{{SaladTypeID: 100, Quantity: 6}}, "quantities[0].quantity"},
		{"negative", []models.DeliveryLine{{SaladTypeID: 200, Quantity: -1}}, "quantities[0].quantity"},
		{"unknown salad", []models.DeliveryLine{{SaladTypeID: 300, Quantity: 1}}, "quantities[0].salad_type_id"},
		{"listed twice", []models.DeliveryLine{{SaladTypeID: 100, Quantity: 1}, {SaladTypeID: 100, Quantity: 2}}, "quantities[1].salad_type_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateDeliveryLines(detail, tt.lines)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestSendShipmentMarksShipped(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	pub := &nopPublisher{}
	svc := NewFulfillmentService(repo, pub, newMemoryKV(), nil)

	lines := []models.DeliveryLine{{SaladTypeID: 100, Quantity: 5}, {SaladTypeID: 200, Quantity: 3}}
	repo.On("GetShipment", mock.Anything, int64(1)).Return(shipmentDetail(models.ShipmentStatusPending), nil)
	repo.On("ApplyDeliveries", mock.Anything, int64(1), lines, "LOTE-20240115", int64(1)).
		Return(shipmentDetail(models.ShipmentStatusShipped), nil)

	res, err := svc.SendShipment(context.Background(), roleSession(models.ProfileProduction), 1, &SendShipmentRequest{
		BatchNumber: "LOTE-20240115",
		Quantities:  lines,
	})
	require.NoError(t, err)
	assert.True(t, res.Shipped)
	assert.Len(t, pub.delivered, 1)
	assert.Len(t, pub.shipped, 1)
	repo.AssertExpectations(t)
}

func TestSendShipmentPartialStaysPending(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	pub := &nopPublisher{}
	svc := NewFulfillmentService(repo, pub, newMemoryKV(), nil)

	repo.On("GetShipment", mock.Anything, int64(1)).Return(shipmentDetail(models.ShipmentStatusPending), nil)
	repo.On("ApplyDeliveries", mock.Anything, int64(1), mock.Anything, "LOTE-20240115", int64(1)).
		Return(shipmentDetail(models.ShipmentStatusPending), nil)

	res, err := svc.SendShipment(context.Background(), roleSession(models.ProfileProduction), 1, &SendShipmentRequest{
		BatchNumber: "LOTE-20240115",
		Quantities:  []models.DeliveryLine{{SaladTypeID: 100, Quantity: 2}},
	})
	require.NoError(t, err)
	assert.False(t, res.Shipped)
	assert.Len(t, pub.delivered, 1)
	assert.Empty(t, pub.shipped)
}

func TestSendShipmentRejectsBadBatch(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	svc := NewFulfillmentService(repo, &nopPublisher{}, newMemoryKV(), nil)

	_, err := svc.SendShipment(context.Background(), roleSession(models.ProfileProduction), 1, &SendShipmentRequest{
		BatchNumber: "LOTE-2024011",
	})
	assert.ErrorIs(t, err, ErrInvalidBatchNumber)
	repo.AssertNotCalled(t, "GetShipment", mock.Anything, mock.Anything)
}

func TestSendShipmentRequiresPositiveQuantity(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	pub := &nopPublisher{}
	svc := NewFulfillmentService(repo, pub, newMemoryKV(), nil)
	repo.On("GetShipment", mock.Anything, int64(1)).Return(shipmentDetail(models.ShipmentStatusPending), nil)

	_, err := svc.SendShipment(context.Background(), roleSession(models.ProfileProduction), 1, &SendShipmentRequest{
		BatchNumber: "LOTE-20240115",
		Quantities:  []models.DeliveryLine{{SaladTypeID: 100, Quantity: 0}, {SaladTypeID: 200, Quantity: 0}},
	})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantities", ve.Field)
	repo.AssertNotCalled(t, "ApplyDeliveries", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, pub.delivered)
	assert.Empty(t, pub.shipped)
}

func TestSendShipmentNotFound(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	svc := NewFulfillmentService(repo, &nopPublisher{}, newMemoryKV(), nil)
	repo.On("GetShipment", mock.Anything, int64(5)).Return(nil, store.ErrNotFound)

	_, err := svc.SendShipment(context.Background(), roleSession(models.ProfileProduction), 5, &SendShipmentRequest{
		BatchNumber: "LOTE-20240115",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendAllContinuesPastFailures(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	pub := &nopPublisher{}
	kv := newMemoryKV()
	svc := NewFulfillmentService(repo, pub, kv, nil)

	rows := boardRows()
	rows.Shipments = append(rows.Shipments, models.Shipment{ID: 3, StoreID: 30, StoreName: "Sul", Status: models.ShipmentStatusPending})
	rows.Items = append(rows.Items, models.ShipmentItem{ShipmentID: 3, SaladTypeID: 200, Quantity: 2})

	repo.On("LoadDailyBoard", mock.Anything, day(2024, 1, 15)).Return(rows, nil)
	repo.On("ApplyDeliveries", mock.Anything, int64(1),
		[]models.DeliveryLine{{SaladTypeID: 100, Quantity: 5}, {SaladTypeID: 200, Quantity: 3}},
		"LOTE-20240115", int64(1)).Return(nil, errors.New("connection reset"))
	repo.On("ApplyDeliveries", mock.Anything, int64(3),
		[]models.DeliveryLine{{SaladTypeID: 200, Quantity: 2}},
		"LOTE-20240115", int64(1)).Return(&models.ShipmentDetail{
		Shipment: models.Shipment{ID: 3, StoreID: 30, Status: models.ShipmentStatusShipped},
	}, nil)

	res, err := svc.SendAllShipments(context.Background(), roleSession(models.ProfileProduction), &SendAllRequest{
		Date:        "2024-01-15",
		BatchNumber: "LOTE-20240115",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Shipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "connection reset", res.Results[0].Error)
	assert.Equal(t, models.ShipmentStatusPending, res.Results[0].Status)
	assert.Equal(t, models.ShipmentStatusShipped, res.Results[1].Status)
	assert.Len(t, pub.shipped, 1)

	// lock released after the run
	assert.Empty(t, kv.locked)
}

func TestSendAllLockBusy(t *testing.T) {
	repo := new(MockFulfillmentRepository)
	kv := newMemoryKV()
	kv.locked["send-all:2024-01-15"] = "someone-else"
	svc := NewFulfillmentService(repo, &nopPublisher{}, kv, nil)

	_, err := svc.SendAllShipments(context.Background(), roleSession(models.ProfileProduction), &SendAllRequest{
		Date:        "2024-01-15",
		BatchNumber: "LOTE-20240115",
	})
	assert.ErrorIs(t, err, ErrSendAllInProgress)
	repo.AssertNotCalled(t, "LoadDailyBoard", mock.Anything, mock.Anything)
	assert.Equal(t, "someone-else", kv.locked["send-all:2024-01-15"])
}
