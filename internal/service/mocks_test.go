package service

import (
	"context"
	"database/sql"
	"time"

	"saladas-service/internal/auth"
	"saladas-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ListStores(ctx context.Context) ([]models.Store, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Store), args.Error(1)
}

func (m *MockCatalog) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Store), args.Error(1)
}

func (m *MockCatalog) ListSaladTypes(ctx context.Context) ([]models.SaladType, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.SaladType), args.Error(1)
}

func (m *MockCatalog) GetSaladTypesByIDs(ctx context.Context, ids []int64) ([]models.SaladType, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.SaladType), args.Error(1)
}

func (m *MockCatalog) ListSauces(ctx context.Context) ([]models.Sauce, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Sauce), args.Error(1)
}

func (m *MockCatalog) GetSaucesByIDs(ctx context.Context, ids []int64) ([]models.Sauce, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.Sauce), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateShipment(ctx context.Context, shipment *models.Shipment, items []models.ShipmentItem) error {
	args := m.Called(ctx, shipment, items)
	return args.Error(0)
}

func (m *MockOrderRepository) ListRecentShipments(ctx context.Context, storeID int64, limit int) ([]models.Shipment, error) {
	args := m.Called(ctx, storeID, limit)
	return args.Get(0).([]models.Shipment), args.Error(1)
}

func (m *MockOrderRepository) GetShipment(ctx context.Context, id int64) (*models.ShipmentDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShipmentDetail), args.Error(1)
}

type MockFulfillmentRepository struct {
	mock.Mock
}

func (m *MockFulfillmentRepository) LoadDailyBoard(ctx context.Context, date time.Time) (*models.DailyBoardRows, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DailyBoardRows), args.Error(1)
}

func (m *MockFulfillmentRepository) GetShipment(ctx context.Context, id int64) (*models.ShipmentDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShipmentDetail), args.Error(1)
}

func (m *MockFulfillmentRepository) ApplyDeliveries(ctx context.Context, shipmentID int64, lines []models.DeliveryLine, batch string, userID int64) (*models.ShipmentDetail, error) {
	args := m.Called(ctx, shipmentID, lines, batch, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ShipmentDetail), args.Error(1)
}

type MockLossRepository struct {
	mock.Mock
}

func (m *MockLossRepository) RecordLoss(ctx context.Context, policy models.LossPolicy, header models.Loss, items []models.LossItem) (*models.LossWriteResult, error) {
	args := m.Called(ctx, policy, header, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LossWriteResult), args.Error(1)
}

func (m *MockLossRepository) RecordCorrection(ctx context.Context, correction *models.Correction, item models.LossItem) (*models.Loss, error) {
	args := m.Called(ctx, correction, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Loss), args.Error(1)
}

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) ShipmentLines(ctx context.Context, from, to time.Time, storeID int64) ([]models.ShipmentLineRow, error) {
	args := m.Called(ctx, from, to, storeID)
	return args.Get(0).([]models.ShipmentLineRow), args.Error(1)
}

func (m *MockReportRepository) LossLines(ctx context.Context, from, to time.Time, storeID int64) ([]models.LossLineRow, error) {
	args := m.Called(ctx, from, to, storeID)
	return args.Get(0).([]models.LossLineRow), args.Error(1)
}

func (m *MockReportRepository) DeliveredByBatch(ctx context.Context, batches []string, storeID int64) ([]models.BatchDeliveryRow, error) {
	args := m.Called(ctx, batches, storeID)
	return args.Get(0).([]models.BatchDeliveryRow), args.Error(1)
}

func (m *MockReportRepository) ListCorrections(ctx context.Context, limit int) ([]models.CorrectionRow, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.CorrectionRow), args.Error(1)
}

func (m *MockReportRepository) ListAudit(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.AuditEntry), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Generate(userID int64) (*auth.Token, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Token), args.Error(1)
}

func (m *MockTokenIssuer) Validate(token string) (*auth.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

type MockPasswordChecker struct {
	mock.Mock
}

func (m *MockPasswordChecker) Check(password, hash string) bool {
	return m.Called(password, hash).Bool(0)
}

// nopPublisher accepts every event and remembers them
type nopPublisher struct {
	created   []*models.ShipmentCreatedEvent
	delivered []*models.DeliveryRecordedEvent
	shipped   []*models.ShipmentShippedEvent
	losses    []*models.LossRecordedEvent
	corrected []*models.LossCorrectedEvent
}

func (p *nopPublisher) PublishShipmentCreated(_ context.Context, e *models.ShipmentCreatedEvent) error {
	p.created = append(p.created, e)
	return nil
}

func (p *nopPublisher) PublishDeliveryRecorded(_ context.Context, e *models.DeliveryRecordedEvent) error {
	p.delivered = append(p.delivered, e)
	return nil
}

func (p *nopPublisher) PublishShipmentShipped(_ context.Context, e *models.ShipmentShippedEvent) error {
	p.shipped = append(p.shipped, e)
	return nil
}

func (p *nopPublisher) PublishLossRecorded(_ context.Context, e *models.LossRecordedEvent) error {
	p.losses = append(p.losses, e)
	return nil
}

func (p *nopPublisher) PublishLossCorrected(_ context.Context, e *models.LossCorrectedEvent) error {
	p.corrected = append(p.corrected, e)
	return nil
}

// memoryKV backs the lock, idempotency, revocation and report cache interfaces
type memoryKV struct {
	values  map[string]string
	reports map[string]interface{}
	locked  map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}, reports: map[string]interface{}{}, locked: map[string]string{}}
}

func (k *memoryKV) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	if _, ok := k.locked[key]; ok {
		return "", false, nil
	}
	k.locked[key] = "token-" + key
	return k.locked[key], true, nil
}

func (k *memoryKV) ReleaseLock(_ context.Context, key, token string) error {
	if k.locked[key] == token {
		delete(k.locked, key)
	}
	return nil
}

func (k *memoryKV) GetIdempotencyKey(_ context.Context, key string) (string, bool, error) {
	v, ok := k.values[key]
	return v, ok, nil
}

func (k *memoryKV) SetIdempotencyKey(_ context.Context, key, value string, _ time.Duration) error {
	k.values[key] = value
	return nil
}

func (k *memoryKV) RevokeToken(_ context.Context, tokenID string, _ time.Duration) error {
	k.values["revoked:"+tokenID] = "1"
	return nil
}

func (k *memoryKV) IsTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := k.values["revoked:"+tokenID]
	return ok, nil
}

// GetReport only serves values stored with the same Go type
func (k *memoryKV) GetReport(_ context.Context, key string, dest interface{}) (bool, error) {
	v, ok := k.reports[key]
	if !ok {
		return false, nil
	}
	switch d := dest.(type) {
	case **DaySummary:
		*d = v.(*DaySummary)
	case *[]StoreEfficiency:
		*d = v.([]StoreEfficiency)
	default:
		return false, nil
	}
	return true, nil
}

func (k *memoryKV) SetReport(_ context.Context, key string, value interface{}, _ time.Duration) error {
	k.reports[key] = value
	return nil
}

// fixedNow is 2024-01-15 10:00 in UTC
func fixedNow() time.Time {
	return time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
}

func storeSession(storeID int64) *Session {
	return &Session{User: models.User{
		ID:      7,
		Profile: models.ProfileStore,
		StoreID: sql.NullInt64{Int64: storeID, Valid: true},
	}}
}

func roleSession(profile models.Profile) *Session {
	return &Session{User: models.User{ID: 1, Profile: profile}}
}

func price(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (k *memoryKV) InvalidateReports(context.Context) (int64, error) {
	n := int64(len(k.reports))
	k.reports = map[string]interface{}{}
	return n, nil
}
