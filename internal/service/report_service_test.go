package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"saladas-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var reportStores = []models.Store{
	{ID: 10, Name: "Praia"},
	{ID: 20, Name: "Centro"},
	{ID: 30, Name: "Shopping"},
}

func reportShipmentLines() []models.ShipmentLineRow {
	return []models.ShipmentLineRow{
		{ShipmentID: 1, StoreID: 20, StoreName: "Centro", SaladTypeID: 1, SaladName: "Caesar", Requested: 5, Delivered: 5, UnitPrice: price("14.50")},
		{ShipmentID: 1, StoreID: 20, StoreName: "Centro", SaladTypeID: 2, SaladName: "Verde", Requested: 5, Delivered: 3, UnitPrice: price("10.00")},
		{ShipmentID: 2, StoreID: 10, StoreName: "Praia", SaladTypeID: 1, SaladName: "Caesar", Requested: 4, Delivered: 5, UnitPrice: price("14.50")},
	}
}

func lossLine(storeID int64, storeName, batch, reason string, qty int, value string, date time.Time) models.LossLineRow {
	return models.LossLineRow{
		StoreID: storeID, StoreName: storeName, SaladTypeID: 1, SaladName: "Caesar",
		Quantity: qty, BatchNumber: batch, Reason: reason, LossValue: price(value), LossDate: date,
		Status: models.LossStatusCompleted,
	}
}

func TestBuildDaySummary(t *testing.T) {
	losses := []models.LossLineRow{lossLine(20, "Centro", "LOTE-20240114", "validade", 2, "29.00", day(2024, 1, 15))}

	s := BuildDaySummary("2024-01-15", reportShipmentLines(), losses)

	assert.Equal(t, 14, s.SaladsRequested)
	assert.Equal(t, 13, s.SaladsSent)
	assert.Equal(t, 13, s.SaladsProduced)
	assert.Equal(t, 1, s.Difference)
	assert.Equal(t, 2, s.TotalLost)
	assert.True(t, price("29.00").Equal(s.TotalValueLost))

	require.Len(t, s.SaladsByType, 2)
	assert.Equal(t, SaladTypeSummary{SaladType: "Caesar", Requested: 9, Produced: 10, Sent: 10, Difference: -1}, s.SaladsByType[0])
	assert.Equal(t, SaladTypeSummary{SaladType: "Verde", Requested: 5, Produced: 3, Sent: 3, Difference: 2}, s.SaladsByType[1])

	// the fully delivered Caesar line of Centro is not a divergence
	require.Len(t, s.DivergencesByStore, 2)
	assert.Equal(t, StoreDivergence{StoreName: "Centro", SaladType: "Verde", Requested: 5, Sent: 3, Difference: -2}, s.DivergencesByStore[0])
	assert.Equal(t, StoreDivergence{StoreName: "Praia", SaladType: "Caesar", Requested: 4, Sent: 5, Difference: 1}, s.DivergencesByStore[1])
}

func TestBuildLossReport(t *testing.T) {
	lines := []models.LossLineRow{
		lossLine(20, "Centro", "LOTE-20240114", "validade", 2, "25.00", day(2024, 1, 15)),
		lossLine(10, "Praia", "LOTE-20240114", "qualidade", 1, "12.50", day(2024, 1, 15)),
		lossLine(20, "Centro", "LOTE-20240113", "validade", 3, "37.50", day(2024, 1, 14)),
	}

	r := BuildLossReport(lines)

	assert.Equal(t, 6, r.TotalLost)
	assert.True(t, price("75.00").Equal(r.TotalValue))
	require.Len(t, r.LossesByStore, 2)
	assert.Equal(t, "Centro", r.LossesByStore[0].StoreName)
	assert.Equal(t, 5, r.LossesByStore[0].Quantity)
	assert.True(t, price("62.50").Equal(r.LossesByStore[0].Value))
	assert.Equal(t, []ReasonLoss{{Reason: "validade", Quantity: 5}, {Reason: "qualidade", Quantity: 1}}, r.LossesByReason)
	assert.Len(t, r.DetailedLosses, 3)
	assert.Equal(t, 3, r.DetailedTotal)
	assert.Equal(t, "2024-01-14", r.DetailedLosses[2].Date)
}

func TestBuildEfficiency(t *testing.T) {
	losses := []models.LossLineRow{
		lossLine(20, "Centro", "LOTE-20240114", "validade", 2, "25.00", day(2024, 1, 15)),
		lossLine(10, "Praia", "LOTE-20240114", "validade", 1, "12.50", day(2024, 1, 15)),
	}

	out := BuildEfficiency(reportStores, reportShipmentLines(), losses)

	require.Len(t, out, 3)
	// Praia: (5-1)/5 = 80; Centro: (8-2)/8 = 75; Shopping sent nothing
	assert.Equal(t, "Praia", out[0].StoreName)
	assert.Equal(t, 80, out[0].Efficiency)
	assert.True(t, price("72.50").Equal(out[0].EstimatedSales))
	assert.Equal(t, "Centro", out[1].StoreName)
	assert.Equal(t, 75, out[1].Efficiency)
	assert.True(t, price("102.50").Equal(out[1].EstimatedSales))
	assert.Equal(t, StoreEfficiency{StoreName: "Shopping", EstimatedSales: out[2].EstimatedSales}, out[2])
	assert.True(t, out[2].EstimatedSales.IsZero())
}

func TestBuildBatchLossUsesDeliveries(t *testing.T) {
	losses := []models.LossLineRow{
		lossLine(20, "Centro", "LOTE-20240114", "validade", 2, "25.00", day(2024, 1, 15)),
		lossLine(10, "Praia", "LOTE-20240114", "validade", 1, "12.50", day(2024, 1, 16)),
		lossLine(20, "Centro", "LOTE-20240113", "validade", 4, "50.00", day(2024, 1, 14)),
		lossLine(20, "Centro", "LOTE-20240110", "validade", 1, "12.50", day(2024, 1, 12)),
	}
	delivered := []models.BatchDeliveryRow{
		{BatchNumber: "LOTE-20240114", Delivered: 20},
		{BatchNumber: "LOTE-20240113", Delivered: 3},
	}

	out := BuildBatchLoss(losses, delivered)

	require.Len(t, out, 3)
	assert.Equal(t, BatchLoss{
		BatchNumber:    "LOTE-20240114",
		Produced:       20,
		Sold:           17,
		Lost:           3,
		LossPercentage: 15,
		AffectedStores: []string{"Centro", "Praia"},
		ProductionDate: "2024-01-14",
	}, out[0])

	// more lost than delivered: sold floors at zero
	assert.Equal(t, "LOTE-20240113", out[1].BatchNumber)
	assert.Equal(t, 0, out[1].Sold)
	assert.Equal(t, 133, out[1].LossPercentage)

	// no deliveries recorded for the batch
	assert.Equal(t, "LOTE-20240110", out[2].BatchNumber)
	assert.Equal(t, 0, out[2].Produced)
	assert.Equal(t, 0, out[2].LossPercentage)
}

func TestBuildComparative(t *testing.T) {
	out := BuildComparative(reportStores, reportShipmentLines(), "2024-01-01 to 2024-01-31")

	require.Len(t, out, 3)
	assert.Equal(t, []string{"Centro", "Praia", "Shopping"}, []string{out[0].StoreName, out[1].StoreName, out[2].StoreName})
	assert.Equal(t, 80, out[0].EfficiencyRate)
	assert.Equal(t, -2, out[0].Difference)
	assert.Equal(t, 8, out[0].Produced)
	assert.Equal(t, 125, out[1].EfficiencyRate)
	assert.Equal(t, 0, out[2].EfficiencyRate)
	assert.Equal(t, "2024-01-01 to 2024-01-31", out[2].Period)
}

func TestCorrectedLossesStayOutOfTotals(t *testing.T) {
	completed := lossLine(20, "Centro", "LOTE-20240114", "validade", 2, "25.00", day(2024, 1, 15))
	corrected := lossLine(20, "Centro", "LOTE-20240113", "vencimento", 5, "62.50", day(2024, 1, 15))
	corrected.Status = models.LossStatusCorrected
	all := []models.LossLineRow{completed, corrected}

	summary := BuildDaySummary("2024-01-15", reportShipmentLines(), all)
	assert.Equal(t, 2, summary.TotalLost)
	assert.Equal(t, "25.00", summary.TotalValueLost.StringFixed(2))

	report := BuildLossReport(all)
	assert.Equal(t, 2, report.TotalLost)
	assert.Len(t, report.DetailedLosses, 1)

	assert.Equal(t,
		BuildEfficiency(reportStores, reportShipmentLines(), []models.LossLineRow{completed}),
		BuildEfficiency(reportStores, reportShipmentLines(), all))

	batches := BuildBatchLoss(all, nil)
	require.Len(t, batches, 1)
	assert.Equal(t, "LOTE-20240114", batches[0].BatchNumber)
}

func newReportFixture(detailCap int) (*ReportService, *MockCatalog, *MockReportRepository, *memoryKV) {
	catalog := new(MockCatalog)
	repo := new(MockReportRepository)
	kv := newMemoryKV()
	svc := NewReportService(catalog, repo, kv, time.Minute, detailCap, nil)
	svc.now = fixedNow
	return svc, catalog, repo, kv
}

func TestDaySummaryIsCached(t *testing.T) {
	svc, _, repo, kv := newReportFixture(20)
	repo.On("ShipmentLines", mock.Anything, day(2024, 1, 15), day(2024, 1, 15), int64(0)).Return(reportShipmentLines(), nil).Once()
	repo.On("LossLines", mock.Anything, day(2024, 1, 15), day(2024, 1, 15), int64(0)).Return([]models.LossLineRow{}, nil).Once()

	first, err := svc.DaySummary(context.Background(), ReportFilter{})
	require.NoError(t, err)
	second, err := svc.DaySummary(context.Background(), ReportFilter{Date: "2024-01-15"})
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Contains(t, kv.reports, "day-summary:2024-01-15:2024-01-15:0")
	repo.AssertExpectations(t)
}

func TestWriteDropsCachedReportsBeforePublishing(t *testing.T) {
	svc, _, repo, kv := newReportFixture(20)
	repo.On("ShipmentLines", mock.Anything, day(2024, 1, 15), day(2024, 1, 15), int64(0)).Return(reportShipmentLines(), nil).Twice()
	repo.On("LossLines", mock.Anything, day(2024, 1, 15), day(2024, 1, 15), int64(0)).Return([]models.LossLineRow{}, nil).Once()
	repo.On("LossLines", mock.Anything, day(2024, 1, 15), day(2024, 1, 15), int64(0)).Return(
		[]models.LossLineRow{lossLine(20, "Centro", "LOTE-20240114", "validade", 2, "29.00", day(2024, 1, 15))}, nil).Once()

	ctx := context.Background()
	before, err := svc.DaySummary(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, before.TotalLost)

	bus := &nopPublisher{}
	publisher := NewInvalidatingPublisher(bus, kv)
	require.NoError(t, publisher.PublishLossRecorded(ctx, &models.LossRecordedEvent{
		BaseEvent: models.BaseEvent{EventID: "evt-1", EventType: models.EventTypeLossRecorded},
		LossID:    9,
		StoreID:   20,
	}))
	assert.Empty(t, kv.reports)
	require.Len(t, bus.losses, 1)

	after, err := svc.DaySummary(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, after.TotalLost)
	repo.AssertExpectations(t)
}

type failingInvalidator struct{}

func (failingInvalidator) InvalidateReports(context.Context) (int64, error) {
	return 0, errors.New("redis down")
}

func TestPublishSurvivesInvalidationFailure(t *testing.T) {
	bus := &nopPublisher{}
	publisher := NewInvalidatingPublisher(bus, failingInvalidator{})

	err := publisher.PublishShipmentShipped(context.Background(), &models.ShipmentShippedEvent{
		BaseEvent:  models.BaseEvent{EventID: "evt-2", EventType: models.EventTypeShipmentShipped},
		ShipmentID: 4,
	})

	require.NoError(t, err)
	assert.Len(t, bus.shipped, 1)
}

func TestEfficiencyDefaultRangeAndStoreFilter(t *testing.T) {
	svc, catalog, repo, _ := newReportFixture(20)
	catalog.On("GetStore", mock.Anything, int64(10)).Return(&reportStores[0], nil)
	repo.On("ShipmentLines", mock.Anything, day(2023, 12, 16), day(2024, 1, 15), int64(10)).Return(reportShipmentLines()[2:], nil)
	repo.On("LossLines", mock.Anything, day(2023, 12, 16), day(2024, 1, 15), int64(10)).Return([]models.LossLineRow{}, nil)

	out, err := svc.Efficiency(context.Background(), ReportFilter{StoreID: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 100, out[0].Efficiency)
	catalog.AssertNotCalled(t, "ListStores", mock.Anything)
}

func TestBatchLossHonorsStoreFilter(t *testing.T) {
	svc, _, repo, _ := newReportFixture(20)
	repo.On("LossLines", mock.Anything, day(2023, 12, 16), day(2024, 1, 15), int64(20)).
		Return([]models.LossLineRow{lossLine(20, "Centro", "LOTE-20240114", "validade", 2, "25.00", day(2024, 1, 15))}, nil)
	repo.On("DeliveredByBatch", mock.Anything, []string{"LOTE-20240114"}, int64(20)).
		Return([]models.BatchDeliveryRow{{BatchNumber: "LOTE-20240114", Delivered: 10}}, nil)

	out, err := svc.BatchLoss(context.Background(), ReportFilter{StoreID: 20})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 10, out[0].Produced)
	assert.Equal(t, 8, out[0].Sold)
	assert.Equal(t, 20, out[0].LossPercentage)
	repo.AssertExpectations(t)
}

func TestReportRangeValidation(t *testing.T) {
	svc, _, _, _ := newReportFixture(20)

	_, err := svc.LossReport(context.Background(), ReportFilter{StartDate: "2024-01-20", EndDate: "2024-01-10"})
	assert.True(t, IsValidation(err))

	_, err = svc.Comparative(context.Background(), ReportFilter{StartDate: "yesterday"})
	assert.True(t, IsValidation(err))
}

func manyLosses(n int) []models.LossLineRow {
	lines := make([]models.LossLineRow, n)
	for i := range lines {
		lines[i] = lossLine(20, "Centro", "LOTE-20240114", "validade", 1, "12.50", day(2024, 1, 15))
	}
	return lines
}

func TestReportCapsLossDetailForDisplay(t *testing.T) {
	svc, _, repo, _ := newReportFixture(20)
	repo.On("LossLines", mock.Anything, mock.Anything, mock.Anything, int64(0)).Return(manyLosses(25), nil)

	out, err := svc.Report(context.Background(), ReportLosses, ReportFilter{})
	require.NoError(t, err)
	r := out.(*LossReport)
	assert.Len(t, r.DetailedLosses, 20)
	assert.Equal(t, 25, r.DetailedTotal)
	assert.Equal(t, 25, r.TotalLost)

	_, err = svc.Report(context.Background(), "weekly", ReportFilter{})
	assert.ErrorIs(t, err, ErrUnknownReport)
}

func TestExportXLSXKeepsFullDetail(t *testing.T) {
	svc, _, repo, _ := newReportFixture(20)
	repo.On("LossLines", mock.Anything, mock.Anything, mock.Anything, int64(0)).Return(manyLosses(25), nil)

	file, err := svc.Export(context.Background(), ReportLosses, FormatXLSX, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, "relatorio-losses-20240115.xlsx", file.Name)

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(ReportLosses)
	require.NoError(t, err)

	detailRows := 0
	for _, row := range rows {
		if len(row) > 0 && row[0] == "Centro" && len(row) == 7 {
			detailRows++
		}
	}
	assert.Equal(t, 25, detailRows)
}

func TestExportPDF(t *testing.T) {
	svc, catalog, repo, _ := newReportFixture(20)
	catalog.On("ListStores", mock.Anything).Return(reportStores, nil)
	repo.On("ShipmentLines", mock.Anything, mock.Anything, mock.Anything, int64(0)).Return(reportShipmentLines(), nil)

	file, err := svc.Export(context.Background(), ReportComparative, FormatPDF, ReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))

	_, err = svc.Export(context.Background(), ReportComparative, "csv", ReportFilter{})
	assert.True(t, IsValidation(err))
}

func TestExportTablesMarksDetail(t *testing.T) {
	tables, err := ExportTables(BuildLossReport(manyLosses(3)))
	require.NoError(t, err)
	require.Len(t, tables, 4)
	assert.False(t, tables[0].Detail)
	assert.True(t, tables[3].Detail)
	assert.Len(t, tables[3].Rows, 3)

	_, err = ExportTables(42)
	assert.ErrorIs(t, err, ErrUnknownReport)

}

func TestCorrectionsDelay(t *testing.T) {
	svc, _, repo, _ := newReportFixture(20)
	repo.On("ListCorrections", mock.Anything, 50).Return([]models.CorrectionRow{{
		Correction: models.Correction{ID: 1, LossDate: day(2024, 1, 10), CorrectionDate: day(2024, 1, 15)},
		StoreName:  "Centro",
	}}, nil)

	out, err := svc.Corrections(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].DelayDays)
}
