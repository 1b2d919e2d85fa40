package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"saladas-service/internal/export"
	"saladas-service/internal/models"
	"saladas-service/internal/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Report kinds served under /reports/:type
const (
	ReportDaySummary  = "day-summary"
	ReportLosses      = "losses"
	ReportEfficiency  = "efficiency"
	ReportBatchLoss   = "batch-loss"
	ReportComparative = "comparative"
	ReportCorrections = "corrections"
	ReportAudit       = "audit"
)

// Export formats
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

const (
	defaultRangeDays = 30
	listReportLimit  = 50
)

var reportTitles = map[string]string{
	ReportDaySummary:  "Day summary",
	ReportLosses:      "Loss report",
	ReportEfficiency:  "Store efficiency",
	ReportBatchLoss:   "Losses by batch",
	ReportComparative: "Requested vs sent by store",
	ReportCorrections: "Loss corrections",
	ReportAudit:       "Audit log",
}

// ReportFilter is the admin dashboard filter. Date is used by the day
// summary, StartDate/EndDate by range reports; StoreID 0 means all stores.
type ReportFilter struct {
	Date      string `form:"date"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	StoreID   int64  `form:"store_id"`
}

type reportRange struct {
	from, to time.Time
	storeID  int64
}

func (r reportRange) key(kind string) string {
	return fmt.Sprintf("%s:%s:%s:%d", kind, r.from.Format(dateLayout), r.to.Format(dateLayout), r.storeID)
}

func (r reportRange) period() string {
	return r.from.Format(dateLayout) + " to " + r.to.Format(dateLayout)
}

// ReportService aggregates shipment, delivery and loss rows into admin reports
type ReportService struct {
	catalog   CatalogRepository
	repo      ReportRepository
	cache     ReportCache
	cacheTTL  time.Duration
	detailCap int
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService creates a new report service
func NewReportService(
	catalog CatalogRepository,
	repo ReportRepository,
	cache ReportCache,
	cacheTTL time.Duration,
	detailCap int,
	location *time.Location,
) *ReportService {
	return &ReportService{
		catalog:   catalog,
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		detailCap: detailCap,
		location:  location,
		logger:    util.GetLogger(),
		now:       time.Now,
	}
}

// SaladTypeSummary is one salad type of the day summary
type SaladTypeSummary struct {
	SaladType  string `json:"salad_type"`
	Requested  int    `json:"requested"`
	Produced   int    `json:"produced"`
	Sent       int    `json:"sent"`
	Difference int    `json:"difference"`
}

// StoreDivergence is an order line where the sent quantity differs from the requested one
type StoreDivergence struct {
	StoreName  string `json:"store_name"`
	SaladType  string `json:"salad_type"`
	Requested  int    `json:"requested"`
	Sent       int    `json:"sent"`
	Difference int    `json:"difference"`
}

// DaySummary compares what stores requested with what was sent and lost on one date
type DaySummary struct {
	Date               string             `json:"date"`
	SaladsRequested    int                `json:"salads_requested"`
	SaladsProduced     int                `json:"salads_produced"`
	SaladsSent         int                `json:"salads_sent"`
	Difference         int                `json:"difference"`
	TotalLost          int                `json:"total_lost"`
	TotalValueLost     decimal.Decimal    `json:"total_value_lost"`
	SaladsByType       []SaladTypeSummary `json:"salads_by_type"`
	DivergencesByStore []StoreDivergence  `json:"divergences_by_store"`
}

// StoreLoss totals losses for one store
type StoreLoss struct {
	StoreName string          `json:"store_name"`
	Quantity  int             `json:"quantity"`
	Value     decimal.Decimal `json:"value"`
}

// ReasonLoss totals losses for one reason
type ReasonLoss struct {
	Reason   string `json:"reason"`
	Quantity int    `json:"quantity"`
}

// DetailedLoss is one loss line
type DetailedLoss struct {
	StoreName   string          `json:"store_name"`
	SaladType   string          `json:"salad_type"`
	BatchNumber string          `json:"batch_number"`
	Reason      string          `json:"reason"`
	Quantity    int             `json:"quantity"`
	Date        string          `json:"date"`
	Value       decimal.Decimal `json:"value"`
}

// LossReport totals losses over a period
type LossReport struct {
	Period         string          `json:"period"`
	TotalLost      int             `json:"total_lost"`
	TotalValue     decimal.Decimal `json:"total_value"`
	LossesByStore  []StoreLoss     `json:"losses_by_store"`
	LossesByReason []ReasonLoss    `json:"losses_by_reason"`
	DetailedLosses []DetailedLoss  `json:"detailed_losses"`
	DetailedTotal  int             `json:"detailed_total"`
}

// StoreEfficiency is the share of sent salads that were not lost
type StoreEfficiency struct {
	StoreName      string          `json:"store_name"`
	Sent           int             `json:"sent"`
	Lost           int             `json:"lost"`
	Efficiency     int             `json:"efficiency"`
	EstimatedSales decimal.Decimal `json:"estimated_sales"`
}

// BatchLoss relates the losses of a batch to what was delivered from it
type BatchLoss struct {
	BatchNumber    string   `json:"batch_number"`
	Produced       int      `json:"produced"`
	Sold           int      `json:"sold"`
	Lost           int      `json:"lost"`
	LossPercentage int      `json:"loss_percentage"`
	AffectedStores []string `json:"affected_stores"`
	ProductionDate string   `json:"production_date"`
}

// StoreComparison compares requested and sent quantities for one store
type StoreComparison struct {
	StoreID        int64  `json:"store_id"`
	StoreName      string `json:"store_name"`
	Period         string `json:"period"`
	Requested      int    `json:"requested"`
	Produced       int    `json:"produced"`
	Sent           int    `json:"sent"`
	Difference     int    `json:"difference"`
	EfficiencyRate int    `json:"efficiency_rate"`
}

// CorrectionEntry is a correction with how late it was entered
type CorrectionEntry struct {
	models.CorrectionRow
	DelayDays int `json:"delay_days"`
}

// DaySummary builds the summary for one date (empty means today)
func (s *ReportService) DaySummary(ctx context.Context, f ReportFilter) (*DaySummary, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.DaySummary")
	defer span.End()

	date, err := s.parseOptionalDate("date", f.Date)
	if err != nil {
		return nil, err
	}
	r := reportRange{from: date, to: date, storeID: f.StoreID}

	return cachedReport(ctx, s, ReportDaySummary, r, func(ctx context.Context) (*DaySummary, error) {
		shipments, err := s.repo.ShipmentLines(ctx, r.from, r.to, r.storeID)
		if err != nil {
			return nil, err
		}
		losses, err := s.repo.LossLines(ctx, r.from, r.to, r.storeID)
		if err != nil {
			return nil, err
		}
		return BuildDaySummary(date.Format(dateLayout), shipments, losses), nil
	})
}

// LossReport builds the loss totals for a period with the full detail list
func (s *ReportService) LossReport(ctx context.Context, f ReportFilter) (*LossReport, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.LossReport")
	defer span.End()

	r, err := s.parseRange(f)
	if err != nil {
		return nil, err
	}

	return cachedReport(ctx, s, ReportLosses, r, func(ctx context.Context) (*LossReport, error) {
		lines, err := s.repo.LossLines(ctx, r.from, r.to, r.storeID)
		if err != nil {
			return nil, err
		}
		report := BuildLossReport(lines)
		report.Period = r.period()
		return report, nil
	})
}

// Efficiency ranks stores by the share of sent salads that were not lost
func (s *ReportService) Efficiency(ctx context.Context, f ReportFilter) ([]StoreEfficiency, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Efficiency")
	defer span.End()

	r, err := s.parseRange(f)
	if err != nil {
		return nil, err
	}

	return cachedReport(ctx, s, ReportEfficiency, r, func(ctx context.Context) ([]StoreEfficiency, error) {
		stores, err := s.storesFor(ctx, r.storeID)
		if err != nil {
			return nil, err
		}
		shipments, err := s.repo.ShipmentLines(ctx, r.from, r.to, r.storeID)
		if err != nil {
			return nil, err
		}
		losses, err := s.repo.LossLines(ctx, r.from, r.to, r.storeID)
		if err != nil {
			return nil, err
		}
		return BuildEfficiency(stores, shipments, losses), nil
	})
}

// BatchLoss groups losses by batch number and compares them with deliveries of the same batch
func (s *ReportService) BatchLoss(ctx context.Context, f ReportFilter) ([]BatchLoss, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.BatchLoss")
	defer span.End()

	r, err := s.parseRange(f)
	if err != nil {
		return nil, err
	}

	return cachedReport(ctx, s, ReportBatchLoss, r, func(ctx context.Context) ([]BatchLoss, error) {
		losses, err := s.repo.LossLines(ctx, r.from, r.to, r.storeID)
		if err != nil {
			return nil, err
		}
		batches := make([]string, 0, len(losses))
		seen := make(map[string]bool, len(losses))
		for _, l := range losses {
			if !seen[l.BatchNumber] {
				seen[l.BatchNumber] = true
				batches = append(batches, l.BatchNumber)
			}
		}
		delivered, err := s.repo.DeliveredByBatch(ctx, batches, r.storeID)
		if err != nil {
			return nil, err
		}
		return BuildBatchLoss(losses, delivered), nil
	})
}

// Comparative compares requested and sent quantities per store, sorted by name
func (s *ReportService) Comparative(ctx context.Context, f ReportFilter) ([]StoreComparison, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Comparative")
	defer span.End()

	r, err := s.parseRange(f)
	if err != nil {
		return nil, err
	}

	return cachedReport(ctx, s, ReportComparative, r, func(ctx context.Context) ([]StoreComparison, error) {
		stores, err := s.storesFor(ctx, r.storeID)
		if err != nil {
			return nil, err
		}
		shipments, err := s.repo.ShipmentLines(ctx, r.from, r.to, r.storeID)
		if err != nil {
			return nil, err
		}
		return BuildComparative(stores, shipments, r.period()), nil
	})
}

// Corrections lists the latest admin corrections
func (s *ReportService) Corrections(ctx context.Context) ([]CorrectionEntry, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Corrections")
	defer span.End()

	rows, err := s.repo.ListCorrections(ctx, listReportLimit)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list corrections: %w", err)
	}
	entries := make([]CorrectionEntry, len(rows))
	for i, row := range rows {
		entries[i] = CorrectionEntry{CorrectionRow: row, DelayDays: row.DelayDays()}
	}
	return entries, nil
}

// Audit lists the latest audit log entries
func (s *ReportService) Audit(ctx context.Context) ([]models.AuditEntry, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Audit")
	defer span.End()

	entries, err := s.repo.ListAudit(ctx, listReportLimit)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return entries, nil
}

// Report returns a report as shown on the dashboard; the loss detail list is
// capped at the configured row count.
func (s *ReportService) Report(ctx context.Context, kind string, f ReportFilter) (interface{}, error) {
	report, err := s.build(ctx, kind, f)
	if err != nil {
		return nil, err
	}
	if lr, ok := report.(*LossReport); ok && s.detailCap > 0 && len(lr.DetailedLosses) > s.detailCap {
		capped := *lr
		capped.DetailedLosses = lr.DetailedLosses[:s.detailCap]
		return &capped, nil
	}
	return report, nil
}

// ExportFile is a rendered report ready to download
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Export renders a report as a spreadsheet (every row) or a PDF (detail tables capped)
func (s *ReportService) Export(ctx context.Context, kind, format string, f ReportFilter) (*ExportFile, error) {
	ctx, span := util.StartSpan(ctx, "ReportService.Export")
	defer span.End()

	if format != FormatXLSX && format != FormatPDF {
		return nil, invalid("format", "format must be %s or %s", FormatXLSX, FormatPDF)
	}

	report, err := s.build(ctx, kind, f)
	if err != nil {
		return nil, err
	}
	tables, err := ExportTables(report)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.locationOrUTC())
	name := fmt.Sprintf("relatorio-%s-%s.%s", kind, now.Format("20060102"), format)
	var buf bytes.Buffer

	switch format {
	case FormatXLSX:
		if err := export.WriteXLSX(&buf, kind, tables); err != nil {
			return nil, err
		}
		return &ExportFile{Name: name, ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", Data: buf.Bytes()}, nil
	default:
		doc := export.NewPDF(reportTitles[kind], now)
		for _, t := range tables {
			limit := 0
			if t.Detail {
				limit = s.detailCap
			}
			doc.AddSection(t, limit)
		}
		if err := doc.Write(&buf); err != nil {
			return nil, err
		}
		return &ExportFile{Name: name, ContentType: "application/pdf", Data: buf.Bytes()}, nil
	}
}

func (s *ReportService) build(ctx context.Context, kind string, f ReportFilter) (interface{}, error) {
	switch kind {
	case ReportDaySummary:
		return s.DaySummary(ctx, f)
	case ReportLosses:
		return s.LossReport(ctx, f)
	case ReportEfficiency:
		return s.Efficiency(ctx, f)
	case ReportBatchLoss:
		return s.BatchLoss(ctx, f)
	case ReportComparative:
		return s.Comparative(ctx, f)
	case ReportCorrections:
		return s.Corrections(ctx)
	case ReportAudit:
		return s.Audit(ctx)
	}
	return nil, ErrUnknownReport
}

// cachedReport serves a report from the cache or builds and stores it.
// Cache failures are logged and the report is built from the database.
func cachedReport[T any](ctx context.Context, s *ReportService, kind string, r reportRange, build func(context.Context) (T, error)) (T, error) {
	key := r.key(kind)

	var cached T
	if s.cache != nil {
		hit, err := s.cache.GetReport(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("Failed to read cached report", zap.String("key", key), zap.Error(err))
		} else if hit {
			util.ReportCacheHitsTotal.WithLabelValues(kind).Inc()
			return cached, nil
		}
	}

	timer := prometheus.NewTimer(util.ReportLatency.WithLabelValues(kind))
	report, err := build(ctx)
	timer.ObserveDuration()
	if err != nil {
		var zero T
		s.logger.Error("Failed to build report", zap.String("report", kind), zap.Error(err))
		return zero, fmt.Errorf("failed to build %s report: %w", kind, err)
	}

	if s.cache != nil {
		if err := s.cache.SetReport(ctx, key, report, s.cacheTTL); err != nil {
			s.logger.Warn("Failed to cache report", zap.String("key", key), zap.Error(err))
		}
	}
	return report, nil
}

func (s *ReportService) storesFor(ctx context.Context, storeID int64) ([]models.Store, error) {
	if storeID > 0 {
		st, err := s.catalog.GetStore(ctx, storeID)
		if err != nil {
			return nil, err
		}
		return []models.Store{*st}, nil
	}
	return s.catalog.ListStores(ctx)
}

func (s *ReportService) parseOptionalDate(field, raw string) (time.Time, error) {
	if raw == "" {
		return today(s.now(), s.location), nil
	}
	return parseDateField(field, raw)
}

// parseRange defaults to the last 30 days ending today
func (s *ReportService) parseRange(f ReportFilter) (reportRange, error) {
	to, err := s.parseOptionalDate("end_date", f.EndDate)
	if err != nil {
		return reportRange{}, err
	}
	from := to.AddDate(0, 0, -defaultRangeDays)
	if f.StartDate != "" {
		if from, err = parseDateField("start_date", f.StartDate); err != nil {
			return reportRange{}, err
		}
	}
	if from.After(to) {
		return reportRange{}, invalid("start_date", "start date cannot be after end date")
	}
	return reportRange{from: from, to: to, storeID: f.StoreID}, nil
}

func (s *ReportService) locationOrUTC() *time.Location {
	if s.location == nil {
		return time.UTC
	}
	return s.location
}

// countedLosses keeps store-recorded losses. Admin corrections have their own report.
func countedLosses(lines []models.LossLineRow) []models.LossLineRow {
	out := make([]models.LossLineRow, 0, len(lines))
	for _, l := range lines {
		if l.Status == models.LossStatusCompleted {
			out = append(out, l)
		}
	}
	return out
}

// BuildDaySummary reduces one date's order lines and loss lines.
// Divergences keep only lines where sent differs from requested.
func BuildDaySummary(date string, shipments []models.ShipmentLineRow, losses []models.LossLineRow) *DaySummary {
	summary := &DaySummary{
		Date:               date,
		TotalValueLost:     decimal.Zero,
		SaladsByType:       []SaladTypeSummary{},
		DivergencesByStore: []StoreDivergence{},
	}

	byType := make(map[int64]*SaladTypeSummary)
	for _, line := range shipments {
		summary.SaladsRequested += line.Requested
		summary.SaladsSent += line.Delivered

		st, ok := byType[line.SaladTypeID]
		if !ok {
			st = &SaladTypeSummary{SaladType: line.SaladName}
			byType[line.SaladTypeID] = st
		}
		st.Requested += line.Requested
		st.Sent += line.Delivered
		st.Produced += line.Delivered

		if diff := line.Delivered - line.Requested; diff != 0 {
			summary.DivergencesByStore = append(summary.DivergencesByStore, StoreDivergence{
				StoreName:  line.StoreName,
				SaladType:  line.SaladName,
				Requested:  line.Requested,
				Sent:       line.Delivered,
				Difference: diff,
			})
		}
	}

	for _, st := range byType {
		st.Difference = st.Requested - st.Sent
		summary.SaladsByType = append(summary.SaladsByType, *st)
	}
	sort.Slice(summary.SaladsByType, func(i, j int) bool {
		return summary.SaladsByType[i].SaladType < summary.SaladsByType[j].SaladType
	})

	for _, l := range countedLosses(losses) {
		summary.TotalLost += l.Quantity
		summary.TotalValueLost = summary.TotalValueLost.Add(l.LossValue)
	}

	summary.SaladsProduced = summary.SaladsSent
	summary.Difference = summary.SaladsRequested - summary.SaladsSent
	return summary
}

// BuildLossReport groups loss lines by store and by reason and keeps every line as detail
func BuildLossReport(lines []models.LossLineRow) *LossReport {
	report := &LossReport{
		TotalValue:     decimal.Zero,
		LossesByStore:  []StoreLoss{},
		LossesByReason: []ReasonLoss{},
		DetailedLosses: make([]DetailedLoss, 0, len(lines)),
	}

	byStore := make(map[int64]*StoreLoss)
	byReason := make(map[string]int)
	for _, l := range countedLosses(lines) {
		report.TotalLost += l.Quantity
		report.TotalValue = report.TotalValue.Add(l.LossValue)

		st, ok := byStore[l.StoreID]
		if !ok {
			st = &StoreLoss{StoreName: l.StoreName, Value: decimal.Zero}
			byStore[l.StoreID] = st
		}
		st.Quantity += l.Quantity
		st.Value = st.Value.Add(l.LossValue)

		byReason[l.Reason] += l.Quantity

		report.DetailedLosses = append(report.DetailedLosses, DetailedLoss{
			StoreName:   l.StoreName,
			SaladType:   l.SaladName,
			BatchNumber: l.BatchNumber,
			Reason:      l.Reason,
			Quantity:    l.Quantity,
			Date:        l.LossDate.Format(dateLayout),
			Value:       l.LossValue,
		})
	}

	for _, st := range byStore {
		report.LossesByStore = append(report.LossesByStore, *st)
	}
	sort.Slice(report.LossesByStore, func(i, j int) bool {
		return report.LossesByStore[i].StoreName < report.LossesByStore[j].StoreName
	})

	for reason, qty := range byReason {
		report.LossesByReason = append(report.LossesByReason, ReasonLoss{Reason: reason, Quantity: qty})
	}
	sort.Slice(report.LossesByReason, func(i, j int) bool {
		a, b := report.LossesByReason[i], report.LossesByReason[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Reason < b.Reason
	})

	report.DetailedTotal = len(report.DetailedLosses)
	return report
}

// BuildEfficiency computes round((sent-lost)/sent*100) per store, 0 when nothing
// was sent, sorted from most to least efficient.
func BuildEfficiency(stores []models.Store, shipments []models.ShipmentLineRow, losses []models.LossLineRow) []StoreEfficiency {
	sent := make(map[int64]int)
	sales := make(map[int64]decimal.Decimal)
	for _, line := range shipments {
		sent[line.StoreID] += line.Delivered
		sales[line.StoreID] = sales[line.StoreID].Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Delivered))))
	}
	lost := make(map[int64]int)
	for _, l := range countedLosses(losses) {
		lost[l.StoreID] += l.Quantity
	}

	out := make([]StoreEfficiency, 0, len(stores))
	for _, st := range stores {
		e := StoreEfficiency{
			StoreName:      st.Name,
			Sent:           sent[st.ID],
			Lost:           lost[st.ID],
			EstimatedSales: sales[st.ID].Round(2),
		}
		if e.Sent > 0 {
			e.Efficiency = roundPercent(float64(e.Sent-e.Lost), float64(e.Sent))
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Efficiency > out[j].Efficiency
	})
	return out
}

// BuildBatchLoss groups loss lines by batch. Produced is what was delivered
// under the batch number, sold is produced minus lost (never negative).
func BuildBatchLoss(losses []models.LossLineRow, delivered []models.BatchDeliveryRow) []BatchLoss {
	produced := make(map[string]int, len(delivered))
	for _, d := range delivered {
		produced[d.BatchNumber] += d.Delivered
	}

	type batchAcc struct {
		lost      int
		stores    map[string]struct{}
		firstLoss time.Time
	}
	order := []string{}
	acc := make(map[string]*batchAcc)
	for _, l := range countedLosses(losses) {
		b, ok := acc[l.BatchNumber]
		if !ok {
			b = &batchAcc{stores: make(map[string]struct{}), firstLoss: l.LossDate}
			acc[l.BatchNumber] = b
			order = append(order, l.BatchNumber)
		}
		b.lost += l.Quantity
		b.stores[l.StoreName] = struct{}{}
		if l.LossDate.Before(b.firstLoss) {
			b.firstLoss = l.LossDate
		}
	}

	out := make([]BatchLoss, 0, len(order))
	for _, batch := range order {
		b := acc[batch]
		stores := make([]string, 0, len(b.stores))
		for name := range b.stores {
			stores = append(stores, name)
		}
		sort.Strings(stores)

		productionDate := b.firstLoss
		if d, err := BatchDate(batch); err == nil {
			productionDate = d
		}

		p := produced[batch]
		sold := p - b.lost
		if sold < 0 {
			sold = 0
		}
		out = append(out, BatchLoss{
			BatchNumber:    batch,
			Produced:       p,
			Sold:           sold,
			Lost:           b.lost,
			LossPercentage: roundPercent(float64(b.lost), float64(p)),
			AffectedStores: stores,
			ProductionDate: productionDate.Format(dateLayout),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductionDate != out[j].ProductionDate {
			return out[i].ProductionDate > out[j].ProductionDate
		}
		return out[i].BatchNumber < out[j].BatchNumber
	})
	return out
}

// BuildComparative computes round(sent/requested*100) per store, sorted by store name
func BuildComparative(stores []models.Store, shipments []models.ShipmentLineRow, period string) []StoreComparison {
	requested := make(map[int64]int)
	sent := make(map[int64]int)
	for _, line := range shipments {
		requested[line.StoreID] += line.Requested
		sent[line.StoreID] += line.Delivered
	}

	out := make([]StoreComparison, 0, len(stores))
	for _, st := range stores {
		c := StoreComparison{
			StoreID:   st.ID,
			StoreName: st.Name,
			Period:    period,
			Requested: requested[st.ID],
			Sent:      sent[st.ID],
			Produced:  sent[st.ID],
		}
		c.Difference = c.Sent - c.Requested
		c.EfficiencyRate = roundPercent(float64(c.Sent), float64(c.Requested))
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StoreName < out[j].StoreName
	})
	return out
}

// ExportTables turns a report into tabular sections. Header names follow the JSON field names.
func ExportTables(report interface{}) ([]export.Table, error) {
	switch r := report.(type) {
	case *DaySummary:
		tables := []export.Table{{
			Headers: []string{"date", "salads_requested", "salads_produced", "salads_sent", "difference", "total_lost", "total_value_lost"},
			Rows:    [][]interface{}{{r.Date, r.SaladsRequested, r.SaladsProduced, r.SaladsSent, r.Difference, r.TotalLost, r.TotalValueLost}},
		}}
		byType := export.Table{Title: "Salads by type", Headers: []string{"salad_type", "requested", "produced", "sent", "difference"}}
		for _, st := range r.SaladsByType {
			byType.Rows = append(byType.Rows, []interface{}{st.SaladType, st.Requested, st.Produced, st.Sent, st.Difference})
		}
		divergences := export.Table{Title: "Divergences by store", Headers: []string{"store_name", "salad_type", "requested", "sent", "difference"}, Detail: true}
		for _, d := range r.DivergencesByStore {
			divergences.Rows = append(divergences.Rows, []interface{}{d.StoreName, d.SaladType, d.Requested, d.Sent, d.Difference})
		}
		return append(tables, byType, divergences), nil

	case *LossReport:
		tables := []export.Table{{
			Headers: []string{"period", "total_lost", "total_value"},
			Rows:    [][]interface{}{{r.Period, r.TotalLost, r.TotalValue}},
		}}
		byStore := export.Table{Title: "Losses by store", Headers: []string{"store_name", "quantity", "value"}}
		for _, st := range r.LossesByStore {
			byStore.Rows = append(byStore.Rows, []interface{}{st.StoreName, st.Quantity, st.Value})
		}
		byReason := export.Table{Title: "Losses by reason", Headers: []string{"reason", "quantity"}}
		for _, rs := range r.LossesByReason {
			byReason.Rows = append(byReason.Rows, []interface{}{rs.Reason, rs.Quantity})
		}
		detail := export.Table{
			Title:   "Detailed losses",
			Headers: []string{"store_name", "salad_type", "batch_number", "reason", "quantity", "date", "value"},
			Detail:  true,
		}
		for _, d := range r.DetailedLosses {
			detail.Rows = append(detail.Rows, []interface{}{d.StoreName, d.SaladType, d.BatchNumber, d.Reason, d.Quantity, d.Date, d.Value})
		}
		return append(tables, byStore, byReason, detail), nil

	case []StoreEfficiency:
		t := export.Table{Headers: []string{"store_name", "sent", "lost", "efficiency", "estimated_sales"}}
		for _, e := range r {
			t.Rows = append(t.Rows, []interface{}{e.StoreName, e.Sent, e.Lost, e.Efficiency, e.EstimatedSales})
		}
		return []export.Table{t}, nil

	case []BatchLoss:
		t := export.Table{Headers: []string{"batch_number", "production_date", "produced", "sold", "lost", "loss_percentage", "affected_stores"}}
		for _, b := range r {
			t.Rows = append(t.Rows, []interface{}{b.BatchNumber, b.ProductionDate, b.Produced, b.Sold, b.Lost, b.LossPercentage, strings.Join(b.AffectedStores, ", ")})
		}
		return []export.Table{t}, nil

	case []StoreComparison:
		t := export.Table{Headers: []string{"store_name", "period", "requested", "produced", "sent", "difference", "efficiency_rate"}}
		for _, c := range r {
			t.Rows = append(t.Rows, []interface{}{c.StoreName, c.Period, c.Requested, c.Produced, c.Sent, c.Difference, c.EfficiencyRate})
		}
		return []export.Table{t}, nil

	case []CorrectionEntry:
		t := export.Table{
			Headers: []string{"correction_date", "store_name", "salad_name", "quantity", "loss_date", "delay_days", "loss_reason", "correction_reason", "corrected_by", "total_value"},
			Detail:  true,
		}
		for _, c := range r {
			t.Rows = append(t.Rows, []interface{}{c.CorrectionDate, c.StoreName, c.SaladName, c.Quantity, c.LossDate, c.DelayDays, c.LossReason, c.CorrectionReason, c.CorrectedByName, c.TotalValue})
		}
		return []export.Table{t}, nil

	case []models.AuditEntry:
		t := export.Table{Headers: []string{"created_at", "event_type", "entity_type", "entity_id", "store_id", "actor_id", "summary"}, Detail: true}
		for _, a := range r {
			t.Rows = append(t.Rows, []interface{}{a.CreatedAt.Format(time.RFC3339), a.EventType, a.EntityType, a.EntityID, a.StoreID, a.ActorID, a.Summary})
		}
		return []export.Table{t}, nil
	}
	return nil, ErrUnknownReport
}
