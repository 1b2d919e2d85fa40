package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliveryLine is the cumulative quantity production has sent for one salad type
type DeliveryLine struct {
	SaladTypeID int64 `json:"salad_type_id" binding:"required"`
	Quantity    int   `json:"quantity"`
}

// ShipmentDetail is a shipment with its requested items and recorded deliveries
type ShipmentDetail struct {
	Shipment   Shipment       `json:"shipment"`
	Items      []ShipmentItem `json:"items"`
	Deliveries []Delivery     `json:"deliveries"`
}

// DailyBoardRows is the raw snapshot production works from for one date
type DailyBoardRows struct {
	Shipments  []Shipment
	Items      []ShipmentItem
	Deliveries []Delivery
}

// LossWriteResult describes what a loss submission changed
type LossWriteResult struct {
	Loss        *Loss      `json:"loss,omitempty"`
	Merged      bool       `json:"merged"`
	Inserted    int        `json:"inserted_lines"`
	MergedLines int        `json:"merged_lines"`
	Skipped     []LossItem `json:"skipped,omitempty"`
}

// ShipmentLineRow is one requested line joined with its store and delivery, used by reports
type ShipmentLineRow struct {
	ShipmentID  int64           `db:"shipment_id"`
	StoreID     int64           `db:"store_id"`
	StoreName   string          `db:"store_name"`
	SaladTypeID int64           `db:"salad_type_id"`
	SaladName   string          `db:"salad_name"`
	Requested   int             `db:"requested"`
	Delivered   int             `db:"delivered"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
}

// LossLineRow is one loss item joined with its parent, store and salad type
type LossLineRow struct {
	LossID      int64           `db:"loss_id"`
	LossNumber  string          `db:"loss_number"`
	StoreID     int64           `db:"store_id"`
	StoreName   string          `db:"store_name"`
	LossDate    time.Time       `db:"loss_date"`
	Status      string          `db:"status"`
	SaladTypeID int64           `db:"salad_type_id"`
	SaladName   string          `db:"salad_name"`
	Quantity    int             `db:"quantity"`
	BatchNumber string          `db:"batch_number"`
	Reason      string          `db:"reason"`
	LossValue   decimal.Decimal `db:"loss_value"`
	Notes       string          `db:"notes"`
}

// BatchDeliveryRow is the quantity delivered under one batch number
type BatchDeliveryRow struct {
	BatchNumber string `db:"batch_number"`
	Delivered   int    `db:"delivered"`
}

// CorrectionRow is a correction with display names, newest first
type CorrectionRow struct {
	Correction
	StoreName       string `db:"store_name" json:"store_name"`
	SaladName       string `db:"salad_name" json:"salad_name"`
	CorrectedByName string `db:"corrected_by_name" json:"corrected_by_name"`
	LossNumber      string `db:"loss_number" json:"loss_number"`
}

// DelayDays is how many days after the loss the correction was entered
func (c CorrectionRow) DelayDays() int {
	return int(c.CorrectionDate.Sub(c.LossDate).Hours() / 24)
}
