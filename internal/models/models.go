package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Profile is the access role that decides which dashboard a user reaches
type Profile string

const (
	ProfileAdmin      Profile = "admin"
	ProfileProduction Profile = "producao"
	ProfileStore      Profile = "lojas"
)

// Valid reports whether p is one of the known profiles
func (p Profile) Valid() bool {
	switch p {
	case ProfileAdmin, ProfileProduction, ProfileStore:
		return true
	}
	return false
}

// Store is the tenant every order and loss is scoped to
type Store struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User represents an authenticated person; Profile is resolved through profiles.username
type User struct {
	ID           int64         `db:"id" json:"id"`
	Email        string        `db:"email" json:"email"`
	FullName     string        `db:"full_name" json:"full_name"`
	PasswordHash string        `db:"password_hash" json:"-"`
	ProfileID    int64         `db:"profile_id" json:"profile_id"`
	Profile      Profile       `db:"profile" json:"profile"`
	StoreID      sql.NullInt64 `db:"store_id" json:"-"`
	StoreName    string        `db:"store_name" json:"store_name,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// SaladType is a catalog item
type SaladType struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	SalePrice     decimal.Decimal `db:"sale_price" json:"sale_price"`
	ValidityDays  int             `db:"validity_days" json:"validity_days"`
	RequiresSauce bool            `db:"requires_sauce" json:"requires_sauce"`
}

// Sauce is an optional pairing for salad types
type Sauce struct {
	ID    int64           `db:"id" json:"id"`
	Name  string          `db:"name" json:"name"`
	Price decimal.Decimal `db:"price" json:"price"`
}

// Shipment is a store order for production
type Shipment struct {
	ID             int64        `db:"id" json:"id"`
	ShipmentNumber string       `db:"shipment_number" json:"shipment_number"`
	StoreID        int64        `db:"store_id" json:"store_id"`
	StoreName      string       `db:"store_name" json:"store_name,omitempty"`
	Status         string       `db:"status" json:"status"`
	RequestedDate  time.Time    `db:"requested_date" json:"requested_date"`
	FulfilledDate  sql.NullTime `db:"fulfilled_date" json:"-"`
	TotalItems     int          `db:"total_items" json:"total_items"`
	Notes          string       `db:"notes" json:"notes"`
	CreatedBy      int64        `db:"created_by" json:"created_by"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// ShipmentItem is a requested line of a shipment
type ShipmentItem struct {
	ID          int64           `db:"id" json:"id"`
	ShipmentID  int64           `db:"shipment_id" json:"shipment_id"`
	SaladTypeID int64           `db:"salad_type_id" json:"salad_type_id"`
	SaladName   string          `db:"salad_name" json:"salad_name,omitempty"`
	SauceID     sql.NullInt64   `db:"sauce_id" json:"-"`
	Quantity    int             `db:"quantity" json:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// Delivery is production's record of what was sent for one shipment line.
// (shipment_id, salad_type_id) is unique.
type Delivery struct {
	ID                int64     `db:"id" json:"id"`
	ShipmentID        int64     `db:"shipment_id" json:"shipment_id"`
	SaladTypeID       int64     `db:"salad_type_id" json:"salad_type_id"`
	RequestedQuantity int       `db:"requested_quantity" json:"requested_quantity"`
	DeliveredQuantity int       `db:"delivered_quantity" json:"delivered_quantity"`
	BatchNumber       string    `db:"batch_number" json:"batch_number"`
	DeliveredBy       int64     `db:"delivered_by" json:"delivered_by"`
	DeliveredAt       time.Time `db:"delivered_at" json:"delivered_at"`
}

// Loss is a store's spoilage record for a day
type Loss struct {
	ID         int64           `db:"id" json:"id"`
	LossNumber string          `db:"loss_number" json:"loss_number"`
	StoreID    int64           `db:"store_id" json:"store_id"`
	LossDate   time.Time       `db:"loss_date" json:"loss_date"`
	Status     string          `db:"status" json:"status"`
	TotalItems int             `db:"total_items" json:"total_items"`
	TotalValue decimal.Decimal `db:"total_value" json:"total_value"`
	Notes      string          `db:"notes" json:"notes"`
	CreatedBy  int64           `db:"created_by" json:"created_by"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// LossItem is a line of a loss. store_id and loss_date are copied from the
// parent so a (store, day, salad, batch, reason) line can be kept unique.
type LossItem struct {
	ID          int64           `db:"id" json:"id"`
	LossID      int64           `db:"loss_id" json:"loss_id"`
	StoreID     int64           `db:"store_id" json:"store_id"`
	LossDate    time.Time       `db:"loss_date" json:"loss_date"`
	SaladTypeID int64           `db:"salad_type_id" json:"salad_type_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	BatchNumber string          `db:"batch_number" json:"batch_number"`
	Reason      string          `db:"reason" json:"reason"`
	LossValue   decimal.Decimal `db:"loss_value" json:"loss_value"`
	Notes       string          `db:"notes" json:"notes"`
}

// Correction is the audit trail of an admin-entered late loss
type Correction struct {
	ID               int64           `db:"id" json:"id"`
	LossID           int64           `db:"loss_id" json:"loss_id"`
	StoreID          int64           `db:"store_id" json:"store_id"`
	SaladTypeID      int64           `db:"salad_type_id" json:"salad_type_id"`
	Quantity         int             `db:"quantity" json:"quantity"`
	BatchDate        time.Time       `db:"batch_date" json:"batch_date"`
	LossDate         time.Time       `db:"loss_date" json:"loss_date"`
	CorrectionDate   time.Time       `db:"correction_date" json:"correction_date"`
	LossReason       string          `db:"loss_reason" json:"loss_reason"`
	CorrectionReason string          `db:"correction_reason" json:"correction_reason"`
	CorrectedBy      int64           `db:"corrected_by" json:"corrected_by"`
	TotalValue       decimal.Decimal `db:"total_value" json:"total_value"`
	Notes            string          `db:"notes" json:"notes"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// AuditEntry is one line of the audit log written from domain events
type AuditEntry struct {
	ID         int64     `db:"id" json:"id"`
	EventID    string    `db:"event_id" json:"event_id"`
	EventType  string    `db:"event_type" json:"event_type"`
	EntityType string    `db:"entity_type" json:"entity_type"`
	EntityID   int64     `db:"entity_id" json:"entity_id"`
	StoreID    int64     `db:"store_id" json:"store_id"`
	ActorID    int64     `db:"actor_id" json:"actor_id"`
	Summary    string    `db:"summary" json:"summary"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Shipment statuses
const (
	ShipmentStatusPending = "pending"
	ShipmentStatusShipped = "shipped"
)

// Loss statuses
const (
	LossStatusCompleted = "completed"
	LossStatusCorrected = "corrected"
)

// Loss reasons offered to stores
var LossReasons = []string{"validade", "qualidade", "manuseio", "contaminacao", "outros"}

// Loss reasons offered on the admin correction form
var CorrectionLossReasons = []string{"vencimento", "qualidade", "avaria", "contaminacao", "outro"}

// Why a correction had to be entered by an admin
var CorrectionReasons = []string{"loja_esqueceu", "funcionario_ausente", "erro_sistema", "outro"}

// LossPolicy decides what happens to a second loss submission on the same day
type LossPolicy string

const (
	LossPolicyMergeByDay LossPolicy = "merge-by-day"
	LossPolicyAlwaysNew  LossPolicy = "always-new"
)

func (p LossPolicy) Valid() bool {
	return p == LossPolicyMergeByDay || p == LossPolicyAlwaysNew
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
