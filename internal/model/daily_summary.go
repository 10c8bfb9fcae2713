package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary is the materialized per-day rollup backing the admin
// dashboard. It is always recomputable from payment_records; the rollup
// job and daily_summary reads write it through.
type DailySummary struct {
	Date string `json:"date" gorm:"primaryKey;size:10"` // YYYY-MM-DD

	PendingCount  int `json:"pending_count" gorm:"not null;default:0"`
	ReceivedCount int `json:"received_count" gorm:"not null;default:0"`
	VerifiedCount int `json:"verified_count" gorm:"not null;default:0"`
	FailedCount   int `json:"failed_count" gorm:"not null;default:0"`
	RefundedCount int `json:"refunded_count" gorm:"not null;default:0"`
	DisputedCount int `json:"disputed_count" gorm:"not null;default:0"`

	OnlineTotal decimal.Decimal `json:"online_total" gorm:"type:decimal(20,2);not null;default:0"`
	CodTotal    decimal.Decimal `json:"cod_total" gorm:"type:decimal(20,2);not null;default:0"`
	CashTotal   decimal.Decimal `json:"cash_total" gorm:"type:decimal(20,2);not null;default:0"`
	CardTotal   decimal.Decimal `json:"card_total" gorm:"type:decimal(20,2);not null;default:0"`
	UpiTotal    decimal.Decimal `json:"upi_total" gorm:"type:decimal(20,2);not null;default:0"`

	MedicineTotal       decimal.Decimal `json:"medicine_total" gorm:"type:decimal(20,2);not null;default:0"`
	LabTestTotal        decimal.Decimal `json:"lab_test_total" gorm:"type:decimal(20,2);not null;default:0"`
	AppointmentTotal    decimal.Decimal `json:"appointment_total" gorm:"type:decimal(20,2);not null;default:0"`
	ConsultationTotal   decimal.Decimal `json:"consultation_total" gorm:"type:decimal(20,2);not null;default:0"`
	HomeCollectionTotal decimal.Decimal `json:"home_collection_total" gorm:"type:decimal(20,2);not null;default:0"`
	OtherTotal          decimal.Decimal `json:"other_total" gorm:"type:decimal(20,2);not null;default:0"`

	ComputedAt time.Time `json:"computed_at"`
}

// TableName matches the materialized view name used by the dashboards.
func (DailySummary) TableName() string {
	return "daily_summary"
}
