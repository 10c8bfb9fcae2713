package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

// PartySnapshot is a party's details frozen at issue time.
type PartySnapshot struct {
	Name    string `json:"name" gorm:"size:120"`
	Phone   string `json:"phone" gorm:"size:20"`
	Address string `json:"address" gorm:"size:500"`
}

// Invoice is issued at most once per settled payment. The unique index on
// PaymentRecordID is the hard backstop behind the generator's triple gate.
type Invoice struct {
	ID            uuid.UUID `json:"-" gorm:"type:char(36);primaryKey"`
	InvoiceNumber string    `json:"invoice_number" gorm:"size:32;not null;uniqueIndex"`

	// Year and Seq back per-year numbering; gaps in Seq are acceptable.
	Year int `json:"-" gorm:"not null;index:idx_invoice_year_seq"`
	Seq  int `json:"-" gorm:"not null;index:idx_invoice_year_seq"`

	PaymentRecordID uuid.UUID `json:"-" gorm:"type:char(36);not null;uniqueIndex"`
	PaymentID       string    `json:"payment_id" gorm:"size:32;not null;index"`

	Status   InvoiceStatus `json:"status" gorm:"type:varchar(10);not null;default:'issued'"`
	IssuedAt time.Time     `json:"issued_at"`

	Subtotal   decimal.Decimal `json:"subtotal" gorm:"type:decimal(20,2);not null"`
	Tax        decimal.Decimal `json:"tax" gorm:"type:decimal(20,2);not null"`
	GrandTotal decimal.Decimal `json:"grand_total" gorm:"type:decimal(20,2);not null"`

	Buyer  PartySnapshot `json:"buyer" gorm:"embedded;embeddedPrefix:buyer_"`
	Seller PartySnapshot `json:"seller" gorm:"embedded;embeddedPrefix:seller_"`

	LineItems []InvoiceLineItem `json:"line_items" gorm:"foreignKey:InvoiceID"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvoiceLineItem is one billed line on an invoice.
type InvoiceLineItem struct {
	ID          uuid.UUID       `json:"-" gorm:"type:char(36);primaryKey"`
	InvoiceID   uuid.UUID       `json:"-" gorm:"type:char(36);not null;index"`
	Description string          `json:"description" gorm:"size:255;not null"`
	Qty         int             `json:"qty" gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(20,2);not null"`
	TaxRate     decimal.Decimal `json:"tax_rate" gorm:"type:decimal(6,4);not null"`
}

// BeforeCreate sets UUID before creating the record.
func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// BeforeCreate sets UUID before creating the record.
func (li *InvoiceLineItem) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}

// FormatInvoiceNumber renders the human-readable number, e.g. INV-2026-42.
func FormatInvoiceNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%d-%d", prefix, year, seq)
}
