package model

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderKind identifies the business order a payment settles.
type OrderKind string

const (
	KindMedicine       OrderKind = "medicine"
	KindLabTest        OrderKind = "lab_test"
	KindAppointment    OrderKind = "appointment"
	KindConsultation   OrderKind = "consultation"
	KindHomeCollection OrderKind = "home_collection"
	KindOther          OrderKind = "other"
)

// KnownKind reports whether k is one of the supported order kinds.
func KnownKind(k OrderKind) bool {
	switch k {
	case KindMedicine, KindLabTest, KindAppointment, KindConsultation, KindHomeCollection, KindOther:
		return true
	}
	return false
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	MethodOnline PaymentMethod = "online"
	MethodCOD    PaymentMethod = "cod"
	MethodCash   PaymentMethod = "cash"
	MethodCard   PaymentMethod = "card"
	MethodUPI    PaymentMethod = "upi"
)

// KnownMethod reports whether m is one of the supported payment methods.
func KnownMethod(m PaymentMethod) bool {
	switch m {
	case MethodOnline, MethodCOD, MethodCash, MethodCard, MethodUPI:
		return true
	}
	return false
}

// PaymentStatus represents the verification state of a payment.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusReceived PaymentStatus = "received"
	StatusVerified PaymentStatus = "verified"
	StatusFailed   PaymentStatus = "failed"
	StatusRefunded PaymentStatus = "refunded"
	StatusDisputed PaymentStatus = "disputed"
)

// LiveStatuses are the statuses that count against the idempotency key:
// at most one record per (kind, external_id, method) may hold one of them.
var LiveStatuses = []PaymentStatus{StatusPending, StatusReceived, StatusVerified}

// IsLive reports whether s occupies the idempotency key.
func (s PaymentStatus) IsLive() bool {
	return s == StatusPending || s == StatusReceived || s == StatusVerified
}

// IsSettled reports whether a payment in this status has been collected.
func (s PaymentStatus) IsSettled() bool {
	return s == StatusReceived || s == StatusVerified
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// TransitionAction is a verb applied to a payment record.
type TransitionAction string

const (
	ActionCreate           TransitionAction = "create"
	ActionMarkReceived     TransitionAction = "mark_received"
	ActionVerify           TransitionAction = "verify"
	ActionReject           TransitionAction = "reject"
	ActionBulkVerify       TransitionAction = "bulk_verify"
	ActionBulkMarkReceived TransitionAction = "bulk_mark_received"
	ActionRefund           TransitionAction = "refund"
	ActionDispute          TransitionAction = "dispute"
)

// Base collapses the bulk variants onto the action they apply per record.
func (a TransitionAction) Base() TransitionAction {
	switch a {
	case ActionBulkVerify:
		return ActionVerify
	case ActionBulkMarkReceived:
		return ActionMarkReceived
	}
	return a
}

var transitions = map[PaymentStatus]map[TransitionAction]PaymentStatus{
	StatusPending: {
		ActionMarkReceived: StatusReceived,
		ActionReject:       StatusFailed,
	},
	StatusReceived: {
		ActionVerify: StatusVerified,
		ActionReject: StatusFailed,
	},
	StatusVerified: {
		ActionRefund:  StatusRefunded,
		ActionDispute: StatusDisputed,
	},
	StatusDisputed: {
		ActionVerify: StatusVerified,
		ActionRefund: StatusRefunded,
	},
}

// NextStatus resolves the target status for applying action in status from.
// The bool result is false when the transition is not in the graph.
func NextStatus(from PaymentStatus, action TransitionAction) (PaymentStatus, bool) {
	next, ok := transitions[from][action.Base()]
	return next, ok
}

// CustomerSnapshot is the buyer's contact details denormalized at payment
// time, so later edits to the patient record do not rewrite history.
type CustomerSnapshot struct {
	Name    string `json:"name" gorm:"size:120"`
	Phone   string `json:"phone" gorm:"size:20"`
	Address string `json:"address" gorm:"size:500"`
}

// PaymentRecord is a single payment attempt and its verification lifecycle.
// Records are created by intake, mutated only by the state machine, and
// never deleted.
type PaymentRecord struct {
	ID        uuid.UUID `json:"-" gorm:"type:char(36);primaryKey"`
	PaymentID string    `json:"payment_id" gorm:"size:32;not null;uniqueIndex"`

	// UserID is the host application's account identifier for the payer,
	// when known. Contact details come from the snapshot, not from here.
	UserID string `json:"user_id,omitempty" gorm:"size:64;index"`

	OrderKind       OrderKind     `json:"order_kind" gorm:"type:varchar(20);not null;index:idx_order_ref"`
	OrderExternalID string        `json:"order_external_id" gorm:"size:64;not null;index:idx_order_ref"`
	Method          PaymentMethod `json:"method" gorm:"type:varchar(10);not null"`

	BaseAmount     decimal.Decimal `json:"base_amount" gorm:"type:decimal(20,2);not null"`
	AdditionalFees decimal.Decimal `json:"additional_fees" gorm:"type:decimal(20,2);not null"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:decimal(20,2);not null"`

	Status PaymentStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`

	// LiveKey is "kind|external_id|method" while the record is live and
	// NULL otherwise. Its unique index is what makes intake an upsert on
	// MySQL, which has no partial indexes.
	LiveKey *string `json:"-" gorm:"size:160;uniqueIndex"`

	IsAdminVerified       bool       `json:"is_admin_verified" gorm:"not null;default:false"`
	AdminVerifiedBy       *string    `json:"admin_verified_by,omitempty" gorm:"size:64"`
	AdminVerificationDate *time.Time `json:"admin_verification_date,omitempty"`

	GatewayPaymentID    string `json:"gateway_payment_id,omitempty" gorm:"size:64;index"`
	GatewayOrderID      string `json:"gateway_order_id,omitempty" gorm:"size:64;index"`
	GatewaySignature    string `json:"-" gorm:"size:128"`
	GatewayResponseBlob string `json:"-" gorm:"type:text"`

	Customer CustomerSnapshot `json:"customer" gorm:"embedded;embeddedPrefix:customer_"`

	ReceivedAt *time.Time `json:"received_at,omitempty"`
	AdminNotes string     `json:"admin_notes,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate fills generated identifiers and the live key.
func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PaymentID == "" {
		p.PaymentID = NewPaymentID()
	}
	if p.LiveKey == nil && p.Status.IsLive() {
		k := p.IdempotencyKey()
		p.LiveKey = &k
	}
	return nil
}

// IdempotencyKey is the value held in LiveKey while the record is live.
func (p *PaymentRecord) IdempotencyKey() string {
	return fmt.Sprintf("%s|%s|%s", p.OrderKind, p.OrderExternalID, p.Method)
}

// SyncLiveKey sets or clears LiveKey to match the current status.
func (p *PaymentRecord) SyncLiveKey() {
	if p.Status.IsLive() {
		k := p.IdempotencyKey()
		p.LiveKey = &k
		return
	}
	p.LiveKey = nil
}

// CheckDerivedInvariants verifies the field equivalences that must hold
// after every transition: the amount law, the four-way verified
// equivalence, received_at presence, and the gateway id requirement for
// settled online payments.
func (p *PaymentRecord) CheckDerivedInvariants() error {
	if p.BaseAmount.IsNegative() || p.AdditionalFees.IsNegative() || p.TotalAmount.IsNegative() {
		return fmt.Errorf("payment %s: negative amount", p.PaymentID)
	}
	if !p.TotalAmount.Equal(p.BaseAmount.Add(p.AdditionalFees)) {
		return fmt.Errorf("payment %s: total %s != base %s + fees %s",
			p.PaymentID, p.TotalAmount, p.BaseAmount, p.AdditionalFees)
	}
	verified := p.Status == StatusVerified
	if p.IsAdminVerified != verified ||
		(p.AdminVerifiedBy != nil) != verified ||
		(p.AdminVerificationDate != nil) != verified {
		return fmt.Errorf("payment %s: admin verification fields out of sync with status %s", p.PaymentID, p.Status)
	}
	wantReceivedAt := p.Status == StatusReceived || p.Status == StatusVerified || p.Status == StatusRefunded
	if (p.ReceivedAt != nil) != wantReceivedAt {
		return fmt.Errorf("payment %s: received_at presence out of sync with status %s", p.PaymentID, p.Status)
	}
	if p.Method == MethodOnline && p.Status.IsSettled() && p.GatewayPaymentID == "" {
		return fmt.Errorf("payment %s: settled online payment without gateway payment id", p.PaymentID)
	}
	return nil
}

// NewPaymentID returns a URL-safe opaque public identifier, "pay_"
// followed by 16 random characters.
func NewPaymentID() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand does not fail on supported platforms
		return "pay_" + uuid.NewString()[:16]
	}
	return "pay_" + base64.RawURLEncoding.EncodeToString(buf)
}
