package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationLogEntry is one step in a payment's audit trail. Entries are
// append-only and written in the same transaction as the status change
// they record, so per payment the new_status chain always matches the
// record's current status.
type VerificationLogEntry struct {
	ID uuid.UUID `json:"-" gorm:"type:char(36);primaryKey"`
	// Seq is database-assigned and strictly increasing; it orders entries
	// that share a created_at second, where the UUID would shuffle them.
	Seq             uint64           `json:"-" gorm:"autoIncrement;uniqueIndex"`
	PaymentRecordID uuid.UUID        `json:"-" gorm:"type:char(36);not null;index"`
	PaymentID       string           `json:"payment_id" gorm:"size:32;not null;index"`
	ActorID         string           `json:"actor_id" gorm:"size:64;not null"`
	Action          TransitionAction `json:"action" gorm:"type:varchar(20);not null"`
	PrevStatus      PaymentStatus    `json:"prev_status" gorm:"type:varchar(20)"`
	NewStatus       PaymentStatus    `json:"new_status" gorm:"type:varchar(20);not null"`
	Notes           string           `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt       time.Time        `json:"timestamp"`
}

// TableName keeps the audit table name singular.
func (VerificationLogEntry) TableName() string {
	return "verification_log"
}

// BeforeCreate sets UUID before creating the record.
func (e *VerificationLogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
