package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferStatus string

const (
	StatusPending   TransferStatus = "pending"
	StatusCompleted TransferStatus = "completed"
	StatusFailed    TransferStatus = "failed"
	// StatusCancelled is part of the status taxonomy but never produced.
	StatusCancelled TransferStatus = "cancelled"
)

// Transfer is one immutable ledger entry per transfer attempt. Rows are
// append-only; a retried transfer creates a new row, never an update.
// PayerID always references an individual. PayeeID is a weak reference
// resolved against both account tables.
type Transfer struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PayerID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	PayeeID   uuid.UUID       `gorm:"type:uuid;not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status    TransferStatus  `gorm:"size:16;not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
}

func (Transfer) TableName() string { return "transfers" }
