package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind discriminates the two account variants. The wire values
// match the public API ("common" for individuals, "merchant").
type AccountKind string

const (
	KindIndividual AccountKind = "common"
	KindMerchant   AccountKind = "merchant"
)

// Individual is a payer-capable account identified by CPF.
type Individual struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	FullName     string          `gorm:"size:100;not null"`
	CPF          string          `gorm:"size:11;uniqueIndex;not null"`
	Email        string          `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string          `gorm:"size:128;not null"`
	Balance      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:'0'"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
}

func (Individual) TableName() string { return "individuals" }

// Merchant is a payee-only account identified by CNPJ.
type Merchant struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	FullName     string          `gorm:"size:100;not null"`
	CNPJ         string          `gorm:"size:14;uniqueIndex;not null"`
	Email        string          `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string          `gorm:"size:128;not null"`
	Balance      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:'0'"`
	CreatedAt    time.Time       `gorm:"autoCreateTime"`
}

func (Merchant) TableName() string { return "merchants" }

// Account is the variant-tagged view returned by cross-table lookup.
// It is not a table; ids are globally unique across both variants.
type Account struct {
	ID      uuid.UUID
	Kind    AccountKind
	Balance decimal.Decimal
}
