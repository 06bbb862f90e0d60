package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. Stock may go negative; sales are never
// blocked on inventory.
type Product struct {
	ID        uint            `gorm:"primaryKey"`
	Name      string          `gorm:"type:varchar(120);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Stock     int             `gorm:"not null;default:0"`
	Active    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Product) TableName() string { return "products" }
