package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pickitchen/pickitchen-backend/internal/snowflake"
)

// Order records a purchase. For billing-event-sourced purchases the
// store transaction ID doubles as the order number, making the order
// number the idempotency key across webhook retries.
type Order struct {
	ID             int64           `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID         int64           `gorm:"not null;index" json:"user_id,string"`
	OrderNo        string          `gorm:"size:128;not null;uniqueIndex" json:"order_no"`
	ProductType    ProductType     `gorm:"size:16;not null" json:"product_type"`
	ProductID      string          `gorm:"size:128;not null" json:"product_id"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	Amount         decimal.Decimal `gorm:"type:numeric(10,2)" json:"amount"`
	Currency       string          `gorm:"size:8" json:"currency"`
	Status         OrderStatus     `gorm:"size:16;not null" json:"status"`
	PaymentChannel *string         `gorm:"size:32" json:"payment_channel,omitempty"`
	TransactionID  *string         `gorm:"size:128;index" json:"transaction_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == 0 {
		o.ID = snowflake.Generate()
	}
	return nil
}
