package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart item states. An item is mutable only while pendiente/confirmado;
// procesando is the checkout window; completado/cancelado are terminal.
const (
	CartItemPending    = "pendiente"
	CartItemConfirmed  = "confirmado"
	CartItemProcessing = "procesando"
	CartItemCompleted  = "completado"
	CartItemCancelled  = "cancelado"
)

type CartItem struct {
	ID uint `json:"id" gorm:"primaryKey"`

	ServiceID   uint    `json:"serviceID" gorm:"not null;index"`
	Service     Service `json:"service" gorm:"foreignKey:ServiceID"`
	EventID     uint    `json:"eventID" gorm:"not null;index"`
	Event       Event   `json:"event" gorm:"foreignKey:EventID"`
	OrganizerID uint    `json:"organizerID" gorm:"not null;index"`
	Organizer   User    `json:"organizer" gorm:"foreignKey:OrganizerID"`

	// Requested details
	ServiceDate   time.Time `json:"serviceDate" gorm:"not null"`
	DurationHours int       `json:"durationHours" gorm:"not null;default:4"`
	Headcount     *int      `json:"headcount"`
	Location      string    `json:"location" gorm:"size:500;not null"`
	Notes         string    `json:"notes" gorm:"type:text"`

	// Price snapshot taken from the listing when the item is added or edited.
	BasePrice      decimal.Decimal     `json:"basePrice" gorm:"type:numeric(10,2);not null"`
	HourlyPrice    decimal.NullDecimal `json:"hourlyPrice" gorm:"type:numeric(10,2)"`
	PerPersonPrice decimal.NullDecimal `json:"perPersonPrice" gorm:"type:numeric(10,2)"`
	PriceTotal     decimal.Decimal     `json:"priceTotal" gorm:"type:numeric(10,2);not null"`

	Status string `json:"status" gorm:"size:20;index;default:pendiente"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SnapshotPricing copies the listing's price components onto the item and
// recomputes the total for the requested duration and headcount.
func (ci *CartItem) SnapshotPricing(svc *Service) {
	ci.BasePrice = svc.BasePrice
	ci.HourlyPrice = svc.HourlyPrice
	ci.PerPersonPrice = svc.PerPersonPrice
	ci.PriceTotal = svc.Quote(ci.DurationHours, ci.Headcount)
}

func (ci *CartItem) CanEdit() bool {
	return ci.Status == CartItemPending || ci.Status == CartItemConfirmed
}

func (ci *CartItem) CanRemove() bool {
	return ci.Status != CartItemProcessing && ci.Status != CartItemCompleted
}

// CanPromote reports whether the item may become a contract at checkout.
func (ci *CartItem) CanPromote() bool {
	return ci.Status == CartItemPending || ci.Status == CartItemConfirmed
}
