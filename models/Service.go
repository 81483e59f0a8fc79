package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service listing states. Providers toggle disponible/no_disponible; the
// admin moderation queue moves en_revision to disponible or rechazado.
const (
	ServiceAvailable   = "disponible"
	ServiceUnavailable = "no_disponible"
	ServiceInReview    = "en_revision"
	ServiceRejected    = "rechazado"
)

// Service categories.
const (
	CategoryCatering      = "catering"
	CategoryPhotography   = "fotografia"
	CategorySound         = "sonido"
	CategoryDecoration    = "decoracion"
	CategoryLogistics     = "logistica"
	CategorySecurity      = "seguridad"
	CategoryTransport     = "transporte"
	CategoryEntertainment = "entretenimiento"
	CategoryFlowers       = "flores"
	CategoryInvitations   = "invitaciones"
	CategoryOther         = "otro"
)

type Service struct {
	gorm.Model
	ProviderID uint `json:"providerID" gorm:"not null;index"`
	Provider   User `json:"provider" gorm:"foreignKey:ProviderID"`

	Name        string `json:"name" gorm:"size:200;not null"`
	Description string `json:"description" gorm:"type:text;not null"`
	Category    string `json:"category" gorm:"size:32;not null;index"`

	// Pricing components. BasePrice always applies; the other two only when
	// set on the listing (and, for per-person, when the request carries a
	// headcount).
	BasePrice      decimal.Decimal     `json:"basePrice" gorm:"type:numeric(10,2);not null"`
	HourlyPrice    decimal.NullDecimal `json:"hourlyPrice" gorm:"type:numeric(10,2)"`
	PerPersonPrice decimal.NullDecimal `json:"perPersonPrice" gorm:"type:numeric(10,2)"`

	MinDurationHours *int `json:"minDurationHours"`
	MaxDurationHours *int `json:"maxDurationHours"`
	MaxCapacity      *int `json:"maxCapacity"`

	IncludesMaterials bool `json:"includesMaterials"`
	IncludesTransport bool `json:"includesTransport"`
	IncludesSetup     bool `json:"includesSetup"`
	IncludesTeardown  bool `json:"includesTeardown"`

	RequiresDeposit bool                `json:"requiresDeposit"`
	DepositPercent  decimal.NullDecimal `json:"depositPercent" gorm:"type:numeric(5,2)"`

	City           string `json:"city" gorm:"size:100;not null;index"`
	CoverageRadius int    `json:"coverageRadius" gorm:"default:50"` // km

	Images datatypes.JSON `json:"images"`

	Status string `json:"status" gorm:"size:20;index;default:disponible"`
}

func (s *Service) IsAvailable() bool { return s.Status == ServiceAvailable }

// Quote computes the price for a request:
// base + hourly*duration (if hourly set) + perPerson*headcount (if both set).
func (s *Service) Quote(durationHours int, headcount *int) decimal.Decimal {
	total := s.BasePrice
	if s.HourlyPrice.Valid {
		total = total.Add(s.HourlyPrice.Decimal.Mul(decimal.NewFromInt(int64(durationHours))))
	}
	if s.PerPersonPrice.Valid && headcount != nil {
		total = total.Add(s.PerPersonPrice.Decimal.Mul(decimal.NewFromInt(int64(*headcount))))
	}
	return total
}

// DepositFor returns the required deposit for a quoted total, or an invalid
// NullDecimal when the listing takes no deposit.
func (s *Service) DepositFor(total decimal.Decimal) decimal.NullDecimal {
	if !s.RequiresDeposit || !s.DepositPercent.Valid {
		return decimal.NullDecimal{}
	}
	deposit := total.Mul(s.DepositPercent.Decimal).Div(decimal.NewFromInt(100)).Round(2)
	return decimal.NullDecimal{Decimal: deposit, Valid: true}
}
