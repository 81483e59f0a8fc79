package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// Contract states. The graph is strictly directed:
//
//	solicitada -> en_revision | aceptada | rechazada
//	en_revision -> aceptada | rechazada
//	aceptada -> confirmada (full payment)
//	confirmada -> en_progreso -> completada
//
// cancelada is reachable from every state except the terminals
// rechazada, completada and cancelada itself.
const (
	ContractRequested  = "solicitada"
	ContractInReview   = "en_revision"
	ContractAccepted   = "aceptada"
	ContractRejected   = "rechazada"
	ContractConfirmed  = "confirmada"
	ContractInProgress = "en_progreso"
	ContractCompleted  = "completada"
	ContractCancelled  = "cancelada"
)

// Payment methods accepted on a contract.
const (
	MethodMercadoPago  = "mercadopago"
	MethodCard         = "tarjeta_credito"
	MethodBankTransfer = "transferencia"
	MethodCash         = "efectivo"
)

// ErrInvalidTransition is returned by every state machine in this package
// when a transition guard fails. The record is left untouched.
var ErrInvalidTransition = errors.New("invalid state transition")

var contractTransitions = map[string][]string{
	ContractRequested:  {ContractInReview, ContractAccepted, ContractRejected, ContractCancelled},
	ContractInReview:   {ContractAccepted, ContractRejected, ContractCancelled},
	ContractAccepted:   {ContractConfirmed, ContractCancelled},
	ContractConfirmed:  {ContractInProgress, ContractCancelled},
	ContractInProgress: {ContractCompleted, ContractCancelled},
}

type Contract struct {
	ID uint `json:"id" gorm:"primaryKey"`

	EventID     uint    `json:"eventID" gorm:"not null;index"`
	Event       Event   `json:"event" gorm:"foreignKey:EventID"`
	ServiceID   uint    `json:"serviceID" gorm:"not null;index"`
	Service     Service `json:"service" gorm:"foreignKey:ServiceID"`
	OrganizerID uint    `json:"organizerID" gorm:"not null;index"`
	Organizer   User    `json:"organizer" gorm:"foreignKey:OrganizerID"`
	ProviderID  uint    `json:"providerID" gorm:"not null;index"`
	Provider    User    `json:"provider" gorm:"foreignKey:ProviderID"`

	ServiceDate   time.Time `json:"serviceDate" gorm:"not null"`
	DurationHours *int      `json:"durationHours"`
	Headcount     *int      `json:"headcount"`
	Location      string    `json:"location" gorm:"size:500"`

	PriceTotal      decimal.Decimal     `json:"priceTotal" gorm:"type:numeric(10,2);not null"`
	DepositRequired decimal.NullDecimal `json:"depositRequired" gorm:"type:numeric(10,2)"`
	DepositPaid     decimal.Decimal     `json:"depositPaid" gorm:"type:numeric(10,2);default:0"`
	BalanceDue      decimal.Decimal     `json:"balanceDue" gorm:"type:numeric(10,2);not null"`
	PaymentMethod   string              `json:"paymentMethod" gorm:"size:32"`

	Status string `json:"status" gorm:"size:20;index;default:solicitada"`

	// Notes is an append-only audit trail: acceptance notes, rejection and
	// cancellation reasons are appended, never overwritten.
	Notes            string `json:"notes" gorm:"type:text"`
	OrganizerContact string `json:"organizerContact" gorm:"size:20"`
	ProviderContact  string `json:"providerContact" gorm:"size:20"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	AcceptedAt  *time.Time `json:"acceptedAt"`
	CompletedAt *time.Time `json:"completedAt"`
}

// CanTransition reports whether the contract may move to the target status.
func (c *Contract) CanTransition(to string) bool {
	return slices.Contains(contractTransitions[c.Status], to)
}

func (c *Contract) transition(to string) error {
	if !c.CanTransition(to) {
		return ErrInvalidTransition
	}
	c.Status = to
	return nil
}

// AppendNote adds a labeled line to the audit trail without touching
// earlier entries.
func (c *Contract) AppendNote(label, text string) {
	if text == "" {
		return
	}
	entry := label + ": " + text
	if c.Notes == "" {
		c.Notes = entry
		return
	}
	c.Notes += "\n\n" + entry
}

// Accept moves the contract to aceptada. Caller enforces that the actor is
// the assigned provider.
func (c *Contract) Accept(notes string) error {
	if err := c.transition(ContractAccepted); err != nil {
		return err
	}
	now := time.Now().UTC()
	c.AcceptedAt = &now
	c.AppendNote("Notas del proveedor", notes)
	return nil
}

func (c *Contract) Reject(reason string) error {
	if err := c.transition(ContractRejected); err != nil {
		return err
	}
	c.AppendNote("Motivo de rechazo", reason)
	return nil
}

func (c *Contract) MarkInReview() error {
	return c.transition(ContractInReview)
}

// Confirm records that payment has cleared.
func (c *Contract) Confirm() error {
	if err := c.transition(ContractConfirmed); err != nil {
		return err
	}
	c.BalanceDue = decimal.Zero
	c.DepositPaid = c.PriceTotal
	return nil
}

func (c *Contract) Start() error {
	return c.transition(ContractInProgress)
}

func (c *Contract) Complete() error {
	if err := c.transition(ContractCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	c.CompletedAt = &now
	return nil
}

func (c *Contract) Cancel(reason string) error {
	if err := c.transition(ContractCancelled); err != nil {
		return err
	}
	c.AppendNote("Motivo de cancelación", reason)
	return nil
}

// Reviewable reports whether the organizer may leave a review.
func (c *Contract) Reviewable() bool {
	return c.Status == ContractCompleted
}
