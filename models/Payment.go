package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment states. Transitions are monotonic toward a terminal state; the
// only legal exit from a terminal state is aprobado -> reembolsado.
const (
	PaymentPending   = "pendiente"
	PaymentApproved  = "aprobado"
	PaymentRejected  = "rechazado"
	PaymentCancelled = "cancelado"
	PaymentRefunded  = "reembolsado"
)

type Payment struct {
	ID uint `json:"id" gorm:"primaryKey"`

	ContractID *uint     `json:"contractID" gorm:"index"`
	Contract   *Contract `json:"contract,omitempty" gorm:"foreignKey:ContractID"`

	OrganizerID uint `json:"organizerID" gorm:"not null;index"`
	Organizer   User `json:"organizer" gorm:"foreignKey:OrganizerID"`

	Amount decimal.Decimal `json:"amount" gorm:"type:numeric(10,2);not null"`
	Method string          `json:"method" gorm:"size:32;not null"`
	Status string          `json:"status" gorm:"size:20;index;default:pendiente"`

	// Payer details sent to the gateway.
	PayerName     string `json:"payerName" gorm:"size:100"`
	PayerEmail    string `json:"payerEmail" gorm:"size:100;not null"`
	PayerPhone    string `json:"payerPhone" gorm:"size:20"`
	PayerDocument string `json:"payerDocument" gorm:"size:20"`

	// Gateway linkage. ExternalReference is ours (sent out with the create
	// call); ExternalTransactionID is the gateway's and keys webhook
	// reconciliation.
	ExternalReference     string         `json:"externalReference" gorm:"size:64;index"`
	ExternalTransactionID string         `json:"externalTransactionID" gorm:"size:100;index"`
	RedirectURL           string         `json:"redirectURL" gorm:"size:500"`
	GatewayPayload        datatypes.JSON `json:"gatewayPayload"`

	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ApprovedAt *time.Time `json:"approvedAt"`
}

// Terminal reports whether no further gateway outcome can change the status,
// refund excepted.
func (p *Payment) Terminal() bool {
	return p.Status != PaymentPending
}

func (p *Payment) Approve() error {
	if p.Status != PaymentPending {
		return ErrInvalidTransition
	}
	p.Status = PaymentApproved
	now := time.Now().UTC()
	p.ApprovedAt = &now
	return nil
}

func (p *Payment) Reject() error {
	if p.Status != PaymentPending {
		return ErrInvalidTransition
	}
	p.Status = PaymentRejected
	return nil
}

func (p *Payment) CancelPayment() error {
	if p.Status != PaymentPending {
		return ErrInvalidTransition
	}
	p.Status = PaymentCancelled
	return nil
}

// Refund is the one resurrection the state machine allows.
func (p *Payment) Refund() error {
	if p.Status != PaymentApproved {
		return ErrInvalidTransition
	}
	p.Status = PaymentRefunded
	return nil
}
