package services

import (
	"fmt"

	"github.com/lsgomez-jpg/eventlink-app/models"
)

// Kind is the closed set of notification kinds. New kinds get a constructor
// below carrying exactly the payload fields they need; handlers never build
// a Message by hand.
type Kind string

const (
	KindContractRequested Kind = "nueva_contratacion"
	KindContractAccepted  Kind = "contratacion_aceptada"
	KindContractRejected  Kind = "contratacion_rechazada"
	KindContractCancelled Kind = "contratacion_cancelada"
	KindServiceStarted    Kind = "servicio_iniciado"
	KindServiceCompleted  Kind = "servicio_completado"
	KindPaymentReceived   Kind = "pago_recibido"
	KindPaymentFailed     Kind = "pago_fallido"
	KindServiceApproved   Kind = "servicio_aprobado"
	KindServiceRejected   Kind = "servicio_rechazado"
	KindNewReview         Kind = "nueva_resena"
)

type Message struct {
	Kind  Kind
	Title string
	Body  string

	EventID    *uint
	ServiceID  *uint
	ContractID *uint
	PaymentID  *uint
}

func ContractRequested(c *models.Contract, organizerName, serviceName string) Message {
	return Message{
		Kind:       KindContractRequested,
		Title:      "Nueva contratación",
		Body:       fmt.Sprintf("%s solicitó tu servicio %s", organizerName, serviceName),
		ServiceID:  &c.ServiceID,
		ContractID: &c.ID,
	}
}

func ContractAccepted(c *models.Contract, serviceName string) Message {
	return Message{
		Kind:       KindContractAccepted,
		Title:      "Contratación aceptada",
		Body:       fmt.Sprintf("El proveedor aceptó tu solicitud de %s", serviceName),
		ServiceID:  &c.ServiceID,
		ContractID: &c.ID,
	}
}

func ContractRejected(c *models.Contract, serviceName, reason string) Message {
	return Message{
		Kind:       KindContractRejected,
		Title:      "Contratación rechazada",
		Body:       fmt.Sprintf("El proveedor rechazó tu solicitud de %s: %s", serviceName, reason),
		ServiceID:  &c.ServiceID,
		ContractID: &c.ID,
	}
}

func ContractCancelled(c *models.Contract, serviceName, reason string) Message {
	return Message{
		Kind:       KindContractCancelled,
		Title:      "Contratación cancelada",
		Body:       fmt.Sprintf("La contratación de %s fue cancelada: %s", serviceName, reason),
		ServiceID:  &c.ServiceID,
		ContractID: &c.ID,
	}
}

func ServiceStarted(c *models.Contract, serviceName string) Message {
	return Message{
		Kind:       KindServiceStarted,
		Title:      "Servicio en progreso",
		Body:       fmt.Sprintf("El servicio %s está en progreso", serviceName),
		ServiceID:  &c.ServiceID,
		ContractID: &c.ID,
	}
}

func ServiceCompleted(c *models.Contract, serviceName string) Message {
	return Message{
		Kind:       KindServiceCompleted,
		Title:      "Servicio completado",
		Body:       fmt.Sprintf("El servicio %s fue completado. Ya puedes dejar una reseña.", serviceName),
		ServiceID:  &c.ServiceID,
		ContractID: &c.ID,
	}
}

func PaymentReceived(p *models.Payment, amount string) Message {
	return Message{
		Kind:       KindPaymentReceived,
		Title:      "Pago recibido",
		Body:       fmt.Sprintf("Se registró un pago de $%s", amount),
		ContractID: p.ContractID,
		PaymentID:  &p.ID,
	}
}

func PaymentFailed(p *models.Payment) Message {
	return Message{
		Kind:       KindPaymentFailed,
		Title:      "Pago rechazado",
		Body:       "Tu pago no pudo procesarse. Intenta nuevamente.",
		ContractID: p.ContractID,
		PaymentID:  &p.ID,
	}
}

func ServiceApproved(s *models.Service) Message {
	id := s.ID
	return Message{
		Kind:      KindServiceApproved,
		Title:     "Servicio aprobado",
		Body:      fmt.Sprintf("Tu servicio %s fue aprobado y ya es visible en el catálogo", s.Name),
		ServiceID: &id,
	}
}

func ServiceRejectedMsg(s *models.Service, reason string) Message {
	id := s.ID
	return Message{
		Kind:      KindServiceRejected,
		Title:     "Servicio rechazado",
		Body:      fmt.Sprintf("Tu servicio %s fue rechazado: %s", s.Name, reason),
		ServiceID: &id,
	}
}

func NewReview(r *models.Review, serviceName string) Message {
	return Message{
		Kind:       KindNewReview,
		Title:      "Nueva reseña",
		Body:       fmt.Sprintf("Recibiste una reseña de %d estrellas en %s", r.Rating, serviceName),
		ServiceID:  &r.ServiceID,
		ContractID: &r.ContractID,
	}
}
