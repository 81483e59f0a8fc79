package routes

import (
	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
	"gorm.io/datatypes"
)

func GetUserPayments(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.Payment{}).Where("organizer_id = ?", userID)
	if status := ctx.URLParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var payments []models.Payment
	q.Preload("Contract").Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).Find(&payments)

	utils.JSONPage(ctx, payments, page, perPage, total)
}

func GetPayment(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var payment models.Payment
	if err := storage.DB.Preload("Contract").First(&payment, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if payment.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "payment": payment})
}

// webhookInput mirrors the gateway's notification body. Either field may
// arrive depending on the notification topic.
type webhookInput struct {
	ID   string `json:"id"`
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	ExternalReference string `json:"external_reference"`
}

// PaymentWebhook is the gateway's callback. It is unauthenticated, so it
// trusts nothing in the body: the payment status is re-read from the gateway
// before any transition. Replays of settled payments are acknowledged and
// otherwise ignored.
func PaymentWebhook(ctx iris.Context) {
	var input webhookInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Unreadable webhook body.", ctx)
		return
	}

	externalID := input.Data.ID
	if externalID == "" {
		externalID = input.ID
	}

	var payment models.Payment
	q := storage.DB
	switch {
	case externalID != "":
		q = q.Where("external_transaction_id = ?", externalID)
		if input.ExternalReference != "" {
			q = q.Or("external_reference = ?", input.ExternalReference)
		}
	case input.ExternalReference != "":
		q = q.Where("external_reference = ?", input.ExternalReference)
	default:
		utils.CreateError(iris.StatusBadRequest, "Bad Request", "Webhook carries no payment identifier.", ctx)
		return
	}
	if err := q.First(&payment).Error; err != nil {
		// Unknown payment: acknowledge so the gateway stops retrying.
		ctx.JSON(iris.Map{"success": true})
		return
	}

	if payment.Terminal() {
		ctx.JSON(iris.Map{"success": true})
		return
	}

	lookupID := payment.ExternalTransactionID
	if lookupID == "" {
		lookupID = externalID
	}
	if lookupID == "" {
		// Reference-only ping before the gateway assigned a transaction id.
		// Nothing to look up yet, acknowledge and wait for the next event.
		ctx.JSON(iris.Map{"success": true})
		return
	}
	result, err := services.PaymentGateway.GetPayment(lookupID)
	if err != nil {
		utils.CreateError(iris.StatusBadGateway, "Gateway Error", "Payment status could not be verified.", ctx)
		return
	}

	payment.ExternalTransactionID = result.ExternalID
	payment.GatewayPayload = datatypes.JSON(result.Raw)

	switch result.Status {
	case services.GatewayApproved:
		if payment.ContractID == nil {
			if err := payment.Approve(); err == nil {
				storage.DB.Save(&payment)
			}
			break
		}
		var contract models.Contract
		if err := storage.DB.First(&contract, *payment.ContractID).Error; err != nil {
			utils.CreateInternalServerError(ctx)
			return
		}
		settleApprovedPayment(&payment, &contract)
		storage.DB.Model(&models.CartItem{}).
			Where("event_id = ? AND service_id = ? AND status = ?",
				contract.EventID, contract.ServiceID, models.CartItemProcessing).
			Update("status", models.CartItemCompleted)
	case services.GatewayRejected:
		if err := payment.Reject(); err == nil {
			storage.DB.Save(&payment)
			services.Notifier.Send(payment.OrganizerID, services.PaymentFailed(&payment))
		}
	default:
		// Still pending on the gateway side; persist the refreshed payload.
		storage.DB.Save(&payment)
	}

	ctx.JSON(iris.Map{"success": true})
}
