package routes

import (
	"errors"
	"time"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/google/uuid"
	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type CartItemInput struct {
	ServiceID     uint   `json:"serviceID" validate:"required"`
	EventID       uint   `json:"eventID" validate:"required"`
	ServiceDate   string `json:"serviceDate" validate:"required"`
	DurationHours int    `json:"durationHours" validate:"required,min=1,max=72"`
	Headcount     *int   `json:"headcount" validate:"omitempty,min=1"`
	Location      string `json:"location" validate:"required,max=500"`
	Notes         string `json:"notes" validate:"max=2000"`
}

func AddCartItem(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input CartItemInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	serviceDate, dateErr := time.Parse(eventDateLayout, input.ServiceDate)
	if dateErr != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format, expected YYYY-MM-DDTHH:MM.", ctx)
		return
	}

	var event models.Event
	if err := storage.DB.First(&event, input.EventID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if event.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}
	if event.Status == models.EventCompleted || event.Status == models.EventCancelled {
		utils.CreateError(iris.StatusConflict, "Conflict", "Services cannot be added to a finished event.", ctx)
		return
	}

	var service models.Service
	if err := storage.DB.First(&service, input.ServiceID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if !service.IsAvailable() {
		utils.CreateError(iris.StatusConflict, "Conflict", "Service is not available for booking.", ctx)
		return
	}
	if service.ProviderID == userID {
		utils.CreateError(iris.StatusConflict, "Conflict", "You cannot book your own service.", ctx)
		return
	}
	if service.MinDurationHours != nil && input.DurationHours < *service.MinDurationHours {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Duration is below the service minimum.", ctx)
		return
	}
	if service.MaxDurationHours != nil && input.DurationHours > *service.MaxDurationHours {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Duration exceeds the service maximum.", ctx)
		return
	}
	if service.MaxCapacity != nil && input.Headcount != nil && *input.Headcount > *service.MaxCapacity {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Headcount exceeds the service capacity.", ctx)
		return
	}

	item := models.CartItem{
		ServiceID:     service.ID,
		EventID:       event.ID,
		OrganizerID:   userID,
		ServiceDate:   serviceDate,
		DurationHours: input.DurationHours,
		Headcount:     input.Headcount,
		Location:      input.Location,
		Notes:         input.Notes,
		Status:        models.CartItemPending,
	}
	item.SnapshotPricing(&service)

	if err := storage.DB.Create(&item).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "item": item})
}

func GetCart(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var items []models.CartItem
	storage.DB.
		Where("organizer_id = ? AND status IN ?", userID,
			[]string{models.CartItemPending, models.CartItemConfirmed}).
		Preload("Service").Preload("Event").
		Order("created_at desc").Find(&items)

	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].PriceTotal)
	}

	ctx.JSON(iris.Map{
		"success": true,
		"items":   items,
		"total":   total,
	})
}

type CartItemUpdateInput struct {
	ServiceDate   string `json:"serviceDate" validate:"required"`
	DurationHours int    `json:"durationHours" validate:"required,min=1,max=72"`
	Headcount     *int   `json:"headcount" validate:"omitempty,min=1"`
	Location      string `json:"location" validate:"required,max=500"`
	Notes         string `json:"notes" validate:"max=2000"`
}

func UpdateCartItem(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var item models.CartItem
	if err := storage.DB.Preload("Service").First(&item, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if item.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}
	if !item.CanEdit() {
		utils.CreateError(iris.StatusConflict, "Conflict", "Item can no longer be edited.", ctx)
		return
	}

	var input CartItemUpdateInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	serviceDate, dateErr := time.Parse(eventDateLayout, input.ServiceDate)
	if dateErr != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format, expected YYYY-MM-DDTHH:MM.", ctx)
		return
	}

	item.ServiceDate = serviceDate
	item.DurationHours = input.DurationHours
	item.Headcount = input.Headcount
	item.Location = input.Location
	item.Notes = input.Notes
	// Re-snapshot so edits always reprice against the current listing.
	item.SnapshotPricing(&item.Service)

	storage.DB.Save(&item)
	ctx.JSON(iris.Map{"success": true, "item": item})
}

func RemoveCartItem(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var item models.CartItem
	if err := storage.DB.First(&item, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}
	if item.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}
	if !item.CanRemove() {
		utils.CreateError(iris.StatusConflict, "Conflict", "Item is being processed and cannot be removed.", ctx)
		return
	}

	storage.DB.Delete(&item)
	ctx.JSON(iris.Map{"success": true})
}

type CheckoutInput struct {
	ItemIDs       []uint `json:"itemIDs" validate:"required,min=1"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=mercadopago tarjeta_credito transferencia efectivo"`
	PayerPhone    string `json:"payerPhone" validate:"max=20"`
	PayerDocument string `json:"payerDocument" validate:"max=20"`
}

type checkoutLine struct {
	Item     models.CartItem `json:"item"`
	Contract models.Contract `json:"contract"`
	Payment  models.Payment  `json:"payment"`
}

// Checkout promotes selected cart items into contracts, one contract and one
// payment per item. Each item is claimed with a status-guarded update so a
// double submit cannot promote the same item twice.
func Checkout(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input CheckoutInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var organizer models.User
	if err := storage.DB.First(&organizer, userID).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	var lines []checkoutLine
	var skipped []uint

	for _, itemID := range input.ItemIDs {
		line, err := promoteItem(itemID, &organizer, &input)
		if err != nil {
			skipped = append(skipped, itemID)
			continue
		}
		lines = append(lines, *line)
	}

	if len(lines) == 0 {
		utils.CreateError(iris.StatusConflict, "Conflict", "No selected item could be checked out.", ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{
		"success": true,
		"lines":   lines,
		"skipped": skipped,
	})
}

var errItemClaimed = errors.New("cart item already claimed")

func promoteItem(itemID uint, organizer *models.User, input *CheckoutInput) (*checkoutLine, error) {
	var item models.CartItem
	var contract models.Contract
	var payment models.Payment

	err := storage.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Service").First(&item, itemID).Error; err != nil {
			return err
		}
		if item.OrganizerID != organizer.ID || !item.CanPromote() {
			return errItemClaimed
		}

		// Optimistic claim: only one request wins the pendiente/confirmado row.
		claim := tx.Model(&models.CartItem{}).
			Where("id = ? AND status IN ?", item.ID,
				[]string{models.CartItemPending, models.CartItemConfirmed}).
			Update("status", models.CartItemProcessing)
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return errItemClaimed
		}
		item.Status = models.CartItemProcessing

		duration := item.DurationHours
		contract = models.Contract{
			EventID:       item.EventID,
			ServiceID:     item.ServiceID,
			OrganizerID:   organizer.ID,
			ProviderID:    item.Service.ProviderID,
			ServiceDate:   item.ServiceDate,
			DurationHours: &duration,
			Headcount:     item.Headcount,
			Location:      item.Location,
			PriceTotal:    item.PriceTotal,
			BalanceDue:    item.PriceTotal,
			PaymentMethod: input.PaymentMethod,
			Status:        models.ContractRequested,
		}
		contract.DepositRequired = item.Service.DepositFor(item.PriceTotal)
		contract.AppendNote("Solicitud", item.Notes)
		if err := tx.Create(&contract).Error; err != nil {
			return err
		}

		contractID := contract.ID
		payment = models.Payment{
			ContractID:        &contractID,
			OrganizerID:       organizer.ID,
			Amount:            item.PriceTotal,
			Method:            input.PaymentMethod,
			Status:            models.PaymentPending,
			PayerName:         organizer.FullName(),
			PayerEmail:        organizer.Email,
			PayerPhone:        input.PayerPhone,
			PayerDocument:     input.PayerDocument,
			ExternalReference: uuid.NewString(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Gateway call happens outside the transaction so a slow gateway never
	// pins a database connection.
	result, gwErr := services.PaymentGateway.CreatePayment(services.PaymentRequest{
		Amount:            payment.Amount,
		Description:       item.Service.Name,
		PayerEmail:        payment.PayerEmail,
		ExternalReference: payment.ExternalReference,
	})

	switch {
	case errors.Is(gwErr, services.ErrGatewayTimeout):
		// Timed out, not failed: the webhook or a poll settles it later.
		storage.DB.Save(&payment)
	case gwErr != nil:
		failCheckoutLine(&item, &contract, &payment)
	default:
		payment.ExternalTransactionID = result.ExternalID
		payment.RedirectURL = result.RedirectURL
		payment.GatewayPayload = datatypes.JSON(result.Raw)
		switch result.Status {
		case services.GatewayApproved:
			settleApprovedPayment(&payment, &contract)
			storage.DB.Model(&item).Update("status", models.CartItemCompleted)
			item.Status = models.CartItemCompleted
		case services.GatewayRejected:
			failCheckoutLine(&item, &contract, &payment)
		default:
			storage.DB.Save(&payment)
		}
	}

	// A failed line no longer has a contract to announce.
	if contract.ID != 0 {
		services.Notifier.Send(contract.ProviderID,
			services.ContractRequested(&contract, organizer.FullName(), item.Service.Name))
	}

	return &checkoutLine{Item: item, Contract: contract, Payment: payment}, nil
}

// failCheckoutLine unwinds a rejected gateway attempt: payment rechazado and
// detached, the speculative contract deleted, item returned to the cart.
func failCheckoutLine(item *models.CartItem, contract *models.Contract, payment *models.Payment) {
	if err := payment.Reject(); err == nil {
		payment.ContractID = nil
		storage.DB.Save(payment)
	}
	storage.DB.Delete(contract)
	*contract = models.Contract{}

	storage.DB.Model(item).Update("status", models.CartItemPending)
	item.Status = models.CartItemPending

	services.Notifier.Send(payment.OrganizerID, services.PaymentFailed(payment))
}

// settleApprovedPayment moves the pair to aprobado/confirmada and notifies
// the payer. Shared with the webhook path.
func settleApprovedPayment(payment *models.Payment, contract *models.Contract) {
	if err := payment.Approve(); err != nil {
		return
	}
	storage.DB.Save(payment)

	if contract.CanTransition(models.ContractAccepted) {
		// Paid before the provider looked at it: fold acceptance in.
		contract.Status = models.ContractAccepted
	}
	if err := contract.Confirm(); err == nil {
		storage.DB.Save(contract)
	}

	services.Notifier.Send(payment.OrganizerID,
		services.PaymentReceived(payment, payment.Amount.StringFixed(2)))
}
