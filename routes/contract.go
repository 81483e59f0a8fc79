package routes

import (
	"log"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
)

// GetUserContracts lists the caller's side of the table: organizers see what
// they requested, providers see what landed on them.
func GetUserContracts(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)
	role, _ := ctx.Values().Get("userRole").(string)

	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.Contract{})
	if role == models.RoleProvider {
		q = q.Where("provider_id = ?", userID)
	} else {
		q = q.Where("organizer_id = ?", userID)
	}
	if status := ctx.URLParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var contracts []models.Contract
	q.Preload("Service").Preload("Event").Preload("Organizer").Preload("Provider").
		Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).Find(&contracts)

	utils.JSONPage(ctx, contracts, page, perPage, total)
}

func loadContractForParty(ctx iris.Context) (*models.Contract, uint, bool) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return nil, 0, false
	}

	var contract models.Contract
	if err := storage.DB.Preload("Service").Preload("Event").
		Preload("Organizer").Preload("Provider").
		First(&contract, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return nil, 0, false
	}

	if contract.OrganizerID != userID && contract.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return nil, 0, false
	}
	return &contract, userID, true
}

func GetContract(ctx iris.Context) {
	contract, _, ok := loadContractForParty(ctx)
	if !ok {
		return
	}
	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

type ContractNotesInput struct {
	Notes string `json:"notes" validate:"max=2000"`
}

type ContractReasonInput struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

func invalidContractTransition(contract *models.Contract, to string, ctx iris.Context) {
	utils.CreateError(iris.StatusConflict, "Invalid Transition",
		"Contract cannot move from "+contract.Status+" to "+to+".", ctx)
}

func AcceptContract(ctx iris.Context) {
	contract, userID, ok := loadContractForParty(ctx)
	if !ok {
		return
	}
	if contract.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	var input ContractNotesInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if err := contract.Accept(input.Notes); err != nil {
		invalidContractTransition(contract, models.ContractAccepted, ctx)
		return
	}
	storage.DB.Save(contract)

	services.Notifier.Send(contract.OrganizerID,
		services.ContractAccepted(contract, contract.Service.Name))

	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

func RejectContract(ctx iris.Context) {
	contract, userID, ok := loadContractForParty(ctx)
	if !ok {
		return
	}
	if contract.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	var input ContractReasonInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if err := contract.Reject(input.Reason); err != nil {
		invalidContractTransition(contract, models.ContractRejected, ctx)
		return
	}
	storage.DB.Save(contract)

	// Release the cart item and void the pending charge.
	releaseContractSideEffects(contract)

	services.Notifier.Send(contract.OrganizerID,
		services.ContractRejected(contract, contract.Service.Name, input.Reason))

	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

func ReviewContract(ctx iris.Context) {
	contract, userID, ok := loadContractForParty(ctx)
	if !ok {
		return
	}
	if contract.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	if err := contract.MarkInReview(); err != nil {
		invalidContractTransition(contract, models.ContractInReview, ctx)
		return
	}
	storage.DB.Save(contract)
	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

// ConfirmContract lets the organizer settle an accepted contract whose
// payment already cleared, for example when the webhook approved it while
// the contract was still waiting on the provider.
func ConfirmContract(ctx iris.Context) {
	contract, userID, ok := loadContractForParty(ctx)
	if !ok {
		return
	}
	if contract.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	var payment models.Payment
	if err := storage.DB.Where("contract_id = ? AND status = ?",
		contract.ID, models.PaymentApproved).First(&payment).Error; err != nil {
		utils.CreateError(iris.StatusConflict, "Conflict", "Contract has no approved payment.", ctx)
		return
	}

	if err := contract.Confirm(); err != nil {
		invalidContractTransition(contract, models.ContractConfirmed, ctx)
		return
	}
	storage.DB.Save(contract)

	services.Notifier.Send(contract.ProviderID,
		services.PaymentReceived(&payment, payment.Amount.StringFixed(2)))

	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

func StartContract(ctx iris.Context) {
	contract, userID, ok := loadContractForParty(ctx)
	if !ok {
		return
	}
	if contract.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	if err := contract.Start(); err != nil {
		invalidContractTransition(contract, models.ContractInProgress, ctx)
		return
	}
	storage.DB.Save(contract)

	services.Notifier.Send(contract.OrganizerID,
		services.ServiceStarted(contract, contract.Service.Name))

	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

func CompleteContract(ctx iris.Context) {
	contract, userID, ok := loadContractForParty(ctx)
	if !ok {
		return
	}
	if contract.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	if err := contract.Complete(); err != nil {
		invalidContractTransition(contract, models.ContractCompleted, ctx)
		return
	}
	storage.DB.Save(contract)

	storage.DB.Model(&models.CartItem{}).
		Where("event_id = ? AND service_id = ? AND status = ?",
			contract.EventID, contract.ServiceID, models.CartItemProcessing).
		Update("status", models.CartItemCompleted)

	services.Notifier.Send(contract.OrganizerID,
		services.ServiceCompleted(contract, contract.Service.Name))

	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

// CancelContract is open to either party. Cancelling after payment cleared
// triggers a refund attempt; a gateway failure there does not block the
// cancellation, it is logged for manual reconciliation.
func CancelContract(ctx iris.Context) {
	contract, userID, ok := loadContractForParty(ctx)
	if !ok {
		return
	}

	var input ContractReasonInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	wasPaid := contract.Status == models.ContractConfirmed ||
		contract.Status == models.ContractInProgress

	before := contract.Status
	if err := contract.Cancel(input.Reason); err != nil {
		invalidContractTransition(contract, models.ContractCancelled, ctx)
		return
	}
	storage.DB.Save(contract)

	releaseContractSideEffects(contract)
	if wasPaid {
		refundContractPayment(contract)
	}

	counterparty := contract.ProviderID
	if userID == contract.ProviderID {
		counterparty = contract.OrganizerID
	}
	services.Notifier.Send(counterparty,
		services.ContractCancelled(contract, contract.Service.Name, input.Reason))

	utils.Audit(ctx, "contract.cancel", "contract", contract.ID,
		iris.Map{"status": before}, iris.Map{"status": contract.Status, "reason": input.Reason})

	ctx.JSON(iris.Map{"success": true, "contract": contract})
}

// releaseContractSideEffects returns the originating cart item to cancelado
// and voids a still-pending payment.
func releaseContractSideEffects(contract *models.Contract) {
	storage.DB.Model(&models.CartItem{}).
		Where("event_id = ? AND service_id = ? AND status = ?",
			contract.EventID, contract.ServiceID, models.CartItemProcessing).
		Update("status", models.CartItemCancelled)

	var payment models.Payment
	if err := storage.DB.Where("contract_id = ? AND status = ?",
		contract.ID, models.PaymentPending).First(&payment).Error; err != nil {
		return
	}
	if err := payment.CancelPayment(); err == nil {
		storage.DB.Save(&payment)
	}
}

func refundContractPayment(contract *models.Contract) {
	var payment models.Payment
	if err := storage.DB.Where("contract_id = ? AND status = ?",
		contract.ID, models.PaymentApproved).First(&payment).Error; err != nil {
		return
	}

	if payment.ExternalTransactionID != "" {
		if _, err := services.PaymentGateway.RefundPayment(payment.ExternalTransactionID); err != nil {
			// The money never moved back, so the ledger stays aprobado
			// until it is reconciled by hand.
			log.Printf("refund failed for payment %d: %v", payment.ID, err)
			return
		}
	}
	if err := payment.Refund(); err == nil {
		storage.DB.Save(&payment)
	}
}
