package routes

import (
	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
)

func AdminListUsers(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.User{})
	if role := ctx.URLParam("role"); role != "" {
		q = q.Where("role = ?", role)
	}
	if active := ctx.URLParam("active"); active == "true" {
		q = q.Where("active = ?", true)
	} else if active == "false" {
		q = q.Where("active = ?", false)
	}

	var total int64
	q.Count(&total)

	var users []models.User
	q.Order("created_at desc").Offset((page - 1) * perPage).Limit(perPage).Find(&users)

	utils.JSONPage(ctx, users, page, perPage, total)
}

type AdminRoleInput struct {
	Role string `json:"role" validate:"required,oneof=organizador proveedor admin"`
}

func AdminChangeUserRole(ctx iris.Context) {
	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input AdminRoleInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	before := user.Role
	user.Role = input.Role
	storage.DB.Save(&user)

	utils.Audit(ctx, "user.role_change", "user", user.ID,
		iris.Map{"role": before}, iris.Map{"role": user.Role})

	ctx.JSON(iris.Map{"success": true, "user": user})
}

type AdminActiveInput struct {
	Active bool `json:"active"`
}

// AdminSetUserActive deactivates or restores an account. Deactivation keeps
// the row; a deactivated user simply cannot log in.
func AdminSetUserActive(ctx iris.Context) {
	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input AdminActiveInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var user models.User
	if err := storage.DB.First(&user, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var before bool
	if user.Active != nil {
		before = *user.Active
	}
	user.Active = &input.Active
	storage.DB.Save(&user)

	utils.Audit(ctx, "user.set_active", "user", user.ID,
		iris.Map{"active": before}, iris.Map{"active": input.Active})

	ctx.JSON(iris.Map{"success": true, "user": user})
}

func AdminListContracts(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.Contract{})
	if status := ctx.URLParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	q.Count(&total)

	var contracts []models.Contract
	q.Preload("Service").Preload("Organizer").Preload("Provider").
		Order("created_at desc").Offset((page - 1) * perPage).Limit(perPage).Find(&contracts)

	utils.JSONPage(ctx, contracts, page, perPage, total)
}

// AdminListPendingServices is the moderation queue.
func AdminListPendingServices(ctx iris.Context) {
	var listings []models.Service
	storage.DB.Where("status = ?", models.ServiceInReview).
		Preload("Provider").Order("created_at asc").Find(&listings)

	ctx.JSON(iris.Map{"success": true, "services": listings})
}

type AdminModerationInput struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason" validate:"max=2000"`
}

func AdminModerateService(ctx iris.Context) {
	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input AdminModerationInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var service models.Service
	if err := storage.DB.First(&service, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if service.Status != models.ServiceInReview {
		utils.CreateError(iris.StatusConflict, "Conflict", "Listing is not awaiting moderation.", ctx)
		return
	}
	if !input.Approve && input.Reason == "" {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "A rejection needs a reason.", ctx)
		return
	}

	before := service.Status
	if input.Approve {
		service.Status = models.ServiceAvailable
	} else {
		service.Status = models.ServiceRejected
	}
	storage.DB.Save(&service)

	notifyServiceModeration(&service, input.Approve, input.Reason)

	utils.Audit(ctx, "service.moderate", "service", service.ID,
		iris.Map{"status": before}, iris.Map{"status": service.Status, "reason": input.Reason})

	ctx.JSON(iris.Map{"success": true, "service": service})
}
