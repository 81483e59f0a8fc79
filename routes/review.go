package routes

import (
	"strings"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
)

type ReviewInput struct {
	ContractID uint   `json:"contractID" validate:"required"`
	Rating     int    `json:"rating" validate:"required,min=1,max=5"`
	Comment    string `json:"comment" validate:"max=2000"`
}

func CreateReview(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input ReviewInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var contract models.Contract
	if err := storage.DB.Preload("Service").First(&contract, input.ContractID).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if contract.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}
	if !contract.Reviewable() {
		utils.CreateError(iris.StatusConflict, "Conflict", "Only completed contracts can be reviewed.", ctx)
		return
	}

	review := models.Review{
		ContractID:  contract.ID,
		ServiceID:   contract.ServiceID,
		OrganizerID: contract.OrganizerID,
		ProviderID:  contract.ProviderID,
		Rating:      input.Rating,
		Comment:     input.Comment,
	}

	if err := storage.DB.Create(&review).Error; err != nil {
		// The unique index on contract_id catches the second attempt.
		if strings.Contains(strings.ToLower(err.Error()), "unique") ||
			strings.Contains(strings.ToLower(err.Error()), "duplicate") {
			utils.CreateError(iris.StatusConflict, "Duplicate Review", "This contract has already been reviewed.", ctx)
			return
		}
		utils.CreateInternalServerError(ctx)
		return
	}

	services.Notifier.Send(contract.ProviderID,
		services.NewReview(&review, contract.Service.Name))

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "review": review})
}

func GetServiceReviews(ctx iris.Context) {
	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.Review{}).Where("service_id = ?", id)

	var total int64
	q.Count(&total)

	var reviews []models.Review
	q.Preload("Organizer").Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).Find(&reviews)

	ctx.JSON(iris.Map{
		"success": true,
		"data":    reviews,
		"meta":    utils.PageMeta{Page: page, PerPage: perPage, Total: total},
		"rating":  serviceRating(uint(id)),
	})
}
