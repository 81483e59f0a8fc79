package routes

import (
	"encoding/json"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"
)

type ServiceInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"required,max=5000"`
	Category    string `json:"category" validate:"required,oneof=catering fotografia sonido decoracion logistica seguridad transporte entretenimiento flores invitaciones otro"`

	BasePrice      string  `json:"basePrice" validate:"required"`
	HourlyPrice    *string `json:"hourlyPrice"`
	PerPersonPrice *string `json:"perPersonPrice"`

	MinDurationHours *int `json:"minDurationHours" validate:"omitempty,min=1"`
	MaxDurationHours *int `json:"maxDurationHours" validate:"omitempty,min=1"`
	MaxCapacity      *int `json:"maxCapacity" validate:"omitempty,min=1"`

	IncludesMaterials bool `json:"includesMaterials"`
	IncludesTransport bool `json:"includesTransport"`
	IncludesSetup     bool `json:"includesSetup"`
	IncludesTeardown  bool `json:"includesTeardown"`

	RequiresDeposit bool    `json:"requiresDeposit"`
	DepositPercent  *string `json:"depositPercent"`

	City           string   `json:"city" validate:"required,max=100"`
	CoverageRadius int      `json:"coverageRadius" validate:"omitempty,min=1,max=500"`
	Images         []string `json:"images"`
}

func parsePrice(raw string, ctx iris.Context) (decimal.Decimal, bool) {
	price, err := decimal.NewFromString(raw)
	if err != nil || price.IsNegative() {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid price amount.", ctx)
		return decimal.Decimal{}, false
	}
	return price, true
}

func applyServiceInput(service *models.Service, input *ServiceInput, ctx iris.Context) bool {
	basePrice, ok := parsePrice(input.BasePrice, ctx)
	if !ok {
		return false
	}
	service.BasePrice = basePrice

	service.HourlyPrice = decimal.NullDecimal{}
	if input.HourlyPrice != nil {
		price, priceOK := parsePrice(*input.HourlyPrice, ctx)
		if !priceOK {
			return false
		}
		service.HourlyPrice = decimal.NullDecimal{Decimal: price, Valid: true}
	}

	service.PerPersonPrice = decimal.NullDecimal{}
	if input.PerPersonPrice != nil {
		price, priceOK := parsePrice(*input.PerPersonPrice, ctx)
		if !priceOK {
			return false
		}
		service.PerPersonPrice = decimal.NullDecimal{Decimal: price, Valid: true}
	}

	service.DepositPercent = decimal.NullDecimal{}
	if input.RequiresDeposit {
		if input.DepositPercent == nil {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Deposit percent is required when a deposit is taken.", ctx)
			return false
		}
		percent, percentErr := decimal.NewFromString(*input.DepositPercent)
		if percentErr != nil || percent.IsNegative() || percent.GreaterThan(decimal.NewFromInt(100)) {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Deposit percent must be between 0 and 100.", ctx)
			return false
		}
		service.DepositPercent = decimal.NullDecimal{Decimal: percent, Valid: true}
	}

	if input.MinDurationHours != nil && input.MaxDurationHours != nil &&
		*input.MaxDurationHours < *input.MinDurationHours {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Maximum duration cannot be below the minimum.", ctx)
		return false
	}

	service.Name = input.Name
	service.Description = input.Description
	service.Category = input.Category
	service.MinDurationHours = input.MinDurationHours
	service.MaxDurationHours = input.MaxDurationHours
	service.MaxCapacity = input.MaxCapacity
	service.IncludesMaterials = input.IncludesMaterials
	service.IncludesTransport = input.IncludesTransport
	service.IncludesSetup = input.IncludesSetup
	service.IncludesTeardown = input.IncludesTeardown
	service.RequiresDeposit = input.RequiresDeposit
	service.City = input.City
	if input.CoverageRadius > 0 {
		service.CoverageRadius = input.CoverageRadius
	}
	if input.Images != nil {
		raw, _ := json.Marshal(input.Images)
		service.Images = raw
	}
	return true
}

func CreateService(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input ServiceInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	service := models.Service{
		ProviderID: userID,
		Status:     models.ServiceInReview,
	}
	if !applyServiceInput(&service, &input, ctx) {
		return
	}

	if err := storage.DB.Create(&service).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "service": service})
}

func GetProviderServices(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var listings []models.Service
	storage.DB.Where("provider_id = ?", userID).Order("created_at desc").Find(&listings)

	ctx.JSON(iris.Map{"success": true, "services": listings})
}

func UpdateService(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var service models.Service
	if err := storage.DB.First(&service, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if service.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	var input ServiceInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !applyServiceInput(&service, &input, ctx) {
		return
	}

	storage.DB.Save(&service)
	ctx.JSON(iris.Map{"success": true, "service": service})
}

// ToggleServiceAvailability flips a listing between disponible and
// no_disponible. Listings parked in moderation (or rejected) stay put.
func ToggleServiceAvailability(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var service models.Service
	if err := storage.DB.First(&service, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if service.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	switch service.Status {
	case models.ServiceAvailable:
		service.Status = models.ServiceUnavailable
	case models.ServiceUnavailable:
		service.Status = models.ServiceAvailable
	default:
		utils.CreateError(iris.StatusConflict, "Conflict", "Listing is under review and cannot change availability.", ctx)
		return
	}

	storage.DB.Save(&service)
	ctx.JSON(iris.Map{"success": true, "service": service})
}

func DeleteService(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var service models.Service
	if err := storage.DB.First(&service, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if service.ProviderID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	var active int64
	storage.DB.Model(&models.Contract{}).
		Where("service_id = ? AND status NOT IN ?", service.ID,
			[]string{models.ContractCompleted, models.ContractCancelled, models.ContractRejected}).
		Count(&active)
	if active > 0 {
		utils.CreateError(iris.StatusConflict, "Conflict", "Listing has active contracts and cannot be removed.", ctx)
		return
	}

	storage.DB.Delete(&service)
	ctx.JSON(iris.Map{"success": true})
}

type ratingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

func serviceRating(serviceID uint) ratingSummary {
	var summary ratingSummary
	row := storage.DB.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0), COUNT(*)").
		Where("service_id = ?", serviceID).Row()
	row.Scan(&summary.Average, &summary.Count)
	return summary
}

// SearchServices is the public catalog: only disponible listings, filterable
// by category, city, and price range.
func SearchServices(ctx iris.Context) {
	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.Service{}).Where("status = ?", models.ServiceAvailable)
	if category := ctx.URLParam("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if city := ctx.URLParam("city"); city != "" {
		q = q.Where("city ILIKE ?", city)
	}
	if minPrice := ctx.URLParam("min_price"); minPrice != "" {
		if price, err := decimal.NewFromString(minPrice); err == nil {
			q = q.Where("base_price >= ?", price)
		}
	}
	if maxPrice := ctx.URLParam("max_price"); maxPrice != "" {
		if price, err := decimal.NewFromString(maxPrice); err == nil {
			q = q.Where("base_price <= ?", price)
		}
	}

	var total int64
	q.Count(&total)

	var listings []models.Service
	q.Preload("Provider").Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).Find(&listings)

	utils.JSONPage(ctx, listings, page, perPage, total)
}

func GetServiceByID(ctx iris.Context) {
	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var service models.Service
	if err := storage.DB.Preload("Provider").First(&service, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var reviews []models.Review
	storage.DB.Where("service_id = ?", service.ID).Order("created_at desc").Limit(20).Find(&reviews)

	ctx.JSON(iris.Map{
		"success": true,
		"service": service,
		"rating":  serviceRating(service.ID),
		"reviews": reviews,
	})
}

// notifyServiceModeration is used by the admin moderation handlers; it lives
// here so the catalog owns every message about its own listings.
func notifyServiceModeration(service *models.Service, approved bool, reason string) {
	if approved {
		services.Notifier.Send(service.ProviderID, services.ServiceApproved(service))
		return
	}
	services.Notifier.Send(service.ProviderID, services.ServiceRejectedMsg(service, reason))
}
