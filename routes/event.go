package routes

import (
	"encoding/json"
	"time"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
	"github.com/shopspring/decimal"
)

type EventInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Type        string   `json:"type" validate:"required,oneof=corporativo social deportivo cultural religioso academico otro"`
	StartDate   string   `json:"startDate" validate:"required"`
	EndDate     string   `json:"endDate" validate:"required"`
	Location    string   `json:"location" validate:"required,max=300"`
	Address     string   `json:"address" validate:"max=500"`
	City        string   `json:"city" validate:"required,max=100"`
	MaxBudget   *string  `json:"maxBudget"`
	GuestCount  *int     `json:"guestCount" validate:"omitempty,min=1"`
	Images      []string `json:"images"`
}

const eventDateLayout = "2006-01-02T15:04"

func parseEventDates(input *EventInput, ctx iris.Context) (start, end time.Time, ok bool) {
	start, startErr := time.Parse(eventDateLayout, input.StartDate)
	end, endErr := time.Parse(eventDateLayout, input.EndDate)
	if startErr != nil || endErr != nil {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid date format, expected YYYY-MM-DDTHH:MM.", ctx)
		return start, end, false
	}
	if !end.After(start) {
		utils.CreateError(iris.StatusBadRequest, "Validation Error", "End date must be after start date.", ctx)
		return start, end, false
	}
	return start, end, true
}

func CreateEvent(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input EventInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	start, end, ok := parseEventDates(&input, ctx)
	if !ok {
		return
	}

	event := models.Event{
		OrganizerID: userID,
		Title:       input.Title,
		Description: input.Description,
		Type:        input.Type,
		StartDate:   start,
		EndDate:     end,
		Location:    input.Location,
		Address:     input.Address,
		City:        input.City,
		GuestCount:  input.GuestCount,
		Status:      models.EventDraft,
	}

	if input.MaxBudget != nil {
		budget, budgetErr := decimal.NewFromString(*input.MaxBudget)
		if budgetErr != nil || budget.IsNegative() {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid budget amount.", ctx)
			return
		}
		event.MaxBudget = decimal.NullDecimal{Decimal: budget, Valid: true}
	}

	if len(input.Images) > 0 {
		raw, _ := json.Marshal(input.Images)
		event.Images = raw
	}

	if err := storage.DB.Create(&event).Error; err != nil {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "event": event})
}

func GetUserEvents(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	var events []models.Event
	var total int64
	q := storage.DB.Model(&models.Event{}).Where("organizer_id = ?", userID)
	if status := ctx.URLParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	q.Count(&total)
	q.Order("start_date desc").Offset((page - 1) * perPage).Limit(perPage).Find(&events)

	utils.JSONPage(ctx, events, page, perPage, total)
}

func GetEvent(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var event models.Event
	if err := storage.DB.First(&event, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if event.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true, "event": event})
}

func UpdateEvent(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var event models.Event
	if err := storage.DB.First(&event, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if event.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	if event.Status == models.EventCompleted || event.Status == models.EventCancelled {
		utils.CreateError(iris.StatusConflict, "Conflict", "Finished events cannot be edited.", ctx)
		return
	}

	var input EventInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	start, end, ok := parseEventDates(&input, ctx)
	if !ok {
		return
	}

	event.Title = input.Title
	event.Description = input.Description
	event.Type = input.Type
	event.StartDate = start
	event.EndDate = end
	event.Location = input.Location
	event.Address = input.Address
	event.City = input.City
	event.GuestCount = input.GuestCount

	if input.MaxBudget != nil {
		budget, budgetErr := decimal.NewFromString(*input.MaxBudget)
		if budgetErr != nil || budget.IsNegative() {
			utils.CreateError(iris.StatusBadRequest, "Validation Error", "Invalid budget amount.", ctx)
			return
		}
		event.MaxBudget = decimal.NullDecimal{Decimal: budget, Valid: true}
	}

	if input.Images != nil {
		raw, _ := json.Marshal(input.Images)
		event.Images = raw
	}

	storage.DB.Save(&event)
	ctx.JSON(iris.Map{"success": true, "event": event})
}

// TransitionEvent advances the event lifecycle. The body carries the target
// status; cancellation is the only backward-looking move and is allowed from
// every pre-completion state.
type EventTransitionInput struct {
	Status string `json:"status" validate:"required,oneof=activo en_progreso completado cancelado"`
}

func TransitionEvent(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return
	}

	var input EventTransitionInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	var event models.Event
	if err := storage.DB.First(&event, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return
	}

	if event.OrganizerID != userID {
		utils.CreateForbidden(ctx)
		return
	}

	if err := event.Transition(input.Status); err != nil {
		utils.CreateError(iris.StatusConflict, "Invalid Transition",
			"Event cannot move from "+event.Status+" to "+input.Status+".", ctx)
		return
	}

	storage.DB.Save(&event)
	ctx.JSON(iris.Map{"success": true, "event": event})
}
