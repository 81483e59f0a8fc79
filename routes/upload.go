package routes

import (
	"strconv"
	"time"

	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
)

type UploadInput struct {
	Image string `json:"image" validate:"required"`
}

// UploadImage stores a base64 image and returns its public URL. The public
// ID is derived from the caller and the clock so repeat uploads never clash.
func UploadImage(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	var input UploadInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	publicID := "user_" + strconv.FormatUint(uint64(userID), 10) +
		"_" + strconv.FormatInt(time.Now().UnixNano(), 10)

	url := storage.UploadBase64Image(input.Image, publicID)
	if url == "" {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.StatusCode(iris.StatusCreated)
	ctx.JSON(iris.Map{"success": true, "url": url})
}

type DeleteImageInput struct {
	URL string `json:"url" validate:"required,url"`
}

func RemoveImage(ctx iris.Context) {
	var input DeleteImageInput
	if err := ctx.ReadJSON(&input); err != nil {
		utils.HandleValidationErrors(err, ctx)
		return
	}

	if !storage.DeleteImage(input.URL) {
		utils.CreateInternalServerError(ctx)
		return
	}

	ctx.JSON(iris.Map{"success": true})
}
