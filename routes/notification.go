package routes

import (
	"time"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/kataras/iris/v12"
)

// GetNotifications lists the caller's inbox, newest first. Archived entries
// only show up when asked for.
func GetNotifications(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	page := ctx.URLParamIntDefault("page", 1)
	perPage := ctx.URLParamIntDefault("per_page", 20)
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}

	q := storage.DB.Model(&models.Notification{}).Where("user_id = ?", userID)
	if status := ctx.URLParam("status"); status != "" {
		q = q.Where("status = ?", status)
	} else {
		q = q.Where("status <> ?", models.NotificationArchived)
	}

	var total int64
	q.Count(&total)

	var unread int64
	storage.DB.Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationUnread).
		Count(&unread)

	var notifications []models.Notification
	q.Order("created_at desc").Offset((page - 1) * perPage).Limit(perPage).Find(&notifications)

	ctx.JSON(iris.Map{
		"success": true,
		"data":    notifications,
		"meta":    utils.PageMeta{Page: page, PerPage: perPage, Total: total},
		"unread":  unread,
	})
}

func loadOwnNotification(ctx iris.Context) (*models.Notification, bool) {
	userID, _ := utils.ContextUserID(ctx)

	id, idErr := ctx.Params().GetUint("id")
	if idErr != nil {
		utils.CreateNotFound(ctx)
		return nil, false
	}

	var notification models.Notification
	if err := storage.DB.First(&notification, id).Error; err != nil {
		utils.CreateNotFound(ctx)
		return nil, false
	}
	if notification.UserID != userID {
		utils.CreateForbidden(ctx)
		return nil, false
	}
	return &notification, true
}

func MarkNotificationRead(ctx iris.Context) {
	notification, ok := loadOwnNotification(ctx)
	if !ok {
		return
	}

	notification.MarkRead()
	storage.DB.Save(notification)
	ctx.JSON(iris.Map{"success": true, "notification": notification})
}

func MarkAllNotificationsRead(ctx iris.Context) {
	userID, _ := utils.ContextUserID(ctx)

	now := time.Now().UTC()
	res := storage.DB.Model(&models.Notification{}).
		Where("user_id = ? AND status = ?", userID, models.NotificationUnread).
		Updates(map[string]interface{}{"status": models.NotificationRead, "read_at": now})

	ctx.JSON(iris.Map{"success": true, "updated": res.RowsAffected})
}

func ArchiveNotification(ctx iris.Context) {
	notification, ok := loadOwnNotification(ctx)
	if !ok {
		return
	}

	notification.Archive()
	storage.DB.Save(notification)
	ctx.JSON(iris.Map{"success": true, "notification": notification})
}
