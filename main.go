package main

import (
	"fmt"
	"log"
	"os"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/routes"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()
	services.InitializeGateway()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})

	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput utils.RefreshTokenInput
		err := ctx.ReadJSON(&tokenInput)
		if err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	user := app.Party("/api/user")
	{
		user.Post("/register", routes.Register)
		user.Post("/login", routes.Login)
		user.Post("/google", routes.GoogleLoginOrSignUp)
		user.Post("/google/idtoken", routes.GoogleIDTokenLogin)
		user.Get("/{id}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUser)
		user.Patch("/{id}/profile", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateProfile)
		user.Patch("/{id}/pushtoken", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.RegisterPushToken)
		user.Patch("/{id}/settings/notifications", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.UpdateNotificationSettings)
		user.Delete("/{id}", accessTokenVerifierMiddleware, utils.UserIDMiddleware, routes.DeactivateAccount)
	}

	event := app.Party("/api/event", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware,
		utils.RequireRole(models.RoleOrganizer, models.RoleAdmin))
	{
		event.Post("/", routes.CreateEvent)
		event.Get("/", routes.GetUserEvents)
		event.Get("/{id:uint}", routes.GetEvent)
		event.Patch("/{id:uint}", routes.UpdateEvent)
		event.Patch("/{id:uint}/status", routes.TransitionEvent)
	}

	service := app.Party("/api/service")
	{
		service.Get("/search", routes.SearchServices)
		service.Get("/{id:uint}", routes.GetServiceByID)
		service.Get("/{id:uint}/reviews", routes.GetServiceReviews)

		provider := service.Party("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware,
			utils.RequireRole(models.RoleProvider, models.RoleAdmin))
		provider.Post("/", routes.CreateService)
		provider.Get("/mine", routes.GetProviderServices)
		provider.Patch("/{id:uint}", routes.UpdateService)
		provider.Patch("/{id:uint}/availability", routes.ToggleServiceAvailability)
		provider.Delete("/{id:uint}", routes.DeleteService)
	}

	cart := app.Party("/api/cart", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware,
		utils.RequireRole(models.RoleOrganizer, models.RoleAdmin))
	{
		cart.Post("/", routes.AddCartItem)
		cart.Get("/", routes.GetCart)
		cart.Patch("/{id:uint}", routes.UpdateCartItem)
		cart.Delete("/{id:uint}", routes.RemoveCartItem)
		cart.Post("/checkout", routes.Checkout)
	}

	contract := app.Party("/api/contract", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		contract.Get("/", routes.GetUserContracts)
		contract.Get("/{id:uint}", routes.GetContract)
		contract.Post("/{id:uint}/accept", utils.RequireRole(models.RoleProvider), routes.AcceptContract)
		contract.Post("/{id:uint}/reject", utils.RequireRole(models.RoleProvider), routes.RejectContract)
		contract.Post("/{id:uint}/review", utils.RequireRole(models.RoleProvider), routes.ReviewContract)
		contract.Post("/{id:uint}/confirm", utils.RequireRole(models.RoleOrganizer, models.RoleAdmin), routes.ConfirmContract)
		contract.Post("/{id:uint}/start", utils.RequireRole(models.RoleProvider), routes.StartContract)
		contract.Post("/{id:uint}/complete", utils.RequireRole(models.RoleProvider), routes.CompleteContract)
		contract.Post("/{id:uint}/cancel", routes.CancelContract)
	}

	payment := app.Party("/api/payment")
	{
		// The gateway calls this back without credentials.
		payment.Post("/webhook", routes.PaymentWebhook)

		payment.Get("/", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetUserPayments)
		payment.Get("/{id:uint}", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware, routes.GetPayment)
	}

	review := app.Party("/api/review", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware,
		utils.RequireRole(models.RoleOrganizer, models.RoleAdmin))
	{
		review.Post("/", routes.CreateReview)
	}

	notification := app.Party("/api/notification", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		notification.Get("/", routes.GetNotifications)
		notification.Patch("/read-all", routes.MarkAllNotificationsRead)
		notification.Patch("/{id:uint}/read", routes.MarkNotificationRead)
		notification.Patch("/{id:uint}/archive", routes.ArchiveNotification)
	}

	upload := app.Party("/api/upload", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		upload.Post("/", routes.UploadImage)
		upload.Delete("/", routes.RemoveImage)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", routes.AdminListUsers)
		admin.Patch("/users/{id:uint}/role", routes.AdminChangeUserRole)
		admin.Patch("/users/{id:uint}/active", routes.AdminSetUserActive)
		admin.Get("/contracts", routes.AdminListContracts)
		admin.Get("/services/pending", routes.AdminListPendingServices)
		admin.Patch("/services/{id:uint}/moderate", routes.AdminModerateService)
	}

	app.Post("/api/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
