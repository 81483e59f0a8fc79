package routes

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
	"github.com/lsgomez-jpg/eventlink-app/utils"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB swaps storage.DB for an in-memory SQLite database so the
// handlers run against real queries without a Postgres instance.
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// One connection, or every pooled connection sees its own empty :memory: db.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.Service{},
		&models.CartItem{},
		&models.Contract{},
		&models.Payment{},
		&models.Notification{},
		&models.Review{},
		&models.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storage.DB = db
}

// stubGateway answers every call with a fixed status.
type stubGateway struct {
	status      string
	err         error
	refundErr   error
	createCalls int
	getCalls    int
	refundCalls int
}

func (g *stubGateway) CreatePayment(req services.PaymentRequest) (*services.GatewayResult, error) {
	g.createCalls++
	if g.err != nil {
		return nil, g.err
	}
	return &services.GatewayResult{
		ExternalID:  "mp-test-1",
		Status:      g.status,
		RedirectURL: "https://pay.example/checkout/mp-test-1",
		Raw:         json.RawMessage(`{"status":"` + g.status + `"}`),
	}, nil
}

func (g *stubGateway) GetPayment(externalID string) (*services.GatewayResult, error) {
	g.getCalls++
	if g.err != nil {
		return nil, g.err
	}
	return &services.GatewayResult{
		ExternalID: externalID,
		Status:     g.status,
		Raw:        json.RawMessage(`{"status":"` + g.status + `"}`),
	}, nil
}

func (g *stubGateway) RefundPayment(externalID string) (*services.GatewayResult, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &services.GatewayResult{ExternalID: externalID, Status: services.GatewayRefunded}, nil
}

func installStubGateway(t *testing.T, status string, err error) *stubGateway {
	t.Helper()
	stub := &stubGateway{status: status, err: err}
	prev := services.PaymentGateway
	services.PaymentGateway = stub
	t.Cleanup(func() { services.PaymentGateway = prev })
	return stub
}

// buildTestApp wires the parties the same way main does, minus the outer
// CORS and compression layers the tests do not care about.
func buildTestApp() *iris.Application {
	os.Setenv("ACCESS_TOKEN_SECRET", "testsecret")

	app := iris.New()
	app.Configure(iris.WithoutStartupLog)
	app.Validator = validator.New()

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	verify := accessTokenVerifier.Verify(func() interface{} { return new(utils.AccessToken) })

	cart := app.Party("/api/cart", verify, utils.UserIDFromTokenMiddleware,
		utils.RequireRole(models.RoleOrganizer, models.RoleAdmin))
	{
		cart.Post("/", AddCartItem)
		cart.Get("/", GetCart)
		cart.Post("/checkout", Checkout)
	}

	contract := app.Party("/api/contract", verify, utils.UserIDFromTokenMiddleware)
	{
		contract.Get("/{id:uint}", GetContract)
		contract.Post("/{id:uint}/accept", utils.RequireRole(models.RoleProvider), AcceptContract)
		contract.Post("/{id:uint}/cancel", CancelContract)
	}

	payment := app.Party("/api/payment")
	{
		payment.Post("/webhook", PaymentWebhook)
	}

	review := app.Party("/api/review", verify, utils.UserIDFromTokenMiddleware,
		utils.RequireRole(models.RoleOrganizer, models.RoleAdmin))
	{
		review.Post("/", CreateReview)
	}

	admin := app.Party("/api/admin", verify, utils.AdminOnlyMiddleware)
	{
		admin.Get("/users", AdminListUsers)
		admin.Patch("/services/{id:uint}/moderate", AdminModerateService)
	}

	if err := app.Build(); err != nil {
		panic(err)
	}
	return app
}

func signTestToken(id uint, role string) string {
	signer := jwt.NewSigner(jwt.HS256, os.Getenv("ACCESS_TOKEN_SECRET"), time.Hour)
	token, _ := signer.Sign(utils.AccessToken{ID: id, Role: role})
	return string(token)
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func createTestUser(t *testing.T, role string) models.User {
	t.Helper()
	active := true
	u := models.User{
		FirstName: "Test",
		LastName:  role,
		Email:     role + "-" + time.Now().Format("150405.000000000") + "@example.com",
		Role:      role,
		Active:    &active,
	}
	if err := storage.DB.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createTestEvent(t *testing.T, organizerID uint) models.Event {
	t.Helper()
	e := models.Event{
		OrganizerID: organizerID,
		Title:       "Boda Martinez",
		Type:        models.EventTypeSocial,
		StartDate:   time.Now().Add(30 * 24 * time.Hour),
		EndDate:     time.Now().Add(30*24*time.Hour + 8*time.Hour),
		Location:    "Club Campestre",
		City:        "Medellin",
		Status:      models.EventActive,
	}
	if err := storage.DB.Create(&e).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func createTestService(t *testing.T, providerID uint) models.Service {
	t.Helper()
	s := models.Service{
		ProviderID:  providerID,
		Name:        "Catering Gourmet",
		Description: "Menu completo",
		Category:    models.CategoryCatering,
		BasePrice:   mustDecimal(t, "500.00"),
		HourlyPrice: decimal.NullDecimal{Decimal: mustDecimal(t, "50.00"), Valid: true},
		City:        "Medellin",
		Status:      models.ServiceAvailable,
	}
	if err := storage.DB.Create(&s).Error; err != nil {
		t.Fatalf("create service: %v", err)
	}
	return s
}

func createTestCartItem(t *testing.T, organizer models.User, event models.Event, svc models.Service) models.CartItem {
	t.Helper()
	item := models.CartItem{
		ServiceID:     svc.ID,
		EventID:       event.ID,
		OrganizerID:   organizer.ID,
		ServiceDate:   event.StartDate,
		DurationHours: 4,
		Location:      event.Location,
		Status:        models.CartItemPending,
	}
	item.SnapshotPricing(&svc)
	if err := storage.DB.Create(&item).Error; err != nil {
		t.Fatalf("create cart item: %v", err)
	}
	return item
}

func countNotifications(t *testing.T, userID uint, kind services.Kind) int64 {
	t.Helper()
	var n int64
	storage.DB.Model(&models.Notification{}).
		Where("user_id = ? AND kind = ?", userID, string(kind)).Count(&n)
	return n
}
