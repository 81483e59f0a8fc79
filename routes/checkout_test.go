package routes

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
)

func postJSON(app http.Handler, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func checkoutBody(itemID uint) string {
	return `{"itemIDs":[` + uintString(itemID) + `],"paymentMethod":"mercadopago"}`
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func TestCheckoutApprovedPayment(t *testing.T) {
	setupTestDB(t)
	installStubGateway(t, services.GatewayApproved, nil)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)
	item := createTestCartItem(t, organizer, event, svc)

	resp := postJSON(app, "/api/cart/checkout", signTestToken(organizer.ID, organizer.Role), checkoutBody(item.ID))
	if resp.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d, body %s", resp.Code, resp.Body.String())
	}

	var contract models.Contract
	if err := storage.DB.Where("event_id = ? AND service_id = ?", event.ID, svc.ID).
		First(&contract).Error; err != nil {
		t.Fatalf("contract not created: %v", err)
	}
	if contract.Status != models.ContractConfirmed {
		t.Fatalf("contract status = %s, want confirmada", contract.Status)
	}
	// 500 base + 50*4 hours
	if !contract.PriceTotal.Equal(item.PriceTotal) || contract.PriceTotal.StringFixed(2) != "700.00" {
		t.Fatalf("contract total = %s, cart total = %s", contract.PriceTotal, item.PriceTotal)
	}
	if !contract.BalanceDue.IsZero() {
		t.Fatalf("confirmed contract must owe nothing, got %s", contract.BalanceDue)
	}

	var payment models.Payment
	if err := storage.DB.Where("contract_id = ?", contract.ID).First(&payment).Error; err != nil {
		t.Fatalf("payment not created: %v", err)
	}
	if payment.Status != models.PaymentApproved {
		t.Fatalf("payment status = %s, want aprobado", payment.Status)
	}
	if payment.ExternalReference == "" || payment.ExternalTransactionID != "mp-test-1" {
		t.Fatalf("gateway linkage missing: ref=%q txn=%q", payment.ExternalReference, payment.ExternalTransactionID)
	}

	var refreshed models.CartItem
	storage.DB.First(&refreshed, item.ID)
	if refreshed.Status != models.CartItemCompleted {
		t.Fatalf("cart item status = %s, want completado", refreshed.Status)
	}

	// The provider hears about the new contract exactly once; payment
	// confirmations go to the payer.
	if n := countNotifications(t, provider.ID, services.KindContractRequested); n != 1 {
		t.Fatalf("provider request notifications = %d, want 1", n)
	}
	if n := countNotifications(t, provider.ID, services.KindPaymentReceived); n != 0 {
		t.Fatalf("provider payment notifications = %d, want 0", n)
	}
	if n := countNotifications(t, organizer.ID, services.KindPaymentReceived); n != 1 {
		t.Fatalf("organizer payment notifications = %d, want 1", n)
	}
}

func TestCheckoutDoubleSubmit(t *testing.T) {
	setupTestDB(t)
	installStubGateway(t, services.GatewayApproved, nil)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)
	item := createTestCartItem(t, organizer, event, svc)

	token := signTestToken(organizer.ID, organizer.Role)
	first := postJSON(app, "/api/cart/checkout", token, checkoutBody(item.ID))
	if first.Code != http.StatusCreated {
		t.Fatalf("first checkout = %d", first.Code)
	}

	second := postJSON(app, "/api/cart/checkout", token, checkoutBody(item.ID))
	if second.Code != http.StatusConflict {
		t.Fatalf("second checkout = %d, want 409", second.Code)
	}

	var contracts int64
	storage.DB.Model(&models.Contract{}).
		Where("event_id = ? AND service_id = ?", event.ID, svc.ID).Count(&contracts)
	if contracts != 1 {
		t.Fatalf("contracts = %d, want 1", contracts)
	}
}

func TestCheckoutRejectedPaymentReleasesItem(t *testing.T) {
	setupTestDB(t)
	installStubGateway(t, services.GatewayRejected, nil)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)
	item := createTestCartItem(t, organizer, event, svc)

	resp := postJSON(app, "/api/cart/checkout", signTestToken(organizer.ID, organizer.Role), checkoutBody(item.ID))
	if resp.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d", resp.Code)
	}

	var payment models.Payment
	storage.DB.Where("organizer_id = ?", organizer.ID).First(&payment)
	if payment.Status != models.PaymentRejected {
		t.Fatalf("payment status = %s, want rechazado", payment.Status)
	}

	// The speculative contract is rolled back, only the payment row remains.
	var contracts int64
	storage.DB.Model(&models.Contract{}).
		Where("event_id = ? AND service_id = ?", event.ID, svc.ID).Count(&contracts)
	if contracts != 0 {
		t.Fatalf("contracts = %d, want 0", contracts)
	}

	var refreshed models.CartItem
	storage.DB.First(&refreshed, item.ID)
	if refreshed.Status != models.CartItemPending {
		t.Fatalf("item must return to the cart, got %s", refreshed.Status)
	}

	if n := countNotifications(t, organizer.ID, services.KindPaymentFailed); n != 1 {
		t.Fatalf("failure notifications = %d, want 1", n)
	}
	if n := countNotifications(t, provider.ID, services.KindContractRequested); n != 0 {
		t.Fatalf("provider request notifications = %d, want 0", n)
	}
}

func TestCheckoutGatewayTimeoutKeepsPaymentPending(t *testing.T) {
	setupTestDB(t)
	installStubGateway(t, "", services.ErrGatewayTimeout)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)
	item := createTestCartItem(t, organizer, event, svc)

	resp := postJSON(app, "/api/cart/checkout", signTestToken(organizer.ID, organizer.Role), checkoutBody(item.ID))
	if resp.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d", resp.Code)
	}

	var payment models.Payment
	storage.DB.Where("organizer_id = ?", organizer.ID).First(&payment)
	if payment.Status != models.PaymentPending {
		t.Fatalf("timed-out payment must stay pendiente, got %s", payment.Status)
	}

	var contract models.Contract
	storage.DB.Where("service_id = ?", svc.ID).First(&contract)
	if contract.Status != models.ContractRequested {
		t.Fatalf("contract must wait in solicitada, got %s", contract.Status)
	}
}

func TestWebhookApprovesAndIsIdempotent(t *testing.T) {
	setupTestDB(t)
	installStubGateway(t, services.GatewayApproved, nil)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)

	contract := models.Contract{
		EventID:     event.ID,
		ServiceID:   svc.ID,
		OrganizerID: organizer.ID,
		ProviderID:  provider.ID,
		ServiceDate: event.StartDate,
		PriceTotal:  mustDecimal(t, "700.00"),
		BalanceDue:  mustDecimal(t, "700.00"),
		Status:      models.ContractRequested,
	}
	if err := storage.DB.Create(&contract).Error; err != nil {
		t.Fatalf("create contract: %v", err)
	}
	contractID := contract.ID
	payment := models.Payment{
		ContractID:            &contractID,
		OrganizerID:           organizer.ID,
		Amount:                contract.PriceTotal,
		Method:                models.MethodMercadoPago,
		Status:                models.PaymentPending,
		PayerEmail:            organizer.Email,
		ExternalReference:     "ref-webhook-1",
		ExternalTransactionID: "mp-webhook-1",
	}
	if err := storage.DB.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	body := `{"data":{"id":"mp-webhook-1"}}`
	first := postJSON(app, "/api/payment/webhook", "", body)
	if first.Code != http.StatusOK {
		t.Fatalf("webhook status = %d", first.Code)
	}

	storage.DB.First(&payment, payment.ID)
	if payment.Status != models.PaymentApproved {
		t.Fatalf("payment status = %s, want aprobado", payment.Status)
	}
	storage.DB.First(&contract, contract.ID)
	if contract.Status != models.ContractConfirmed {
		t.Fatalf("contract status = %s, want confirmada", contract.Status)
	}

	// Replay: the gateway retries webhooks, nothing may change or duplicate.
	before := countNotifications(t, organizer.ID, services.KindPaymentReceived)
	if before != 1 {
		t.Fatalf("payer payment notifications = %d, want 1", before)
	}
	second := postJSON(app, "/api/payment/webhook", "", body)
	if second.Code != http.StatusOK {
		t.Fatalf("replayed webhook status = %d", second.Code)
	}
	after := countNotifications(t, organizer.ID, services.KindPaymentReceived)
	if before != after {
		t.Fatalf("replay duplicated notifications: %d -> %d", before, after)
	}
	storage.DB.First(&payment, payment.ID)
	if payment.Status != models.PaymentApproved {
		t.Fatalf("replay changed payment status to %s", payment.Status)
	}
}

func TestCancelAfterPaymentRefunds(t *testing.T) {
	setupTestDB(t)
	stub := installStubGateway(t, services.GatewayApproved, nil)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)
	item := createTestCartItem(t, organizer, event, svc)

	token := signTestToken(organizer.ID, organizer.Role)
	if resp := postJSON(app, "/api/cart/checkout", token, checkoutBody(item.ID)); resp.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d", resp.Code)
	}

	var contract models.Contract
	storage.DB.Where("service_id = ?", svc.ID).First(&contract)

	resp := postJSON(app, "/api/contract/"+uintString(contract.ID)+"/cancel", token,
		`{"reason":"cambio de fecha"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", resp.Code, resp.Body.String())
	}

	storage.DB.First(&contract, contract.ID)
	if contract.Status != models.ContractCancelled {
		t.Fatalf("contract status = %s, want cancelada", contract.Status)
	}
	if stub.refundCalls != 1 {
		t.Fatalf("refund calls = %d, want 1", stub.refundCalls)
	}

	var payment models.Payment
	storage.DB.Where("contract_id = ?", contract.ID).First(&payment)
	if payment.Status != models.PaymentRefunded {
		t.Fatalf("payment status = %s, want reembolsado", payment.Status)
	}

	if n := countNotifications(t, provider.ID, services.KindContractCancelled); n != 1 {
		t.Fatalf("cancellation notifications = %d, want 1", n)
	}
}

func TestCancelRefundFailureKeepsPaymentApproved(t *testing.T) {
	setupTestDB(t)
	stub := installStubGateway(t, services.GatewayApproved, nil)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)
	item := createTestCartItem(t, organizer, event, svc)

	token := signTestToken(organizer.ID, organizer.Role)
	if resp := postJSON(app, "/api/cart/checkout", token, checkoutBody(item.ID)); resp.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d", resp.Code)
	}

	stub.refundErr = errors.New("gateway unavailable")

	var contract models.Contract
	storage.DB.Where("service_id = ?", svc.ID).First(&contract)

	resp := postJSON(app, "/api/contract/"+uintString(contract.ID)+"/cancel", token,
		`{"reason":"cambio de fecha"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, body %s", resp.Code, resp.Body.String())
	}

	// The cancellation itself goes through.
	storage.DB.First(&contract, contract.ID)
	if contract.Status != models.ContractCancelled {
		t.Fatalf("contract status = %s, want cancelada", contract.Status)
	}
	if stub.refundCalls != 1 {
		t.Fatalf("refund calls = %d, want 1", stub.refundCalls)
	}

	// The money never moved back, so the ledger may not say reembolsado.
	var payment models.Payment
	storage.DB.Where("contract_id = ?", contract.ID).First(&payment)
	if payment.Status != models.PaymentApproved {
		t.Fatalf("payment status = %s, want aprobado", payment.Status)
	}
}

func TestWebhookReferenceOnlyPingStaysPending(t *testing.T) {
	setupTestDB(t)
	stub := installStubGateway(t, services.GatewayApproved, nil)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)

	// A payment the gateway has not assigned a transaction id to yet.
	payment := models.Payment{
		OrganizerID:       organizer.ID,
		Amount:            mustDecimal(t, "700.00"),
		Method:            models.MethodMercadoPago,
		Status:            models.PaymentPending,
		PayerEmail:        organizer.Email,
		ExternalReference: "ref-pending-1",
	}
	if err := storage.DB.Create(&payment).Error; err != nil {
		t.Fatalf("create payment: %v", err)
	}

	resp := postJSON(app, "/api/payment/webhook", "", `{"external_reference":"ref-pending-1"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("webhook status = %d, body %s", resp.Code, resp.Body.String())
	}

	if stub.getCalls != 0 {
		t.Fatalf("gateway lookups = %d, want 0", stub.getCalls)
	}
	storage.DB.First(&payment, payment.ID)
	if payment.Status != models.PaymentPending {
		t.Fatalf("payment status = %s, want pendiente", payment.Status)
	}
}

func TestReviewOnlyOnceAndOnlyCompleted(t *testing.T) {
	setupTestDB(t)
	app := buildTestApp()

	organizer := createTestUser(t, models.RoleOrganizer)
	provider := createTestUser(t, models.RoleProvider)
	event := createTestEvent(t, organizer.ID)
	svc := createTestService(t, provider.ID)

	contract := models.Contract{
		EventID:     event.ID,
		ServiceID:   svc.ID,
		OrganizerID: organizer.ID,
		ProviderID:  provider.ID,
		ServiceDate: event.StartDate,
		PriceTotal:  mustDecimal(t, "700.00"),
		BalanceDue:  mustDecimal(t, "0"),
		Status:      models.ContractInProgress,
	}
	if err := storage.DB.Create(&contract).Error; err != nil {
		t.Fatalf("create contract: %v", err)
	}

	token := signTestToken(organizer.ID, organizer.Role)
	body := `{"contractID":` + uintString(contract.ID) + `,"rating":5,"comment":"excelente servicio"}`

	// Not finished yet.
	if resp := postJSON(app, "/api/review", token, body); resp.Code != http.StatusConflict {
		t.Fatalf("review before completion = %d, want 409", resp.Code)
	}

	storage.DB.Model(&contract).Update("status", models.ContractCompleted)

	if resp := postJSON(app, "/api/review", token, body); resp.Code != http.StatusCreated {
		t.Fatalf("review status = %d, body %s", resp.Code, resp.Body.String())
	}
	if resp := postJSON(app, "/api/review", token, body); resp.Code != http.StatusConflict {
		t.Fatalf("duplicate review = %d, want 409", resp.Code)
	}

	if n := countNotifications(t, provider.ID, services.KindNewReview); n != 1 {
		t.Fatalf("review notifications = %d, want 1", n)
	}

	// Only the organizer side may review.
	providerToken := signTestToken(provider.ID, provider.Role)
	if resp := postJSON(app, "/api/review", providerToken, body); resp.Code != http.StatusForbidden {
		t.Fatalf("provider review = %d, want 403", resp.Code)
	}
}
