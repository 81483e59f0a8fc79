package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lsgomez-jpg/eventlink-app/models"
	"github.com/lsgomez-jpg/eventlink-app/services"
	"github.com/lsgomez-jpg/eventlink-app/storage"
)

func getWithToken(app http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func postJSONPatch(app http.Handler, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPatch, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	app.ServeHTTP(resp, req)
	return resp
}

func TestAdminUsersRBAC(t *testing.T) {
	setupTestDB(t)
	app := buildTestApp()

	admin := createTestUser(t, models.RoleAdmin)
	organizer := createTestUser(t, models.RoleOrganizer)

	// No token
	if resp := getWithToken(app, "/api/admin/users", ""); resp.Code == http.StatusOK {
		t.Fatalf("expected non-200 without token, got %d", resp.Code)
	}

	// Organizer role
	if resp := getWithToken(app, "/api/admin/users", signTestToken(organizer.ID, organizer.Role)); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for organizer, got %d", resp.Code)
	}

	// Admin role
	if resp := getWithToken(app, "/api/admin/users", signTestToken(admin.ID, admin.Role)); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", resp.Code)
	}
}

func TestAdminModerateService(t *testing.T) {
	setupTestDB(t)
	app := buildTestApp()

	admin := createTestUser(t, models.RoleAdmin)
	provider := createTestUser(t, models.RoleProvider)

	svc := createTestService(t, provider.ID)
	storage.DB.Model(&svc).Update("status", models.ServiceInReview)

	token := signTestToken(admin.ID, admin.Role)
	path := "/api/admin/services/" + uintString(svc.ID) + "/moderate"

	resp := postJSONPatch(app, path, token, `{"approve":true}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("moderate status = %d, body %s", resp.Code, resp.Body.String())
	}

	var refreshed models.Service
	storage.DB.First(&refreshed, svc.ID)
	if refreshed.Status != models.ServiceAvailable {
		t.Fatalf("service status = %s, want disponible", refreshed.Status)
	}

	if n := countNotifications(t, provider.ID, services.KindServiceApproved); n != 1 {
		t.Fatalf("approval notifications = %d, want 1", n)
	}

	// Second pass must refuse: the listing already left the queue.
	if resp := postJSONPatch(app, path, token, `{"approve":false,"reason":"duplicado"}`); resp.Code != http.StatusConflict {
		t.Fatalf("re-moderation = %d, want 409", resp.Code)
	}

	var audits int64
	storage.DB.Model(&models.AuditLog{}).Where("action = ?", "service.moderate").Count(&audits)
	if audits != 1 {
		t.Fatalf("audit rows = %d, want 1", audits)
	}
}

func TestAdminModerateRejectionNeedsReason(t *testing.T) {
	setupTestDB(t)
	app := buildTestApp()

	admin := createTestUser(t, models.RoleAdmin)
	provider := createTestUser(t, models.RoleProvider)

	svc := createTestService(t, provider.ID)
	storage.DB.Model(&svc).Update("status", models.ServiceInReview)

	token := signTestToken(admin.ID, admin.Role)
	path := "/api/admin/services/" + uintString(svc.ID) + "/moderate"

	if resp := postJSONPatch(app, path, token, `{"approve":false}`); resp.Code != http.StatusBadRequest {
		t.Fatalf("reasonless rejection = %d, want 400", resp.Code)
	}

	if resp := postJSONPatch(app, path, token, `{"approve":false,"reason":"fotos de otro negocio"}`); resp.Code != http.StatusOK {
		t.Fatalf("rejection = %d", resp.Code)
	}

	var refreshed models.Service
	storage.DB.First(&refreshed, svc.ID)
	if refreshed.Status != models.ServiceRejected {
		t.Fatalf("service status = %s, want rechazado", refreshed.Status)
	}
	if n := countNotifications(t, provider.ID, services.KindServiceRejected); n != 1 {
		t.Fatalf("rejection notifications = %d, want 1", n)
	}
}
