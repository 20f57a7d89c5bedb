package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apihttp "github.com/spec-kit/marketplace-service/internal/api/http"
	"github.com/spec-kit/marketplace-service/internal/api/http/handlers"
	"github.com/spec-kit/marketplace-service/internal/auth"
	"github.com/spec-kit/marketplace-service/internal/config"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/events"
	"github.com/spec-kit/marketplace-service/internal/observability"
	"github.com/spec-kit/marketplace-service/internal/repository/repotest"
	"github.com/spec-kit/marketplace-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	store  *repotest.Store
	tokens *auth.TokenManager
}

type serverOption func(*apihttp.RouteConfig)

func withAuthRateLimit(max int) serverOption {
	return func(rc *apihttp.RouteConfig) {
		rc.AuthRateLimit = apihttp.RateLimit{Max: max, Window: time.Minute, Prefix: "auth"}
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	store := repotest.NewStore()
	dispatcher := events.NewInMemoryDispatcher(logger)

	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 10, BcryptCost: 4, CookieName: "token"}}
	authService := service.NewAuthService(cfg, service.AuthDependencies{UserRepo: store.Users()})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: store.Notifications(),
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	notifications.RegisterHandlers()
	support := service.NewSupportService(service.SupportDependencies{
		TicketRepo:  store.Tickets(),
		CommentRepo: store.Comments(),
		UserRepo:    store.Users(),
		AuditRepo:   store.AuditLogs(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := fiber.New(fiber.Config{ErrorHandler: apihttp.ErrorHandler(logger, metrics)})
	apihttp.RegisterMiddlewares(app, apihttp.MiddlewareConfig{Logger: logger, Metrics: metrics})

	rc := apihttp.RouteConfig{
		Health: handlers.NewHealthHandler(handlers.HealthDependencies{ServiceName: "test", Metrics: metrics}),
		Auth:   handlers.NewAuthHandler(authService, "token", false),
		Admin: handlers.NewAdminHandler(service.NewAdminService(service.AdminDependencies{
			UserRepo:  store.Users(),
			AuditRepo: store.AuditLogs(),
		}), support),
		Inventory: handlers.NewInventoryHandler(service.NewInventoryService(service.InventoryDependencies{
			ProductRepo: store.Products(),
			SocialRepo:  store.Social(),
			AuditRepo:   store.AuditLogs(),
		})),
		Orders: handlers.NewOrdersHandler(service.NewOrderService(service.OrderDependencies{
			OrderRepo:   store.Orders(),
			ProductRepo: store.Products(),
			AuditRepo:   store.AuditLogs(),
			Dispatcher:  dispatcher,
		})),
		Messages: handlers.NewMessagesHandler(service.NewMessageService(service.MessageDependencies{
			UserRepo:    store.Users(),
			MessageRepo: store.Messages(),
			SocialRepo:  store.Social(),
			Notifier:    notifications,
		})),
		Notifications: handlers.NewNotificationsHandler(notifications),
		Profile: handlers.NewProfileHandler(service.NewProfileService(service.ProfileDependencies{
			UserRepo:       store.Users(),
			SocialRepo:     store.Social(),
			MaxUploadBytes: 1 << 10,
		})),
		Support: handlers.NewSupportHandler(support),
		Users: handlers.NewUsersHandler(service.NewUserService(service.UserDependencies{
			UserRepo:   store.Users(),
			SocialRepo: store.Social(),
			Dispatcher: dispatcher,
		})),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), store.Users(), "token"),
	}
	for _, opt := range opts {
		opt(&rc)
	}
	apihttp.RegisterRoutes(app, rc)

	return &testServer{app: app, store: store, tokens: authService.TokenManager()}
}

func (s *testServer) seedUser(t *testing.T, username string, role domain.Role) (*domain.User, string) {
	t.Helper()
	user := &domain.User{Username: username, Email: username + "@example.com", Role: role, DisplayName: username}
	if err := s.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	token, _, err := s.tokens.GenerateToken(user.ID, role)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return user, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test(%s %s) error = %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("response has no data object: %v", body)
	}
	return d
}

func TestRoutes_RequireAuthentication(t *testing.T) {
	srv := newTestServer(t)

	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/notifications"},
		{http.MethodPost, "/api/orders"},
		{http.MethodGet, "/api/support/tickets"},
		{http.MethodGet, "/api/admin/users"},
	}
	for _, p := range paths {
		status, body := srv.do(t, p.method, p.path, "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", p.method, p.path, status)
		}
		if body["code"] != "UNAUTHORIZED" {
			t.Errorf("%s %s code = %v, want UNAUTHORIZED", p.method, p.path, body["code"])
		}
	}
}

func TestRoutes_ErrorBodyIsFlat(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodGet, "/api/nowhere", "", nil)
	if status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", status)
	}
	if body["code"] != "NOT_FOUND" || body["message"] == nil {
		t.Errorf("body = %v, want flat code and message", body)
	}
	if _, nested := body["error"]; nested {
		t.Errorf("body = %v, want no nested error object", body)
	}
}

func TestRoutes_RegisterLoginMe(t *testing.T) {
	srv := newTestServer(t)

	status, body := srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "Alice", "email": "alice@example.com", "password": "correct horse",
	})
	if status != http.StatusCreated {
		t.Fatalf("register status = %d body = %v", status, body)
	}

	status, _ = srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"username": "alice", "email": "other@example.com", "password": "correct horse",
	})
	if status != http.StatusConflict {
		t.Errorf("duplicate register status = %d, want 409", status)
	}

	status, body = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"identifier": "alice", "password": "correct horse",
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d body = %v", status, body)
	}
	authInfo, _ := data(t, body)["auth"].(map[string]any)
	token, _ := authInfo["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}

	status, body = srv.do(t, http.MethodGet, "/api/auth/me", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me status = %d body = %v", status, body)
	}
	if got := data(t, body)["username"]; got != "Alice" {
		t.Errorf("me username = %v, want Alice", got)
	}

	status, _ = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"identifier": "alice", "password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Errorf("bad password status = %d, want 401", status)
	}
}

func TestRoutes_ClaimRace(t *testing.T) {
	srv := newTestServer(t)
	_, userToken := srv.seedUser(t, "customer", domain.RoleUser)
	agentA, tokenA := srv.seedUser(t, "agent-a", domain.RoleSupport)
	_, tokenB := srv.seedUser(t, "agent-b", domain.RoleSupport)

	status, body := srv.do(t, http.MethodPost, "/api/support/tickets", userToken, map[string]any{
		"subject": "Refund", "description": "Item never arrived",
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d body = %v", status, body)
	}
	ticketID, _ := data(t, body)["id"].(string)

	status, _ = srv.do(t, http.MethodPost, "/api/support/tickets/"+ticketID+"/claim", userToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("user claim status = %d, want 403", status)
	}

	status, body = srv.do(t, http.MethodPost, "/api/support/tickets/"+ticketID+"/claim", tokenA, nil)
	if status != http.StatusOK {
		t.Fatalf("first claim status = %d body = %v", status, body)
	}
	if got := data(t, body)["assigned_to"]; got != agentA.ID {
		t.Errorf("assigned_to = %v, want %s", got, agentA.ID)
	}

	status, body = srv.do(t, http.MethodPost, "/api/support/tickets/"+ticketID+"/claim", tokenB, nil)
	if status != http.StatusConflict || body["code"] != "CONFLICT" {
		t.Errorf("second claim = %d %v, want 409 CONFLICT", status, body["code"])
	}

	status, _ = srv.do(t, http.MethodPost, "/api/support/tickets/missing/claim", tokenB, nil)
	if status != http.StatusNotFound {
		t.Errorf("claim missing status = %d, want 404", status)
	}
}

func TestRoutes_ProfileHidesPrivateFields(t *testing.T) {
	srv := newTestServer(t)
	_, ownerToken := srv.seedUser(t, "dana", domain.RoleUser)
	_, viewerToken := srv.seedUser(t, "eli", domain.RoleUser)

	status, body := srv.do(t, http.MethodPatch, "/api/profile", ownerToken, map[string]any{
		"location": "Lisbon", "location_visible": false, "email_visible": false,
	})
	if status != http.StatusOK {
		t.Fatalf("update status = %d body = %v", status, body)
	}

	tests := []struct {
		name         string
		token        string
		wantLocation bool
	}{
		{name: "anonymous", wantLocation: false},
		{name: "other user", token: viewerToken, wantLocation: false},
		{name: "owner", token: ownerToken, wantLocation: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := srv.do(t, http.MethodGet, "/api/profile/dana", tt.token, nil)
			if status != http.StatusOK {
				t.Fatalf("status = %d body = %v", status, body)
			}
			profile := data(t, body)
			_, hasLocation := profile["location"]
			_, hasEmail := profile["email"]
			_, hasVisibility := profile["visibility"]
			if hasLocation != tt.wantLocation || hasEmail != tt.wantLocation || hasVisibility != tt.wantLocation {
				t.Errorf("location=%v email=%v visibility=%v, want all %v", hasLocation, hasEmail, hasVisibility, tt.wantLocation)
			}
		})
	}
}

func TestRoutes_AdminGuard(t *testing.T) {
	srv := newTestServer(t)
	_, userToken := srv.seedUser(t, "plain", domain.RoleUser)
	_, adminToken := srv.seedUser(t, "boss", domain.RoleAdmin)

	status, _ := srv.do(t, http.MethodGet, "/api/admin/users", userToken, nil)
	if status != http.StatusForbidden {
		t.Errorf("user status = %d, want 403", status)
	}
	status, body := srv.do(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if status != http.StatusOK {
		t.Fatalf("admin status = %d body = %v", status, body)
	}
	if users, _ := body["data"].([]any); len(users) != 2 {
		t.Errorf("len(users) = %d, want 2", len(users))
	}
}

func TestRoutes_AuthRateLimit(t *testing.T) {
	srv := newTestServer(t, withAuthRateLimit(2))

	for i := 0; i < 2; i++ {
		status, _ := srv.do(t, http.MethodGet, "/api/auth/username-available?username=zed", "", nil)
		if status != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, status)
		}
	}
	status, body := srv.do(t, http.MethodGet, "/api/auth/username-available?username=zed", "", nil)
	if status != http.StatusTooManyRequests || body["code"] != "RATE_LIMITED" {
		t.Errorf("third request = %d %v, want 429 RATE_LIMITED", status, body["code"])
	}
}

func TestHealth_Metrics(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodGet, "/health/live", "", nil)

	status, body := srv.do(t, http.MethodGet, "/health/metrics", "", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if _, ok := body["metrics"].(map[string]any); !ok {
		t.Errorf("metrics missing from %v", body)
	}
}
