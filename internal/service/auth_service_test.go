package service

import (
	"context"
	"testing"

	"github.com/spec-kit/marketplace-service/internal/config"
	"github.com/spec-kit/marketplace-service/internal/domain"
	"github.com/spec-kit/marketplace-service/internal/repository/repotest"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

func newAuthService(store *repotest.Store) *AuthService {
	cfg := config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 10, BcryptCost: 4}}
	return NewAuthService(cfg, AuthDependencies{UserRepo: store.Users()})
}

func TestRegister(t *testing.T) {
	store := repotest.NewStore()
	svc := newAuthService(store)
	ctx := context.Background()

	user, token, _, err := svc.Register(ctx, RegisterInput{Username: "Bob", Email: "bob@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.Role != domain.RoleUser || user.DisplayName != "Bob" {
		t.Errorf("user = %+v, want USER with default display name", user)
	}
	claims, err := svc.TokenManager().ParseToken(token)
	if err != nil || claims.Subject != user.ID {
		t.Errorf("ParseToken() = %+v, %v; want subject %s", claims, err, user.ID)
	}

	tests := []struct {
		name     string
		input    RegisterInput
		wantCode string
	}{
		{"username differs only in case", RegisterInput{Username: "bob", Email: "other@example.com", Password: "password1"}, "CONFLICT"},
		{"email differs only in case", RegisterInput{Username: "robert", Email: "BOB@example.com", Password: "password1"}, "CONFLICT"},
		{"bad username", RegisterInput{Username: "b!", Email: "b@example.com", Password: "password1"}, "VALIDATION_FAILED"},
		{"bad email", RegisterInput{Username: "carol", Email: "Carol <carol@example.com>", Password: "password1"}, "VALIDATION_FAILED"},
		{"short password", RegisterInput{Username: "carol", Email: "carol@example.com", Password: "short"}, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := svc.Register(ctx, tt.input)
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Errorf("Register() error = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	store := repotest.NewStore()
	svc := newAuthService(store)
	ctx := context.Background()
	user, _, _, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	for _, identifier := range []string{"alice", "ALICE", "alice@example.com"} {
		if _, _, _, err := svc.Login(ctx, identifier, "password1"); err != nil {
			t.Errorf("Login(%q) error = %v", identifier, err)
		}
	}
	if _, _, _, err := svc.Login(ctx, "alice", "wrong-pass"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Errorf("Login(wrong password) error = %v, want UNAUTHORIZED", err)
	}
	if _, _, _, err := svc.Login(ctx, "nobody", "password1"); !apperrors.IsCode(err, "UNAUTHORIZED") {
		t.Errorf("Login(unknown) error = %v, want UNAUTHORIZED", err)
	}

	if err := store.Users().SetDisabled(ctx, user.ID, true); err != nil {
		t.Fatalf("SetDisabled() error = %v", err)
	}
	if _, _, _, err := svc.Login(ctx, "alice", "password1"); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Errorf("Login(disabled) error = %v, want FORBIDDEN", err)
	}
}

func TestUsernameAvailable(t *testing.T) {
	store := repotest.NewStore()
	svc := newAuthService(store)
	ctx := context.Background()
	seedUser(t, store, "Taken_Name", domain.RoleUser)

	tests := []struct {
		username string
		want     bool
		wantErr  bool
	}{
		{"taken_name", false, false},
		{"free_name", true, false},
		{"x", false, true},
	}
	for _, tt := range tests {
		got, err := svc.UsernameAvailable(ctx, tt.username)
		if (err != nil) != tt.wantErr {
			t.Errorf("UsernameAvailable(%q) error = %v, wantErr %v", tt.username, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("UsernameAvailable(%q) = %v, want %v", tt.username, got, tt.want)
		}
	}
}
