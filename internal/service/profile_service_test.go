package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/spec-kit/marketplace-service/internal/domain"
	apperrors "github.com/spec-kit/marketplace-service/pkg/util/errorutil"
)

type memAvatars struct {
	saved map[string][]byte
	err   error
}

func (m *memAvatars) SaveAvatar(_ context.Context, userID, ext string, src io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	url := "/uploads/avatars/" + userID + ext
	m.saved[url] = data
	return url, nil
}

func TestProjectProfile_Visibility(t *testing.T) {
	dob := time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC)
	owner := &domain.User{
		ID:           "u1",
		Username:     "alice",
		Email:        "alice@example.com",
		Location:     "Lisbon",
		DOB:          &dob,
		EmailVisible: true,
	}
	stranger := &domain.User{ID: "u2", Username: "bob"}

	tests := []struct {
		name         string
		viewer       *domain.User
		wantEmail    bool
		wantDOB      bool
		wantLocation bool
		wantOwner    bool
	}{
		{"owner sees everything", owner, true, true, true, true},
		{"stranger sees visible fields only", stranger, true, false, false, false},
		{"anonymous like stranger", nil, true, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectProfile(owner, tt.viewer)
			if (got.Email != nil) != tt.wantEmail {
				t.Errorf("Email present = %v, want %v", got.Email != nil, tt.wantEmail)
			}
			if (got.DOB != nil) != tt.wantDOB {
				t.Errorf("DOB present = %v, want %v", got.DOB != nil, tt.wantDOB)
			}
			if (got.Location != nil) != tt.wantLocation {
				t.Errorf("Location present = %v, want %v", got.Location != nil, tt.wantLocation)
			}
			if got.IsOwner != tt.wantOwner {
				t.Errorf("IsOwner = %v, want %v", got.IsOwner, tt.wantOwner)
			}
		})
	}

	noDOB := *owner
	noDOB.DOB = nil
	noDOB.DOBVisible = true
	if got := ProjectProfile(&noDOB, stranger); got.DOB != nil {
		t.Errorf("DOB = %v, want nil when unset", got.DOB)
	}
}

func newProfileService(env *testEnv, avatars *memAvatars) *ProfileService {
	return NewProfileService(ProfileDependencies{
		UserRepo:       env.store.Users(),
		SocialRepo:     env.store.Social(),
		AvatarStore:    avatars,
		MaxUploadBytes: 16,
	})
}

func TestGetProfile_BlockAndFollow(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	svc := newProfileService(env, &memAvatars{})
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	bob := seedUser(t, env.store, "bob", domain.RoleUser)
	carol := seedUser(t, env.store, "carol", domain.RoleUser)
	admin := seedUser(t, env.store, "admin", domain.RoleAdmin)

	if err := env.users.Follow(ctx, bob, "alice"); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if err := env.users.Block(ctx, alice, "carol"); err != nil {
		t.Fatalf("Block() error = %v", err)
	}

	profile, err := svc.GetProfile(ctx, "ALICE", bob)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if !profile.IsFollowing || profile.Followers != 1 {
		t.Errorf("IsFollowing = %v, Followers = %d; want true, 1", profile.IsFollowing, profile.Followers)
	}
	if _, err := svc.GetProfile(ctx, "alice", carol); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("GetProfile(blocked viewer) error = %v, want NOT_FOUND", err)
	}
	if _, err := svc.GetProfile(ctx, "alice", admin); err != nil {
		t.Errorf("GetProfile(admin) error = %v", err)
	}
	if _, err := svc.GetProfile(ctx, "nobody", bob); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Errorf("GetProfile(missing) error = %v, want NOT_FOUND", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	svc := newProfileService(env, &memAvatars{})
	alice := seedUser(t, env.store, "alice", domain.RoleUser)
	str := func(s string) *string { return &s }
	yes := true

	got, err := svc.UpdateProfile(ctx, alice, ProfileUpdate{
		DisplayName:     str(" Alice A. "),
		DOB:             str("1991-06-30"),
		LocationVisible: &yes,
		Location:        str("Porto"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if got.DisplayName != "Alice A." || got.DOB == nil || !got.LocationVisible {
		t.Errorf("profile = %+v", got)
	}

	cleared, err := svc.UpdateProfile(ctx, alice, ProfileUpdate{DOB: str("")})
	if err != nil {
		t.Fatalf("UpdateProfile(clear dob) error = %v", err)
	}
	if cleared.DOB != nil {
		t.Errorf("DOB = %v, want cleared", cleared.DOB)
	}

	invalid := []ProfileUpdate{
		{DisplayName: str("  ")},
		{DOB: str("30/06/1991")},
		{DOB: str(time.Now().AddDate(1, 0, 0).Format("2006-01-02"))},
	}
	for i, update := range invalid {
		if _, err := svc.UpdateProfile(ctx, alice, update); !apperrors.IsCode(err, "VALIDATION_FAILED") {
			t.Errorf("invalid update %d error = %v, want VALIDATION_FAILED", i, err)
		}
	}
}

func TestUploadAvatar(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	avatars := &memAvatars{}
	svc := newProfileService(env, avatars)
	alice := seedUser(t, env.store, "alice", domain.RoleUser)

	tests := []struct {
		name     string
		upload   AvatarUpload
		wantCode string
	}{
		{"png accepted", AvatarUpload{ContentType: "image/png", Size: 4, Body: bytes.NewReader([]byte("\x89PNG"))}, ""},
		{"svg rejected", AvatarUpload{ContentType: "image/svg+xml", Size: 4, Body: bytes.NewReader([]byte("<svg"))}, "VALIDATION_FAILED"},
		{"too large", AvatarUpload{ContentType: "image/jpeg", Size: 17, Body: bytes.NewReader(make([]byte, 17))}, "VALIDATION_FAILED"},
		{"empty", AvatarUpload{ContentType: "image/gif", Size: 0, Body: bytes.NewReader(nil)}, "VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := svc.UploadAvatar(ctx, alice, tt.upload)
			if tt.wantCode != "" {
				if !apperrors.IsCode(err, tt.wantCode) {
					t.Errorf("UploadAvatar() error = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("UploadAvatar() error = %v", err)
			}
			stored, _ := env.store.Users().GetByID(ctx, alice.ID)
			if stored.AvatarURL != url {
				t.Errorf("AvatarURL = %q, want %q", stored.AvatarURL, url)
			}
		})
	}

	avatars.err = errors.New("disk full")
	_, err := svc.UploadAvatar(ctx, alice, AvatarUpload{ContentType: "image/png", Size: 1, Body: bytes.NewReader([]byte{1})})
	if !apperrors.IsCode(err, "INTERNAL_ERROR") {
		t.Errorf("UploadAvatar(store failure) error = %v, want INTERNAL_ERROR", err)
	}
}
