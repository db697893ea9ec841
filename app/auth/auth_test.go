package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lysyi3m/bruinbrief/app/database"
)

func setupService(t *testing.T) (*Service, *database.UserStore) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatal(err)
	}

	users := database.NewUserStore(db)
	svc, err := NewService(users, "test-secret", 0)
	if err != nil {
		t.Fatal(err)
	}
	return svc, users
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := NewService(nil, "", time.Hour); err == nil {
		t.Error("Expected error for empty secret")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "  Joe.Bruin@UCLA.edu ", "goBruins1", "Joe Bruin")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.ID == "" || user.Email != "joe.bruin@ucla.edu" || user.Role != RoleUser {
		t.Errorf("Unexpected user: %+v", user)
	}
	if user.PasswordHash == "goBruins1" {
		t.Error("Expected password to be hashed")
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email || claims.IsAdmin() {
		t.Errorf("Unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultTokenTTL {
		t.Errorf("Expected %v token lifetime, got %v", DefaultTokenTTL, got)
	}

	loggedIn, _, err := svc.Login(ctx, "JOE.BRUIN@ucla.edu", "goBruins1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if loggedIn.ID != user.ID || loggedIn.LastLoginAt == nil {
		t.Errorf("Unexpected login user: %+v", loggedIn)
	}

	stored, err := svc.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.LastLoginAt == nil {
		t.Error("Expected last login to be persisted")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "joe@ucla.edu", "goBruins1", "Joe"); err != nil {
		t.Fatal(err)
	}
	_, _, err := svc.Register(ctx, "JOE@ucla.edu", "another1", "Joe Again")
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := setupService(t)

	_, _, err := svc.Register(context.Background(), "joe@ucla.edu", "abc", "Joe")
	if !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Expected ErrWeakPassword, got %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "joe@ucla.edu", "goBruins1", "Joe"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"unknown email", "josie@ucla.edu", "goBruins1"},
		{"wrong password", "joe@ucla.edu", "goTrojans1"},
		{"empty password", "joe@ucla.edu", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("Expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestParseTokenRejectsBadTokens(t *testing.T) {
	svc, _ := setupService(t)
	user := &database.User{ID: "u1", Email: "joe@ucla.edu", Role: RoleUser}

	other, err := NewService(nil, "other-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := other.IssueToken(user)
	if err != nil {
		t.Fatal(err)
	}

	expiredSvc, err := NewService(nil, "test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expiredSvc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := expiredSvc.IssueToken(user)
	if err != nil {
		t.Fatal(err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	valid, err := svc.IssueToken(user)
	if err != nil {
		t.Fatal(err)
	}
	tampered := valid[:strings.LastIndex(valid, ".")] + ".c2lnbmF0dXJl"

	tests := map[string]string{
		"garbage":      "not-a-token",
		"empty":        "",
		"wrong secret": foreign,
		"expired":      expired,
		"alg none":     none,
		"tampered":     tampered,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestAdminClaims(t *testing.T) {
	svc, users := setupService(t)
	ctx := context.Background()

	admin := &database.User{Email: "admin@ucla.edu", Name: "Admin", PasswordHash: "x", Role: RoleAdmin}
	if err := users.CreateUser(ctx, admin); err != nil {
		t.Fatal(err)
	}

	token, err := svc.IssueToken(admin)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if !claims.IsAdmin() {
		t.Errorf("Expected admin claims, got %+v", claims)
	}
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "joe@ucla.edu", "goBruins1", "Joe")
	if err != nil {
		t.Fatal(err)
	}

	name := "  Joe B.  "
	updated, err := svc.UpdateProfile(ctx, user.ID, &name, nil)
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Name != "Joe B." {
		t.Errorf("Expected trimmed name, got %q", updated.Name)
	}
	if updated.PasswordHash != user.PasswordHash {
		t.Error("Expected password to be unchanged")
	}

	password := "newPassword9"
	if _, err := svc.UpdateProfile(ctx, user.ID, nil, &password); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if _, _, err := svc.Login(ctx, "joe@ucla.edu", "goBruins1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected old password to be rejected, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "joe@ucla.edu", password); err != nil {
		t.Errorf("Expected new password to work, got %v", err)
	}

	short := "abc"
	if _, err := svc.UpdateProfile(ctx, user.ID, nil, &short); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("Expected ErrWeakPassword, got %v", err)
	}
	if _, err := svc.UpdateProfile(ctx, "missing", &name, nil); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
