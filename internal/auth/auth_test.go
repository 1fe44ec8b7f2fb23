package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/wuwenbin0122/wellbeing-chat/internal/auth"
)

func newTestService(t *testing.T) (*auth.Service, *auth.MemoryStore) {
	t.Helper()
	store := auth.NewMemoryStore()
	svc, err := auth.NewService(store, "test-secret", time.Hour, nil)
	if err != nil {
		t.Fatalf("unexpected error creating auth service: %v", err)
	}
	return svc, store
}

func TestCreateUserStoresHashedPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.CreateUser(ctx, "A@X.com", "pw123456", "A")
	if err != nil {
		t.Fatalf("create user returned error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected user id to be populated")
	}

	user, err := svc.FindUserByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("find user returned error: %v", err)
	}
	if user == nil {
		t.Fatalf("expected user to be found")
	}
	if user.ID != id {
		t.Fatalf("expected id %s, got %s", id, user.ID)
	}
	if user.PasswordHash == "pw123456" {
		t.Fatalf("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw123456")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
	if cost, err := bcrypt.Cost([]byte(user.PasswordHash)); err != nil || cost != auth.PasswordCost {
		t.Fatalf("expected bcrypt cost %d, got %d (%v)", auth.PasswordCost, cost, err)
	}
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "a@x.com", "pw123456", "A"); err != nil {
		t.Fatalf("create user returned error: %v", err)
	}

	for _, tc := range []struct{ email, password, name string }{
		{"a@x.com", "pw123456", "A"},
		{"A@x.com ", "different-password", "Someone Else"},
	} {
		if _, err := svc.CreateUser(ctx, tc.email, tc.password, tc.name); !errors.Is(err, auth.ErrDuplicateEmail) {
			t.Fatalf("expected duplicate email error for %q, got %v", tc.email, err)
		}
	}
}

func TestCreateUserValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "", "pw123456", "A"); !errors.Is(err, auth.ErrMissingFields) {
		t.Fatalf("expected missing fields error, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "b@x.com", "pw123456", "  "); !errors.Is(err, auth.ErrMissingFields) {
		t.Fatalf("expected missing fields error, got %v", err)
	}
	if _, err := svc.CreateUser(ctx, "b@x.com", "123", "B"); !errors.Is(err, auth.ErrPasswordTooWeak) {
		t.Fatalf("expected weak password error, got %v", err)
	}
}

func TestValidateUserDoesNotDistinguishFailures(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, "a@x.com", "pw123456", "A"); err != nil {
		t.Fatalf("create user returned error: %v", err)
	}

	unknown, err := svc.ValidateUser(ctx, "nobody@x.com", "pw123456")
	if err != nil || unknown != nil {
		t.Fatalf("expected absent result for unknown email, got %v, %v", unknown, err)
	}

	wrong, err := svc.ValidateUser(ctx, "a@x.com", "not-the-password")
	if err != nil || wrong != nil {
		t.Fatalf("expected absent result for wrong password, got %v, %v", wrong, err)
	}

	ok, err := svc.ValidateUser(ctx, "a@x.com", "pw123456")
	if err != nil || ok == nil {
		t.Fatalf("expected user for valid credentials, got %v, %v", ok, err)
	}
	if ok.PasswordHash != "" {
		t.Fatalf("expected sanitized user")
	}
	if ok.Name != "A" || ok.Email != "a@x.com" {
		t.Fatalf("unexpected user %+v", ok)
	}
}

func TestSignupLoginAndToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	signup, err := svc.Signup(ctx, auth.RegisterInput{Email: "alice@example.com", Password: "s3cret!", Name: "Alice"})
	if err != nil {
		t.Fatalf("signup returned error: %v", err)
	}
	if !signup.IsNewUser {
		t.Fatalf("expected signup to mark new user")
	}
	if signup.Token == "" {
		t.Fatalf("expected token on signup")
	}

	claims, err := svc.VerifyToken(signup.Token)
	if err != nil {
		t.Fatalf("verify token failed: %v", err)
	}
	if claims.Subject != signup.User.ID {
		t.Fatalf("expected token subject %s, got %s", signup.User.ID, claims.Subject)
	}

	login, err := svc.Login(ctx, auth.LoginInput{Email: "alice@example.com", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("login returned error: %v", err)
	}
	if login.IsNewUser {
		t.Fatalf("expected login to report existing user")
	}
	if login.User.ID != signup.User.ID {
		t.Fatalf("expected same user id on login")
	}

	if _, err := svc.Login(ctx, auth.LoginInput{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials error, got %v", err)
	}
	if _, err := svc.Login(ctx, auth.LoginInput{Email: "bob@example.com", Password: "s3cret!"}); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials error, got %v", err)
	}

	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := auth.NewService(nil, "secret", time.Hour, nil); !errors.Is(err, auth.ErrStoreRequired) {
		t.Fatalf("expected store required error, got %v", err)
	}
	if _, err := auth.NewService(auth.NewMemoryStore(), " ", time.Hour, nil); !errors.Is(err, auth.ErrSecretRequired) {
		t.Fatalf("expected secret required error, got %v", err)
	}
}
