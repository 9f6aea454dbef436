package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/anime-guess/internal/storage"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret")
	signed, err := tokens.Generate("user-1", "mikasa")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := tokens.Validate(signed)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "user-1" || claims.Username != "mikasa" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestTokenRejectsOtherSecret(t *testing.T) {
	signed, _ := NewTokens("one").Generate("user-1", "mikasa")
	if _, err := NewTokens("two").Validate(signed); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestTokenExpires(t *testing.T) {
	tokens := NewTokens("secret")
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.now = func() time.Time { return issued }
	signed, _ := tokens.Generate("user-1", "mikasa")

	tokens.now = func() time.Time { return issued.Add(AccessTokenDuration + time.Minute) }
	if _, err := tokens.Validate(signed); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func newService() (*Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	svc := NewService(store, NewTokens("secret"))
	svc.cost = bcrypt.MinCost
	return svc, store
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, store := newService()

	user, token, err := svc.Register(ctx, " levi ", "cleaning", "levi.png")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Username != "levi" || token == "" {
		t.Fatalf("unexpected registration: %+v %q", user, token)
	}
	stored, _ := store.GetProfile(ctx, user.ID)
	if stored.HintTokens != storage.DefaultHintTokens || stored.PasswordHash == "cleaning" {
		t.Fatalf("unexpected stored user: %+v", stored)
	}

	if _, _, err := svc.Register(ctx, "Levi", "another1", ""); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, token, err := svc.Login(ctx, "levi", "cleaning")
	if err != nil || got.ID != user.ID {
		t.Fatalf("login: %+v %v", got, err)
	}
	if claims, err := svc.Tokens().Validate(token); err != nil || claims.UserID != user.ID {
		t.Fatalf("login token invalid: %v", err)
	}

	if _, _, err := svc.Login(ctx, "levi", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "erwin", "cleaning"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user should look like a bad password, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService()
	for _, tc := range []struct{ user, pass string }{
		{"", "password"},
		{"eren", "short"},
	} {
		if _, _, err := svc.Register(context.Background(), tc.user, tc.pass, ""); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %q/%q, got %v", tc.user, tc.pass, err)
		}
	}
}
