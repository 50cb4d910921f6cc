package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoapply/internal/pkg/jwt"
	"autoapply/internal/repository"
)

func testService(t *testing.T) *Service {
	t.Helper()
	jwtSvc := jwt.NewHMACService("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	return NewService(repository.NewMemoryUserRepository(), jwtSvc)
}

func TestRegisterAndLogin(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	usr, toks, err := s.Register(ctx, Credentials{Email: "Ops@Example.Test ", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if usr.Email != "ops@example.test" {
		t.Fatalf("email not normalized: %q", usr.Email)
	}
	if usr.PasswordHash != "" {
		t.Fatalf("password hash leaked in response")
	}
	if toks.Access == "" || toks.Refresh == "" {
		t.Fatalf("tokens not issued")
	}

	if _, _, err := s.Login(ctx, Credentials{Email: "ops@example.test", Password: "correct horse"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, _, err := s.Login(ctx, Credentials{Email: "ops@example.test", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := s.Login(ctx, Credentials{Email: "nobody@example.test", Password: "whatever"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown account err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	if _, _, err := s.Register(ctx, Credentials{Email: "", Password: "long enough"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty email err = %v, want ErrInvalidInput", err)
	}
	if _, _, err := s.Register(ctx, Credentials{Email: "a@b.test", Password: "short"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("short password err = %v, want ErrInvalidInput", err)
	}

	if _, _, err := s.Register(ctx, Credentials{Email: "a@b.test", Password: "long enough"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := s.Register(ctx, Credentials{Email: "A@B.test", Password: "long enough"}); !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("duplicate err = %v, want ErrEmailAlreadyRegistered", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	s := testService(t)
	ctx := context.Background()

	_, toks, err := s.Register(ctx, Credentials{Email: "ops@example.test", Password: "correct horse"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rotated, err := s.Refresh(ctx, toks.Refresh)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.Access == "" || rotated.Refresh == "" {
		t.Fatalf("rotation did not issue a full pair")
	}

	// An access token is not a refresh credential.
	if _, err := s.Refresh(ctx, toks.Access); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("err = %v, want ErrInvalidRefreshToken", err)
	}
	if _, err := s.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("garbage token err = %v, want ErrInvalidRefreshToken", err)
	}
}
