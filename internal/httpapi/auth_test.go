package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"bizdash/backend/internal/domain"
	"bizdash/backend/internal/store"
)

type userStoreStub struct {
	mu          sync.Mutex
	users       map[string]domain.UserAccount
	loginStamps int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	if _, exists := s.users[user.Username]; exists {
		return nil, store.ErrInvalidInput
	}
	user.ID = int64(len(s.users) + 1)
	s.users[user.Username] = user
	created := user
	return &created, nil
}

func (s *userStoreStub) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, exists := s.users[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *userStoreStub) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	loginAt := at
	user.LastLogin = &loginAt
	s.users[username] = user
	s.loginStamps++
	return nil
}

func newAuthStub(t *testing.T) *userStoreStub {
	t.Helper()
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				ID:           1,
				Username:     "admin",
				PasswordHash: mustHashPassword(t, "admin123"),
				Role:         domain.RoleAdmin,
				Active:       true,
				CreatedAt:    time.Now().UTC(),
			},
		},
	}
}

func TestLoginIssuesParsableToken(t *testing.T) {
	stub := newAuthStub(t)
	manager := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, stub)

	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "Admin ", // normalized to lowercase, trimmed
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != "admin" {
		t.Fatalf("expected admin role in response, got %q", resp.Role)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if stub.loginStamps != 1 {
		t.Fatalf("expected last login to be recorded once, got %d", stub.loginStamps)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	stub := newAuthStub(t)
	manager := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, stub)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "wrong",
	}); err == nil {
		t.Fatalf("expected wrong password to be rejected")
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "nobody",
		Password: "admin123",
	}); err == nil {
		t.Fatalf("expected unknown user to be rejected")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	stub := newAuthStub(t)
	user := stub.users["admin"]
	user.Active = false
	stub.users["admin"] = user

	manager := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, stub)
	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	}); err == nil {
		t.Fatalf("expected inactive account to be rejected")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	stub := newAuthStub(t)
	issuer := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, stub)
	verifier := NewAuthManager("another-secret-key-fedcba98765432", time.Hour, stub)

	resp, err := issuer.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
}

func TestCreateUserValidation(t *testing.T) {
	stub := newAuthStub(t)
	manager := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, stub)
	ctx := context.Background()

	if _, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "ab", Password: "pass1234"}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "newuser", Password: "123"}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if _, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "newuser", Password: "pass1234", Role: "owner"}); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
	if _, err := manager.CreateUser(ctx, domain.UserCreateRequest{Username: "admin", Password: "pass1234"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}

func TestCreateUserStoresHashAndDefaultsRole(t *testing.T) {
	stub := newAuthStub(t)
	manager := NewAuthManager("test-secret-key-0123456789abcdef", time.Hour, stub)

	created, err := manager.CreateUser(context.Background(), domain.UserCreateRequest{
		Username: "Cashier1",
		Email:    "cashier1@example.com",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}
	if created.Username != "cashier1" {
		t.Fatalf("expected lowercased username, got %q", created.Username)
	}
	if created.Role != domain.RoleStaff {
		t.Fatalf("expected default staff role, got %q", created.Role)
	}

	saved := stub.users["cashier1"]
	if saved.PasswordHash == "pass1234" {
		t.Fatalf("expected password to be hashed")
	}
	if !strings.HasPrefix(saved.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", saved.PasswordHash)
	}

	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "cashier1",
		Password: "pass1234",
	}); err != nil {
		t.Fatalf("login with created user failed: %v", err)
	}
}
