package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/anime-guess/internal/storage"
)

var (
	ErrInvalidInput       = errors.New("invalid registration")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

const (
	minPasswordLength = 6
	maxUsernameLength = 50
)

// UserStore is the part of storage accounts need
type UserStore interface {
	CreateUser(ctx context.Context, u *storage.User) error
	GetUserByName(ctx context.Context, username string) (*storage.User, error)
}

// Service registers and logs in players
type Service struct {
	users  UserStore
	tokens *Tokens
	cost   int
}

// NewService creates an account service
func NewService(users UserStore, tokens *Tokens) *Service {
	return &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Tokens returns the issuer used to validate requests
func (s *Service) Tokens() *Tokens {
	return s.tokens
}

// Register creates an account and returns it with a fresh access token.
// A taken username yields storage.ErrConflict.
func (s *Service) Register(ctx context.Context, username, password, avatar string) (*storage.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLength {
		return nil, "", fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidInput, maxUsernameLength)
	}
	if len(password) < minPasswordLength {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &storage.User{
		Username:     username,
		PasswordHash: string(hash),
		Avatar:       avatar,
		Level:        1,
		HintTokens:   storage.DefaultHintTokens,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	log.Info().Str("user", user.Username).Str("id", user.ID).Msg("User registered")
	return user, token, nil
}

// Login checks a password and returns the user with a fresh access token
func (s *Service) Login(ctx context.Context, username, password string) (*storage.User, string, error) {
	user, err := s.users.GetUserByName(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}
