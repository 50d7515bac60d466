package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"guruchat-backend/internal/middleware"
	"guruchat-backend/internal/models"
	"guruchat-backend/internal/repository"
)

const DefaultBcryptCost = 12

const invalidCredentials = "Invalid email or password"

const timingPlaceholder = "guruchat-timing-placeholder"

type userRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

type AuthService struct {
	users      userRepository
	jwt        *middleware.JWTAuth
	bcryptCost int
	log        *zap.Logger

	// dummyHash is compared against on unknown emails so those logins cost
	// the same bcrypt work as a wrong password.
	dummyHash []byte
}

func NewAuthService(users userRepository, jwt *middleware.JWTAuth, bcryptCost int, log *zap.Logger) *AuthService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = DefaultBcryptCost
	}
	dummyHash, err := bcrypt.GenerateFromPassword([]byte(timingPlaceholder), bcryptCost)
	if err != nil {
		log.Warn("failed to precompute timing hash", zap.Error(err))
	}
	return &AuthService{
		users:      users,
		jwt:        jwt,
		bcryptCost: bcryptCost,
		log:        log,
		dummyHash:  dummyHash,
	}
}

// LoginResult is a signed session for a freshly authenticated user.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = normalizeEmail(req.Email)

	if err := ValidateStruct(req); err != nil {
		return nil, err
	}

	// Check uniqueness
	_, err := s.users.GetByEmail(ctx, req.Email)
	if err == nil {
		return nil, &ConflictError{Message: "User with this email already exists"}
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, &ValidationError{Fields: map[string]string{"password": "password must be at most 72 bytes"}}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent registration won the unique index.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ConflictError{Message: "User with this email already exists"}
		}
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*LoginResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := ValidateStruct(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Spend the same bcrypt time as a real comparison.
			bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, &UnauthorizedError{Message: invalidCredentials}
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &UnauthorizedError{Message: invalidCredentials}
	}

	token, expiresAt, err := s.jwt.GenerateSessionToken(user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes the session so the token stops verifying before it expires.
func (s *AuthService) Logout(ctx context.Context, session *middleware.Session) error {
	if session == nil {
		return nil
	}
	if err := s.jwt.Revoke(ctx, session); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
