package services

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/docuflow/backend/internal/domain/models"
	"github.com/docuflow/backend/internal/domain/ports"
	"github.com/docuflow/backend/pkg/apperrors"
	"github.com/docuflow/backend/pkg/auth"
)

// AuthService issues and validates session tokens for local participant
// accounts. Roles come from the account row; the external directory is only
// a naming source.
type AuthService struct {
	users ports.UserRepository
}

// NewAuthService creates a new AuthService
func NewAuthService(users ports.UserRepository) *AuthService {
	return &AuthService{users: users}
}

// LoginResult carries the issued token and the session it encodes
type LoginResult struct {
	Token string           `json:"token"`
	User  auth.UserSession `json:"user"`
}

// Login verifies credentials and returns a signed session token
func (s *AuthService) Login(ctx context.Context, userID, password string) (*LoginResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewUnauthorizedError("unknown user")
		}
		return nil, err
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		return nil, apperrors.NewUnauthorizedError("invalid credentials")
	}

	session := auth.UserSession{
		ID:   user.ID,
		Name: user.Name,
		Role: user.Role,
	}
	token, err := auth.GenerateToken(session)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to issue session token", err)
	}

	log.Printf("🔐 User logged in: %s (%s)", user.Name, user.Role)
	return &LoginResult{Token: token, User: session}, nil
}

// ValidateSession parses a token and returns its claims
func (s *AuthService) ValidateSession(tokenString string) (*auth.Claims, error) {
	claims, err := auth.ValidateToken(tokenString)
	if err != nil {
		return nil, apperrors.NewUnauthorizedError("invalid or expired token")
	}
	return claims, nil
}

// GetUser returns a local participant account without its password hash
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("user", id)
		}
		return nil, err
	}
	user.PasswordHash = ""
	return user, nil
}

// ListUsers returns all local participant accounts without password hashes
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		user.PasswordHash = ""
	}
	return users, nil
}
