package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-tasks-be/internal/apperr"
	"github.com/isdelr/ender-tasks-be/internal/auth"
	"github.com/isdelr/ender-tasks-be/internal/models"
	"github.com/isdelr/ender-tasks-be/internal/storage"
	"github.com/rs/zerolog/log"
)

// bcrypt ignores everything past 72 bytes, so longer passwords are rejected.
const maxPasswordBytes = 72

var emailPattern = regexp.MustCompile(`^[\w\-.]+@([\w-]+\.)+[\w-]{2,4}$`)

// UserStore is the persistence the session lifecycle needs.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) error
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateProfile(ctx context.Context, id, fullName, email string) (models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	SetRefreshToken(ctx context.Context, id, token string) error
}

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	Register(ctx context.Context, fullName, email, password string) (models.User, error)
	Login(ctx context.Context, email, password string) (Session, error)
	Logout(ctx context.Context, userID string) error
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	CurrentUser(ctx context.Context, userID string) (models.User, error)
	UpdateAccount(ctx context.Context, userID, fullName, email string) (models.User, error)
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is the result of a successful login.
type Session struct {
	User models.User `json:"user"`
	TokenPair
}

// UserService provides registration, login and token lifecycle.
type UserService struct {
	store      UserStore
	tokens     *auth.TokenManager
	bcryptCost int
}

// NewUserService creates a new UserService.
func NewUserService(store UserStore, tokens *auth.TokenManager, bcryptCost int) *UserService {
	return &UserService{store: store, tokens: tokens, bcryptCost: bcryptCost}
}

// Register creates a new account and returns its public profile.
func (s *UserService) Register(ctx context.Context, fullName, email, password string) (models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)

	if fullName == "" || email == "" || strings.TrimSpace(password) == "" {
		return models.User{}, apperr.Validation("All fields are required")
	}
	if !emailPattern.MatchString(email) {
		return models.User{}, apperr.Validation(email + " is not a valid email!")
	}
	if len(password) > maxPasswordBytes {
		return models.User{}, apperr.Validation("Password is too long")
	}

	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return models.User{}, apperr.Conflict("User Already Exists")
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return models.User{}, apperr.Internal("Failed to look up user", err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return models.User{}, apperr.Internal("Failed to register user", err)
	}

	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration of the same email.
		if errors.Is(err, storage.ErrUserExists) {
			return models.User{}, apperr.Conflict("User Already Exists")
		}
		return models.User{}, apperr.Internal("Failed to register user", err)
	}

	log.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User registered")
	return user.Public(), nil
}

// Login verifies credentials, then issues and stores a new token pair.
// Any refresh token issued earlier for the user stops working.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" {
		return Session{}, apperr.Validation("Email is required")
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return Session{}, apperr.NotFound("User does not exist")
		}
		return Session{}, apperr.Internal("Failed to look up user", err)
	}

	if !auth.CheckPassword(user, password) {
		log.Warn().Str("user_id", user.ID).Msg("Failed authentication attempt")
		return Session{}, apperr.Auth("Invalid user credentials")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return Session{}, err
	}

	log.Info().Str("user_id", user.ID).Msg("User logged in")
	return Session{User: user.Public(), TokenPair: pair}, nil
}

// Logout forgets the user's refresh token. Calling it twice is harmless.
func (s *UserService) Logout(ctx context.Context, userID string) error {
	if err := s.store.SetRefreshToken(ctx, userID, ""); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil
		}
		return apperr.Internal("Failed to log out", err)
	}
	log.Info().Str("user_id", userID).Msg("User logged out")
	return nil
}

// Refresh exchanges the user's current refresh token for a new pair (rotation).
//
// Two concurrent refreshes with the same token can both pass the equality
// check; the later store write wins and the other caller's new refresh token
// is silently invalidated.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, apperr.Auth("unauthorized request")
	}

	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return TokenPair{}, apperr.Auth("Refresh token has expired")
		}
		return TokenPair{}, apperr.Auth("Invalid refresh token")
	}

	user, err := s.store.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return TokenPair{}, apperr.Auth("Invalid refresh token")
		}
		return TokenPair{}, apperr.Internal("Failed to look up user", err)
	}

	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		log.Warn().Str("user_id", user.ID).Msg("Refresh token reuse detected")
		return TokenPair{}, apperr.Auth("Refresh token is expired or used")
	}

	return s.issueTokens(ctx, user)
}

// ChangePassword re-hashes the password after checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperr.Validation("New password is required")
	}
	if len(newPassword) > maxPasswordBytes {
		return apperr.Validation("Password is too long")
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Failed to look up user", err)
	}

	if !auth.CheckPassword(user, oldPassword) {
		return apperr.Validation("Invalid old password")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperr.Internal("Failed to change password", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return apperr.Internal("Failed to change password", err)
	}

	log.Info().Str("user_id", userID).Msg("Password changed")
	return nil
}

// CurrentUser returns the public profile for userID.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, apperr.Internal("Failed to look up user", err)
	}
	return user.Public(), nil
}

// UpdateAccount changes the user's name and email.
func (s *UserService) UpdateAccount(ctx context.Context, userID, fullName, email string) (models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)

	if fullName == "" || email == "" {
		return models.User{}, apperr.Validation("All fields are required")
	}
	if !emailPattern.MatchString(email) {
		return models.User{}, apperr.Validation(email + " is not a valid email!")
	}

	user, err := s.store.UpdateProfile(ctx, userID, fullName, email)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUserExists):
			return models.User{}, apperr.Conflict("Email is already in use")
		case errors.Is(err, storage.ErrUserNotFound):
			return models.User{}, apperr.NotFound("User not found")
		}
		return models.User{}, apperr.Internal("Failed to update account", err)
	}
	return user.Public(), nil
}

// Authenticate resolves an access token to its user. It has no side effects
// and consults the store every time, so deleted users are rejected at once.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (models.User, error) {
	if accessToken == "" {
		return models.User{}, apperr.Auth("Unauthorized request, Access token Required")
	}

	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return models.User{}, apperr.Auth("Access token has expired.")
		}
		return models.User{}, apperr.Auth("Invalid access token.")
	}

	user, err := s.store.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, apperr.Auth("Invalid access token: User not found.")
		}
		return models.User{}, apperr.Internal("Failed to look up user", err)
	}
	return user.Public(), nil
}

func (s *UserService) issueTokens(ctx context.Context, user models.User) (TokenPair, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return TokenPair{}, apperr.Internal("Something went wrong while generating refresh and access token", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(user)
	if err != nil {
		return TokenPair{}, apperr.Internal("Something went wrong while generating refresh and access token", err)
	}

	if err := s.store.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		return TokenPair{}, apperr.Internal("Something went wrong while generating refresh and access token", err)
	}
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
