package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/accueilpro/accueilpro/pkg/auth"
	"github.com/accueilpro/accueilpro/pkg/config"
	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/services/auth/internal/domain"
	"github.com/accueilpro/accueilpro/services/auth/internal/mailer"
	"github.com/accueilpro/accueilpro/services/auth/internal/repository"
	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
)

type AuthService interface {
	SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.Session, error)
	SignIn(ctx context.Context, req *domain.SignInRequest) (*domain.Session, error)
	SignOut(ctx context.Context, refreshToken string) error
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Session(ctx context.Context, userID uuid.UUID) (*domain.SessionInfo, error)
	Profile(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
}

type authService struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	mailer    mailer.Service
	config    *config.Config
}

func NewAuthService(
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	mailer mailer.Service,
	config *config.Config,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		mailer:    mailer,
		config:    config,
	}
}

func (s *authService) SignUp(ctx context.Context, req *domain.SignUpRequest) (*domain.Session, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, profile, err := s.userRepo.CreateWithProfile(ctx, req.Email, passwordHash, req.FullName, domain.RoleReception)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	logger.InfoContext(ctx, "User signed up", "user_id", user.ID)

	if err := s.mailer.SendWelcomeEmail(ctx, user.Email, profile.FullName); err != nil {
		// the account exists either way
		logger.ErrorContext(ctx, "Failed to send welcome email", "error", err, "user_id", user.ID)
	}

	return s.issue(user, profile.Role)
}

func (s *authService) SignIn(ctx context.Context, req *domain.SignInRequest) (*domain.Session, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.ErrInvalidCredentials
	}

	role, err := s.roleOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(user, role)
}

func (s *authService) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := auth.ParseAs(refreshToken, s.config.Auth.JWTSecret, auth.TokenRefresh)
	if err != nil {
		return domain.ErrInvalidToken
	}
	if err := s.tokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// Refresh rotates the refresh token: the presented one is revoked.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	claims, err := auth.ParseAs(refreshToken, s.config.Auth.JWTSecret, auth.TokenRefresh)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	revoked, err := s.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check refresh token: %w", err)
	}
	if revoked {
		return nil, domain.ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrInvalidToken
	}

	if err := s.tokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	role, err := s.roleOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(user, role)
}

func (s *authService) Session(ctx context.Context, userID uuid.UUID) (*domain.SessionInfo, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound
	}
	profile, err := s.userRepo.FindProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	return &domain.SessionInfo{User: user.ToUserInfo(), Profile: profile}, nil
}

func (s *authService) Profile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	profile, err := s.userRepo.FindProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

func (s *authService) roleOf(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.userRepo.FindProfile(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find profile: %w", err)
	}
	if profile == nil {
		return domain.RoleReception, nil
	}
	return profile.Role, nil
}

func (s *authService) issue(user *domain.User, role string) (*domain.Session, error) {
	access, err := auth.NewAccessToken(user.ID, user.Email, role, s.config.Auth.JWTSecret, s.config.Auth.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}
	refresh, _, err := auth.NewRefreshToken(user.ID, user.Email, role, s.config.Auth.JWTSecret, s.config.Auth.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}
	return &domain.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		User:         user.ToUserInfo(),
	}, nil
}
