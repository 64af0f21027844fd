package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/repository"
	"collabnotes-server/pkg/hash"
	"collabnotes-server/pkg/jwt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type AuthService struct {
	userRepo          repository.UserRepository
	jwtSecret         string
	jwtExpiration     time.Duration
	refreshExpiration time.Duration
	clock             clockwork.Clock
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExp, refreshExp time.Duration, clk clockwork.Clock) *AuthService {
	return &AuthService{
		userRepo:          userRepo,
		jwtSecret:         jwtSecret,
		jwtExpiration:     jwtExp,
		refreshExpiration: refreshExp,
		clock:             clk,
	}
}

func (s *AuthService) Register(ctx context.Context, req *domain.RegisterRequest) error {
	emailExists, err := s.userRepo.EmailExists(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("%w: check email: %w", ErrInternal, err)
	}
	if emailExists {
		return fmt.Errorf("%w: email already registered", ErrConflict)
	}

	hashedPassword, err := hash.Hash(req.Password)
	if err != nil {
		return fmt.Errorf("%w: hash password: %w", ErrInternal, err)
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashedPassword,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return fmt.Errorf("%w: username already taken", ErrConflict)
		}
		return fmt.Errorf("%w: create user: %w", ErrInternal, err)
	}

	return nil
}

func (s *AuthService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := hash.Compare(user.Password, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := jwt.GenerateToken(user.ID, user.Username, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: generate access token: %w", ErrInternal, err)
	}

	refreshToken, err := jwt.GenerateRefreshToken(user.ID, user.Username, s.refreshExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: generate refresh token: %w", ErrInternal, err)
	}

	user.Password = ""

	return &domain.LoginResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) RefreshToken(_ context.Context, req *domain.RefreshTokenRequest) (*domain.TokenResponse, error) {
	claims, err := jwt.ValidateTokenOfType(req.RefreshToken, s.jwtSecret, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := jwt.GenerateToken(claims.UserID, claims.Username, s.jwtExpiration, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: generate access token: %w", ErrInternal, err)
	}

	return &domain.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.jwtExpiration.Seconds()),
	}, nil
}

func (s *AuthService) ValidateToken(token string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateTokenOfType(token, s.jwtSecret, jwt.TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}
