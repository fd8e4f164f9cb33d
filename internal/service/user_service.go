package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/honesta/lostfound-api/internal/auth"
	"github.com/honesta/lostfound-api/internal/domain"
	"github.com/honesta/lostfound-api/internal/mapper"
	"github.com/honesta/lostfound-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UserService handles registration, login and profiles
type UserService struct {
	userRepo *repository.UserRepository
	policy   *auth.CampusPolicy
	tokens   *auth.TokenManager
	logger   *zap.Logger
}

// NewUserService creates a new UserService instance
func NewUserService(
	userRepo *repository.UserRepository,
	policy *auth.CampusPolicy,
	tokens *auth.TokenManager,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo: userRepo,
		policy:   policy,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register creates a campus account and signs the user in
func (s *UserService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.AuthResponse, error) {
	email := auth.NormalizeEmail(req.Email)
	fullName := strings.TrimSpace(req.FullName)
	phone := strings.TrimSpace(req.PhoneNumber)

	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role", ErrInvalidInput)
	}
	if fullName == "" {
		return nil, fmt.Errorf("%w: full name is required", ErrInvalidInput)
	}
	if !s.policy.EmailAllowed(req.Role, email) {
		return nil, fmt.Errorf("%w: %s", ErrEmailNotAllowed, s.policy.EmailRuleMessage(req.Role))
	}
	if !s.policy.PhoneAllowed(phone) {
		return nil, fmt.Errorf("%w: valid phone number required", ErrInvalidInput)
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		CampusID:     auth.CampusID(email),
		FullName:     fullName,
		PhoneNumber:  phone,
		Email:        email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("campus_id", user.CampusID),
		zap.String("role", string(user.Role)),
	)

	return s.issue(user)
}

// Login checks email, password and role together. Every mismatch reports
// the same error so callers cannot probe which part was wrong.
func (s *UserService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.logger.Info("login rejected", zap.String("user_id", user.ID.String()), zap.String("reason", "password"))
		return nil, ErrInvalidCredentials
	}
	if user.Role != req.Role {
		s.logger.Info("login rejected", zap.String("user_id", user.ID.String()), zap.String("reason", "role"))
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Me returns the profile of the current user
func (s *UserService) Me(ctx context.Context) (*domain.UserDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUserContextRequired
	}

	user, err := s.userRepo.GetByID(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	dto := mapper.ToUserDTO(user)
	return &dto, nil
}

func (s *UserService) issue(user *domain.User) (*domain.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      mapper.ToUserDTO(user),
	}, nil
}
