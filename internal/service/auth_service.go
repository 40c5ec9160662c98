package service

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=100"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register 自助注册只创建学生账号
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	repo := s.UserRepo.WithTx(s.UserRepo.DB.WithContext(ctx))
	email := strings.ToLower(strings.TrimSpace(req.Email))

	_, err := repo.FindByEmail(email)
	if err == nil {
		return nil, util.ErrEmailRegistered
	} else if !util.IsNotFound(err) {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: string(hashedPassword),
		Role:     model.Student,
	}
	if err := repo.Create(user); err != nil {
		if util.IsUniqueViolation(err) {
			return nil, util.ErrEmailRegistered
		}
		return nil, err
	}
	logger.Log.Info("User registered", zap.Uint("userId", user.ID))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	repo := s.UserRepo.WithTx(s.UserRepo.DB.WithContext(ctx))
	user, err := repo.FindByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if util.IsNotFound(err) {
			return nil, util.ErrInvalidLogin
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, util.ErrInvalidLogin
	}
	if user.Disabled {
		return nil, util.ErrAccountDisabled
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.Issuer, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}
	if err := repo.TouchLastLogin(user.ID, time.Now()); err != nil {
		logger.Log.Warn("Failed to update last login", zap.Uint("userId", user.ID), zap.Error(err))
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.UserRepo.WithTx(s.UserRepo.DB.WithContext(ctx)).FindByID(userID)
	if err != nil {
		return nil, notFound(err)
	}
	return user, nil
}
