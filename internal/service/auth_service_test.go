package service

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	s := NewAuthService(repository.NewUserRepository(db), cfg)

	user, err := s.Register(ctx, RegisterRequest{Name: " Ada ", Email: "Ada@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "password123", user.Password)

	_, err = s.Register(ctx, RegisterRequest{Name: "Other", Email: "ada@example.com", Password: "password456"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	_, err = s.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, util.ErrInvalidLogin)
	_, err = s.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorIs(t, err, util.ErrInvalidLogin)

	res, err := s.Login(ctx, LoginRequest{Email: "ADA@example.com", Password: "password123"})
	require.NoError(t, err)
	claims, err := util.ParseJWT(res.Token, cfg.JWT.Secret, cfg.JWT.Issuer)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Student, claims.Role)

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLogin)
}

func TestAuthLogin_Disabled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	s := NewAuthService(repository.NewUserRepository(db), cfg)

	user, err := s.Register(ctx, RegisterRequest{Name: "Grace", Email: "grace@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Update("disabled", true).Error)

	_, err = s.Login(ctx, LoginRequest{Email: "grace@example.com", Password: "password123"})
	assert.ErrorIs(t, err, util.ErrAccountDisabled)

	_, err = s.GetUser(ctx, user.ID+100)
	assert.ErrorIs(t, err, util.ErrNotFound)
}
