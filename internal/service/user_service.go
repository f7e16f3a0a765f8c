// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"

	"notebook-rag-go/internal/model"
	"notebook-rag-go/internal/repository"
	"notebook-rag-go/pkg/hash"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/token"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInvalidCredentials 表示邮箱或密码不正确。
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrEmailTaken 表示邮箱已被注册。
var ErrEmailTaken = errors.New("邮箱已被注册")

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(email, password, fullName string) (*model.User, error)
	Login(email, password string) (accessToken, refreshToken string, err error)
	GetProfile(userID string) (*model.User, error)
	RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(email, password, fullName string) (*model.User, error) {
	// 1. 检查邮箱是否已存在
	_, err := s.userRepo.FindByEmail(email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 创建新用户
	newUser := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hashedPassword,
		FullName:     fullName,
		IsActive:     true,
	}
	if err := s.userRepo.Create(newUser); err != nil {
		log.Errorf("[UserService] 创建用户失败, email: %s, error: %v", email, err)
		return nil, err
	}
	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(email, password string) (accessToken, refreshToken string, err error) {
	// 1. 查找用户
	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}
	if !user.IsActive {
		return "", "", ErrInvalidCredentials
	}

	// 2. 校验密码
	if !hash.CheckPassword(password, user.PasswordHash) {
		return "", "", ErrInvalidCredentials
	}

	// 3. 签发访问令牌和刷新令牌
	accessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// GetProfile 返回当前用户的信息。
func (s *userService) GetProfile(userID string) (*model.User, error) {
	return s.userRepo.FindByID(userID)
}

// RefreshToken 校验刷新令牌并签发新的一对令牌。
func (s *userService) RefreshToken(refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyToken(refreshTokenString)
	if err != nil {
		return "", "", err
	}
	// 确认用户仍然存在且有效
	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", "", ErrInvalidCredentials
	}
	newAccessToken, err = s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	newRefreshToken, err = s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	return newAccessToken, newRefreshToken, nil
}
