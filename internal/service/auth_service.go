package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Performile1/Performile-Version-1-sub001/internal/cache"
	"github.com/Performile1/Performile-Version-1-sub001/internal/config"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"
	"github.com/Performile1/Performile-Version-1-sub001/internal/models"
	"github.com/Performile1/Performile-Version-1-sub001/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const defaultOpsExpireHours = 12

// AuthService 运维账号认证
type AuthService struct {
	cfg          *config.OpsConfig
	operatorRepo repository.OperatorRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg *config.OpsConfig, operatorRepo repository.OperatorRepository) *AuthService {
	return &AuthService{
		cfg:          cfg,
		operatorRepo: operatorRepo,
	}
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// JWTClaims 运维令牌声明
type JWTClaims struct {
	OperatorID uint   `json:"operator_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateJWT 生成运维令牌
func (s *AuthService) GenerateJWT(operator *models.Operator) (string, time.Time, error) {
	if operator == nil {
		return "", time.Time{}, ErrOperatorInvalid
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(s.expireHours()) * time.Hour)

	claims := JWTClaims{
		OperatorID: operator.ID,
		Username:   operator.Username,
		Role:       operator.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secret()))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析运维令牌
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.secret()), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrTokenInvalid
}

// Login 运维登录
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Operator, string, time.Time, error) {
	operator, err := s.operatorRepo.GetByUsername(strings.TrimSpace(username))
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if operator == nil || !operator.IsActive {
		return nil, "", time.Time{}, ErrOperatorInvalid
	}
	if err := s.VerifyPassword(operator.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrOperatorInvalid
	}

	token, expiresAt, err := s.GenerateJWT(operator)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	if err := s.operatorRepo.TouchLogin(operator.ID, now); err != nil {
		return nil, "", time.Time{}, err
	}
	operator.LastLoginAt = &now
	if err := cache.SetOperatorAuthState(ctx, cache.BuildOperatorAuthState(operator)); err != nil {
		logger.Warnw("operator_auth_state_cache_failed", "operator_id", operator.ID, "error", err)
	}
	return operator, token, expiresAt, nil
}

// ResolveOperatorState 读取运维账号当前状态，优先走缓存
// 账号停用后既有令牌立即失效
func (s *AuthService) ResolveOperatorState(ctx context.Context, operatorID uint) (*cache.OperatorAuthState, error) {
	if state, hit, err := cache.GetOperatorAuthState(ctx, operatorID); err == nil && hit && state != nil {
		if !state.IsActive {
			return nil, ErrOperatorInvalid
		}
		return state, nil
	}
	operator, err := s.operatorRepo.GetByID(operatorID)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		_ = cache.DelOperatorAuthState(ctx, operatorID)
		return nil, ErrOperatorInvalid
	}
	state := cache.BuildOperatorAuthState(operator)
	_ = cache.SetOperatorAuthState(ctx, state)
	if !operator.IsActive {
		return nil, ErrOperatorInvalid
	}
	return state, nil
}

// IsAuthError 判断是否为令牌或账号错误
func IsAuthError(err error) bool {
	return errors.Is(err, ErrTokenInvalid) || errors.Is(err, ErrOperatorInvalid)
}

func (s *AuthService) secret() string {
	if s.cfg == nil {
		return ""
	}
	return s.cfg.JWTSecret
}

func (s *AuthService) expireHours() int {
	if s.cfg == nil || s.cfg.ExpireHours <= 0 {
		return defaultOpsExpireHours
	}
	return s.cfg.ExpireHours
}
