package models

import (
	"strings"

	"github.com/Performile1/Performile-Version-1-sub001/internal/constants"
	"github.com/Performile1/Performile-Version-1-sub001/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// InitDefaultOperator 初始化默认运维账号
// 已有任意运维账号时跳过；未提供密码时不创建
func InitDefaultOperator(username, password string) error {
	var count int64
	if err := DB.Model(&Operator{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = "ops"
	}
	if strings.TrimSpace(password) == "" {
		logger.Warnw("default_operator_skipped_without_password", "username", username)
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	operator := Operator{
		Username:     username,
		PasswordHash: string(hash),
		Role:         constants.OperatorRoleOperator,
		IsActive:     true,
	}
	if err := DB.Create(&operator).Error; err != nil {
		return err
	}
	logger.Warnw("default_operator_created", "username", username, "password_hidden", true)
	return nil
}
