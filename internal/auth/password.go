package auth

import (
	"fmt"

	"github.com/lvdashuaibi/openvote/internal/model"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// HashPassword 生成密码散列
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("生成密码散列失败: %w", err)
	}
	return string(hash), nil
}

// CheckPassword 校验密码，错误密码返回 model.ErrWrongPassword
func CheckPassword(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return model.ErrWrongPassword
	}
	return nil
}
