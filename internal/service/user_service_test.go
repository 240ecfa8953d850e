package service

import (
	"errors"
	"testing"
	"time"

	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/model"
)

func setJWTConfig(t *testing.T) {
	t.Helper()
	old := config.AppConfig.JWT
	config.AppConfig.JWT = config.JWTConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "openvote-test",
	}
	t.Cleanup(func() { config.AppConfig.JWT = old })
}

func signupRequest(aadhaar string) *model.SignupRequest {
	return &model.SignupRequest{
		Name:          "张三",
		Age:           30,
		Mobile:        "13800000000",
		Address:       "北京市",
		AadhaarNumber: aadhaar,
		Password:      "secret123",
	}
}

func TestSignupAndLogin(t *testing.T) {
	setJWTConfig(t)
	repo := newTestRepo(t)
	svc := NewUserService(repo)

	voter, token, err := svc.Signup(signupRequest("aadhaar-1"))
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if token == "" {
		t.Error("注册成功应签发凭证")
	}
	if voter.Role != model.RoleVoter {
		t.Errorf("默认角色 = %s, want %s", voter.Role, model.RoleVoter)
	}
	if voter.HasVoted {
		t.Error("新选民 HasVoted 应为 false")
	}
	if voter.PasswordHash == "secret123" {
		t.Error("密码不允许明文存储")
	}

	// 登录使用身份证号加密码
	logged, token, err := svc.Login(&model.LoginRequest{
		AadhaarNumber: "aadhaar-1",
		Password:      "secret123",
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Error("登录成功应签发凭证")
	}
	if logged.ID != voter.ID {
		t.Errorf("登录选民ID = %s, want %s", logged.ID, voter.ID)
	}
}

func TestSignupDuplicateAadhaar(t *testing.T) {
	setJWTConfig(t)
	repo := newTestRepo(t)
	svc := NewUserService(repo)

	if _, _, err := svc.Signup(signupRequest("aadhaar-1")); err != nil {
		t.Fatalf("首次注册失败: %v", err)
	}

	_, _, err := svc.Signup(signupRequest("aadhaar-1"))
	if !errors.Is(err, model.ErrAadhaarTaken) {
		t.Fatalf("重复身份证号注册 error = %v, want ErrAadhaarTaken", err)
	}
}

func TestLoginFailures(t *testing.T) {
	setJWTConfig(t)
	repo := newTestRepo(t)
	svc := NewUserService(repo)

	if _, _, err := svc.Signup(signupRequest("aadhaar-1")); err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	tests := []struct {
		name    string
		req     *model.LoginRequest
		wantErr error
	}{
		{"密码错误", &model.LoginRequest{AadhaarNumber: "aadhaar-1", Password: "wrong"}, model.ErrWrongPassword},
		{"选民不存在", &model.LoginRequest{AadhaarNumber: "nonexistent", Password: "secret123"}, model.ErrVoterNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Login(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Login() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestChangePassword(t *testing.T) {
	setJWTConfig(t)
	repo := newTestRepo(t)
	svc := NewUserService(repo)

	voter, _, err := svc.Signup(signupRequest("aadhaar-1"))
	if err != nil {
		t.Fatalf("注册失败: %v", err)
	}

	// 旧密码错误时拒绝修改
	err = svc.ChangePassword(voter.ID, &model.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "newsecret",
	})
	if !errors.Is(err, model.ErrWrongPassword) {
		t.Fatalf("ChangePassword() error = %v, want ErrWrongPassword", err)
	}

	err = svc.ChangePassword(voter.ID, &model.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "newsecret",
	})
	if err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	// 新密码生效，旧密码失效
	if _, _, err := svc.Login(&model.LoginRequest{AadhaarNumber: "aadhaar-1", Password: "newsecret"}); err != nil {
		t.Errorf("新密码登录失败: %v", err)
	}
	if _, _, err := svc.Login(&model.LoginRequest{AadhaarNumber: "aadhaar-1", Password: "secret123"}); !errors.Is(err, model.ErrWrongPassword) {
		t.Errorf("旧密码登录 error = %v, want ErrWrongPassword", err)
	}
}
