package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lvdashuaibi/openvote/internal/auth"
	"github.com/lvdashuaibi/openvote/internal/model"
	"github.com/lvdashuaibi/openvote/internal/repository"
)

type UserService struct {
	voters repository.VoterStore
}

func NewUserService(voters repository.VoterStore) *UserService {
	return &UserService{voters: voters}
}

// Signup 注册选民并签发凭证
func (s *UserService) Signup(req *model.SignupRequest) (*model.Voter, string, error) {
	role := req.Role
	if role == "" {
		role = model.RoleVoter
	}
	if role != model.RoleVoter && role != model.RoleAdmin {
		return nil, "", fmt.Errorf("无效的角色: %s", req.Role)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	voter := &model.Voter{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Age:           req.Age,
		Mobile:        req.Mobile,
		Email:         req.Email,
		Address:       req.Address,
		AadhaarNumber: req.AadhaarNumber,
		PasswordHash:  hash,
		Role:          role,
		HasVoted:      false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.voters.CreateVoter(voter); err != nil {
		return nil, "", err
	}

	token, err := auth.IssueToken(voter)
	if err != nil {
		return nil, "", err
	}

	return voter, token, nil
}

// Login 按身份证号加密码登录，签发凭证
func (s *UserService) Login(req *model.LoginRequest) (*model.Voter, string, error) {
	voter, err := s.voters.GetVoterByAadhaar(req.AadhaarNumber)
	if err != nil {
		return nil, "", err
	}

	if err := auth.CheckPassword(voter.PasswordHash, req.Password); err != nil {
		return nil, "", err
	}

	token, err := auth.IssueToken(voter)
	if err != nil {
		return nil, "", err
	}

	return voter, token, nil
}

// Profile 查询选民资料
func (s *UserService) Profile(voterID string) (*model.Voter, error) {
	return s.voters.GetVoter(voterID)
}

// ChangePassword 校验旧密码后更新密码
func (s *UserService) ChangePassword(voterID string, req *model.ChangePasswordRequest) error {
	voter, err := s.voters.GetVoter(voterID)
	if err != nil {
		return err
	}

	if err := auth.CheckPassword(voter.PasswordHash, req.OldPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return s.voters.UpdateVoterPassword(voterID, hash)
}
