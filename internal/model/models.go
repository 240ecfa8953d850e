package model

import (
	"time"
)

// Role 选民角色
type Role string

const (
	RoleVoter Role = "voter"
	RoleAdmin Role = "admin"
)

// Voter 选民模型，一人一票
type Voter struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Age           int       `json:"age"`
	Mobile        string    `json:"mobile"`
	Email         string    `json:"email,omitempty"`
	Address       string    `json:"address"`
	AadhaarNumber string    `json:"aadhaarNumber"`
	PasswordHash  string    `json:"-"`
	Role          Role      `json:"role"`
	HasVoted      bool      `json:"hasVoted"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Candidate 候选人模型
// 不变量: VoteCount 恒等于 Voters 集合的大小，票数永远由集合重新计算得出
type Candidate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Party     string    `json:"party"`
	VoteCount int       `json:"voteCount"`
	Voters    []string  `json:"voters,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity 认证后的调用者身份
type Identity struct {
	VoterID string `json:"voterId"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
}

// CandidateResult 排行榜中的单个候选人快照
type CandidateResult struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Party     string `json:"party"`
	VoteCount int    `json:"voteCount"`
}

// SignupRequest 注册请求
type SignupRequest struct {
	Name          string `json:"name" binding:"required"`
	Age           int    `json:"age" binding:"required"`
	Mobile        string `json:"mobile" binding:"required"`
	Email         string `json:"email"`
	Address       string `json:"address" binding:"required"`
	AadhaarNumber string `json:"aadhaarNumber" binding:"required"`
	Password      string `json:"password" binding:"required"`
	Role          Role   `json:"role"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	AadhaarNumber string `json:"aadhaarNumber" binding:"required"`
	Password      string `json:"password" binding:"required"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// CandidateRequest 候选人创建/更新请求
type CandidateRequest struct {
	Name  string `json:"name" binding:"required"`
	Party string `json:"party" binding:"required"`
}

// VoteResponse 投票响应
type VoteResponse struct {
	Message   string           `json:"message"`
	Candidate *CandidateResult `json:"candidate"`
	Timestamp time.Time        `json:"timestamp"`
}

// VoteEvent Kafka投票事件
type VoteEvent struct {
	VoterID     string    `json:"voterId"`
	CandidateID string    `json:"candidateId"`
	VoteCount   int       `json:"voteCount"`
	VotedAt     time.Time `json:"votedAt"`
}

// Snapshot 返回排行榜条目快照
func (c *Candidate) Snapshot() *CandidateResult {
	return &CandidateResult{
		ID:        c.ID,
		Name:      c.Name,
		Party:     c.Party,
		VoteCount: c.VoteCount,
	}
}
