package repository

import (
	"github.com/lvdashuaibi/openvote/internal/model"
)

// VoterStore 选民存储契约
type VoterStore interface {
	// GetVoter 按ID查询选民，不存在时返回 model.ErrVoterNotFound
	GetVoter(id string) (*model.Voter, error)

	// GetVoterByAadhaar 按身份证号查询选民（登录用）
	GetVoterByAadhaar(aadhaar string) (*model.Voter, error)

	// CreateVoter 创建选民，身份证号重复时返回 model.ErrAadhaarTaken
	CreateVoter(voter *model.Voter) error

	// CompareAndSetVoted 原子地将 has_voted 从 false 置为 true
	// 返回false表示选民已经投过票
	CompareAndSetVoted(id string) (bool, error)

	// UpdateVoterPassword 更新选民密码散列
	UpdateVoterPassword(id string, passwordHash string) error
}

// CandidateStore 候选人存储契约
type CandidateStore interface {
	// GetCandidate 按ID查询候选人（含投票者集合），不存在时返回 model.ErrCandidateNotFound
	GetCandidate(id string) (*model.Candidate, error)

	// ListCandidates 返回所有候选人，按创建顺序排列，包含零票候选人
	ListCandidates() ([]*model.Candidate, error)

	// ListResults 返回按票数降序的候选人快照，同票按ID升序
	ListResults() ([]*model.CandidateResult, error)

	// CreateCandidate 创建候选人
	CreateCandidate(candidate *model.Candidate) error

	// UpdateCandidate 更新候选人名称与党派
	UpdateCandidate(candidate *model.Candidate) error

	// DeleteCandidate 删除候选人，投票者集合随之删除，选民的已投票标记保持不变
	DeleteCandidate(id string) error

	// AddVoterAndRecount 将选民加入候选人的投票者集合并由集合重新计算票数
	AddVoterAndRecount(candidateID, voterID string) (*model.Candidate, error)
}

// VoteRecorder 投票记录契约: 检查加写入必须是原子的
type VoteRecorder interface {
	// RecordVote 原子地完成一次投票:
	// 校验选民存在且非管理员且未投票，校验候选人存在，
	// 写入投票者集合、由集合重算票数、置已投票标记
	// 失败返回 ErrVoterNotFound / ErrForbidden / ErrAlreadyVoted / ErrCandidateNotFound
	RecordVote(voterID, candidateID string) (*model.Candidate, error)
}
