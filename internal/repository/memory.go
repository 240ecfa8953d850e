package repository

import (
	"sort"
	"sync"
	"time"

	"github.com/lvdashuaibi/openvote/internal/model"
)

// MemoryRepository 内存存储实现，用于测试与本地运行
// 单把互斥锁提供与MySQL事务等价的原子投票保证
type MemoryRepository struct {
	mu         sync.Mutex
	voters     map[string]*model.Voter
	candidates map[string]*model.Candidate
	order      []string // 候选人创建顺序
	voteLogs   []*model.VoteEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		voters:     make(map[string]*model.Voter),
		candidates: make(map[string]*model.Candidate),
	}
}

func cloneVoter(v *model.Voter) *model.Voter {
	out := *v
	return &out
}

func cloneCandidate(c *model.Candidate) *model.Candidate {
	out := *c
	out.Voters = append([]string(nil), c.Voters...)
	return &out
}

// GetVoter 按ID查询选民
func (r *MemoryRepository) GetVoter(id string) (*model.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	voter, ok := r.voters[id]
	if !ok {
		return nil, model.ErrVoterNotFound
	}
	return cloneVoter(voter), nil
}

// GetVoterByAadhaar 按身份证号查询选民
func (r *MemoryRepository) GetVoterByAadhaar(aadhaar string) (*model.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, voter := range r.voters {
		if voter.AadhaarNumber == aadhaar {
			return cloneVoter(voter), nil
		}
	}
	return nil, model.ErrVoterNotFound
}

// CreateVoter 创建选民
func (r *MemoryRepository) CreateVoter(voter *model.Voter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.voters {
		if existing.AadhaarNumber == voter.AadhaarNumber {
			return model.ErrAadhaarTaken
		}
	}
	r.voters[voter.ID] = cloneVoter(voter)
	return nil
}

// CompareAndSetVoted 原子地将已投票标记从 false 置为 true
func (r *MemoryRepository) CompareAndSetVoted(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	voter, ok := r.voters[id]
	if !ok {
		return false, model.ErrVoterNotFound
	}
	if voter.HasVoted {
		return false, nil
	}
	voter.HasVoted = true
	voter.UpdatedAt = time.Now()
	return true, nil
}

// UpdateVoterPassword 更新选民密码散列
func (r *MemoryRepository) UpdateVoterPassword(id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	voter, ok := r.voters[id]
	if !ok {
		return model.ErrVoterNotFound
	}
	voter.PasswordHash = passwordHash
	voter.UpdatedAt = time.Now()
	return nil
}

// GetCandidate 按ID查询候选人
func (r *MemoryRepository) GetCandidate(id string) (*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate, ok := r.candidates[id]
	if !ok {
		return nil, model.ErrCandidateNotFound
	}
	return cloneCandidate(candidate), nil
}

// ListCandidates 按创建顺序返回所有候选人
func (r *MemoryRepository) ListCandidates() ([]*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := make([]*model.Candidate, 0, len(r.order))
	for _, id := range r.order {
		if candidate, ok := r.candidates[id]; ok {
			candidates = append(candidates, cloneCandidate(candidate))
		}
	}
	return candidates, nil
}

// ListResults 按票数降序返回候选人快照，同票按ID升序
func (r *MemoryRepository) ListResults() ([]*model.CandidateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]*model.CandidateResult, 0, len(r.candidates))
	for _, candidate := range r.candidates {
		results = append(results, candidate.Snapshot())
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].VoteCount != results[j].VoteCount {
			return results[i].VoteCount > results[j].VoteCount
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// CreateCandidate 创建候选人
func (r *MemoryRepository) CreateCandidate(candidate *model.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.candidates[candidate.ID] = cloneCandidate(candidate)
	r.order = append(r.order, candidate.ID)
	return nil
}

// UpdateCandidate 更新候选人名称与党派
func (r *MemoryRepository) UpdateCandidate(candidate *model.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.candidates[candidate.ID]
	if !ok {
		return model.ErrCandidateNotFound
	}
	existing.Name = candidate.Name
	existing.Party = candidate.Party
	existing.UpdatedAt = time.Now()
	return nil
}

// DeleteCandidate 删除候选人，选民的已投票标记保持不变
func (r *MemoryRepository) DeleteCandidate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.candidates[id]; !ok {
		return model.ErrCandidateNotFound
	}
	delete(r.candidates, id)
	for i, cid := range r.order {
		if cid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// AddVoterAndRecount 将选民加入投票者集合并由集合重算票数
func (r *MemoryRepository) AddVoterAndRecount(candidateID, voterID string) (*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.addVoterAndRecountLocked(candidateID, voterID)
}

func (r *MemoryRepository) addVoterAndRecountLocked(candidateID, voterID string) (*model.Candidate, error) {
	candidate, ok := r.candidates[candidateID]
	if !ok {
		return nil, model.ErrCandidateNotFound
	}

	candidate.Voters = append(candidate.Voters, voterID)
	// 票数由集合重新计算得出
	candidate.VoteCount = len(candidate.Voters)
	candidate.UpdatedAt = time.Now()

	return cloneCandidate(candidate), nil
}

// RecordVote 在互斥锁内完成投票的检查与写入，与MySQL事务语义一致
func (r *MemoryRepository) RecordVote(voterID, candidateID string) (*model.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	voter, ok := r.voters[voterID]
	if !ok {
		return nil, model.ErrVoterNotFound
	}
	if voter.Role == model.RoleAdmin {
		return nil, model.ErrForbidden
	}
	if voter.HasVoted {
		return nil, model.ErrAlreadyVoted
	}

	// 先检查候选人存在，保证失败时不留下任何状态变更
	if _, ok := r.candidates[candidateID]; !ok {
		return nil, model.ErrCandidateNotFound
	}

	candidate, err := r.addVoterAndRecountLocked(candidateID, voterID)
	if err != nil {
		return nil, err
	}

	voter.HasVoted = true
	voter.UpdatedAt = time.Now()

	r.voteLogs = append(r.voteLogs, &model.VoteEvent{
		VoterID:     voterID,
		CandidateID: candidateID,
		VoteCount:   candidate.VoteCount,
		VotedAt:     time.Now(),
	})

	return candidate, nil
}
