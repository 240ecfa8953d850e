package service

import (
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lvdashuaibi/openvote/internal/model"
	"github.com/lvdashuaibi/openvote/internal/repository"
)

// CandidateService 候选人管理，仅管理员可用，角色检查在API层的中间件统一完成
type CandidateService struct {
	candidates repository.CandidateStore
	cache      Cache
}

func NewCandidateService(candidates repository.CandidateStore, cache Cache) *CandidateService {
	return &CandidateService{candidates: candidates, cache: cache}
}

// CreateCandidate 创建候选人
func (s *CandidateService) CreateCandidate(req *model.CandidateRequest) (*model.Candidate, error) {
	now := time.Now()
	candidate := &model.Candidate{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Party:     req.Party,
		VoteCount: 0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.candidates.CreateCandidate(candidate); err != nil {
		return nil, err
	}

	s.purge(candidate.ID)
	return candidate, nil
}

// UpdateCandidate 更新候选人名称与党派
func (s *CandidateService) UpdateCandidate(id string, req *model.CandidateRequest) (*model.Candidate, error) {
	candidate, err := s.candidates.GetCandidate(id)
	if err != nil {
		return nil, err
	}

	candidate.Name = req.Name
	candidate.Party = req.Party
	if err := s.candidates.UpdateCandidate(candidate); err != nil {
		return nil, err
	}

	s.purge(id)
	return candidate, nil
}

// DeleteCandidate 删除候选人
// 已给该候选人投票的选民保持已投票状态，票不退回
func (s *CandidateService) DeleteCandidate(id string) error {
	if err := s.candidates.DeleteCandidate(id); err != nil {
		return err
	}

	s.purge(id)
	return nil
}

// purge 候选人变更后清理缓存与排行榜快照
func (s *CandidateService) purge(candidateID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteCandidateCache(candidateID); err != nil {
		log.Printf("删除候选人 %s 缓存失败: %v", candidateID, err)
	}
	if err := s.cache.DeleteResultsSnapshot(); err != nil {
		log.Printf("删除排行榜快照失败: %v", err)
	}
}
