package service

import (
	"errors"
	"log"
	"time"

	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/lock"
	"github.com/lvdashuaibi/openvote/internal/model"
	"github.com/lvdashuaibi/openvote/internal/repository"
)

// Cache 投票路径依赖的缓存能力，由Redis仓库实现
type Cache interface {
	MarkVotedGuard(voterID string) (bool, error)
	ClearVotedGuard(voterID string) error
	GetCandidateCache(id string) (*model.Candidate, bool, error)
	SetCandidateCache(candidate *model.Candidate) error
	DeleteCandidateCache(id string) error
	DeleteResultsSnapshot() error
}

// Publisher 投票事件发布能力，由Kafka生产者实现
type Publisher interface {
	SendVoteEvent(event *model.VoteEvent) error
}

type VoteService struct {
	voters     repository.VoterStore
	candidates repository.CandidateStore
	recorder   repository.VoteRecorder
	cache      Cache
	publisher  Publisher
	voteLock   lock.Lock
}

// NewVoteService 创建投票服务
// cache、publisher、voteLock 允许为nil（测试或降级运行），
// 正确性只依赖 recorder 的原子投票保证
func NewVoteService(
	voters repository.VoterStore,
	candidates repository.CandidateStore,
	recorder repository.VoteRecorder,
	cache Cache,
	publisher Publisher,
	voteLock lock.Lock,
) *VoteService {
	return &VoteService{
		voters:     voters,
		candidates: candidates,
		recorder:   recorder,
		cache:      cache,
		publisher:  publisher,
		voteLock:   voteLock,
	}
}

// CastVote 投票，每个选民终身一票
// 流程: 角色检查 → 按选民加分布式锁 → Redis快速拦截 → 数据库原子写入 → 发布事件
// 分布式锁与Redis拦截都只是快速路径，权威判定在 recorder 的事务内
func (s *VoteService) CastVote(identity *model.Identity, candidateID string) (*model.VoteResponse, error) {
	if identity == nil {
		return nil, model.ErrCredentialMissing
	}

	// 管理员不属于选民团，结构性排除
	if identity.Role == model.RoleAdmin {
		return nil, model.ErrForbidden
	}

	// 同一选民的并发投票先在分布式锁上排队
	if s.voteLock != nil {
		lockName := repository.VoteLockKey + identity.VoterID
		acquired, err := s.voteLock.AcquireLock(lockName, config.AppConfig.Tally.LockTimeout)
		if err != nil {
			// 锁服务不可用时直接走数据库，事务内的行锁仍然保证串行化
			log.Printf("获取选民 %s 的投票锁失败: %v", identity.VoterID, err)
		}
		if acquired {
			defer s.voteLock.ReleaseLock(lockName)
		}
	}

	// Redis快速拦截重复投票，减少打到数据库的无效请求
	if s.cache != nil {
		marked, err := s.cache.MarkVotedGuard(identity.VoterID)
		if err != nil {
			log.Printf("选民 %s 投票快速拦截检查失败: %v", identity.VoterID, err)
		} else if marked {
			return nil, model.ErrAlreadyVoted
		}
	}

	// 权威判定与写入，单个事务内完成检查加写入
	candidate, err := s.recorder.RecordVote(identity.VoterID, candidateID)
	if err != nil {
		// 数据库未接受这次投票，除已投票外都要回滚快速拦截标记
		if s.cache != nil && !errors.Is(err, model.ErrAlreadyVoted) {
			if clearErr := s.cache.ClearVotedGuard(identity.VoterID); clearErr != nil {
				log.Printf("清除选民 %s 投票标记失败: %v", identity.VoterID, clearErr)
			}
		}
		return nil, err
	}

	voteEvent := &model.VoteEvent{
		VoterID:     identity.VoterID,
		CandidateID: candidate.ID,
		VoteCount:   candidate.VoteCount,
		VotedAt:     time.Now(),
	}

	if s.publisher != nil {
		if err := s.publisher.SendVoteEvent(voteEvent); err != nil {
			log.Printf("发送投票事件到Kafka失败: %v", err)
			// 消息发送失败时同步清理缓存，确保读取到最新数据
			s.purgeCaches(candidate.ID)
		}
	} else {
		s.purgeCaches(candidate.ID)
	}

	return &model.VoteResponse{
		Message:   "投票成功",
		Candidate: candidate.Snapshot(),
		Timestamp: time.Now(),
	}, nil
}

// GetCandidate 查询候选人，缓存优先，未命中时回源数据库并写回
func (s *VoteService) GetCandidate(id string) (*model.Candidate, error) {
	if s.cache != nil {
		candidate, found, err := s.cache.GetCandidateCache(id)
		if err != nil {
			log.Printf("读取候选人 %s 缓存失败: %v，回源数据库", id, err)
		}
		if found {
			return candidate, nil
		}
	}

	candidate, err := s.candidates.GetCandidate(id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCandidateCache(candidate); err != nil {
			log.Printf("写回候选人 %s 缓存失败: %v", id, err)
		}
	}

	return candidate, nil
}

// ProcessVoteEvent 处理投票事件（消费者使用）
// 数据库在投票路径已同步更新，这里只负责清理各实例的缓存视图
func (s *VoteService) ProcessVoteEvent(event *model.VoteEvent) error {
	s.purgeCaches(event.CandidateID)
	return nil
}

// purgeCaches 清除候选人缓存与排行榜快照
func (s *VoteService) purgeCaches(candidateID string) {
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
