package tally

import (
	"log"
	"time"

	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/lock"
	"github.com/lvdashuaibi/openvote/internal/model"
	"github.com/lvdashuaibi/openvote/internal/repository"
)

const (
	RefresherLockName = "tally:refresher:lock"
)

// SnapshotCache 排行榜快照缓存能力，由Redis仓库实现
type SnapshotCache interface {
	GetResultsSnapshot() ([]*model.CandidateResult, bool, error)
	SetResultsSnapshot(results []*model.CandidateResult) error
}

// TallyService 排行榜服务: 只读聚合加后台快照刷新
// 多实例部署时只有选主成功的实例重建快照
type TallyService struct {
	store           repository.CandidateStore
	cache           SnapshotCache
	redlock         lock.Lock
	refreshTicker   *time.Ticker
	stopChan        chan struct{}
	isRefresher     bool          // 标识该实例是否为快照刷新者
	refresherLockCh chan struct{} // 用于同步获取刷新者锁的通道
}

func NewTallyService(
	store repository.CandidateStore,
	cache SnapshotCache,
	distributedLock lock.Lock,
	isRefresher bool,
) *TallyService {
	return &TallyService{
		store:           store,
		cache:           cache,
		redlock:         distributedLock,
		stopChan:        make(chan struct{}),
		isRefresher:     isRefresher,
		refresherLockCh: make(chan struct{}, 1),
	}
}

// Results 返回按票数降序的排行榜，同票按候选人ID升序
// 快照优先，未命中时回源数据库并写回快照
func (s *TallyService) Results() ([]*model.CandidateResult, error) {
	if s.cache != nil {
		results, found, err := s.cache.GetResultsSnapshot()
		if err != nil {
			log.Printf("读取排行榜快照失败: %v，回源数据库", err)
		}
		if found {
			return results, nil
		}
	}

	results, err := s.store.ListResults()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetResultsSnapshot(results); err != nil {
			log.Printf("写回排行榜快照失败: %v", err)
		}
	}

	return results, nil
}

// Candidates 返回所有候选人，按创建顺序排列，包含零票候选人
func (s *TallyService) Candidates() ([]*model.Candidate, error) {
	return s.store.ListCandidates()
}

// StartRefresher 启动快照刷新器
func (s *TallyService) StartRefresher() {
	refreshInterval := config.AppConfig.Tally.RefreshInterval

	// 非刷新者实例也启动定时器，以便随时接管刷新者角色
	s.refreshTicker = time.NewTicker(refreshInterval)

	go func() {
		for {
			select {
			case <-s.refreshTicker.C:
				// 只有被指定为刷新者的实例才尝试竞争锁并重建快照
				if s.isRefresher {
					s.refreshSnapshot()
				}
			case <-s.stopChan:
				s.refreshTicker.Stop()
				log.Println("排行榜刷新器已停止")
				return
			}
		}
	}()

	// 启动另一个协程维持刷新者状态
	if s.isRefresher {
		go s.maintainRefresherLock()
	}
}

// maintainRefresherLock 维持刷新者锁状态
func (s *TallyService) maintainRefresherLock() {
	// 每隔一半的刷新间隔检查一次刷新者状态
	checkInterval := config.AppConfig.Tally.RefreshInterval / 2
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	// 初始化时尝试获取刷新者锁
	s.tryAcquireRefresherLock()

	for {
		select {
		case <-ticker.C:
			s.tryAcquireRefresherLock()
		case <-s.stopChan:
			return
		}
	}
}

// tryAcquireRefresherLock 尝试获取刷新者锁
func (s *TallyService) tryAcquireRefresherLock() {
	if s.redlock == nil {
		return
	}

	acquired, err := s.redlock.AcquireLock(RefresherLockName, config.AppConfig.Tally.LockTimeout)
	if err != nil {
		log.Printf("检查排行榜刷新器锁失败: %v", err)
		return
	}

	// 如果成功获取锁，说明之前的锁已经过期或释放
	if acquired {
		s.isRefresher = true

		// 通知刷新快照的协程
		select {
		case s.refresherLockCh <- struct{}{}:
		default:
		}
	}
}

// StopRefresher 停止快照刷新器
func (s *TallyService) StopRefresher() {
	close(s.stopChan)
	// 释放刷新者锁
	if s.isRefresher && s.redlock != nil {
		s.redlock.ReleaseLock(RefresherLockName)
	}
}

// refreshSnapshot 持锁重建快照
func (s *TallyService) refreshSnapshot() {
	if s.redlock == nil {
		s.rebuildSnapshot()
		return
	}

	var lockAcquired bool
	var err error

	// 检查refresherLockCh是否有信号
	select {
	case <-s.refresherLockCh:
		// 已在maintainRefresherLock中获取了锁
		lockAcquired = true
	default:
		lockAcquired, err = s.redlock.AcquireLock(RefresherLockName, config.AppConfig.Tally.LockTimeout)
		if err != nil {
			log.Printf("获取排行榜刷新器锁失败: %v", err)
			return
		}
	}

	if !lockAcquired {
		log.Println("未能获取排行榜刷新器锁，跳过当前刷新")
		return
	}

	s.rebuildSnapshot()

	if err := s.redlock.ReleaseLock(RefresherLockName); err != nil {
		log.Printf("释放排行榜刷新器锁失败: %v", err)
	}
}

// rebuildSnapshot 从数据库重建排行榜快照，不包含锁逻辑
func (s *TallyService) rebuildSnapshot() {
	results, err := s.store.ListResults()
	if err != nil {
		log.Printf("重建排行榜快照失败: %v", err)
		return
	}

	if s.cache == nil {
		return
	}
	if err := s.cache.SetResultsSnapshot(results); err != nil {
		log.Printf("写入排行榜快照失败: %v", err)
	}
}
