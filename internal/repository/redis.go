package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/model"
)

const (
	// Redis键前缀
	CandidateKey  = "candidate:"
	ResultsKey    = "tally:results"
	VotedGuardKey = "voter:voted:"
	VoteLockKey   = "vote:lock:"
	VotedGuardTTL = 24 * time.Hour

	// Lua脚本
	MarkVotedGuardScript = `
		-- 检查选民是否已被标记
		local marked = redis.call('EXISTS', KEYS[1])
		if marked == 1 then
			return {1, "选民已经投过票"}
		end

		-- 标记选民并设置过期时间
		redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])

		-- 返回未投票状态
		return {0, "ok"}
	`
)

type RedisRepository struct {
	client       *redis.Client
	ctx          context.Context
	scriptHashes map[string]string // 存储脚本SHA1哈希值
}

func NewRedisRepository() (*RedisRepository, error) {
	ctx := context.Background()

	// 创建Redis客户端（普通客户端，用于数据存储）
	client := redis.NewClient(&redis.Options{
		Addr:         config.AppConfig.Redis.DataAddress,
		Password:     config.AppConfig.Redis.Password,
		DB:           config.AppConfig.Redis.DB,
		PoolSize:     config.AppConfig.Redis.PoolSize,
		MaxRetries:   config.AppConfig.Redis.MaxRetries,
		DialTimeout:  config.AppConfig.Redis.Timeout,
		ReadTimeout:  config.AppConfig.Redis.Timeout,
		WriteTimeout: config.AppConfig.Redis.Timeout,
	})

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis数据节点连接测试失败: %w", err)
	}

	repo := &RedisRepository{
		client:       client,
		ctx:          ctx,
		scriptHashes: make(map[string]string),
	}

	// 预加载Lua脚本
	if err := repo.preloadScripts(); err != nil {
		return nil, fmt.Errorf("预加载Lua脚本失败: %w", err)
	}

	return repo, nil
}

// preloadScripts 预加载所有Lua脚本
func (r *RedisRepository) preloadScripts() error {
	// 预加载投票标记脚本
	sha1, err := r.client.ScriptLoad(r.ctx, MarkVotedGuardScript).Result()
	if err != nil {
		return fmt.Errorf("加载投票标记脚本失败: %w", err)
	}
	r.scriptHashes["markVotedGuard"] = sha1

	return nil
}

// GetCandidateCache 从缓存获取候选人
func (r *RedisRepository) GetCandidateCache(id string) (*model.Candidate, bool, error) {
	key := CandidateKey + id
	data, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // 缓存未命中
		}
		return nil, false, fmt.Errorf("获取候选人缓存失败: %w", err)
	}

	var candidate model.Candidate
	if err := json.Unmarshal([]byte(data), &candidate); err != nil {
		return nil, false, fmt.Errorf("解析候选人缓存失败: %w", err)
	}

	return &candidate, true, nil
}

// SetCandidateCache 设置候选人缓存
func (r *RedisRepository) SetCandidateCache(candidate *model.Candidate) error {
	key := CandidateKey + candidate.ID
	data, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("序列化候选人失败: %w", err)
	}

	if err := r.client.Set(r.ctx, key, data, config.AppConfig.Redis.CacheTTL).Err(); err != nil {
		return fmt.Errorf("设置候选人缓存失败: %w", err)
	}

	return nil
}

// DeleteCandidateCache 删除候选人缓存
func (r *RedisRepository) DeleteCandidateCache(id string) error {
	key := CandidateKey + id
	if err := r.client.Del(r.ctx, key).Err(); err != nil {
		return fmt.Errorf("删除候选人缓存失败: %w", err)
	}
	return nil
}

// GetResultsSnapshot 获取排行榜快照
func (r *RedisRepository) GetResultsSnapshot() ([]*model.CandidateResult, bool, error) {
	data, err := r.client.Get(r.ctx, ResultsKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil // 快照不存在
		}
		return nil, false, fmt.Errorf("获取排行榜快照失败: %w", err)
	}

	var results []*model.CandidateResult
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		return nil, false, fmt.Errorf("解析排行榜快照失败: %w", err)
	}

	return results, true, nil
}

// SetResultsSnapshot 写入排行榜快照
func (r *RedisRepository) SetResultsSnapshot(results []*model.CandidateResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("序列化排行榜快照失败: %w", err)
	}

	if err := r.client.Set(r.ctx, ResultsKey, data, config.AppConfig.Tally.SnapshotTTL).Err(); err != nil {
		return fmt.Errorf("写入排行榜快照失败: %w", err)
	}

	return nil
}

// DeleteResultsSnapshot 删除排行榜快照，下次读取回源数据库
func (r *RedisRepository) DeleteResultsSnapshot() error {
	if err := r.client.Del(r.ctx, ResultsKey).Err(); err != nil {
		return fmt.Errorf("删除排行榜快照失败: %w", err)
	}
	return nil
}

// MarkVotedGuard 使用预加载的Lua脚本原子地标记选民已投票
// 返回true表示该选民此前已被标记过
// 仅作为快速拦截，权威判定在数据库事务内完成
func (r *RedisRepository) MarkVotedGuard(voterID string) (bool, error) {
	key := VotedGuardKey + voterID

	// 获取预加载脚本的SHA1哈希值
	sha1, ok := r.scriptHashes["markVotedGuard"]
	if !ok {
		return false, fmt.Errorf("脚本未预加载")
	}

	args := []interface{}{voterID, int64(VotedGuardTTL / time.Millisecond)}

	// 尝试使用EVALSHA执行
	result, err := r.client.EvalSha(r.ctx, sha1, []string{key}, args...).Result()
	if err != nil {
		// 如果脚本不存在，重新加载并再次尝试
		if err.Error() == "NOSCRIPT No matching script. Please use EVAL." {
			sha1, err = r.client.ScriptLoad(r.ctx, MarkVotedGuardScript).Result()
			if err != nil {
				return false, fmt.Errorf("重新加载投票标记脚本失败: %w", err)
			}
			r.scriptHashes["markVotedGuard"] = sha1

			result, err = r.client.EvalSha(r.ctx, sha1, []string{key}, args...).Result()
			if err != nil {
				return false, fmt.Errorf("执行投票标记脚本失败: %w", err)
			}
		} else {
			return false, fmt.Errorf("执行投票标记脚本失败: %w", err)
		}
	}

	// 解析结果
	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 2 {
		return false, fmt.Errorf("LUA脚本返回格式错误")
	}

	status, ok := resultSlice[0].(int64)
	if !ok {
		return false, fmt.Errorf("LUA脚本返回状态码类型错误")
	}

	return status == 1, nil
}

// ClearVotedGuard 清除选民投票标记（数据库写入失败后回滚快速拦截状态）
func (r *RedisRepository) ClearVotedGuard(voterID string) error {
	key := VotedGuardKey + voterID
	if err := r.client.Del(r.ctx, key).Err(); err != nil {
		return fmt.Errorf("清除投票标记失败: %w", err)
	}
	return nil
}

// Close 关闭Redis连接
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
