package model

import (
	"errors"
	"fmt"
)

// 业务结果错误，调用方通过 errors.Is 区分处理
var (
	// ErrCredentialMissing 请求未携带凭证
	ErrCredentialMissing = errors.New("缺少认证凭证")

	// ErrTokenExpired 凭证已过期，应提示重新登录
	ErrTokenExpired = errors.New("凭证已过期")

	// ErrTokenInvalid 凭证格式错误或签名校验失败
	ErrTokenInvalid = errors.New("凭证无效")

	// ErrForbidden 角色不匹配（非管理员访问管理接口，或管理员尝试投票）
	ErrForbidden = errors.New("没有权限执行该操作")

	// ErrAlreadyVoted 选民已投过票，投票是一次性且不可撤销的
	ErrAlreadyVoted = errors.New("选民已经投过票")

	// ErrVoterNotFound 选民不存在
	ErrVoterNotFound = errors.New("选民不存在")

	// ErrCandidateNotFound 候选人不存在
	ErrCandidateNotFound = errors.New("候选人不存在")

	// ErrAadhaarTaken 身份证号已被注册
	ErrAadhaarTaken = errors.New("该身份证号已注册")

	// ErrWrongPassword 密码错误
	ErrWrongPassword = errors.New("密码错误")
)

// StoreError 存储层故障，携带操作名与实体ID便于定位，调用方可重试
type StoreError struct {
	Op     string
	Entity string
	ID     string
	Err    error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("存储操作 %s 失败 (%s %s): %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("存储操作 %s 失败 (%s): %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError 包装存储层故障
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}
