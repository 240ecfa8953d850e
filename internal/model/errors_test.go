package model

import (
	"errors"
	"strings"
	"testing"
)

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreError("GetVoter", "voter", "v1", cause)

	if !errors.Is(err, cause) {
		t.Error("StoreError应能 errors.Is 到底层故障")
	}

	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatal("errors.As(*StoreError) 应成功")
	}
	if storeErr.Op != "GetVoter" || storeErr.ID != "v1" {
		t.Errorf("Op=%s ID=%s, want GetVoter/v1", storeErr.Op, storeErr.ID)
	}
}

func TestStoreErrorMessage(t *testing.T) {
	withID := NewStoreError("GetVoter", "voter", "v1", errors.New("boom"))
	if !strings.Contains(withID.Error(), "v1") {
		t.Errorf("错误信息应包含实体ID: %s", withID.Error())
	}

	withoutID := NewStoreError("ListResults", "candidate", "", errors.New("boom"))
	if strings.Contains(withoutID.Error(), "()") {
		t.Errorf("无ID时不应出现空ID: %s", withoutID.Error())
	}
}

// 存储故障不应被误判为任何业务结果错误
func TestStoreErrorDistinctFromBusinessErrors(t *testing.T) {
	err := NewStoreError("RecordVote", "voter", "v1", errors.New("deadlock"))

	for _, sentinel := range []error{
		ErrAlreadyVoted, ErrForbidden, ErrVoterNotFound, ErrCandidateNotFound,
	} {
		if errors.Is(err, sentinel) {
			t.Errorf("StoreError不应匹配业务错误 %v", sentinel)
		}
	}
}
