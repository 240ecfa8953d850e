package service

import (
	"errors"
	"testing"

	"github.com/lvdashuaibi/openvote/internal/model"
)

func TestCandidateLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewCandidateService(repo, nil)

	candidate, err := svc.CreateCandidate(&model.CandidateRequest{Name: "李四", Party: "进步党"})
	if err != nil {
		t.Fatalf("CreateCandidate() error = %v", err)
	}
	if candidate.VoteCount != 0 {
		t.Errorf("新候选人 voteCount = %d, want 0", candidate.VoteCount)
	}

	updated, err := svc.UpdateCandidate(candidate.ID, &model.CandidateRequest{Name: "李四", Party: "团结党"})
	if err != nil {
		t.Fatalf("UpdateCandidate() error = %v", err)
	}
	if updated.Party != "团结党" {
		t.Errorf("Party = %s, want 团结党", updated.Party)
	}

	if err := svc.DeleteCandidate(candidate.ID); err != nil {
		t.Fatalf("DeleteCandidate() error = %v", err)
	}
	if _, err := repo.GetCandidate(candidate.ID); !errors.Is(err, model.ErrCandidateNotFound) {
		t.Errorf("删除后查询 error = %v, want ErrCandidateNotFound", err)
	}
}

func TestCandidateNotFound(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewCandidateService(repo, nil)

	if _, err := svc.UpdateCandidate("missing", &model.CandidateRequest{Name: "x", Party: "y"}); !errors.Is(err, model.ErrCandidateNotFound) {
		t.Errorf("UpdateCandidate() error = %v, want ErrCandidateNotFound", err)
	}
	if err := svc.DeleteCandidate("missing"); !errors.Is(err, model.ErrCandidateNotFound) {
		t.Errorf("DeleteCandidate() error = %v, want ErrCandidateNotFound", err)
	}
}

// TestDeleteCandidateLeavesVotesSpent 删除候选人不退票，投过票的选民仍保持已投票状态
func TestDeleteCandidateLeavesVotesSpent(t *testing.T) {
	repo := newTestRepo(t)
	candidateSvc := NewCandidateService(repo, nil)
	voteSvc := newVoteService(repo)

	identity := addVoter(t, repo, "v1", model.RoleVoter)
	candidate, err := candidateSvc.CreateCandidate(&model.CandidateRequest{Name: "李四", Party: "进步党"})
	if err != nil {
		t.Fatalf("CreateCandidate() error = %v", err)
	}
	remaining, err := candidateSvc.CreateCandidate(&model.CandidateRequest{Name: "王五", Party: "团结党"})
	if err != nil {
		t.Fatalf("CreateCandidate() error = %v", err)
	}

	if _, err := voteSvc.CastVote(identity, candidate.ID); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if err := candidateSvc.DeleteCandidate(candidate.ID); err != nil {
		t.Fatalf("DeleteCandidate() error = %v", err)
	}

	voter, err := repo.GetVoter("v1")
	if err != nil {
		t.Fatalf("GetVoter() error = %v", err)
	}
	if !voter.HasVoted {
		t.Error("候选人删除后选民应保持已投票状态")
	}

	// 票已用掉，不能改投其他候选人
	if _, err := voteSvc.CastVote(identity, remaining.ID); !errors.Is(err, model.ErrAlreadyVoted) {
		t.Errorf("改投 error = %v, want ErrAlreadyVoted", err)
	}
}
