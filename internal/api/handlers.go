package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/openvote/internal/auth"
	"github.com/lvdashuaibi/openvote/internal/model"
	"github.com/lvdashuaibi/openvote/internal/service"
	"github.com/lvdashuaibi/openvote/internal/tally"
)

type Handler struct {
	userService      *service.UserService
	voteService      *service.VoteService
	candidateService *service.CandidateService
	tallyService     *tally.TallyService
}

func NewHandler(
	userService *service.UserService,
	voteService *service.VoteService,
	candidateService *service.CandidateService,
	tallyService *tally.TallyService,
) *Handler {
	return &Handler{
		userService:      userService,
		voteService:      voteService,
		candidateService: candidateService,
		tallyService:     tallyService,
	}
}

// respondError 将业务错误映射为各自的HTTP状态码
// 只有未预期的故障落入500，并带操作名记录日志
func respondError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, model.ErrCredentialMissing),
		errors.Is(err, model.ErrTokenExpired),
		errors.Is(err, model.ErrTokenInvalid),
		errors.Is(err, model.ErrWrongPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrAlreadyVoted),
		errors.Is(err, model.ErrAadhaarTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrVoterNotFound),
		errors.Is(err, model.ErrCandidateNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		log.Printf("操作 %s 发生未预期错误: %v", op, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "内部服务错误"})
	}
}

// Signup 选民注册
func (h *Handler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	voter, token, err := h.userService.Signup(&req)
	if err != nil {
		respondError(c, "Signup", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "注册成功",
		"voter":   voter,
		"token":   token,
	})
}

// Login 选民登录
func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	voter, token, err := h.userService.Login(&req)
	if err != nil {
		respondError(c, "Login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "登录成功",
		"voter":   voter,
		"token":   token,
	})
}

// Profile 查询当前选民资料
func (h *Handler) Profile(c *gin.Context) {
	identity := auth.IdentityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": model.ErrCredentialMissing.Error()})
		return
	}

	voter, err := h.userService.Profile(identity.VoterID)
	if err != nil {
		respondError(c, "Profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"voter": voter})
}

// ChangePassword 修改密码
func (h *Handler) ChangePassword(c *gin.Context) {
	identity := auth.IdentityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": model.ErrCredentialMissing.Error()})
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.userService.ChangePassword(identity.VoterID, &req); err != nil {
		respondError(c, "ChangePassword", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "密码修改成功"})
}

// CastVote 投票
func (h *Handler) CastVote(c *gin.Context) {
	identity := auth.IdentityFrom(c)
	candidateID := c.Param("candidateID")

	response, err := h.voteService.CastVote(identity, candidateID)
	if err != nil {
		respondError(c, "CastVote", err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// VoteCount 排行榜，按票数降序
func (h *Handler) VoteCount(c *gin.Context) {
	results, err := h.tallyService.Results()
	if err != nil {
		respondError(c, "VoteCount", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidates": results})
}

// ListCandidates 候选人名单，未排序，包含零票候选人
func (h *Handler) ListCandidates(c *gin.Context) {
	candidates, err := h.tallyService.Candidates()
	if err != nil {
		respondError(c, "ListCandidates", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

// CreateCandidate 创建候选人（管理员）
func (h *Handler) CreateCandidate(c *gin.Context) {
	var req model.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate, err := h.candidateService.CreateCandidate(&req)
	if err != nil {
		respondError(c, "CreateCandidate", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "候选人创建成功",
		"candidate": candidate,
	})
}

// UpdateCandidate 更新候选人（管理员）
func (h *Handler) UpdateCandidate(c *gin.Context) {
	var req model.CandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate, err := h.candidateService.UpdateCandidate(c.Param("candidateID"), &req)
	if err != nil {
		respondError(c, "UpdateCandidate", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "候选人更新成功",
		"candidate": candidate,
	})
}

// DeleteCandidate 删除候选人（管理员）
func (h *Handler) DeleteCandidate(c *gin.Context) {
	if err := h.candidateService.DeleteCandidate(c.Param("candidateID")); err != nil {
		respondError(c, "DeleteCandidate", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "候选人删除成功"})
}
