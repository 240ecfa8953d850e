package api

import (
	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/openvote/internal/auth"
)

// NewRouter 组装路由
// 认证与角色检查统一由中间件完成，业务处理器不再各自做角色查询
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	user := router.Group("/user")
	{
		user.POST("/signup", handler.Signup)
		user.POST("/login", handler.Login)
		user.GET("/profile", auth.Authenticate(), handler.Profile)
		user.PUT("/profile/password", auth.Authenticate(), handler.ChangePassword)
	}

	candidate := router.Group("/candidate")
	{
		// 公开读取
		candidate.GET("", handler.ListCandidates)
		candidate.GET("/vote/count", handler.VoteCount)

		// 投票需要认证，管理员在服务层被结构性排除
		candidate.POST("/vote/:candidateID", auth.Authenticate(), handler.CastVote)

		// 候选人管理仅限管理员
		admin := candidate.Group("", auth.Authenticate(), auth.AdminOnly())
		{
			admin.POST("", handler.CreateCandidate)
			admin.PUT("/:candidateID", handler.UpdateCandidate)
			admin.DELETE("/:candidateID", handler.DeleteCandidate)
		}
	}

	return router
}
