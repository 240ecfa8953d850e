package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/auth"
	"github.com/lvdashuaibi/openvote/internal/model"
	"github.com/lvdashuaibi/openvote/internal/repository"
	"github.com/lvdashuaibi/openvote/internal/service"
	"github.com/lvdashuaibi/openvote/internal/tally"
)

type testEnv struct {
	router *gin.Engine
	repo   *repository.MemoryRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	old := config.AppConfig.JWT
	config.AppConfig.JWT = config.JWTConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "openvote-test",
	}
	t.Cleanup(func() { config.AppConfig.JWT = old })

	repo := repository.NewMemoryRepository()
	userService := service.NewUserService(repo)
	voteService := service.NewVoteService(repo, repo, repo, nil, nil, nil)
	candidateService := service.NewCandidateService(repo, nil)
	tallyService := tally.NewTallyService(repo, nil, nil, false)

	handler := NewHandler(userService, voteService, candidateService, tallyService)
	return &testEnv{router: NewRouter(handler), repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求体失败: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

// signup 注册并返回凭证
func (e *testEnv) signup(t *testing.T, aadhaar string, role model.Role) string {
	t.Helper()

	recorder := e.do(t, http.MethodPost, "/user/signup", "", &model.SignupRequest{
		Name:          "张三",
		Age:           30,
		Mobile:        "13800000000",
		Address:       "北京市",
		AadhaarNumber: aadhaar,
		Password:      "secret123",
		Role:          role,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("注册响应码 = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析注册响应失败: %v", err)
	}
	return resp.Token
}

// createCandidate 以管理员身份创建候选人并返回ID
func (e *testEnv) createCandidate(t *testing.T, adminToken, name string) string {
	t.Helper()

	recorder := e.do(t, http.MethodPost, "/candidate", adminToken, &model.CandidateRequest{
		Name:  name,
		Party: "进步党",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("创建候选人响应码 = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	var resp struct {
		Candidate model.Candidate `json:"candidate"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析创建响应失败: %v", err)
	}
	return resp.Candidate.ID
}

func TestSignupLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	env.signup(t, "aadhaar-1", "")

	recorder := env.do(t, http.MethodPost, "/user/login", "", &model.LoginRequest{
		AadhaarNumber: "aadhaar-1",
		Password:      "secret123",
	})
	if recorder.Code != http.StatusOK {
		t.Errorf("登录响应码 = %d, want 200", recorder.Code)
	}

	recorder = env.do(t, http.MethodPost, "/user/login", "", &model.LoginRequest{
		AadhaarNumber: "aadhaar-1",
		Password:      "wrong",
	})
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("错误密码登录响应码 = %d, want 401", recorder.Code)
	}

	recorder = env.do(t, http.MethodPost, "/user/signup", "", &model.SignupRequest{
		Name: "张三", Age: 30, Mobile: "13800000000", Address: "北京市",
		AadhaarNumber: "aadhaar-1", Password: "secret123",
	})
	if recorder.Code != http.StatusConflict {
		t.Errorf("重复注册响应码 = %d, want 409", recorder.Code)
	}
}

func TestCastVoteEndpoint(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.signup(t, "aadhaar-admin", model.RoleAdmin)
	voterToken := env.signup(t, "aadhaar-voter", "")
	candidateID := env.createCandidate(t, adminToken, "李四")

	// 无凭证
	recorder := env.do(t, http.MethodPost, "/candidate/vote/"+candidateID, "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("无凭证投票响应码 = %d, want 401", recorder.Code)
	}

	// 篡改的凭证
	recorder = env.do(t, http.MethodPost, "/candidate/vote/"+candidateID, voterToken+"x", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("非法凭证投票响应码 = %d, want 401", recorder.Code)
	}

	// 管理员投票
	recorder = env.do(t, http.MethodPost, "/candidate/vote/"+candidateID, adminToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Errorf("管理员投票响应码 = %d, want 403", recorder.Code)
	}

	// 候选人不存在
	recorder = env.do(t, http.MethodPost, "/candidate/vote/missing", voterToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("投给不存在候选人响应码 = %d, want 404", recorder.Code)
	}

	// 首次投票成功
	recorder = env.do(t, http.MethodPost, "/candidate/vote/"+candidateID, voterToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("投票响应码 = %d, body = %s", recorder.Code, recorder.Body.String())
	}
	var voteResp model.VoteResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &voteResp); err != nil {
		t.Fatalf("解析投票响应失败: %v", err)
	}
	if voteResp.Candidate.VoteCount != 1 {
		t.Errorf("voteCount = %d, want 1", voteResp.Candidate.VoteCount)
	}

	// 重复投票
	recorder = env.do(t, http.MethodPost, "/candidate/vote/"+candidateID, voterToken, nil)
	if recorder.Code != http.StatusConflict {
		t.Errorf("重复投票响应码 = %d, want 409", recorder.Code)
	}
}

func TestCastVoteExpiredToken(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.signup(t, "aadhaar-admin", model.RoleAdmin)
	candidateID := env.createCandidate(t, adminToken, "李四")

	// 用过期配置为已注册选民签发过期凭证
	env.signup(t, "aadhaar-voter", "")
	voter, err := env.repo.GetVoterByAadhaar("aadhaar-voter")
	if err != nil {
		t.Fatalf("GetVoterByAadhaar() error = %v", err)
	}
	config.AppConfig.JWT.Expiry = -time.Minute
	expiredToken, err := auth.IssueToken(voter)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	config.AppConfig.JWT.Expiry = time.Hour

	recorder := env.do(t, http.MethodPost, "/candidate/vote/"+candidateID, expiredToken, nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("过期凭证投票响应码 = %d, want 401", recorder.Code)
	}
	if !bytes.Contains(recorder.Body.Bytes(), []byte(model.ErrTokenExpired.Error())) {
		t.Errorf("过期凭证应返回过期错误, body = %s", recorder.Body.String())
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.signup(t, "aadhaar-admin", model.RoleAdmin)
	voterToken := env.signup(t, "aadhaar-voter", "")
	candidateID := env.createCandidate(t, adminToken, "李四")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		want   int
	}{
		{"选民创建候选人", http.MethodPost, "/candidate", voterToken, &model.CandidateRequest{Name: "x", Party: "y"}, http.StatusForbidden},
		{"选民更新候选人", http.MethodPut, "/candidate/" + candidateID, voterToken, &model.CandidateRequest{Name: "x", Party: "y"}, http.StatusForbidden},
		{"选民删除候选人", http.MethodDelete, "/candidate/" + candidateID, voterToken, nil, http.StatusForbidden},
		{"无凭证创建候选人", http.MethodPost, "/candidate", "", &model.CandidateRequest{Name: "x", Party: "y"}, http.StatusUnauthorized},
		{"管理员更新候选人", http.MethodPut, "/candidate/" + candidateID, adminToken, &model.CandidateRequest{Name: "李四", Party: "团结党"}, http.StatusOK},
		{"管理员更新不存在候选人", http.MethodPut, "/candidate/missing", adminToken, &model.CandidateRequest{Name: "x", Party: "y"}, http.StatusNotFound},
		{"管理员删除候选人", http.MethodDelete, "/candidate/" + candidateID, adminToken, nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := env.do(t, tt.method, tt.path, tt.token, tt.body)
			if recorder.Code != tt.want {
				t.Errorf("响应码 = %d, want %d, body = %s", recorder.Code, tt.want, recorder.Body.String())
			}
		})
	}
}

func TestVoteCountOrdering(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.signup(t, "aadhaar-admin", model.RoleAdmin)
	first := env.createCandidate(t, adminToken, "李四")
	second := env.createCandidate(t, adminToken, "王五")

	// 两个选民都投给第二个候选人
	for _, aadhaar := range []string{"aadhaar-v1", "aadhaar-v2"} {
		token := env.signup(t, aadhaar, "")
		recorder := env.do(t, http.MethodPost, "/candidate/vote/"+second, token, nil)
		if recorder.Code != http.StatusOK {
			t.Fatalf("投票响应码 = %d", recorder.Code)
		}
	}

	recorder := env.do(t, http.MethodGet, "/candidate/vote/count", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("排行榜响应码 = %d", recorder.Code)
	}

	var resp struct {
		Candidates []*model.CandidateResult `json:"candidates"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析排行榜响应失败: %v", err)
	}
	if len(resp.Candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(resp.Candidates))
	}
	if resp.Candidates[0].ID != second || resp.Candidates[0].VoteCount != 2 {
		t.Errorf("榜首 = %s/%d, want %s/2", resp.Candidates[0].ID, resp.Candidates[0].VoteCount, second)
	}
	if resp.Candidates[1].ID != first || resp.Candidates[1].VoteCount != 0 {
		t.Errorf("第二名 = %s/%d, want %s/0", resp.Candidates[1].ID, resp.Candidates[1].VoteCount, first)
	}
}

func TestProfileEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.signup(t, "aadhaar-1", "")

	recorder := env.do(t, http.MethodGet, "/user/profile", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("查询资料响应码 = %d", recorder.Code)
	}
	// 密码散列不允许出现在响应中
	if bytes.Contains(recorder.Body.Bytes(), []byte("passwordHash")) {
		t.Errorf("资料响应不应包含密码散列: %s", recorder.Body.String())
	}

	recorder = env.do(t, http.MethodGet, "/user/profile", "", nil)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("无凭证查询资料响应码 = %d, want 401", recorder.Code)
	}

	recorder = env.do(t, http.MethodPut, "/user/profile/password", token, &model.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "newsecret",
	})
	if recorder.Code != http.StatusOK {
		t.Errorf("修改密码响应码 = %d, body = %s", recorder.Code, recorder.Body.String())
	}

	recorder = env.do(t, http.MethodPost, "/user/login", "", &model.LoginRequest{
		AadhaarNumber: "aadhaar-1",
		Password:      "newsecret",
	})
	if recorder.Code != http.StatusOK {
		t.Errorf("新密码登录响应码 = %d", recorder.Code)
	}
}
