package graph

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/graph-gophers/graphql-go/relay"
	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/model"
	"github.com/lvdashuaibi/openvote/internal/service"
	"github.com/lvdashuaibi/openvote/internal/tally"
)

// GraphQLServer 只读查询服务器，投票与管理走REST接口
type GraphQLServer struct {
	schema   *graphql.Schema
	handler  *relay.Handler
	resolver *Resolver
}

// 读取GraphQL Schema定义
const schemaString = `
type Candidate {
  id: String!
  name: String!
  party: String!
  voteCount: Int!
  createdAt: String!
}

type CandidateResult {
  id: String!
  name: String!
  party: String!
  voteCount: Int!
}

type Query {
  # 排行榜，按票数降序，同票按候选人ID升序
  results: [CandidateResult!]!

  # 候选人名单，按创建顺序
  candidates: [Candidate!]!

  # 按ID查询候选人
  candidate(id: String!): Candidate!
}

schema {
  query: Query
}
`

// NewGraphQLServer 创建新的GraphQL服务器
func NewGraphQLServer(voteService *service.VoteService, tallyService *tally.TallyService) *GraphQLServer {
	resolver := NewResolver(voteService, tallyService)

	// 解析Schema并创建GraphQL实例
	schema := graphql.MustParseSchema(schemaString, resolver,
		graphql.UseFieldResolvers(),
	)

	handler := &relay.Handler{Schema: schema}

	return &GraphQLServer{
		schema:   schema,
		handler:  handler,
		resolver: resolver,
	}
}

// Handler 返回GraphQL端点处理器，供外层路由挂载
func (s *GraphQLServer) Handler() http.Handler {
	return s.handler
}

// PlaygroundHandler 返回GraphQL Playground页面处理器
func (s *GraphQLServer) PlaygroundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(playgroundHTML))
	}
}

// Attach 将GraphQL端点与Playground挂到路由上
func (s *GraphQLServer) Attach(mux *http.ServeMux) {
	mux.Handle(config.AppConfig.Server.GraphQLPath, s.handler)
	mux.HandleFunc("/playground", s.PlaygroundHandler())
}

// Start 独立启动GraphQL服务器
func (s *GraphQLServer) Start(port int) error {
	mux := http.NewServeMux()
	s.Attach(mux)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("GraphQL服务已启动，API端点: %s, Playground: http://localhost%s/playground",
		config.AppConfig.Server.GraphQLPath, addr)

	return http.ListenAndServe(addr, mux)
}

// Resolver GraphQL解析器
type Resolver struct {
	voteService  *service.VoteService
	tallyService *tally.TallyService
}

// NewResolver 创建新的解析器
func NewResolver(voteService *service.VoteService, tallyService *tally.TallyService) *Resolver {
	return &Resolver{voteService: voteService, tallyService: tallyService}
}

// Results 排行榜
func (r *Resolver) Results(ctx context.Context) ([]*CandidateResultResolver, error) {
	results, err := r.tallyService.Results()
	if err != nil {
		return nil, err
	}

	resolvers := make([]*CandidateResultResolver, len(results))
	for i, result := range results {
		resolvers[i] = &CandidateResultResolver{result: result}
	}

	return resolvers, nil
}

// Candidates 候选人名单
func (r *Resolver) Candidates(ctx context.Context) ([]*CandidateResolver, error) {
	candidates, err := r.tallyService.Candidates()
	if err != nil {
		return nil, err
	}

	resolvers := make([]*CandidateResolver, len(candidates))
	for i, candidate := range candidates {
		resolvers[i] = &CandidateResolver{candidate: candidate}
	}

	return resolvers, nil
}

// Candidate 按ID查询候选人
func (r *Resolver) Candidate(ctx context.Context, args struct{ ID string }) (*CandidateResolver, error) {
	candidate, err := r.voteService.GetCandidate(args.ID)
	if err != nil {
		return nil, err
	}

	return &CandidateResolver{candidate: candidate}, nil
}

// CandidateResolver 候选人解析器
type CandidateResolver struct {
	candidate *model.Candidate
}

func (r *CandidateResolver) ID() string {
	return r.candidate.ID
}

func (r *CandidateResolver) Name() string {
	return r.candidate.Name
}

func (r *CandidateResolver) Party() string {
	return r.candidate.Party
}

func (r *CandidateResolver) VoteCount() int32 {
	return int32(r.candidate.VoteCount)
}

func (r *CandidateResolver) CreatedAt() string {
	return r.candidate.CreatedAt.Format(time.RFC3339)
}

// CandidateResultResolver 排行榜条目解析器
type CandidateResultResolver struct {
	result *model.CandidateResult
}

func (r *CandidateResultResolver) ID() string {
	return r.result.ID
}

func (r *CandidateResultResolver) Name() string {
	return r.result.Name
}

func (r *CandidateResultResolver) Party() string {
	return r.result.Party
}

func (r *CandidateResultResolver) VoteCount() int32 {
	return int32(r.result.VoteCount)
}

// playgroundHTML GraphQL Playground HTML
const playgroundHTML = `
<!DOCTYPE html>
<html>
<head>
  <meta charset=utf-8/>
  <meta name="viewport" content="user-scalable=no, initial-scale=1.0, minimum-scale=1.0, maximum-scale=1.0, minimal-ui">
  <title>OpenVote GraphQL Playground</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/graphql-playground-react@1.7.22/build/static/css/index.css" />
  <link rel="shortcut icon" href="https://cdn.jsdelivr.net/npm/graphql-playground-react@1.7.22/build/favicon.png" />
  <script src="https://cdn.jsdelivr.net/npm/graphql-playground-react@1.7.22/build/static/js/middleware.js"></script>
</head>
<body>
  <div id="root">
    <style>
      body {
        background-color: rgb(23, 42, 58);
        font-family: Open Sans, sans-serif;
        height: 90vh;
      }
      #root {
        height: 100%;
        width: 100%;
        display: flex;
        align-items: center;
        justify-content: center;
      }
      .loading {
        font-size: 32px;
        font-weight: 200;
        color: rgba(255, 255, 255, .6);
        margin-left: 20px;
      }
      img {
        width: 78px;
        height: 78px;
      }
      .title {
        font-weight: 400;
      }
    </style>
    <img src='https://cdn.jsdelivr.net/npm/graphql-playground-react@1.7.22/build/logo.png' alt=''>
    <div class="loading">
      <span class="title">OpenVote GraphQL Playground</span>
    </div>
  </div>
  <script>window.addEventListener('load', function (event) {
      GraphQLPlayground.init(document.getElementById('root'), {
        endpoint: '/graphql'
      })
    })</script>
</body>
</html>
`
