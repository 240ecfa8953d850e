package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lvdashuaibi/openvote/config"
	"github.com/lvdashuaibi/openvote/internal/api"
	"github.com/lvdashuaibi/openvote/internal/api/graph"
	intkafka "github.com/lvdashuaibi/openvote/internal/kafka"
	"github.com/lvdashuaibi/openvote/internal/lock"
	"github.com/lvdashuaibi/openvote/internal/repository"
	"github.com/lvdashuaibi/openvote/internal/service"
	"github.com/lvdashuaibi/openvote/internal/tally"
)

const (
	ServiceStartLockName = "openvote:service:start:lock"
	LockAcquireTimeout   = 30 * time.Second
)

var (
	configPath = flag.String("config", "config/config.yaml", "配置文件路径")
	instanceID = flag.Int("instance", 1, "实例ID，用于区分多个实例")
)

func main() {
	// 解析命令行参数
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("配置加载成功，当前实例ID: %d", *instanceID)

	// 创建数据库连接
	mysqlRepo, err := repository.NewMySQLRepository()
	if err != nil {
		log.Fatalf("初始化MySQL仓库失败: %v", err)
	}
	defer mysqlRepo.Close()
	log.Printf("MySQL仓库初始化成功")

	// 创建Redis连接
	redisRepo, err := repository.NewRedisRepository()
	if err != nil {
		log.Fatalf("初始化Redis仓库失败: %v", err)
	}
	defer redisRepo.Close()
	log.Printf("Redis仓库初始化成功")

	// 创建投票串行化锁
	voteLock, err := lock.NewRedLock()
	if err != nil {
		log.Fatalf("初始化Redis分布式锁失败: %v", err)
	}
	defer voteLock.Close()
	log.Printf("Redis分布式锁初始化成功")

	// 创建ETCD分布式锁，用于排行榜刷新器选主
	etcdLock, err := lock.NewETCDLock()
	if err != nil {
		log.Fatalf("初始化ETCD分布式锁失败: %v", err)
	}
	defer etcdLock.Close()
	log.Printf("ETCD分布式锁初始化成功")

	// 获取服务启动锁
	lockAcquired, err := etcdLock.AcquireLock(ServiceStartLockName, LockAcquireTimeout)
	if err != nil {
		log.Printf("获取服务启动锁失败: %v，将以非刷新者模式启动", err)
	}

	var isRefresher bool
	if lockAcquired {
		log.Printf("实例 %d 获取服务启动锁成功，将作为排行榜刷新者启动", *instanceID)
		isRefresher = true
		defer etcdLock.ReleaseLock(ServiceStartLockName)
	} else {
		log.Printf("实例 %d 未获取到服务启动锁，以普通节点模式启动", *instanceID)
		isRefresher = false
	}

	// 创建Kafka生产者
	producer, err := intkafka.NewProducer()
	if err != nil {
		log.Fatalf("初始化Kafka生产者失败: %v", err)
	}
	defer producer.Close()
	log.Printf("Kafka生产者初始化成功")

	// 创建Kafka消费者
	consumer, err := intkafka.NewConsumer()
	if err != nil {
		log.Fatalf("初始化Kafka消费者失败: %v", err)
	}
	defer consumer.Stop()
	log.Printf("Kafka消费者初始化成功")

	// 创建排行榜服务
	tallyService := tally.NewTallyService(mysqlRepo, redisRepo, voteLock, isRefresher)

	// 启动快照刷新器 (只有选主成功的实例才会真正重建快照)
	tallyService.StartRefresher()
	defer tallyService.StopRefresher()
	log.Printf("排行榜服务初始化成功，刷新者模式: %v", isRefresher)

	// 创建投票服务
	voteService := service.NewVoteService(mysqlRepo, mysqlRepo, mysqlRepo, redisRepo, producer, voteLock)
	log.Printf("投票服务初始化成功")

	// 创建用户与候选人管理服务
	userService := service.NewUserService(mysqlRepo)
	candidateService := service.NewCandidateService(mysqlRepo, redisRepo)

	// 启动Kafka消费者
	consumer.StartConsuming(voteService.ProcessVoteEvent)
	log.Printf("Kafka消费者已启动")

	// 创建GraphQL服务
	graphqlServer := graph.NewGraphQLServer(voteService, tallyService)
	log.Printf("GraphQL服务初始化成功")

	// 组装HTTP路由
	handler := api.NewHandler(userService, voteService, candidateService, tallyService)
	router := api.NewRouter(handler)
	router.POST(cfg.Server.GraphQLPath, gin.WrapH(graphqlServer.Handler()))
	router.GET("/playground", gin.WrapF(graphqlServer.PlaygroundHandler()))

	// 计算端口，支持多实例
	serverPort := cfg.Server.Port + *instanceID - 1

	// 启动HTTP服务器(异步)
	go func() {
		if err := router.Run(fmt.Sprintf(":%d", serverPort)); err != nil {
			log.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	log.Printf("OpenVote 系统 (实例 %d) 已启动，服务地址: http://localhost:%d", *instanceID, serverPort)

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("正在关闭服务...")
}
