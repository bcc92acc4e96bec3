package client

import (
	"math/big"
	"net/http"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/chain"
	"github.com/fundme/deploy"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 面向用户的 HTTP 服务
type Server struct {
	chain       *chain.Chain
	deployments *deploy.Deployments
	faucet      *big.Int // 注册账户时发放的余额（wei）
	engine      *gin.Engine
}

func NewServer(c *chain.Chain, deployments *deploy.Deployments, faucet *big.Int) *Server {
	if faucet == nil {
		faucet = new(big.Int)
	}
	s := &Server{chain: c, deployments: deployments, faucet: faucet}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(Cors())      // 使用跨域组件
	r.Use(RequestID()) // 请求 ID
	r.Use(Metrics())   // 请求计数和耗时
	r.POST("/postTran", s.postTran)              // 提交一笔交易
	r.GET("/registerAccount", s.registerAccount) // 注册账户
	r.POST("/query", s.query)                    // 提供链上查询服务
	r.GET("/getLog", s.getLog)                   // 与前端建立websocket
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// 监听用户请求
func (s *Server) ListenRequest(addr string) error {
	log.Info(" ---------------------------------------------------------------------------------")
	log.Infof("|  FundMe 节点已启动，监听地址 %s  |", addr)
	log.Info(" ---------------------------------------------------------------------------------")
	return s.engine.Run(addr)
}
