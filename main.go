package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/account"
	"github.com/fundme/chain"
	"github.com/fundme/client"
	"github.com/fundme/commoncon"
	"github.com/fundme/config"
	"github.com/fundme/contract"
	"github.com/fundme/deploy"
	"github.com/fundme/event"
	"github.com/fundme/fundme"
	"github.com/fundme/levelDB"
	"github.com/fundme/oracle/chainlink"
	"github.com/fundme/oracle/mock"
	"github.com/fundme/redis"
	"github.com/fundme/util"
	"github.com/fundme/verify"
)

func main() {
	Start()
}

func Start() {
	//获取执行参数：配置目录、目标网络以及 .env 文件
	configDir := flag.String("c", "config", "Config directory")
	network := flag.String("n", "hardhat", "Network name")
	envFile := flag.String("env", ".env", "Dotenv file")
	flag.Parse()

	cfg := config.MustLoad(*configDir, *envFile)
	setLogLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, strings.ToLower(*network)); err != nil {
		log.Fatalf("[Start] %v", err)
	}
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		log.Level = log.LevelDebug
	case "warning", "warn":
		log.Level = log.LevelWarning
	case "error":
		log.Level = log.LevelError
	default:
		log.Level = log.LevelInfo
	}
}

func run(ctx context.Context, cfg *config.Config, network string) error {
	net, ok := cfg.Network(network)
	if !ok {
		log.Warningf("[run] network %s not configured, treating it as local", network)
	}
	dev := cfg.IsDevelopment(network)

	//账户与部署记录存放在 levelDB 中，每次启动都是一条新链
	db, err := levelDB.InitDB(cfg.Node.LevelDBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	for _, prefix := range []string{commoncon.AccountPrefixKey, commoncon.DeploymentPrefixKey} {
		if err := db.DeletePrefix(prefix); err != nil {
			return err
		}
	}

	bus := event.NewBus()
	opts := []chain.Option{chain.WithBus(bus)}

	//配置了 redis 时区块与合约事件写入 redis
	if cfg.Node.RedisAddr != "" {
		rc := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Node.RedisAddr,
			Password: cfg.Node.RedisPassword,
			DB:       cfg.Node.RedisDB,
		})
		if err := rc.Ping(); err != nil {
			log.Warningf("[run] redis %s unavailable, keeping blocks in memory: %v", cfg.Node.RedisAddr, err)
		} else {
			defer rc.Close()
			if err := rc.Reset(); err != nil {
				return err
			}
			opts = append(opts, chain.WithBlockStore(rc))
			bus.AddSink(rc)
		}
	}

	//非本地网络通过 RPC 读取 Chainlink 喂价合约
	if net.RPCURL != "" {
		cl, err := chainlink.Dial(ctx, net.RPCURL)
		if err != nil {
			return err
		}
		opts = append(opts, chain.WithFeedResolver(cl))
	}

	gasPrice, err := util.ParseBig(cfg.Chain.GasPrice)
	if err != nil {
		return err
	}
	opts = append(opts, chain.WithGasPrice(gasPrice))

	minimumUSD, err := util.ParseUnits(cfg.FundMe.MinimumUSD, 18)
	if err != nil {
		return err
	}
	registry := contract.NewRegistry()
	registry.Register(commoncon.MockV3Aggregator, mock.Factory)
	registry.Register(commoncon.FundMe, fundme.NewFactory(fundme.WithMinimumUSD(minimumUSD)))

	c, err := chain.New(account.NewState(db), registry, opts...)
	if err != nil {
		return err
	}

	faucet, err := util.ParseEther(cfg.Chain.FaucetBalance)
	if err != nil {
		return err
	}
	keys := cfg.Chain.Accounts
	if !dev {
		keys = []string{cfg.Chain.PrivateKey}
	}
	var deployer common.Address
	for i, key := range keys {
		kp, err := util.ImportKey(key)
		if err != nil {
			return err
		}
		c.Faucet(kp.Address, faucet)
		if i == 0 {
			deployer = kp.Address
		}
		log.Infof("[run] account #%d %s", i, kp.Address.Hex())
	}

	deployments, err := deploy.NewDeployments(db)
	if err != nil {
		return err
	}
	verifier, err := newVerifier(cfg, dev)
	if err != nil {
		return err
	}
	env := &deploy.Env{
		Network:     network,
		Config:      cfg,
		Chain:       c,
		Deployer:    deployer,
		Deployments: deployments,
		Verifier:    verifier,
	}
	if err := deploy.Fixture(ctx, env, commoncon.TagAll); err != nil {
		return err
	}

	c.StartMiner(ctx, cfg.Node.BlockInterval)

	server := client.NewServer(c, deployments, faucet)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenRequest(cfg.Node.ClientAddr)
	}()
	log.Infof("[run] client listening on %s", cfg.Node.ClientAddr)

	select {
	case <-ctx.Done():
		log.Info("[run] shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// 本地网络或没有 api key 时跳过源码验证
func newVerifier(cfg *config.Config, dev bool) (verify.Verifier, error) {
	if dev || cfg.Verify.APIKey == "" {
		return verify.Noop{}, nil
	}
	var source string
	if cfg.Verify.SourceFile != "" {
		data, err := os.ReadFile(cfg.Verify.SourceFile)
		if err != nil {
			return nil, err
		}
		source = string(data)
	}
	return &verify.Etherscan{
		APIURL:       cfg.Verify.APIURL,
		APIKey:       cfg.Verify.APIKey,
		ContractName: commoncon.FundMe,
		Compiler:     cfg.Verify.Compiler,
		Source:       source,
	}, nil
}
