/* 部署脚本：按编号依次部署喂价合约和 FundMe
 */
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/chain"
	"github.com/fundme/commoncon"
	"github.com/fundme/config"
	"github.com/fundme/meta"
	"github.com/fundme/oracle"
	"github.com/fundme/util"
	"github.com/fundme/verify"
)

var ErrNoPriceFeed = errors.New("no eth/usd price feed configured")

type Env struct {
	Network     string
	Config      *config.Config
	Chain       *chain.Chain
	Deployer    common.Address
	Deployments *Deployments
	Verifier    verify.Verifier
}

func (env *Env) isDevelopment() bool {
	return env.Config.IsDevelopment(env.Network)
}

func (env *Env) confirmations() uint64 {
	n, _ := env.Config.Network(env.Network)
	return n.Confirmations()
}

type Script struct {
	Name string
	Tags []string
	Run  func(ctx context.Context, env *Env) error
}

// 按编号顺序执行
var Scripts = []Script{
	{Name: "00-deploy-mocks", Tags: []string{commoncon.TagAll, commoncon.TagMocks}, Run: DeployMocks},
	{Name: "01-deploy-fund-me", Tags: []string{commoncon.TagAll, commoncon.TagFundMe}, Run: DeployFundMe},
}

// Fixture 执行带有任一指定标签的脚本，没有标签时执行全部
func Fixture(ctx context.Context, env *Env, tags ...string) error {
	for _, s := range Scripts {
		if len(tags) > 0 && !matches(s.Tags, tags) {
			continue
		}
		log.Debugf("[Fixture] run %s", s.Name)
		if err := s.Run(ctx, env); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
	}
	return nil
}

func matches(have, want []string) bool {
	for _, w := range want {
		if util.Contains(have, w) {
			return true
		}
	}
	return false
}

// Deploy 发布合约并等待确认，成功后记录部署信息
func (env *Env) Deploy(ctx context.Context, name string, args []string, confirmations uint64) (meta.Deployment, error) {
	r, err := env.Chain.SendTransaction(ctx, meta.Transaction{
		From:     env.Deployer,
		Type:     meta.Publish,
		Contract: name,
		Args:     args,
	})
	if err != nil {
		return meta.Deployment{}, err
	}
	log.Infof("deploying %q (tx: %s)...: deployed at %s with %d gas",
		name, r.TxHash.Hex(), r.ContractAddress.Hex(), r.GasUsed)
	if confirmations > 1 {
		log.Infof("waiting for %d confirmations...", confirmations)
	}
	r, err = env.Chain.WaitForConfirmations(ctx, r.TxHash, confirmations)
	if err != nil {
		return meta.Deployment{}, err
	}
	dep := meta.Deployment{
		Name:        name,
		Contract:    name,
		Address:     r.ContractAddress,
		Args:        args,
		TxHash:      r.TxHash,
		BlockNumber: r.BlockNumber,
		Deployer:    env.Deployer,
		DeployedAt:  time.Now(),
	}
	if err := env.Deployments.Save(dep); err != nil {
		return meta.Deployment{}, err
	}
	return dep, nil
}

// 00-deploy-mocks: 只在开发网络部署 MockV3Aggregator
func DeployMocks(ctx context.Context, env *Env) error {
	if !env.isDevelopment() {
		return nil
	}
	log.Info("Local network detected! Deploying mocks...")
	mocks := env.Config.Mocks
	args := []string{fmt.Sprint(mocks.Decimals), mocks.InitialAnswer}
	if _, err := env.Deploy(ctx, commoncon.MockV3Aggregator, args, 1); err != nil {
		return err
	}
	log.Info("Mocks deployed!")
	log.Info("------------------------------------------")
	return nil
}

// 01-deploy-fund-me
func DeployFundMe(ctx context.Context, env *Env) error {
	var feed common.Address
	if env.isDevelopment() {
		mock, err := env.Deployments.Get(commoncon.MockV3Aggregator)
		if err != nil {
			return err
		}
		feed = mock.Address
	} else {
		n, ok := env.Config.Network(env.Network)
		if !ok || !common.IsHexAddress(n.EthUsdPriceFeed) {
			return fmt.Errorf("%w for network %s", ErrNoPriceFeed, env.Network)
		}
		feed = common.HexToAddress(n.EthUsdPriceFeed)
	}

	adapter, err := oracle.NewAdapter(ctx, feed, env.Chain)
	if err != nil {
		return err
	}
	if err := adapter.CheckDecimals(ctx); err != nil {
		return err
	}

	args := []string{feed.Hex()}
	dep, err := env.Deploy(ctx, commoncon.FundMe, args, env.confirmations())
	if err != nil {
		return err
	}
	if !env.isDevelopment() && env.Verifier != nil {
		if err := env.Verifier.Verify(ctx, dep.Address, args); err != nil {
			log.Errorf("[DeployFundMe] verify %s: %v", dep.Address.Hex(), err)
		}
	}
	log.Info("------------------------------------------")
	return nil
}
