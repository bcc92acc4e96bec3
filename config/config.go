package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/fundme/util"
	"github.com/joho/godotenv"
	viper2 "github.com/spf13/viper"
)

type Config struct {
	Log               LogConfig          `mapstructure:"log"`
	Node              NodeConfig         `mapstructure:"node"`
	Chain             ChainConfig        `mapstructure:"chain"`
	FundMe            FundMeConfig       `mapstructure:"fundme"`
	Mocks             MocksConfig        `mapstructure:"mocks"`
	DevelopmentChains []string           `mapstructure:"development_chains"`
	Networks          map[string]Network `mapstructure:"networks"`
	Verify            VerifyConfig       `mapstructure:"verify"`
}

type LogConfig struct {
	Level string `mapstructure:"level"` // debug|info|warning|error
}

type NodeConfig struct {
	ClientAddr    string        `mapstructure:"client_addr"`
	LevelDBPath   string        `mapstructure:"leveldb_path"`
	RedisAddr     string        `mapstructure:"redis_addr"` // 为空时区块保存在内存中
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	BlockInterval time.Duration `mapstructure:"block_interval"` // 0 表示只在有交易时出块
}

type ChainConfig struct {
	GasPrice      string   `mapstructure:"gas_price"`      // wei
	Accounts      []string `mapstructure:"accounts"`       // 开发网络的账户私钥，第一个为 deployer
	FaucetBalance string   `mapstructure:"faucet_balance"` // ether
	PrivateKey    string   `mapstructure:"private_key"`    // 非开发网络的 deployer 私钥
}

type FundMeConfig struct {
	MinimumUSD string `mapstructure:"minimum_usd"` // USD，1e18 精度前的整数值
}

type MocksConfig struct {
	Decimals      uint8  `mapstructure:"decimals"`
	InitialAnswer string `mapstructure:"initial_answer"`
}

type Network struct {
	ChainID            uint64 `mapstructure:"chain_id"`
	RPCURL             string `mapstructure:"rpc_url"`
	EthUsdPriceFeed    string `mapstructure:"eth_usd_price_feed"`
	BlockConfirmations uint64 `mapstructure:"block_confirmations"`
}

type VerifyConfig struct {
	APIURL     string `mapstructure:"api_url"`
	APIKey     string `mapstructure:"api_key"`
	Compiler   string `mapstructure:"compiler"`
	SourceFile string `mapstructure:"source_file"` // 提交验证的合约源码
}

// Load 读取 dir/config.yaml，envFile 存在时先加载到环境变量
// ${VAR} 形式的值从环境变量展开
func Load(dir, envFile string) (*Config, error) {
	if envFile != "" && util.FileExists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if envFile != "" {
		log.Infof("[Load] no env file %s, relying on system env vars", envFile)
	}

	viper := viper2.New()
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(dir)
	viper.SetEnvPrefix("fundme")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config in %s: %w", dir, err)
	}
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.expandEnv()
	if cfg.Node.LevelDBPath != "" && !filepath.IsAbs(cfg.Node.LevelDBPath) {
		cfg.Node.LevelDBPath = filepath.Join(dir, "..", cfg.Node.LevelDBPath)
	}
	return cfg, nil
}

// 读取失败时 panic，只在 main 中使用
func MustLoad(dir, envFile string) *Config {
	cfg, err := Load(dir, envFile)
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

func setDefaults(viper *viper2.Viper) {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("node.client_addr", ":8080")
	viper.SetDefault("node.leveldb_path", "data/leveldb")
	viper.SetDefault("chain.gas_price", "1000000000")
	viper.SetDefault("chain.faucet_balance", "10000")
	viper.SetDefault("fundme.minimum_usd", "50")
	viper.SetDefault("mocks.decimals", 8)
	viper.SetDefault("mocks.initial_answer", "200000000000")
	viper.SetDefault("development_chains", []string{"hardhat", "localhost"})
}

func (c *Config) expandEnv() {
	c.Chain.PrivateKey = os.ExpandEnv(c.Chain.PrivateKey)
	c.Verify.APIKey = os.ExpandEnv(c.Verify.APIKey)
	c.Node.RedisPassword = os.ExpandEnv(c.Node.RedisPassword)
	for name, n := range c.Networks {
		n.RPCURL = os.ExpandEnv(n.RPCURL)
		c.Networks[name] = n
	}
}

// 网络配置，未配置的网络返回 false
func (c *Config) Network(name string) (Network, bool) {
	n, ok := c.Networks[strings.ToLower(name)]
	return n, ok
}

func (c *Config) IsDevelopment(name string) bool {
	for _, d := range c.DevelopmentChains {
		if strings.EqualFold(d, name) {
			return true
		}
	}
	return false
}

// 区块确认数，未配置时为 1
func (n Network) Confirmations() uint64 {
	if n.BlockConfirmations == 0 {
		return 1
	}
	return n.BlockConfirmations
}
