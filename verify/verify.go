package verify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrVerifyFailed = errors.New("verification failed")

type Verifier interface {
	Verify(ctx context.Context, address common.Address, args []string) error
}

// 开发网络或没有 api key 时只打印日志
type Noop struct{}

func (Noop) Verify(_ context.Context, address common.Address, args []string) error {
	log.Infof("[Verify] skip verification of %s %v", address.Hex(), args)
	return nil
}

type Etherscan struct {
	APIURL       string
	APIKey       string
	ContractName string
	Compiler     string
	Source       string
	Client       *http.Client
}

type etherscanResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  string `json:"result"`
}

func (e *Etherscan) Verify(ctx context.Context, address common.Address, args []string) error {
	log.Infof("Verifying contract %s...", address.Hex())
	encoded, err := EncodeConstructorArgs(args)
	if err != nil {
		return err
	}
	form := url.Values{}
	form.Set("apikey", e.APIKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", address.Hex())
	form.Set("sourceCode", e.Source)
	form.Set("codeformat", "solidity-single-file")
	form.Set("contractname", e.ContractName)
	form.Set("compilerversion", e.Compiler)
	form.Set("constructorArguements", encoded)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.APIURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	client := e.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	defer resp.Body.Close()

	var body etherscanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrVerifyFailed, err)
	}
	if strings.Contains(strings.ToLower(body.Result), "already verified") {
		log.Infof("Already Verified!")
		return nil
	}
	if body.Status != "1" {
		log.Errorf("[Verify] %s: %s %s", address.Hex(), body.Message, body.Result)
		return fmt.Errorf("%w: %s: %s", ErrVerifyFailed, body.Message, body.Result)
	}
	log.Infof("[Verify] submitted %s, guid %s", address.Hex(), body.Result)
	return nil
}

// 构造参数 ABI 编码：地址按 address，十进制整数按 uint256，其余按 string
func EncodeConstructorArgs(args []string) (string, error) {
	addressT, _ := abi.NewType("address", "", nil)
	uintT, _ := abi.NewType("uint256", "", nil)
	stringT, _ := abi.NewType("string", "", nil)

	var arguments abi.Arguments
	values := make([]interface{}, 0, len(args))
	for _, a := range args {
		if common.IsHexAddress(a) {
			arguments = append(arguments, abi.Argument{Type: addressT})
			values = append(values, common.HexToAddress(a))
			continue
		}
		if n, ok := new(big.Int).SetString(a, 10); ok && n.Sign() >= 0 {
			arguments = append(arguments, abi.Argument{Type: uintT})
			values = append(values, n)
			continue
		}
		arguments = append(arguments, abi.Argument{Type: stringT})
		values = append(values, a)
	}
	packed, err := arguments.Pack(values...)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(packed), nil
}
