package client

import (
	"net/http"
	"strconv"

	"github.com/cloudflare/cfssl/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fundme/commoncon"
	"github.com/fundme/meta"
	"github.com/fundme/util"
	"github.com/gin-gonic/gin"
)

//账户注册
func (s *Server) registerAccount(ctx *gin.Context) {
	//首先生成公私钥，地址由公钥推导
	kp, err := util.GetKeyPair()
	if err != nil {
		log.Errorf("[registerAccount] generate key: %v", err)
		ctx.JSON(http.StatusOK, errResponse(err.Error()))
		return
	}
	// 开发网络水龙头
	s.chain.Faucet(kp.Address, s.faucet)
	res := meta.ChainAccount{
		AccountAddress: kp.Address.Hex(),
		PublicKey:      kp.PublicKeyHex(),
		PrivateKey:     kp.PrivateKeyHex(),
	}
	log.Infof("[registerAccount] new account %s", res.AccountAddress)
	ctx.JSON(http.StatusOK, goodResponse(res))
}

// 提交交易，私钥必须与发起地址对应
func (s *Server) postTran(ctx *gin.Context) {
	pt := meta.PostTran{}
	if err := ctx.ShouldBindJSON(&pt); err != nil {
		ctx.JSON(http.StatusOK, errResponse("交易参数格式错误"))
		return
	}
	tx, msg, ok := s.checkTranParameters(&pt)
	if !ok {
		log.Errorf("[postTran] %s", msg)
		ctx.JSON(http.StatusOK, errResponse(msg))
		return
	}

	receipt, err := s.chain.SendTransaction(ctx.Request.Context(), tx)
	txType := strconv.Itoa(tx.Type)
	if err != nil {
		transactionsTotal.WithLabelValues(txType, "failed").Inc()
		hr := errResponse(err.Error())
		if receipt.TxHash != (common.Hash{}) {
			hr.Data = receipt
		}
		ctx.JSON(http.StatusOK, hr)
		return
	}
	transactionsTotal.WithLabelValues(txType, "success").Inc()
	ctx.JSON(http.StatusOK, goodResponse(receipt))
}

// 链上查询
func (s *Server) query(ctx *gin.Context) {
	q := meta.Query{}
	if err := ctx.ShouldBindJSON(&q); err != nil {
		ctx.JSON(http.StatusOK, errResponse("Query参数有误!"))
		return
	}
	params := q.Parameters

	var response meta.HttpResponse
	switch q.Type {
	case "getPriceFeed", "getOwner", "getFunders", "getLatestPrice", "getVersion", "getState":
		response = s.callFundMe(ctx, q.Type)
	case "getAddressToAmountFunded", "getFunder": // 需要一个参数
		if len(params) != 1 {
			response = errResponse("Invalid param")
			break
		}
		response = s.callFundMe(ctx, q.Type, params[0])
	case "getBalance": // 获取账户余额
		if len(params) != 1 || !common.IsHexAddress(params[0]) {
			response = errResponse("Invalid param")
			break
		}
		balance := s.chain.BalanceAt(common.HexToAddress(params[0]))
		response = goodResponse(gin.H{"wei": balance.String(), "ether": util.FormatEther(balance)})
	case "getBlockChain": // 获取区块链
		bcs, err := s.chain.Blocks()
		response = dataOrErr(bcs, err)
	case "getBlock": // 获取指定高度的区块
		if len(params) != 1 {
			response = errResponse("Invalid param")
			break
		}
		h, err := strconv.ParseUint(params[0], 10, 64)
		if err != nil {
			response = errResponse("Invalid param")
			break
		}
		bc, err := s.chain.Block(h)
		response = dataOrErr(bc, err)
	case "getReceipt":
		if len(params) != 1 {
			response = errResponse("Invalid param")
			break
		}
		r, err := s.chain.Receipt(common.HexToHash(params[0]))
		response = dataOrErr(r, err)
	case "getDeployments":
		response = goodResponse(s.deployments.All())
	case "getAllAccounts": // 获取所有的账户
		var all []meta.Account
		for _, addr := range s.chain.State().GetTotalAddress() {
			acc, _ := s.chain.State().GetAccount(addr)
			all = append(all, acc)
		}
		response = goodResponse(all)
	default:
		response = errResponse("Query参数有误!")
	}
	ctx.JSON(http.StatusOK, response)
}

func (s *Server) callFundMe(ctx *gin.Context, method string, args ...string) meta.HttpResponse {
	dep, err := s.deployments.Get(commoncon.FundMe)
	if err != nil {
		return errResponse(err.Error())
	}
	res, err := s.chain.Call(ctx.Request.Context(), common.Address{}, dep.Address, method, args)
	return dataOrErr(res, err)
}

func dataOrErr(data interface{}, err error) meta.HttpResponse {
	if err != nil {
		return errResponse(err.Error())
	}
	return goodResponse(data)
}

func goodResponse(data interface{}) meta.HttpResponse {
	res := meta.HttpResponse{
		Data: data,
		Code: commoncon.CodeOK,
	}
	return res
}

// 出现异常，返回异常信息
func errResponse(errMsg string) meta.HttpResponse {
	res := meta.HttpResponse{
		Error: errMsg,
		Data:  "",
		Code:  commoncon.CodeOK,
	}
	return res
}

// 检查交易参数并转换为链上交易
func (s *Server) checkTranParameters(pt *meta.PostTran) (meta.Transaction, string, bool) {
	if pt.From == "" || !common.IsHexAddress(pt.From) {
		return meta.Transaction{}, "发起地址不能为空", false
	}
	if pt.PrivateKey == "" {
		return meta.Transaction{}, "私钥不能为空", false
	}
	from := common.HexToAddress(pt.From)
	if err := util.CheckKey(pt.PrivateKey, from); err != nil {
		return meta.Transaction{}, "私钥与发起地址不匹配", false
	}
	value, err := util.ParseBig(pt.Value)
	if err != nil || value.Sign() < 0 {
		return meta.Transaction{}, "转账金额必须为非负整数", false
	}
	tx := meta.Transaction{
		From:     from,
		Contract: pt.Contract,
		Method:   pt.Method,
		Args:     pt.Args,
		Value:    value,
		Type:     pt.Type,
	}

	switch pt.Type {
	case meta.Transfer:
		if !common.IsHexAddress(pt.To) {
			return meta.Transaction{}, "接收地址不能为空", false
		}
		if pt.From == pt.To {
			return meta.Transaction{}, "发起地址和接收地址不能相同", false
		}
		if value.Sign() <= 0 {
			return meta.Transaction{}, "转账金额必须为正整数", false
		}
		tx.To = common.HexToAddress(pt.To)
	case meta.Publish:
		if pt.Contract == "" {
			return meta.Transaction{}, "合约名称不能为空", false
		}
	case meta.Invoke:
		if pt.Method == "" {
			return meta.Transaction{}, "方法不能为空", false
		}
		// To 为空时按合约名称查找已部署的合约
		if common.IsHexAddress(pt.To) {
			tx.To = common.HexToAddress(pt.To)
		} else {
			dep, err := s.deployments.Get(pt.Contract)
			if err != nil {
				return meta.Transaction{}, "合约不存在", false
			}
			tx.To = dep.Address
		}
	default:
		return meta.Transaction{}, "未知的交易类型", false
	}
	return tx, "", true
}
