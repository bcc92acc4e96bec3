package meta

type HttpResponse struct {
	Error string      `json:"error"` // 如果不为空代表错误信息
	Data  interface{} `json:"data"`
	Code  int         `json:"code"` // vue-element-admin的前端校验码，必须为20000
}

// 链上查询请求
type Query struct {
	Type       string   `json:"type"`
	Parameters []string `json:"parameters"`
}

// 用户提交交易的参数
type PostTran struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Contract   string   `json:"contract"` // 合约名称（已部署合约，To为空时按名称查找）
	Method     string   `json:"method"`
	Args       []string `json:"args"`
	Value      string   `json:"value"` // wei，十进制字符串
	PrivateKey string   `json:"private_key"`
	Type       int      `json:"type"`
}
