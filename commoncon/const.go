package commoncon

// 合约名称
const MockV3Aggregator = "MockV3Aggregator"
const FundMe = "FundMe"

// 部署脚本标签
const TagAll = "all"
const TagMocks = "mocks"
const TagFundMe = "fundme"

// 交易执行状态
const StatusSuccess uint64 = 1
const StatusFailed uint64 = 0

// redis key
const BlockChainKey = "BlockChain"
const EventLogKey = "contract_events"

// levelDB key 前缀
const AccountPrefixKey = "account/"
const DeploymentPrefixKey = "deployment/"

// 合约事件
const EventFunded = "Funded"
const EventWithdrawn = "Withdrawn"
const EventAnswerUpdated = "AnswerUpdated"

// 响应码（前端校验码，错误时同样返回20000，通过Error字段区分）
const CodeOK = 20000
