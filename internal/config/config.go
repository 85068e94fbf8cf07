package config

import (
	"dex-executor-sol/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// RpcConfig RPC 节点配置
type RpcConfig struct {
	Endpoint       string `yaml:"endpoint"`         // 主 HTTP RPC 地址
	RequestTimeout int    `yaml:"request_timeout"`  // 单次请求超时（秒），默认 10
	ConfirmTimeout int    `yaml:"confirm_timeout"`  // 交易确认等待上限（秒），默认 45
	ConfirmPollMs  int    `yaml:"confirm_poll_ms"`  // 确认轮询间隔（毫秒），默认 500
	Commitment     string `yaml:"commitment"`       // processed / confirmed / finalized
	ReadRetries    int    `yaml:"read_retries"`     // 只读请求额外重试次数，默认 2
	RetryDelayMs   int    `yaml:"retry_delay_ms"`   // 重试退避基准（毫秒），默认 200
}

// WalletConfig 签名密钥配置（二选一）
type WalletConfig struct {
	KeypairB58  string `yaml:"keypair_b58"`  // base58 编码的私钥
	KeypairPath string `yaml:"keypair_path"` // JSON 字节数组密钥文件路径
}

// SchemaConfig 指令/账户 schema（IDL）来源与 resolver 缓存配置
type SchemaConfig struct {
	PumpFunPath  string `yaml:"pumpfun_path"`  // 本地 IDL 路径，优先于 URL
	PumpFunURL   string `yaml:"pumpfun_url"`   // 远端 IDL 地址
	PumpSwapPath string `yaml:"pumpswap_path"`
	PumpSwapURL  string `yaml:"pumpswap_url"`

	ProgramID            string `yaml:"program_id"`              // 覆盖 Pump.fun program id（为空用内置）
	FeeRecipientOverride string `yaml:"fee_recipient_override"`  // 显式 fee_recipient，绕过 Global 解码
	CreatorVaultOverride string `yaml:"creator_vault_override"`  // 显式 creator_vault，绕过派生
	CreatorVaultStore    string `yaml:"creator_vault_store"`     // creator_vault 磁盘缓存文件
	CacheTTLSec          int    `yaml:"cache_ttl_sec"`           // fee_recipient / creator_vault 缓存 TTL（秒），默认 300
}

// OracleConfig SOL/USD 价格同步配置
type OracleConfig struct {
	SyncIntervalS int     `yaml:"sync_interval_s"` // 同步价格的时间间隔（秒）
	SolUsdHint    float64 `yaml:"sol_usd_hint"`    // 初始 SOL 价格（oracle 不可用时的兜底）
}

// PhaseConfig 外部迁移检测器发布的 phase 读取配置
type PhaseConfig struct {
	RedisAddr string `yaml:"redis_addr"` // 为空时不接 redis，全部按 curve 处理
	HashKey   string `yaml:"hash_key"`   // phase 所在 hash key，默认 "dex:phase"
	TTLMs     int    `yaml:"ttl_ms"`     // 本地缓存 TTL（毫秒），默认 2000
}

// ModelConfig 信号服务（决策来源）配置
type ModelConfig struct {
	BaseUrl   string `yaml:"base_url"`   // 例如 http://127.0.0.1:8080
	TimeoutMs int    `yaml:"timeout_ms"` // 请求超时（毫秒），默认 3000
}

// ReportConfig 成交回报 Kafka 配置（可选）
type ReportConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Brokers    string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	Topic      string `yaml:"topic"`      // 成交回报 topic
	Partitions int    `yaml:"partitions"` // topic 分区数
	BatchSize  int    `yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs   int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）
}

// QuoteConfig 各 venue 的池子查询端点
type QuoteConfig struct {
	PumpSwapPoolURL string `yaml:"pumpswap_pool_url"` // 按交易对查询 PumpSwap 池子
	RaydiumPoolURL  string `yaml:"raydium_pool_url"`  // Raydium 全量池子表
	PoolCacheSec    int    `yaml:"pool_cache_sec"`    // 池子表本地缓存（秒），默认 600
	DefaultFeeBps   int    `yaml:"default_fee_bps"`   // 池子未带费率时的默认值，默认 25
}

// ExecConfig 执行编排阈值，均来自外部配置
type ExecConfig struct {
	PriorityFeeMicroLamports uint64 `yaml:"priority_fee_micro_lamports"` // 0 表示不加优先费
	SlippageBps              int    `yaml:"slippage_bps"`
	SwitchMarginBps          int    `yaml:"switch_margin_bps"` // 典型 30-60
	ImpactCapBps             int    `yaml:"impact_cap_bps"`    // 典型 80-120
	SplitsK                  int    `yaml:"splits_k"`          // 切片数，2-8
	SliceDelayMs             int    `yaml:"slice_delay_ms"`    // 非末片之间的延迟
	MaxRetries               int    `yaml:"max_retries"`       // 单片发送重试上限，默认 3
	Simulate                 bool   `yaml:"simulate"`          // 发送前是否模拟

	PreferWSOL      bool     `yaml:"prefer_wsol"`       // 买入时以 WSOL 计价
	DisableCurveBuy bool     `yaml:"disable_curve_buy"` // 策略上禁用 curve 阶段买入
	BlockFreeze     bool     `yaml:"block_freeze"`      // 拦截带 freeze authority 的 mint
	BlockMintAuth   bool     `yaml:"block_mint_auth"`   // 拦截带 mint authority 的 mint
	DenyMints       []string `yaml:"deny_mints"`
	AllowMints      []string `yaml:"allow_mints"`

	KillSwitch        bool    `yaml:"kill_switch"`
	DailyLossLimitUsd float64 `yaml:"daily_loss_limit_usd"` // 0 表示不设限
}

// ExecutorConfig 是主配置结构体，用于驱动执行服务
type ExecutorConfig struct {
	LogConf    LogConfig    `yaml:"logger"`
	RpcConf    RpcConfig    `yaml:"rpc"`
	WalletConf WalletConfig `yaml:"wallet"`
	SchemaConf SchemaConfig `yaml:"schema"`
	OracleConf OracleConfig `yaml:"oracle"`
	PhaseConf  PhaseConfig  `yaml:"phase"`
	ModelConf  ModelConfig  `yaml:"model"`
	ReportConf ReportConfig `yaml:"report"`
	QuoteConf  QuoteConfig  `yaml:"quote"`
	ExecConf   ExecConfig   `yaml:"exec"`

	DecideIntervalS int      `yaml:"decide_interval_s"` // 决策轮询周期（秒），默认 5
	WatchMints      []string `yaml:"watch_mints"`       // 参与决策轮询的资产列表
}
