package svc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/config"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/executor"
	"dex-executor-sol/internal/idl"
	"dex-executor-sol/internal/model"
	"dex-executor-sol/internal/mq"
	"dex-executor-sol/internal/oracle"
	"dex-executor-sol/internal/phase"
	"dex-executor-sol/internal/quote"
	"dex-executor-sol/internal/resolver"
	"dex-executor-sol/internal/venue"
	"dex-executor-sol/pkg/logger"
)

// ServiceContext 执行服务的全部资源，进程生命周期内共享。
type ServiceContext struct {
	Config   *config.ExecutorConfig
	Cli      chain.Client
	Signer   types.Account
	Quoter   *quote.Quoter
	Executor *executor.Executor
	Phase    *phase.Registry
	Model    *model.Client
	Oracle   *oracle.PriceService
	Reporter *mq.Reporter
}

func NewServiceContext(c *config.ExecutorConfig) (*ServiceContext, error) {
	cli := chain.NewRpcClient(&c.RpcConf)

	signer, err := loadWallet(&c.WalletConf)
	if err != nil {
		return nil, fmt.Errorf("钱包加载失败: %w", err)
	}
	logger.Infof("[svc] 签名账户: %s", signer.PublicKey)

	// schema 启动时一次加载，进程生命周期内缓存
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pumpFunLoader := idl.NewLoader(c.SchemaConf.PumpFunPath, c.SchemaConf.PumpFunURL)
	pumpFunSchema, err := pumpFunLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("pumpfun schema 加载失败: %w", err)
	}

	cacheTTL := time.Duration(c.SchemaConf.CacheTTLSec) * time.Second
	curveResolver := resolver.New(cli, pumpFunSchema, resolver.Options{
		ProgramID:            parseOverride(c.SchemaConf.ProgramID),
		FeeRecipientOverride: parseOverridePtr(c.SchemaConf.FeeRecipientOverride),
		CreatorVaultOverride: parseOverridePtr(c.SchemaConf.CreatorVaultOverride),
		CacheTTL:             cacheTTL,
		StorePath:            c.SchemaConf.CreatorVaultStore,
	})

	builders := map[int]venue.Builder{
		consts.VenuePumpFun: venue.NewCurveBuilder(cli, pumpFunLoader, curveResolver),
		consts.VenueRaydium: venue.NewRaydiumBuilder(cli),
	}

	// PumpSwap schema 可选：缺失时只禁用该 venue 的构建，不影响其余路径
	if c.SchemaConf.PumpSwapPath != "" || c.SchemaConf.PumpSwapURL != "" {
		pumpSwapLoader := idl.NewLoader(c.SchemaConf.PumpSwapPath, c.SchemaConf.PumpSwapURL)
		pumpSwapSchema, err := pumpSwapLoader.Load(ctx)
		if err != nil {
			logger.Warnf("[svc] pumpswap schema 加载失败，该 venue 不可构建: %v", err)
		} else {
			ammResolver := resolver.New(cli, pumpSwapSchema, resolver.Options{
				ProgramID: consts.PumpSwapProgram,
				CacheTTL:  cacheTTL,
			})
			builders[consts.VenuePumpSwap] = venue.NewPumpSwapBuilder(cli, pumpSwapLoader, ammResolver)
		}
	}

	poolTTL := time.Duration(c.QuoteConf.PoolCacheSec) * time.Second
	quoter := quote.NewQuoter(cli, map[int]quote.PoolFinder{
		consts.VenuePumpSwap: quote.NewPumpSwapFinder(c.QuoteConf.PumpSwapPoolURL),
		consts.VenueRaydium:  quote.NewRaydiumFinder(c.QuoteConf.RaydiumPoolURL, poolTTL, nil),
	}, nil)
	quoter.SetDefaultFeeBps(c.QuoteConf.DefaultFeeBps)

	reporter, err := mq.NewReporter(&c.ReportConf)
	if err != nil {
		return nil, fmt.Errorf("执行回报初始化失败: %w", err)
	}

	priceService := oracle.NewPriceService(&c.OracleConf, cli)

	submitter := executor.NewSubmitter(
		cli,
		c.RpcConf.Commitment,
		c.ExecConf.MaxRetries,
		c.ExecConf.Simulate,
		time.Duration(c.RpcConf.ConfirmTimeout)*time.Second,
		time.Duration(c.RpcConf.ConfirmPollMs)*time.Millisecond,
	)
	exec := executor.New(c.ExecConf, submitter, executor.Deps{
		Cli:      cli,
		Quoter:   quoter,
		Builders: builders,
		Signer:   signer,
		SolUsd:   priceService.SolUsd,
		Reporter: reporter,
	})

	return &ServiceContext{
		Config:   c,
		Cli:      cli,
		Signer:   signer,
		Quoter:   quoter,
		Executor: exec,
		Phase:    phase.NewRegistry(&c.PhaseConf, nil),
		Model:    model.NewClient(c.ModelConf.BaseUrl, c.ModelConf.TimeoutMs),
		Oracle:   priceService,
		Reporter: reporter,
	}, nil
}

func (s *ServiceContext) Close() {
	if s.Reporter != nil {
		s.Reporter.Close()
	}
	if s.Phase != nil {
		s.Phase.Close()
	}
}

// loadWallet 二选一加载签名密钥：base58 私钥或 JSON 字节数组文件。
func loadWallet(cfg *config.WalletConfig) (types.Account, error) {
	if cfg.KeypairB58 != "" {
		return types.AccountFromBase58(cfg.KeypairB58)
	}
	if cfg.KeypairPath != "" {
		raw, err := os.ReadFile(cfg.KeypairPath)
		if err != nil {
			return types.Account{}, fmt.Errorf("读取密钥文件失败: %w", err)
		}
		var keyBytes []byte
		var nums []int
		if err := json.Unmarshal(raw, &nums); err != nil {
			return types.Account{}, fmt.Errorf("密钥文件格式错误: %w", err)
		}
		keyBytes = make([]byte, len(nums))
		for i, n := range nums {
			keyBytes[i] = byte(n)
		}
		return types.AccountFromBytes(keyBytes)
	}
	return types.Account{}, fmt.Errorf("wallet 配置为空（keypair_b58 / keypair_path 二选一）")
}

func parseOverride(s string) common.PublicKey {
	if s == "" {
		return common.PublicKey{}
	}
	return common.PublicKeyFromString(s)
}

func parseOverridePtr(s string) *common.PublicKey {
	if s == "" {
		return nil
	}
	pk := common.PublicKeyFromString(s)
	return &pk
}
