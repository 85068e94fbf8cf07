package venue

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/idl"
	"dex-executor-sol/internal/resolver"
)

// PumpSwapBuilder 开放市场 venue A 的交易构建器。
// 池子账户由调用方传入（报价阶段已定位），其余角色走 schema 解析。
type PumpSwapBuilder struct {
	cli    chain.Client
	loader *idl.Loader
	res    *resolver.Resolver
}

func NewPumpSwapBuilder(cli chain.Client, loader *idl.Loader, res *resolver.Resolver) *PumpSwapBuilder {
	return &PumpSwapBuilder{cli: cli, loader: loader, res: res}
}

func (b *PumpSwapBuilder) Venue() int {
	return consts.VenuePumpSwap
}

func (b *PumpSwapBuilder) BuildSwap(ctx context.Context, p BuildParams) ([]types.Instruction, error) {
	ixs, err := b.buildSwap(ctx, p)
	if err != nil {
		return nil, &BuildError{Venue: consts.VenuePumpSwap, Err: err}
	}
	return ixs, nil
}

func (b *PumpSwapBuilder) buildSwap(ctx context.Context, p BuildParams) ([]types.Instruction, error) {
	if p.Pool == nil {
		return nil, fmt.Errorf("缺少池子信息")
	}
	pool := p.Pool
	// 池子 base 侧是 token：买入即产出 base
	buying := p.OutputMint == pool.BaseMint
	ixName := "sell"
	if buying {
		ixName = "buy"
	}

	schema, err := b.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	ixDef, err := schema.Instruction(ixName)
	if err != nil {
		return nil, err
	}

	baseAta, createBase, err := ensureATA(ctx, b.cli, p.Payer, p.Payer, pool.BaseMint)
	if err != nil {
		return nil, err
	}
	quoteAta, createQuote, err := ensureATA(ctx, b.cli, p.Payer, p.Payer, pool.QuoteMint)
	if err != nil {
		return nil, err
	}

	seed := map[string]common.PublicKey{
		"pool":                     pool.ID,
		"base_mint":                pool.BaseMint,
		"quote_mint":               pool.QuoteMint,
		"pool_base_token_account":  pool.BaseVault,
		"pool_quote_token_account": pool.QuoteVault,
		"user_base_token_account":  baseAta,
		"user_quote_token_account": quoteAta,
		"base_token_program":       consts.TokenProgram,
		"quote_token_program":      consts.TokenProgram,
	}
	accounts, err := b.res.ResolveAccountsWith(ctx, ixDef, resolver.Inputs{
		Payer:            p.Payer,
		Mint:             pool.BaseMint,
		UserTokenAccount: baseAta,
	}, seed)
	if err != nil {
		return nil, err
	}

	data, err := b.encodeSwapArgs(schema, ixDef, p)
	if err != nil {
		return nil, err
	}

	ixs := append(createBase, createQuote...)
	metas := make([]types.AccountMeta, 0, len(ixDef.Accounts))
	for _, acc := range ixDef.Accounts {
		metas = append(metas, types.AccountMeta{
			PubKey:     accounts[acc.Name],
			IsSigner:   acc.Signer,
			IsWritable: acc.Writable,
		})
	}
	ixs = append(ixs, types.Instruction{
		ProgramID: b.res.ProgramID(),
		Accounts:  metas,
		Data:      data,
	})
	return ixs, nil
}

// encodeSwapArgs 本 venue 的 buy 是 exact-out 语义：产出量取报价值按滑点
// 折减，输入上限取本次全部投入。min_*_out 仍恒为零。
func (b *PumpSwapBuilder) encodeSwapArgs(schema *idl.Idl, ixDef *idl.Instruction, p BuildParams) ([]byte, error) {
	disc := resolver.Discriminator(ixDef.Name)
	out := append([]byte{}, disc[:]...)
	for _, arg := range ixDef.Args {
		nm := strings.ToLower(arg.Name)
		var (
			chunk []byte
			err   error
		)
		switch {
		case strings.Contains(nm, "min") && strings.Contains(nm, "out"):
			chunk, err = resolver.EncodeIntegerArg(arg, big.NewInt(0))
		case strings.Contains(nm, "max"):
			chunk, err = resolver.EncodeIntegerArg(arg, p.AmountIn)
		case strings.Contains(nm, "out"):
			if p.ExpectedOut == nil {
				return nil, fmt.Errorf("缺少报价产出，无法编码 %s", arg.Name)
			}
			chunk, err = resolver.EncodeIntegerArg(arg, applySlippage(p.ExpectedOut, p.SlippageBps))
		case strings.Contains(nm, "amount") || strings.Contains(nm, "in"):
			chunk, err = resolver.EncodeIntegerArg(arg, p.AmountIn)
		default:
			chunk = resolver.DefaultBytes(schema, arg.Type)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func applySlippage(v *big.Int, bps int) *big.Int {
	if bps <= 0 {
		return v
	}
	out := new(big.Int).Mul(v, big.NewInt(int64(10000-bps)))
	return out.Div(out, big.NewInt(10000))
}
