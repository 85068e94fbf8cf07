package venue

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/idl"
	"dex-executor-sol/internal/resolver"
)

// CurveBuilder 发射期 bonding curve 交易构建器。
// 指令布局完全由 schema 驱动：账户经 resolver 解析，参数按声明类型编码。
type CurveBuilder struct {
	cli    chain.Client
	loader *idl.Loader
	res    *resolver.Resolver
}

func NewCurveBuilder(cli chain.Client, loader *idl.Loader, res *resolver.Resolver) *CurveBuilder {
	return &CurveBuilder{cli: cli, loader: loader, res: res}
}

func (b *CurveBuilder) Venue() int {
	return consts.VenuePumpFun
}

func (b *CurveBuilder) BuildSwap(ctx context.Context, p BuildParams) ([]types.Instruction, error) {
	ixs, err := b.buildSwap(ctx, p)
	if err != nil {
		return nil, &BuildError{Venue: consts.VenuePumpFun, Err: err}
	}
	return ixs, nil
}

func (b *CurveBuilder) buildSwap(ctx context.Context, p BuildParams) ([]types.Instruction, error) {
	var ixName string
	var mint common.PublicKey
	switch p.Side {
	case SideBuy:
		ixName = "buy"
		mint = p.OutputMint
	case SideSell:
		ixName = "sell"
		mint = p.InputMint
	default:
		return nil, fmt.Errorf("未指定交易方向")
	}

	schema, err := b.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	ixDef, err := schema.Instruction(ixName)
	if err != nil {
		return nil, err
	}

	ata, createIxs, err := ensureATA(ctx, b.cli, p.Payer, p.Payer, mint)
	if err != nil {
		return nil, err
	}

	accounts, err := b.res.ResolveAccountsWith(ctx, ixDef, resolver.Inputs{
		Payer:            p.Payer,
		Mint:             mint,
		UserTokenAccount: ata,
	}, map[string]common.PublicKey{"associated_user": ata})
	if err != nil {
		return nil, err
	}

	ixs := createIxs
	// bonding_curve 名下的 token 账户也可能缺失，缺了先建
	if abc, ok := accounts["associated_bonding_curve"]; ok {
		if bc, ok := accounts["bonding_curve"]; ok {
			info, err := b.cli.GetAccountInfo(ctx, abc)
			if err != nil {
				return nil, fmt.Errorf("读取 associated_bonding_curve 失败: %w", err)
			}
			if !info.Exists {
				ixs = append(ixs, associated_token_account.Create(associated_token_account.CreateParam{
					Funder:                 p.Payer,
					Owner:                  bc,
					Mint:                   mint,
					AssociatedTokenAccount: abc,
				}))
			}
		}
	}

	data, err := resolver.EncodeArgs(schema, ixDef, p.AmountIn)
	if err != nil {
		return nil, err
	}

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
