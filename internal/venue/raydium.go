package venue

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
)

// swapBaseIn 指令号，布局固定：u8 tag + u64 amountIn + u64 minAmountOut
const raydiumSwapBaseIn = 9

// RaydiumBuilder 备用开放市场 venue。该程序无 anchor schema，
// 指令布局按公开的 V4 约定手工编码。
type RaydiumBuilder struct {
	cli chain.Client
}

func NewRaydiumBuilder(cli chain.Client) *RaydiumBuilder {
	return &RaydiumBuilder{cli: cli}
}

func (b *RaydiumBuilder) Venue() int {
	return consts.VenueRaydium
}

func (b *RaydiumBuilder) BuildSwap(ctx context.Context, p BuildParams) ([]types.Instruction, error) {
	ixs, err := b.buildSwap(ctx, p)
	if err != nil {
		return nil, &BuildError{Venue: consts.VenueRaydium, Err: err}
	}
	return ixs, nil
}

func (b *RaydiumBuilder) buildSwap(ctx context.Context, p BuildParams) ([]types.Instruction, error) {
	if p.Pool == nil || p.Pool.Raydium == nil {
		return nil, fmt.Errorf("缺少池子市场账户")
	}
	pool := p.Pool
	keys := pool.Raydium

	srcAta, createSrc, err := ensureATA(ctx, b.cli, p.Payer, p.Payer, p.InputMint)
	if err != nil {
		return nil, err
	}
	dstAta, createDst, err := ensureATA(ctx, b.cli, p.Payer, p.Payer, p.OutputMint)
	if err != nil {
		return nil, err
	}

	if !p.AmountIn.IsUint64() {
		return nil, fmt.Errorf("投入金额超出 u64: %s", p.AmountIn)
	}
	data := make([]byte, 17)
	data[0] = raydiumSwapBaseIn
	binary.LittleEndian.PutUint64(data[1:9], p.AmountIn.Uint64())
	// minAmountOut 恒为零，滑点防护依赖链下 impact 估计
	binary.LittleEndian.PutUint64(data[9:17], 0)

	metas := []types.AccountMeta{
		{PubKey: consts.TokenProgram, IsSigner: false, IsWritable: false},
		{PubKey: pool.ID, IsSigner: false, IsWritable: true},
		{PubKey: keys.Authority, IsSigner: false, IsWritable: false},
		{PubKey: keys.OpenOrders, IsSigner: false, IsWritable: true},
		{PubKey: keys.TargetOrders, IsSigner: false, IsWritable: true},
		{PubKey: pool.BaseVault, IsSigner: false, IsWritable: true},
		{PubKey: pool.QuoteVault, IsSigner: false, IsWritable: true},
		{PubKey: keys.MarketProgram, IsSigner: false, IsWritable: false},
		{PubKey: keys.Market, IsSigner: false, IsWritable: true},
		{PubKey: keys.MarketBids, IsSigner: false, IsWritable: true},
		{PubKey: keys.MarketAsks, IsSigner: false, IsWritable: true},
		{PubKey: keys.MarketEventQueue, IsSigner: false, IsWritable: true},
		{PubKey: keys.MarketBaseVault, IsSigner: false, IsWritable: true},
		{PubKey: keys.MarketQuoteVault, IsSigner: false, IsWritable: true},
		{PubKey: keys.MarketAuthority, IsSigner: false, IsWritable: false},
		{PubKey: srcAta, IsSigner: false, IsWritable: true},
		{PubKey: dstAta, IsSigner: false, IsWritable: true},
		{PubKey: p.Payer, IsSigner: true, IsWritable: false},
	}

	ixs := append(createSrc, createDst...)
	ixs = append(ixs, types.Instruction{
		ProgramID: consts.RaydiumV4Program,
		Accounts:  metas,
		Data:      data,
	})
	return ixs, nil
}
