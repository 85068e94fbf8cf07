package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/quote"
)

// Side 交易方向，由调用方按决策动作显式给定。
// 构建器不得从 mint 对反推方向：USDC 计价买入时输入不是 WSOL，反推会得到卖出。
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	}
	return "unknown"
}

// BuildParams 单笔（单片）swap 的构建输入。AmountIn 是输入资产最小单位。
// ExpectedOut 来自同周期报价，exact-out 风格的 venue 需要它定产出。
type BuildParams struct {
	Payer       common.PublicKey
	Side        Side
	InputMint   common.PublicKey
	OutputMint  common.PublicKey
	AmountIn    *big.Int
	ExpectedOut *big.Int
	SlippageBps int
	Pool        *quote.Pool
}

// Builder 把一笔 swap 变成该 venue 的指令序列（含必要的前置账户创建）。
type Builder interface {
	Venue() int
	BuildSwap(ctx context.Context, p BuildParams) ([]types.Instruction, error)
}

// BuildError venue 构建失败。触发一次性切换到备用 venue，不在原 venue 重试。
type BuildError struct {
	Venue int
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s 构建失败: %v", consts.VenueName(e.Venue), e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ensureATA ATA 不存在时返回创建指令，存在时返回 nil 指令。
func ensureATA(ctx context.Context, cli chain.Client, payer, owner, mint common.PublicKey) (common.PublicKey, []types.Instruction, error) {
	ata, _, err := common.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return common.PublicKey{}, nil, fmt.Errorf("ATA 派生失败: %w", err)
	}
	info, err := cli.GetAccountInfo(ctx, ata)
	if err != nil {
		return common.PublicKey{}, nil, fmt.Errorf("读取 ATA 失败: %w", err)
	}
	if info.Exists {
		return ata, nil, nil
	}
	ix := associated_token_account.Create(associated_token_account.CreateParam{
		Funder:                 payer,
		Owner:                  owner,
		Mint:                   mint,
		AssociatedTokenAccount: ata,
	})
	return ata, []types.Instruction{ix}, nil
}
