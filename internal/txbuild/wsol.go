package txbuild

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
)

// WrapWSOL 生成把原生 SOL 包装为 WSOL 的指令序列：
// ATA 不存在则先创建，再转入 lamports 并 sync。
func WrapWSOL(ctx context.Context, cli chain.Client, payer, owner common.PublicKey, lamports *big.Int) (common.PublicKey, []types.Instruction, error) {
	ata, _, err := common.FindAssociatedTokenAddress(owner, consts.WSOLMint)
	if err != nil {
		return common.PublicKey{}, nil, fmt.Errorf("WSOL ATA 派生失败: %w", err)
	}
	if !lamports.IsUint64() {
		return common.PublicKey{}, nil, fmt.Errorf("wrap 金额超出 u64: %s", lamports)
	}

	var ixs []types.Instruction
	info, err := cli.GetAccountInfo(ctx, ata)
	if err != nil {
		return common.PublicKey{}, nil, fmt.Errorf("读取 WSOL ATA 失败: %w", err)
	}
	if !info.Exists {
		ixs = append(ixs, associated_token_account.Create(associated_token_account.CreateParam{
			Funder:                 payer,
			Owner:                  owner,
			Mint:                   consts.WSOLMint,
			AssociatedTokenAccount: ata,
		}))
	}
	ixs = append(ixs, system.Transfer(system.TransferParam{
		From:   payer,
		To:     ata,
		Amount: lamports.Uint64(),
	}))
	ixs = append(ixs, token.SyncNative(token.SyncNativeParam{
		Account: ata,
	}))
	return ata, ixs, nil
}

// UnwrapWSOL 关闭 WSOL ATA，余额（含租金）退回 owner。
func UnwrapWSOL(owner common.PublicKey) (common.PublicKey, []types.Instruction, error) {
	ata, _, err := common.FindAssociatedTokenAddress(owner, consts.WSOLMint)
	if err != nil {
		return common.PublicKey{}, nil, fmt.Errorf("WSOL ATA 派生失败: %w", err)
	}
	ix := token.CloseAccount(token.CloseAccountParam{
		Account: ata,
		Auth:    owner,
		To:      owner,
	})
	return ata, []types.Instruction{ix}, nil
}
