package txbuild

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/compute_budget"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
)

// WithPriorityFee 费率大于 0 时在指令列表前插入计算单价指令，否则原样返回。
func WithPriorityFee(ixs []types.Instruction, microLamports uint64) []types.Instruction {
	if microLamports == 0 {
		return ixs
	}
	out := make([]types.Instruction, 0, len(ixs)+1)
	out = append(out, compute_budget.SetComputeUnitPrice(compute_budget.SetComputeUnitPriceParam{
		MicroLamports: microLamports,
	}))
	return append(out, ixs...)
}

// Assemble 取最新 blockhash 并把指令列表编译成未签名消息。不做签名。
func Assemble(ctx context.Context, cli chain.Client, payer common.PublicKey, ixs []types.Instruction) (types.Message, error) {
	if len(ixs) == 0 {
		return types.Message{}, fmt.Errorf("指令列表为空")
	}
	blockhash, err := cli.GetLatestBlockhash(ctx)
	if err != nil {
		return types.Message{}, fmt.Errorf("获取 blockhash 失败: %w", err)
	}
	return types.NewMessage(types.NewMessageParam{
		FeePayer:        payer,
		RecentBlockhash: blockhash,
		Instructions:    ixs,
	}), nil
}

// Sign 用指定账户对消息签名，产出可广播的交易。
func Sign(msg types.Message, signer types.Account) (types.Transaction, error) {
	tx, err := types.NewTransaction(types.NewTransactionParam{
		Message: msg,
		Signers: []types.Account{signer},
	})
	if err != nil {
		return types.Transaction{}, fmt.Errorf("交易签名失败: %w", err)
	}
	return tx, nil
}
