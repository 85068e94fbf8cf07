package tools

import (
	"context"
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
)

// IsSPLToken 判断一个 ProgramId 是否为标准的 SPL Token 程序。
// 支持 Token v1（Tokenkeg...）和 Token-2022（Tokenz...）
func IsSPLToken(programId string) bool {
	return programId == consts.TokenProgramStr || programId == consts.TokenProgram2022Str
}

func IsSPLTokenProgram(programId common.PublicKey) bool {
	return programId == consts.TokenProgram || programId == consts.TokenProgram2022
}

// MintSafety 开盘前风控探测所需的 mint 属性
type MintSafety struct {
	HasFreezeAuthority bool
	HasMintAuthority   bool
	OwnerProgram       common.PublicKey
	Decimals           uint8
}

// ProbeMint 读取 mint 账户并解析权限位。mint 不存在视为错误：
// 不可验证的资产不允许进入开放市场路径。
func ProbeMint(ctx context.Context, cli chain.Client, mint common.PublicKey) (*MintSafety, error) {
	info, err := cli.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("读取 mint 账户失败: %w", err)
	}
	if !info.Exists {
		return nil, fmt.Errorf("mint 账户不存在: %s", mint)
	}
	acc, err := token.MintAccountFromData(info.Data)
	if err != nil {
		return nil, fmt.Errorf("解析 mint 账户失败: %w", err)
	}
	return &MintSafety{
		HasFreezeAuthority: acc.FreezeAuthority != nil,
		HasMintAuthority:   acc.MintAuthority != nil,
		OwnerProgram:       info.Owner,
		Decimals:           acc.Decimals,
	}, nil
}
