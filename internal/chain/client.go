package chain

import (
	"context"
	"math/big"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
)

// AccountInfo 链上账户读取结果。Exists=false 表示账户不存在（合法结果，不是错误）。
// Slot 是读取时 RPC 响应上下文的 slot，用于判断数据的新旧。
type AccountInfo struct {
	Exists   bool
	Lamports uint64
	Owner    common.PublicKey
	Data     []byte
	Slot     uint64
}

// SignatureStatus 交易签名的确认状态
type SignatureStatus struct {
	Slot          uint64
	Confirmations *uint64
	Commitment    string // processed / confirmed / finalized，空表示未上链
	Failed        bool   // 交易已上链但执行失败
}

// Client 是所有网络 I/O 的注入点：账户读取、报价数据、交易发送与确认全部经由它。
// 测试中以 fake 实现替换。
type Client interface {
	GetAccountInfo(ctx context.Context, addr common.PublicKey) (AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, addrs []common.PublicKey) ([]AccountInfo, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	GetSlot(ctx context.Context) (uint64, error)
	GetTokenBalance(ctx context.Context, tokenAccount common.PublicKey) (*big.Int, error)
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
	SimulateTransaction(ctx context.Context, tx types.Transaction) error
	GetSignatureStatus(ctx context.Context, sig string) (*SignatureStatus, error)
}
