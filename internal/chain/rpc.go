package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/config"
)

// RpcClient 基于 solana-go-sdk 的 Client 实现。
// 只读方法带瞬态错误重试；发送与模拟不在此层重试，由提交方掌控。
type RpcClient struct {
	rpc        *client.Client
	timeout    time.Duration
	commitment rpc.Commitment
	retries    int
	retryDelay time.Duration
}

func NewRpcClient(cfg *config.RpcConfig) *RpcClient {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	commitment := rpc.CommitmentConfirmed
	switch cfg.Commitment {
	case "processed":
		commitment = rpc.CommitmentProcessed
	case "finalized":
		commitment = rpc.CommitmentFinalized
	}
	retries := cfg.ReadRetries
	if retries <= 0 {
		retries = 2
	}
	retryDelay := time.Duration(cfg.RetryDelayMs) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &RpcClient{
		rpc:        client.NewClient(cfg.Endpoint),
		timeout:    timeout,
		commitment: commitment,
		retries:    retries,
		retryDelay: retryDelay,
	}
}

func (c *RpcClient) Commitment() rpc.Commitment {
	return c.commitment
}

func (c *RpcClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *RpcClient) GetAccountInfo(ctx context.Context, addr common.PublicKey) (AccountInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := withRetry(ctx, c.retries, c.retryDelay, func() (rpc.ValueWithContext[client.AccountInfo], error) {
		return c.rpc.GetAccountInfoAndContext(ctx, addr.ToBase58())
	})
	if err != nil {
		return AccountInfo{}, fmt.Errorf("GetAccountInfo %s failed: %w", addr, err)
	}
	info := resp.Value
	// 账户不存在时 SDK 返回零值
	if len(info.Data) == 0 && info.Owner == (common.PublicKey{}) && info.Lamports == 0 {
		return AccountInfo{}, nil
	}
	return AccountInfo{
		Exists:   true,
		Lamports: info.Lamports,
		Owner:    info.Owner,
		Data:     info.Data,
		Slot:     resp.Context.Slot,
	}, nil
}

func (c *RpcClient) GetMultipleAccounts(ctx context.Context, addrs []common.PublicKey) ([]AccountInfo, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	strs := make([]string, 0, len(addrs))
	for _, a := range addrs {
		strs = append(strs, a.ToBase58())
	}
	infos, err := withRetry(ctx, c.retries, c.retryDelay, func() ([]client.AccountInfo, error) {
		return c.rpc.GetMultipleAccounts(ctx, strs)
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultipleAccounts failed: %w", err)
	}
	if len(infos) != len(addrs) {
		return nil, fmt.Errorf("返回账户数与请求不一致: got=%d want=%d", len(infos), len(addrs))
	}
	result := make([]AccountInfo, len(infos))
	for i, info := range infos {
		if len(info.Data) == 0 && info.Owner == (common.PublicKey{}) && info.Lamports == 0 {
			continue
		}
		result[i] = AccountInfo{
			Exists:   true,
			Lamports: info.Lamports,
			Owner:    info.Owner,
			Data:     info.Data,
		}
	}
	return result, nil
}

func (c *RpcClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := withRetry(ctx, c.retries, c.retryDelay, func() (rpc.GetLatestBlockhashValue, error) {
		return c.rpc.GetLatestBlockhash(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("GetLatestBlockhash failed: %w", err)
	}
	return resp.Blockhash, nil
}

func (c *RpcClient) GetSlot(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	slot, err := withRetry(ctx, c.retries, c.retryDelay, func() (uint64, error) {
		return c.rpc.GetSlotWithConfig(ctx, client.GetSlotConfig{Commitment: c.commitment})
	})
	if err != nil {
		return 0, fmt.Errorf("GetSlot failed: %w", err)
	}
	return slot, nil
}

func (c *RpcClient) GetTokenBalance(ctx context.Context, tokenAccount common.PublicKey) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	balance, err := withRetry(ctx, c.retries, c.retryDelay, func() (client.TokenAmount, error) {
		return c.rpc.GetTokenAccountBalance(ctx, tokenAccount.ToBase58())
	})
	if err != nil {
		// 账户不存在按零余额处理，调用方据此跳过 exit
		return big.NewInt(0), nil
	}
	return new(big.Int).SetUint64(balance.Amount), nil
}

func (c *RpcClient) SendTransaction(ctx context.Context, tx types.Transaction) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("SendTransaction failed: %w", err)
	}
	return sig, nil
}

func (c *RpcClient) SimulateTransaction(ctx context.Context, tx types.Transaction) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("SimulateTransaction failed: %w", err)
	}
	if res.Err != nil {
		return fmt.Errorf("simulation failed: %v", res.Err)
	}
	return nil
}

func (c *RpcClient) GetSignatureStatus(ctx context.Context, sig string) (*SignatureStatus, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	status, err := withRetry(ctx, c.retries, c.retryDelay, func() (*rpc.SignatureStatus, error) {
		return c.rpc.GetSignatureStatus(ctx, sig)
	})
	if err != nil {
		return nil, fmt.Errorf("GetSignatureStatus failed: %w", err)
	}
	if status == nil {
		return nil, nil
	}
	out := &SignatureStatus{
		Slot:          status.Slot,
		Confirmations: status.Confirmations,
		Failed:        status.Err != nil,
	}
	if status.ConfirmationStatus != nil {
		out.Commitment = string(*status.ConfirmationStatus)
	}
	return out, nil
}
