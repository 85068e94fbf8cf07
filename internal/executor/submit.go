package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/txbuild"
	"dex-executor-sol/pkg/logger"
)

// SubmitState 单片提交的显式状态。Broadcast 单独成态：
// 交易一经广播就无法撤回，超时只能停止后续重试。
type SubmitState int

const (
	SubmitPending SubmitState = iota
	SubmitSimulated
	SubmitBroadcast
	SubmitConfirmed
	SubmitFailed
)

func (s SubmitState) String() string {
	switch s {
	case SubmitSimulated:
		return "simulated"
	case SubmitBroadcast:
		return "broadcast"
	case SubmitConfirmed:
		return "confirmed"
	case SubmitFailed:
		return "failed"
	default:
		return "pending"
	}
}

// SliceResult 一片的提交结果
type SliceResult struct {
	State     SubmitState
	Signature string
	Err       error
}

// ErrConfirmTimeout 已广播但在窗口内未确认。不再重试，但签名留给调用方追踪。
var ErrConfirmTimeout = errors.New("交易已广播但确认超时")

// ErrSimulateFailed 模拟执行失败。只废弃当前切片，不影响后续切片。
var ErrSimulateFailed = errors.New("模拟执行失败")

// Submitter 负责单片的 模拟 → 签名 → 发送 → 确认 流程。
// 发送失败（未广播）做有界重试；广播之后绝不重复发送新交易。
type Submitter struct {
	cli            chain.Client
	commitment     string
	maxRetries     int
	simulate       bool
	confirmTimeout time.Duration
	pollInterval   time.Duration
	sleep          func(time.Duration)
}

func NewSubmitter(cli chain.Client, commitment string, maxRetries int, simulate bool, confirmTimeout, pollInterval time.Duration) *Submitter {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if confirmTimeout <= 0 {
		confirmTimeout = 45 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if commitment == "" {
		commitment = "confirmed"
	}
	return &Submitter{
		cli:            cli,
		commitment:     commitment,
		maxRetries:     maxRetries,
		simulate:       simulate,
		confirmTimeout: confirmTimeout,
		pollInterval:   pollInterval,
		sleep:          time.Sleep,
	}
}

// SubmitAndConfirm 提交一片并等待确认。
func (s *Submitter) SubmitAndConfirm(ctx context.Context, msg types.Message, signer types.Account) *SliceResult {
	res := &SliceResult{State: SubmitPending}

	tx, err := txbuild.Sign(msg, signer)
	if err != nil {
		res.State = SubmitFailed
		res.Err = err
		return res
	}

	if s.simulate {
		if err := s.cli.SimulateTransaction(ctx, tx); err != nil {
			res.State = SubmitFailed
			res.Err = fmt.Errorf("%w: %v", ErrSimulateFailed, err)
			return res
		}
		res.State = SubmitSimulated
	}

	// 发送重试：同一笔已签名交易，签名不变，重复发送幂等
	var sig string
	var lastErr error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		sig, lastErr = s.cli.SendTransaction(ctx, tx)
		if lastErr == nil {
			break
		}
		logger.Warnf("[executor] 发送失败（第 %d/%d 次）: %v", attempt, s.maxRetries, lastErr)
		if attempt < s.maxRetries {
			s.sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}
	}
	if lastErr != nil {
		res.State = SubmitFailed
		res.Err = fmt.Errorf("重试 %d 次后发送仍失败: %w", s.maxRetries, lastErr)
		return res
	}
	res.State = SubmitBroadcast
	res.Signature = sig

	// 确认轮询。到这里交易已在网络里，任何失败只能如实上报，不能撤回。
	deadline := time.Now().Add(s.confirmTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			res.Err = fmt.Errorf("%w: %v", ErrConfirmTimeout, ctx.Err())
			return res
		default:
		}
		status, err := s.cli.GetSignatureStatus(ctx, sig)
		if err != nil {
			logger.Warnf("[executor] 查询确认状态失败: sig=%s err=%v", sig, err)
		} else if status != nil {
			if status.Failed {
				res.State = SubmitFailed
				res.Err = fmt.Errorf("交易上链但执行失败: sig=%s", sig)
				return res
			}
			if commitmentReached(status.Commitment, s.commitment) {
				res.State = SubmitConfirmed
				return res
			}
		}
		s.sleep(s.pollInterval)
	}
	res.Err = ErrConfirmTimeout
	return res
}

var commitmentRank = map[string]int{
	"processed": 1,
	"confirmed": 2,
	"finalized": 3,
}

func commitmentReached(got, want string) bool {
	return commitmentRank[got] >= commitmentRank[want] && commitmentRank[got] > 0
}
