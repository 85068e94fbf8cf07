package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/blocto/solana-go-sdk/common"

	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/executor"
	"dex-executor-sol/internal/model"
	"dex-executor-sol/internal/phase"
	"dex-executor-sol/internal/svc"
	"dex-executor-sol/pkg/logger"
)

// DecideService 决策轮询主循环：每个周期从信号服务拉取关注资产的决策，
// 结合 phase 逐个交给编排器执行。单条决策失败只中断该资产的本周期。
type DecideService struct {
	svcCtx    *svc.ServiceContext
	interval  time.Duration
	watch     []string
	stopChan  chan struct{}
	ctx       context.Context
	cancel    func(err error)
	lastPhase map[string]phase.Phase
}

func NewDecideService(svcCtx *svc.ServiceContext) *DecideService {
	interval := time.Duration(svcCtx.Config.DecideIntervalS) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ctx, cancel := context.WithCancelCause(context.Background())
	return &DecideService{
		svcCtx:    svcCtx,
		interval:  interval,
		watch:     svcCtx.Config.WatchMints,
		stopChan:  make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
		lastPhase: make(map[string]phase.Phase),
	}
}

func (s *DecideService) Start() {
	logger.Infof("[DecideService] 启动，周期 %v，关注资产 %d 个", s.interval, len(s.watch))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			close(s.stopChan)
			return
		case <-ticker.C:
			if err := s.runCycle(); err != nil {
				logger.Warnf("[DecideService] 决策周期失败: %v", err)
			}
		}
	}
}

func (s *DecideService) Stop() {
	s.cancel(errors.New("DecideService stop"))
	<-s.stopChan
}

func (s *DecideService) runCycle() (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[DecideService] cycle panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	if len(s.watch) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.interval)
	defer cancel()

	decisions, err := s.svcCtx.Model.Decide(ctx, s.watch)
	if err != nil {
		return fmt.Errorf("拉取决策失败: %w", err)
	}

	for _, d := range decisions {
		token := common.PublicKeyFromString(d.TokenMint)
		ph := s.svcCtx.Phase.PhaseOf(ctx, token)
		s.notifyPhaseChange(ctx, d.TokenMint, ph)

		if d.Action == model.ActionHold {
			continue
		}
		_, execErr := s.svcCtx.Executor.Execute(ctx, d, ph, executor.Mints{
			Token: token,
			Base:  consts.WSOLMint,
			Quote: consts.USDCMint,
		})
		if execErr != nil {
			logger.Warnf("[DecideService] 执行中断: token=%s action=%s err=%v", d.TokenMint, d.Action, execErr)
		}
	}
	return nil
}

// notifyPhaseChange phase 变化时同步给信号服务（失败只记日志）。
func (s *DecideService) notifyPhaseChange(ctx context.Context, tokenMint string, ph phase.Phase) {
	if last, ok := s.lastPhase[tokenMint]; ok && last == ph {
		return
	}
	s.lastPhase[tokenMint] = ph
	if err := s.svcCtx.Model.NotifyPhase(ctx, tokenMint, ph.String()); err != nil {
		logger.Warnf("[DecideService] phase 通知失败: token=%s err=%v", tokenMint, err)
	}
}
