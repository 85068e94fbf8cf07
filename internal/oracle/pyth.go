package oracle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/config"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/pkg/logger"
)

// PriceService 周期性从 Pyth 价格账户同步 SOL/USD，供订单定尺与 PnL 估值。
// oracle 不可用时退回配置的兜底价。
type PriceService struct {
	cli      chain.Client
	interval time.Duration
	stopChan chan struct{}
	ctx      context.Context
	cancel   func(err error)

	mu        sync.RWMutex
	solUsd    float64
	updatedAt time.Time
}

func NewPriceService(cfg *config.OracleConfig, cli chain.Client) *PriceService {
	ctx, cancel := context.WithCancelCause(context.Background())
	interval := time.Duration(cfg.SyncIntervalS) * time.Second
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s := &PriceService{
		cli:      cli,
		interval: interval,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		solUsd:   cfg.SolUsdHint,
	}
	if err := s.update(); err != nil {
		logger.Warnf("[PriceService] 初始价格同步失败，先用兜底价 %.2f: %v", cfg.SolUsdHint, err)
	}
	return s
}

func (s *PriceService) Start() {
	s.scheduleNext()
	<-s.stopChan
}

func (s *PriceService) scheduleNext() {
	time.AfterFunc(s.interval, func() {
		if err := s.update(); err != nil {
			logger.Warnf("[PriceService] 周期性更新失败: %v", err)
		}
		select {
		case <-s.ctx.Done():
			return
		default:
			s.scheduleNext()
		}
	})
}

func (s *PriceService) Stop() {
	s.cancel(errors.New("PriceService stop"))
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
}

// SolUsd 当前 SOL 美元价。从未同步成功时返回兜底价。
func (s *PriceService) SolUsd() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.solUsd
}

func (s *PriceService) update() (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[PriceService] update panic: %v\n%s", r, debug.Stack())
			err = fmt.Errorf("update panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	info, err := s.cli.GetAccountInfo(ctx, common.PublicKeyFromString(consts.PythSOLAccount))
	if err != nil {
		return fmt.Errorf("读取 Pyth 价格账户失败: %w", err)
	}
	if !info.Exists || len(info.Data) == 0 {
		return errors.New("Pyth 价格账户数据为空")
	}
	price, ts, err := parsePythPrice(info.Data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.solUsd = price
	s.updatedAt = time.Unix(ts, 0)
	s.mu.Unlock()
	logger.Infof("[PriceService] SOL/USD: %.6f (ts=%s)", price, time.Unix(ts, 0).Format("2006-01-02 15:04:05"))
	return nil
}

// 参考: https://github.com/pyth-network/pyth-client-js/blob/main/src/index.ts - parsePriceData
func parsePythPrice(data []byte) (float64, int64, error) {
	if len(data) < 240 {
		return 0, 0, errors.New("price account data too short")
	}

	exponent := int32(binary.LittleEndian.Uint32(data[20:24]))
	publishTimestamp := binary.LittleEndian.Uint64(data[96:104])

	// aggregate 区块（偏移 208 起）:
	// [0:8] priceComponent (int64), [8:16] confidence, [16:20] status (1 = trading)
	agg := data[208:240]
	priceComponent := int64(binary.LittleEndian.Uint64(agg[0:8]))
	confidenceComponent := binary.LittleEndian.Uint64(agg[8:16])
	status := binary.LittleEndian.Uint32(agg[16:20])

	if status != 1 {
		return 0, 0, errors.New("price status not trading")
	}
	price := float64(priceComponent) * math.Pow10(int(exponent))
	confidence := float64(confidenceComponent) * math.Pow10(int(exponent))
	if price <= 0 {
		return 0, 0, fmt.Errorf("price not positive: %.6f", price)
	}
	if confidence/price > 0.05 {
		return 0, 0, fmt.Errorf("confidence too low: price=%.6f conf=%.6f", price, confidence)
	}
	if time.Now().Unix()-int64(publishTimestamp) > 120 {
		return 0, 0, fmt.Errorf("price too old: ts=%d", publishTimestamp)
	}
	return price, int64(publishTimestamp), nil
}
