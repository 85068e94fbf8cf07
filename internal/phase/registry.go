package phase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/redis/go-redis/v9"

	"dex-executor-sol/internal/config"
	"dex-executor-sol/pkg/logger"
)

// Phase 资产当前由哪种流动性机制定价
type Phase int

const (
	PhaseCurve Phase = iota // 发射期 bonding curve
	PhaseAMM                // 已迁移到开放市场
)

func (p Phase) String() string {
	if p == PhaseAMM {
		return "amm"
	}
	return "curve"
}

// Registry 读取外部迁移检测器发布的 per-mint phase。
// 数据在 redis hash 里（field = mint base58，value = "curve"/"amm"），
// 本地缓存短 TTL 以免每个决策周期都打 redis。
// 未配置 redis 或读取失败时按 curve 处理：宁可走保守路径。
type Registry struct {
	rdb     *redis.Client
	hashKey string
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	cache    map[common.PublicKey]Phase
	loadedAt time.Time
}

func NewRegistry(cfg *config.PhaseConfig, now func() time.Time) *Registry {
	hashKey := cfg.HashKey
	if hashKey == "" {
		hashKey = "dex:phase"
	}
	ttl := time.Duration(cfg.TTLMs) * time.Millisecond
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	r := &Registry{hashKey: hashKey, ttl: ttl, now: now, cache: map[common.PublicKey]Phase{}}
	if cfg.RedisAddr != "" {
		r.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	return r
}

// PhaseOf 指定资产的当前 phase。
func (r *Registry) PhaseOf(ctx context.Context, mint common.PublicKey) Phase {
	if r.rdb == nil {
		return PhaseCurve
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.now().Sub(r.loadedAt) > r.ttl {
		if err := r.refresh(ctx); err != nil {
			logger.Warnf("[phase] 刷新 phase 表失败，沿用本地缓存: %v", err)
		}
	}
	if p, ok := r.cache[mint]; ok {
		return p
	}
	return PhaseCurve
}

func (r *Registry) refresh(ctx context.Context) error {
	entries, err := r.rdb.HGetAll(ctx, r.hashKey).Result()
	if err != nil {
		return err
	}
	next := make(map[common.PublicKey]Phase, len(entries))
	for mint, val := range entries {
		p := PhaseCurve
		if strings.EqualFold(val, "amm") {
			p = PhaseAMM
		}
		next[common.PublicKeyFromString(mint)] = p
	}
	r.cache = next
	r.loadedAt = r.now()
	return nil
}

func (r *Registry) Close() {
	if r.rdb != nil {
		_ = r.rdb.Close()
	}
}
