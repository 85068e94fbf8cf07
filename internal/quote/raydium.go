package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/zeromicro/go-zero/rest/httpc"

	"dex-executor-sol/pkg/logger"
)

// RaydiumFinder 拉取 Raydium 全量池子表并建本地索引。
// 表很大且变动不频繁，按 TTL 缓存，过期后下次查询触发重拉。
type RaydiumFinder struct {
	listURL string
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	byPair    map[[64]byte]*Pool
	fetchedAt time.Time
}

func NewRaydiumFinder(listURL string, ttl time.Duration, now func() time.Time) *RaydiumFinder {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &RaydiumFinder{listURL: listURL, ttl: ttl, now: now}
}

type raydiumPoolJson struct {
	ID         string `json:"id"`
	BaseMint   string `json:"baseMint"`
	QuoteMint  string `json:"quoteMint"`
	BaseVault  string `json:"baseVault"`
	QuoteVault string `json:"quoteVault"`

	Authority        string `json:"authority"`
	OpenOrders       string `json:"openOrders"`
	TargetOrders     string `json:"targetOrders"`
	MarketProgramId  string `json:"marketProgramId"`
	MarketId         string `json:"marketId"`
	MarketBids       string `json:"marketBids"`
	MarketAsks       string `json:"marketAsks"`
	MarketEventQueue string `json:"marketEventQueue"`
	MarketBaseVault  string `json:"marketBaseVault"`
	MarketQuoteVault string `json:"marketQuoteVault"`
	MarketAuthority  string `json:"marketAuthority"`
}

type raydiumListJson struct {
	Official   []raydiumPoolJson `json:"official"`
	UnOfficial []raydiumPoolJson `json:"unOfficial"`
}

func (f *RaydiumFinder) FindPool(ctx context.Context, a, b common.PublicKey) (*Pool, error) {
	if f.listURL == "" {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.byPair == nil || f.now().Sub(f.fetchedAt) > f.ttl {
		if err := f.refresh(ctx); err != nil {
			// 旧索引还在就降级用旧数据
			if f.byPair == nil {
				return nil, err
			}
			logger.Warnf("[quote] raydium 池子表刷新失败，沿用旧表: %v", err)
		}
	}
	if pool, ok := f.byPair[pairKey(a, b)]; ok {
		return pool, nil
	}
	return nil, nil
}

func (f *RaydiumFinder) refresh(ctx context.Context) error {
	resp, err := httpc.Do(ctx, http.MethodGet, f.listURL, nil)
	if err != nil {
		return fmt.Errorf("raydium 池子表拉取失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("raydium 池子表状态码异常: %d", resp.StatusCode)
	}

	var list raydiumListJson
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("raydium 池子表解析失败: %w", err)
	}

	index := make(map[[64]byte]*Pool, len(list.Official)+len(list.UnOfficial))
	total := 0
	for _, group := range [][]raydiumPoolJson{list.Official, list.UnOfficial} {
		for i := range group {
			p := group[i].toPool()
			if p == nil {
				continue
			}
			// 双向索引，查询时无需关心方向
			index[pairKey(p.BaseMint, p.QuoteMint)] = p
			index[pairKey(p.QuoteMint, p.BaseMint)] = p
			total++
		}
	}
	f.byPair = index
	f.fetchedAt = f.now()
	logger.Infof("[quote] raydium 池子表加载完成: %d 个池子", total)
	return nil
}

func (r *raydiumPoolJson) toPool() *Pool {
	if r.ID == "" || r.BaseMint == "" || r.QuoteMint == "" || r.BaseVault == "" || r.QuoteVault == "" {
		return nil
	}
	p := &Pool{
		ID:         common.PublicKeyFromString(r.ID),
		BaseMint:   common.PublicKeyFromString(r.BaseMint),
		QuoteMint:  common.PublicKeyFromString(r.QuoteMint),
		BaseVault:  common.PublicKeyFromString(r.BaseVault),
		QuoteVault: common.PublicKeyFromString(r.QuoteVault),
	}
	if r.MarketId != "" {
		p.Raydium = &RaydiumKeys{
			Authority:        common.PublicKeyFromString(r.Authority),
			OpenOrders:       common.PublicKeyFromString(r.OpenOrders),
			TargetOrders:     common.PublicKeyFromString(r.TargetOrders),
			MarketProgram:    common.PublicKeyFromString(r.MarketProgramId),
			Market:           common.PublicKeyFromString(r.MarketId),
			MarketBids:       common.PublicKeyFromString(r.MarketBids),
			MarketAsks:       common.PublicKeyFromString(r.MarketAsks),
			MarketEventQueue: common.PublicKeyFromString(r.MarketEventQueue),
			MarketBaseVault:  common.PublicKeyFromString(r.MarketBaseVault),
			MarketQuoteVault: common.PublicKeyFromString(r.MarketQuoteVault),
			MarketAuthority:  common.PublicKeyFromString(r.MarketAuthority),
		}
	}
	return p
}

func pairKey(a, b common.PublicKey) [64]byte {
	var k [64]byte
	copy(k[:32], a.Bytes())
	copy(k[32:], b.Bytes())
	return k
}
