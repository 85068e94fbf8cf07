package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/zeromicro/go-zero/rest/httpc"
)

// PumpSwapFinder 通过外部接口按交易对查询 PumpSwap 池子。
type PumpSwapFinder struct {
	baseURL string
}

func NewPumpSwapFinder(baseURL string) *PumpSwapFinder {
	return &PumpSwapFinder{baseURL: baseURL}
}

// 接口返回字段在不同版本间有别名，全部兼容
type pumpSwapPoolResp struct {
	Address               string `json:"address"`
	ID                    string `json:"id"`
	BaseMint              string `json:"baseMint"`
	QuoteMint             string `json:"quoteMint"`
	PoolBaseTokenAccount  string `json:"poolBaseTokenAccount"`
	PoolQuoteTokenAccount string `json:"poolQuoteTokenAccount"`
	BaseVault             string `json:"baseVault"`
	QuoteVault            string `json:"quoteVault"`
	FeeBps                int    `json:"feeBps"`
}

func (f *PumpSwapFinder) FindPool(ctx context.Context, a, b common.PublicKey) (*Pool, error) {
	if f.baseURL == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("base", a.ToBase58())
	q.Set("quote", b.ToBase58())
	resp, err := httpc.Do(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("pumpswap 池子查询失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pumpswap 池子查询状态码异常: %d", resp.StatusCode)
	}

	var raw pumpSwapPoolResp
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("pumpswap 池子响应解析失败: %w", err)
	}
	pool, err := raw.toPool()
	if err != nil {
		return nil, err
	}
	if pool != nil && !pool.Matches(a, b) {
		return nil, nil
	}
	return pool, nil
}

func (r *pumpSwapPoolResp) toPool() (*Pool, error) {
	id := r.Address
	if id == "" {
		id = r.ID
	}
	baseVault := r.PoolBaseTokenAccount
	if baseVault == "" {
		baseVault = r.BaseVault
	}
	quoteVault := r.PoolQuoteTokenAccount
	if quoteVault == "" {
		quoteVault = r.QuoteVault
	}
	if id == "" || r.BaseMint == "" || r.QuoteMint == "" || baseVault == "" || quoteVault == "" {
		return nil, nil
	}
	return &Pool{
		ID:         common.PublicKeyFromString(id),
		BaseMint:   common.PublicKeyFromString(r.BaseMint),
		QuoteMint:  common.PublicKeyFromString(r.QuoteMint),
		BaseVault:  common.PublicKeyFromString(baseVault),
		QuoteVault: common.PublicKeyFromString(quoteVault),
		FeeBps:     r.FeeBps,
	}, nil
}
