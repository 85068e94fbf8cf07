package quote

import (
	"context"

	"github.com/blocto/solana-go-sdk/common"
)

// Pool 一个可交易池子的最小描述：定价只需要两侧 vault 和费率。
// Raydium 池子附带构造交换指令所需的市场账户。
type Pool struct {
	ID         common.PublicKey
	BaseMint   common.PublicKey
	QuoteMint  common.PublicKey
	BaseVault  common.PublicKey
	QuoteVault common.PublicKey
	FeeBps     int

	Raydium *RaydiumKeys
}

// RaydiumKeys AMM V4 交换指令引用的全部市场账户
type RaydiumKeys struct {
	Authority        common.PublicKey
	OpenOrders       common.PublicKey
	TargetOrders     common.PublicKey
	MarketProgram    common.PublicKey
	Market           common.PublicKey
	MarketBids       common.PublicKey
	MarketAsks       common.PublicKey
	MarketEventQueue common.PublicKey
	MarketBaseVault  common.PublicKey
	MarketQuoteVault common.PublicKey
	MarketAuthority  common.PublicKey
}

// PoolFinder 按交易对定位池子。找不到返回 (nil, nil)。
type PoolFinder interface {
	FindPool(ctx context.Context, a, b common.PublicKey) (*Pool, error)
}

// Matches 池子是否覆盖指定交易对（不区分方向）。
func (p *Pool) Matches(a, b common.PublicKey) bool {
	return (p.BaseMint == a && p.QuoteMint == b) || (p.BaseMint == b && p.QuoteMint == a)
}
