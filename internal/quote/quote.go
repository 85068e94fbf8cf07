package quote

import (
	"context"
	"math/big"
	"time"

	"github.com/blocto/solana-go-sdk/common"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/pkg/logger"
)

const (
	// 默认池子手续费（万分比），池子未声明时使用
	DefaultFeeBps = 25

	// 报价新鲜度：slot 与墙钟双重约束
	FreshMaxSlotLag = 3
	FreshMaxAge     = 30 * time.Second
)

// VenueQuote 单 venue 的一次报价快照，每个决策周期重算，不跨周期复用。
type VenueQuote struct {
	Venue      int
	Pool       *Pool
	PoolID     common.PublicKey
	OutAmount  *big.Int // 预期产出（最小单位）
	ReserveIn  *big.Int // 输入侧储备
	ReserveOut *big.Int // 输出侧储备
	ImpactBps  float64
	Slot       uint64
	FetchedAt  time.Time
}

// Fresh 报价在指定时点是否仍可用于路由判断。
func (q *VenueQuote) Fresh(nowSlot uint64, now time.Time) bool {
	if q == nil {
		return false
	}
	if nowSlot > q.Slot && nowSlot-q.Slot > FreshMaxSlotLag {
		return false
	}
	return now.Sub(q.FetchedAt) <= FreshMaxAge
}

// ComputeOut 恒定乘积定价：扣费后投入 dx，返回产出与交易后的两侧储备。
// 全程 big.Int，不做精度截断。
func ComputeOut(x, y, dx *big.Int, feeBps int) (out, newX, newY *big.Int) {
	if feeBps < 0 || feeBps >= 10000 {
		feeBps = DefaultFeeBps
	}
	dxAfterFee := new(big.Int).Mul(dx, big.NewInt(int64(10000-feeBps)))
	dxAfterFee.Div(dxAfterFee, big.NewInt(10000))

	newX = new(big.Int).Add(x, dxAfterFee)
	k := new(big.Int).Mul(x, y)
	newY = new(big.Int).Div(k, newX)
	out = new(big.Int).Sub(y, newY)
	return out, newX, newY
}

// ImpactBps 价格冲击（万分比）：price = reserveOut/reserveIn，
// 比较交易前后的瞬时价格。
func ImpactBps(x, y, newX, newY *big.Int) float64 {
	xf, _ := new(big.Float).SetInt(x).Float64()
	yf, _ := new(big.Float).SetInt(y).Float64()
	nxf, _ := new(big.Float).SetInt(newX).Float64()
	nyf, _ := new(big.Float).SetInt(newY).Float64()
	if xf <= 0 || yf <= 0 || nxf <= 0 {
		return 10000
	}
	priceBefore := yf / xf
	priceAfter := nyf / nxf
	d := priceAfter - priceBefore
	if d < 0 {
		d = -d
	}
	return d / priceBefore * 10000
}

// Quoter 多 venue 报价器：池子定位交给各 venue 的 PoolFinder，
// 储备读取与定价计算在此统一完成。
type Quoter struct {
	cli        chain.Client
	finders    map[int]PoolFinder
	now        func() time.Time
	defaultFee int
}

func NewQuoter(cli chain.Client, finders map[int]PoolFinder, now func() time.Time) *Quoter {
	if now == nil {
		now = time.Now
	}
	return &Quoter{cli: cli, finders: finders, now: now, defaultFee: DefaultFeeBps}
}

// SetDefaultFeeBps 覆盖池子未声明费率时的默认值（万分比）。
func (q *Quoter) SetDefaultFeeBps(bps int) {
	if bps > 0 && bps < 10000 {
		q.defaultFee = bps
	}
}

// Quote 读取指定 venue 的池子储备并计算报价。
// 池子不存在或不可读返回 (nil, nil)：无数据是合法结果，不是错误。
func (q *Quoter) Quote(ctx context.Context, venue int, inMint, outMint common.PublicKey, amountIn *big.Int) (*VenueQuote, error) {
	finder, ok := q.finders[venue]
	if !ok {
		return nil, nil
	}
	pool, err := finder.FindPool(ctx, inMint, outMint)
	if err != nil {
		logger.Debugf("[quote] %s 池子查询失败: %v", consts.VenueName(venue), err)
		return nil, nil
	}
	if pool == nil {
		return nil, nil
	}

	inVault, outVault := pool.BaseVault, pool.QuoteVault
	if pool.QuoteMint == inMint {
		inVault, outVault = pool.QuoteVault, pool.BaseVault
	}
	x, err := q.cli.GetTokenBalance(ctx, inVault)
	if err != nil {
		return nil, nil
	}
	y, err := q.cli.GetTokenBalance(ctx, outVault)
	if err != nil {
		return nil, nil
	}
	if x.Sign() <= 0 || y.Sign() <= 0 {
		return nil, nil
	}

	feeBps := pool.FeeBps
	if feeBps <= 0 {
		feeBps = q.defaultFee
	}
	out, newX, newY := ComputeOut(x, y, amountIn, feeBps)

	slot, err := q.cli.GetSlot(ctx)
	if err != nil {
		return nil, nil
	}
	return &VenueQuote{
		Venue:      venue,
		Pool:       pool,
		PoolID:     pool.ID,
		OutAmount:  out,
		ReserveIn:  x,
		ReserveOut: y,
		ImpactBps:  ImpactBps(x, y, newX, newY),
		Slot:       slot,
		FetchedAt:  q.now(),
	}, nil
}

// Healthy venue 是否可交易：池子存在、账户可读，且池子数据的
// 写入 slot 落后当前不超过 FreshMaxSlotLag。
func (q *Quoter) Healthy(ctx context.Context, venue int, inMint, outMint common.PublicKey) bool {
	finder, ok := q.finders[venue]
	if !ok {
		return false
	}
	pool, err := finder.FindPool(ctx, inMint, outMint)
	if err != nil || pool == nil {
		return false
	}
	info, err := q.cli.GetAccountInfo(ctx, pool.ID)
	if err != nil || !info.Exists {
		return false
	}
	slotNow, err := q.cli.GetSlot(ctx)
	if err != nil {
		return false
	}
	return slotNow <= info.Slot || slotNow-info.Slot <= FreshMaxSlotLag
}
