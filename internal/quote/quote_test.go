package quote

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
)

func pkOf(b byte) common.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	return common.PublicKeyFromBytes(raw[:])
}

func TestComputeOutNoFee(t *testing.T) {
	x := big.NewInt(1_000_000)
	y := big.NewInt(2_000_000)
	dx := big.NewInt(10_000)

	// feeBps 越界时退回默认费率，这里用 feeBps 刚好为 0 不可表达，
	// 构造等价场景：fee=1 bps 以下无法取整出差异时手动验证公式
	out, newX, newY := ComputeOut(x, y, dx, 1)
	dxAfterFee := int64(10_000 * 9999 / 10000) // 9999
	wantNewX := 1_000_000 + dxAfterFee
	wantNewY := int64(1_000_000) * 2_000_000 / wantNewX
	assert.Equal(t, wantNewX, newX.Int64())
	assert.Equal(t, wantNewY, newY.Int64())
	assert.Equal(t, int64(2_000_000)-wantNewY, out.Int64())
}

func TestComputeOutWithFee(t *testing.T) {
	x := big.NewInt(1_000_000)
	y := big.NewInt(2_000_000)
	dx := big.NewInt(10_000)

	out, newX, newY := ComputeOut(x, y, dx, 25)
	// dxAfterFee = 10000 * 9975 / 10000 = 9975
	assert.Equal(t, int64(1_009_975), newX.Int64())
	// newY = 1e6 * 2e6 / 1_009_975 = 1_980_247（向下取整）
	assert.Equal(t, int64(1_980_247), newY.Int64())
	assert.Equal(t, int64(19_753), out.Int64())

	// 守恒：out + newY == y
	sum := new(big.Int).Add(out, newY)
	assert.Equal(t, 0, sum.Cmp(y))
}

func TestComputeOutInvalidFeeFallsBack(t *testing.T) {
	x := big.NewInt(1_000_000)
	y := big.NewInt(2_000_000)
	dx := big.NewInt(10_000)

	outDefault, _, _ := ComputeOut(x, y, dx, DefaultFeeBps)
	outNeg, _, _ := ComputeOut(x, y, dx, -1)
	outHuge, _, _ := ComputeOut(x, y, dx, 10000)
	assert.Equal(t, 0, outDefault.Cmp(outNeg))
	assert.Equal(t, 0, outDefault.Cmp(outHuge))
}

func TestImpactMonotonicInSize(t *testing.T) {
	x := big.NewInt(10_000_000)
	y := big.NewInt(20_000_000)

	var prev float64
	for i, dx := range []int64{1_000, 10_000, 100_000, 1_000_000} {
		_, newX, newY := ComputeOut(x, y, big.NewInt(dx), 25)
		impact := ImpactBps(x, y, newX, newY)
		assert.Greater(t, impact, 0.0)
		if i > 0 {
			assert.Greater(t, impact, prev, "冲击必须随交易量单调增加")
		}
		prev = impact
	}
}

func TestImpactDegenerateReserves(t *testing.T) {
	zero := big.NewInt(0)
	one := big.NewInt(1)
	assert.Equal(t, float64(10000), ImpactBps(zero, one, one, one))
	assert.Equal(t, float64(10000), ImpactBps(one, zero, one, one))
}

func TestQuoteFreshness(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := &VenueQuote{Slot: 100, FetchedAt: base}

	assert.True(t, q.Fresh(100, base))
	assert.True(t, q.Fresh(103, base), "slot 落后 3 以内算新鲜")
	assert.False(t, q.Fresh(104, base), "slot 落后超过 3 过期")

	assert.True(t, q.Fresh(100, base.Add(FreshMaxAge)))
	assert.False(t, q.Fresh(100, base.Add(FreshMaxAge+time.Second)), "墙钟超过上限过期")

	var nilQuote *VenueQuote
	assert.False(t, nilQuote.Fresh(100, base))
}

// quoteChain 按 token 账户地址回答储备余额。
// accounts 为 nil 时一切账户视为存在（多数测试只关心余额）。
type quoteChain struct {
	accounts map[common.PublicKey]chain.AccountInfo
	balances map[common.PublicKey]*big.Int
	slot     uint64
	err      error
}

func (f *quoteChain) GetAccountInfo(_ context.Context, addr common.PublicKey) (chain.AccountInfo, error) {
	if f.accounts == nil {
		return chain.AccountInfo{Exists: true}, nil
	}
	return f.accounts[addr], nil
}
func (f *quoteChain) GetMultipleAccounts(_ context.Context, _ []common.PublicKey) ([]chain.AccountInfo, error) {
	return nil, errors.New("not implemented")
}
func (f *quoteChain) GetLatestBlockhash(_ context.Context) (string, error) {
	return "", errors.New("not implemented")
}
func (f *quoteChain) GetSlot(_ context.Context) (uint64, error) { return f.slot, nil }
func (f *quoteChain) GetTokenBalance(_ context.Context, tokenAccount common.PublicKey) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.balances[tokenAccount]
	if !ok {
		return nil, errors.New("no such account")
	}
	return b, nil
}
func (f *quoteChain) SendTransaction(_ context.Context, _ types.Transaction) (string, error) {
	return "", errors.New("not implemented")
}
func (f *quoteChain) SimulateTransaction(_ context.Context, _ types.Transaction) error {
	return errors.New("not implemented")
}
func (f *quoteChain) GetSignatureStatus(_ context.Context, _ string) (*chain.SignatureStatus, error) {
	return nil, errors.New("not implemented")
}

type staticFinder struct {
	pool *Pool
	err  error
}

func (f *staticFinder) FindPool(_ context.Context, _, _ common.PublicKey) (*Pool, error) {
	return f.pool, f.err
}

func TestQuoterQuote(t *testing.T) {
	ctx := context.Background()
	baseMint := consts.WSOLMint
	quoteMint := pkOf(2)
	baseVault, quoteVault := pkOf(3), pkOf(4)

	pool := &Pool{
		ID:         pkOf(5),
		BaseMint:   baseMint,
		QuoteMint:  quoteMint,
		BaseVault:  baseVault,
		QuoteVault: quoteVault,
		FeeBps:     25,
	}
	cli := &quoteChain{
		balances: map[common.PublicKey]*big.Int{
			baseVault:  big.NewInt(1_000_000),
			quoteVault: big.NewInt(2_000_000),
		},
		slot: 42,
	}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := NewQuoter(cli, map[int]PoolFinder{consts.VenuePumpSwap: &staticFinder{pool: pool}}, func() time.Time { return now })

	got, err := q.Quote(ctx, consts.VenuePumpSwap, baseMint, quoteMint, big.NewInt(10_000))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, consts.VenuePumpSwap, got.Venue)
	assert.Equal(t, pool.ID, got.PoolID)
	assert.Equal(t, int64(1_000_000), got.ReserveIn.Int64())
	assert.Equal(t, int64(2_000_000), got.ReserveOut.Int64())
	assert.Equal(t, int64(19_753), got.OutAmount.Int64())
	assert.Greater(t, got.ImpactBps, 0.0)
	assert.Equal(t, uint64(42), got.Slot)
	assert.Equal(t, now, got.FetchedAt)

	// 反方向：输入是 quote 侧时 vault 互换
	rev, err := q.Quote(ctx, consts.VenuePumpSwap, quoteMint, baseMint, big.NewInt(10_000))
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, int64(2_000_000), rev.ReserveIn.Int64())
}

func TestQuoterAbsentPoolIsNotError(t *testing.T) {
	ctx := context.Background()
	cli := &quoteChain{}

	// 无该 venue 的 finder
	q := NewQuoter(cli, map[int]PoolFinder{}, nil)
	got, err := q.Quote(ctx, consts.VenuePumpSwap, pkOf(1), pkOf(2), big.NewInt(1))
	assert.NoError(t, err)
	assert.Nil(t, got)

	// finder 找不到池子
	q = NewQuoter(cli, map[int]PoolFinder{consts.VenuePumpSwap: &staticFinder{}}, nil)
	got, err = q.Quote(ctx, consts.VenuePumpSwap, pkOf(1), pkOf(2), big.NewInt(1))
	assert.NoError(t, err)
	assert.Nil(t, got)

	// finder 出错同样按无数据处理
	q = NewQuoter(cli, map[int]PoolFinder{consts.VenuePumpSwap: &staticFinder{err: errors.New("api down")}}, nil)
	got, err = q.Quote(ctx, consts.VenuePumpSwap, pkOf(1), pkOf(2), big.NewInt(1))
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestQuoterHealthy(t *testing.T) {
	ctx := context.Background()
	pool := &Pool{
		ID: pkOf(5), BaseMint: pkOf(1), QuoteMint: pkOf(2),
		BaseVault: pkOf(3), QuoteVault: pkOf(4),
	}
	finders := map[int]PoolFinder{consts.VenuePumpSwap: &staticFinder{pool: pool}}

	cli := &quoteChain{
		accounts: map[common.PublicKey]chain.AccountInfo{
			pool.ID: {Exists: true, Slot: 100},
		},
		slot: 103,
	}
	q := NewQuoter(cli, finders, nil)

	// 写入 slot 落后 3 以内算健康
	assert.True(t, q.Healthy(ctx, consts.VenuePumpSwap, pkOf(1), pkOf(2)))

	// 落后超过 3 不健康
	cli.slot = 104
	assert.False(t, q.Healthy(ctx, consts.VenuePumpSwap, pkOf(1), pkOf(2)))

	// 池子账户不存在不健康
	cli.slot = 100
	cli.accounts[pool.ID] = chain.AccountInfo{}
	assert.False(t, q.Healthy(ctx, consts.VenuePumpSwap, pkOf(1), pkOf(2)))

	// 无该 venue 的 finder / 找不到池子都不健康
	assert.False(t, q.Healthy(ctx, consts.VenueRaydium, pkOf(1), pkOf(2)))
	q = NewQuoter(cli, map[int]PoolFinder{consts.VenuePumpSwap: &staticFinder{}}, nil)
	assert.False(t, q.Healthy(ctx, consts.VenuePumpSwap, pkOf(1), pkOf(2)))
}

func TestQuoterUnreadableVaultIsNotError(t *testing.T) {
	pool := &Pool{
		ID: pkOf(5), BaseMint: pkOf(1), QuoteMint: pkOf(2),
		BaseVault: pkOf(3), QuoteVault: pkOf(4),
	}
	cli := &quoteChain{err: errors.New("rpc down")}
	q := NewQuoter(cli, map[int]PoolFinder{consts.VenueRaydium: &staticFinder{pool: pool}}, nil)

	got, err := q.Quote(context.Background(), consts.VenueRaydium, pkOf(1), pkOf(2), big.NewInt(1))
	assert.NoError(t, err)
	assert.Nil(t, got)
}
