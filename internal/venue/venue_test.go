package venue

import (
	"context"
	"encoding/binary"
	"errors"
	"math/big"
	"testing"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/quote"
)

func pkOf(b byte) common.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	return common.PublicKeyFromBytes(raw[:])
}

type fakeChain struct {
	accounts map[common.PublicKey]chain.AccountInfo
}

func (f *fakeChain) GetAccountInfo(_ context.Context, addr common.PublicKey) (chain.AccountInfo, error) {
	return f.accounts[addr], nil
}
func (f *fakeChain) GetMultipleAccounts(_ context.Context, _ []common.PublicKey) ([]chain.AccountInfo, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeChain) GetLatestBlockhash(_ context.Context) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeChain) GetSlot(_ context.Context) (uint64, error) { return 0, nil }
func (f *fakeChain) GetTokenBalance(_ context.Context, _ common.PublicKey) (*big.Int, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeChain) SendTransaction(_ context.Context, _ types.Transaction) (string, error) {
	return "", errors.New("not implemented")
}
func (f *fakeChain) SimulateTransaction(_ context.Context, _ types.Transaction) error {
	return errors.New("not implemented")
}
func (f *fakeChain) GetSignatureStatus(_ context.Context, _ string) (*chain.SignatureStatus, error) {
	return nil, errors.New("not implemented")
}

// ataExists 把 owner 在给定 mint 下的 ATA 标记为已存在
func ataExists(t *testing.T, cli *fakeChain, owner, mint common.PublicKey) common.PublicKey {
	t.Helper()
	ata, _, err := common.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	if cli.accounts == nil {
		cli.accounts = map[common.PublicKey]chain.AccountInfo{}
	}
	cli.accounts[ata] = chain.AccountInfo{Exists: true, Owner: consts.TokenProgram}
	return ata
}

func raydiumPool(base, quoteMint common.PublicKey) *quote.Pool {
	return &quote.Pool{
		ID:         pkOf(0x50),
		BaseMint:   base,
		QuoteMint:  quoteMint,
		BaseVault:  pkOf(0x51),
		QuoteVault: pkOf(0x52),
		FeeBps:     25,
		Raydium: &quote.RaydiumKeys{
			Authority:        consts.RaydiumV4Authority,
			OpenOrders:       pkOf(0x53),
			TargetOrders:     pkOf(0x54),
			MarketProgram:    pkOf(0x55),
			Market:           pkOf(0x56),
			MarketBids:       pkOf(0x57),
			MarketAsks:       pkOf(0x58),
			MarketEventQueue: pkOf(0x59),
			MarketBaseVault:  pkOf(0x5A),
			MarketQuoteVault: pkOf(0x5B),
			MarketAuthority:  pkOf(0x5C),
		},
	}
}

func TestRaydiumBuildSwapLayout(t *testing.T) {
	payer := pkOf(1)
	inMint, outMint := pkOf(2), pkOf(3)
	pool := raydiumPool(inMint, outMint)

	cli := &fakeChain{}
	srcAta := ataExists(t, cli, payer, inMint)
	dstAta := ataExists(t, cli, payer, outMint)

	b := NewRaydiumBuilder(cli)
	assert.Equal(t, consts.VenueRaydium, b.Venue())

	ixs, err := b.BuildSwap(context.Background(), BuildParams{
		Payer:      payer,
		InputMint:  inMint,
		OutputMint: outMint,
		AmountIn:   big.NewInt(123_456),
		Pool:       pool,
	})
	require.NoError(t, err)
	require.Len(t, ixs, 1, "ATA 都已存在时只有 swap 指令")

	ix := ixs[0]
	assert.Equal(t, consts.RaydiumV4Program, ix.ProgramID)

	// swapBaseIn 数据布局：u8 tag + u64 amountIn + u64 minOut(0)
	require.Len(t, ix.Data, 17)
	assert.Equal(t, byte(9), ix.Data[0])
	assert.Equal(t, uint64(123_456), binary.LittleEndian.Uint64(ix.Data[1:9]))
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(ix.Data[9:17]))

	// 18 个账户按 V4 约定顺序
	require.Len(t, ix.Accounts, 18)
	assert.Equal(t, consts.TokenProgram, ix.Accounts[0].PubKey)
	assert.Equal(t, pool.ID, ix.Accounts[1].PubKey)
	assert.Equal(t, pool.Raydium.Authority, ix.Accounts[2].PubKey)
	assert.Equal(t, pool.BaseVault, ix.Accounts[5].PubKey)
	assert.Equal(t, pool.QuoteVault, ix.Accounts[6].PubKey)
	assert.Equal(t, pool.Raydium.MarketAuthority, ix.Accounts[14].PubKey)
	assert.Equal(t, srcAta, ix.Accounts[15].PubKey)
	assert.Equal(t, dstAta, ix.Accounts[16].PubKey)
	assert.Equal(t, payer, ix.Accounts[17].PubKey)
	assert.True(t, ix.Accounts[17].IsSigner)
}

func TestRaydiumBuildSwapCreatesMissingAtas(t *testing.T) {
	payer := pkOf(1)
	inMint, outMint := pkOf(2), pkOf(3)
	cli := &fakeChain{}
	ataExists(t, cli, payer, inMint) // 只有输入侧存在

	b := NewRaydiumBuilder(cli)
	ixs, err := b.BuildSwap(context.Background(), BuildParams{
		Payer:      payer,
		InputMint:  inMint,
		OutputMint: outMint,
		AmountIn:   big.NewInt(1),
		Pool:       raydiumPool(inMint, outMint),
	})
	require.NoError(t, err)
	require.Len(t, ixs, 2)
	assert.Equal(t, consts.AssociatedTokenProgram, ixs[0].ProgramID)
}

func TestRaydiumBuildSwapErrors(t *testing.T) {
	payer := pkOf(1)
	b := NewRaydiumBuilder(&fakeChain{})

	// 缺市场账户
	_, err := b.BuildSwap(context.Background(), BuildParams{
		Payer: payer, InputMint: pkOf(2), OutputMint: pkOf(3),
		AmountIn: big.NewInt(1),
		Pool:     &quote.Pool{ID: pkOf(4)},
	})
	require.Error(t, err)
	var be *BuildError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, consts.VenueRaydium, be.Venue)

	// 金额超 u64
	cli := &fakeChain{}
	ataExists(t, cli, payer, pkOf(2))
	ataExists(t, cli, payer, pkOf(3))
	b = NewRaydiumBuilder(cli)
	over := new(big.Int).Lsh(big.NewInt(1), 64)
	_, err = b.BuildSwap(context.Background(), BuildParams{
		Payer: payer, InputMint: pkOf(2), OutputMint: pkOf(3),
		AmountIn: over,
		Pool:     raydiumPool(pkOf(2), pkOf(3)),
	})
	assert.True(t, errors.As(err, &be))
}

func TestApplySlippage(t *testing.T) {
	assert.Equal(t, int64(9_900), applySlippage(big.NewInt(10_000), 100).Int64())
	assert.Equal(t, int64(10_000), applySlippage(big.NewInt(10_000), 0).Int64())
	assert.Equal(t, int64(10_000), applySlippage(big.NewInt(10_000), -5).Int64())
	// 不足一个原子单位时向下取整
	assert.Equal(t, int64(0), applySlippage(big.NewInt(1), 9_999).Int64())
}

func TestBuildErrorUnwrap(t *testing.T) {
	inner := errors.New("pool account missing")
	err := &BuildError{Venue: consts.VenuePumpSwap, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "PumpSwap")
}
