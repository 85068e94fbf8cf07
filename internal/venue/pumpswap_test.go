package venue

import (
	"context"
	"encoding/binary"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/idl"
	"dex-executor-sol/internal/quote"
	"dex-executor-sol/internal/resolver"
)

const pumpswapSchema = `{
  "address": "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA",
  "instructions": [
    {
      "name": "buy",
      "accounts": [
        {"name": "pool", "writable": true},
        {"name": "user", "writable": true, "signer": true},
        {"name": "global_config", "pda": {"seeds": [{"kind": "const", "value": "global_config"}]}},
        {"name": "base_mint"},
        {"name": "quote_mint"},
        {"name": "user_base_token_account", "writable": true},
        {"name": "user_quote_token_account", "writable": true},
        {"name": "pool_base_token_account", "writable": true},
        {"name": "pool_quote_token_account", "writable": true},
        {"name": "base_token_program"},
        {"name": "quote_token_program"},
        {"name": "system_program", "address": "11111111111111111111111111111111"},
        {"name": "associated_token_program"},
        {"name": "event_authority"},
        {"name": "program"}
      ],
      "args": [
        {"name": "base_amount_out", "type": "u64"},
        {"name": "max_quote_amount_in", "type": "u64"}
      ]
    },
    {
      "name": "sell",
      "accounts": [
        {"name": "pool", "writable": true},
        {"name": "user", "writable": true, "signer": true},
        {"name": "global_config", "pda": {"seeds": [{"kind": "const", "value": "global_config"}]}},
        {"name": "base_mint"},
        {"name": "quote_mint"},
        {"name": "user_base_token_account", "writable": true},
        {"name": "user_quote_token_account", "writable": true},
        {"name": "pool_base_token_account", "writable": true},
        {"name": "pool_quote_token_account", "writable": true},
        {"name": "base_token_program"},
        {"name": "quote_token_program"},
        {"name": "event_authority"},
        {"name": "program"}
      ],
      "args": [
        {"name": "base_amount_in", "type": "u64"},
        {"name": "min_quote_amount_out", "type": "u64"}
      ]
    }
  ],
  "accounts": [],
  "types": []
}`

func writeSchema(t *testing.T, raw string) *idl.Loader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.json")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	return idl.NewLoader(path, "")
}

func newPumpSwapFixture(t *testing.T, cli *fakeChain) *PumpSwapBuilder {
	t.Helper()
	loader := writeSchema(t, pumpswapSchema)
	schema, err := loader.Load(context.Background())
	require.NoError(t, err)
	res := resolver.New(cli, schema, resolver.Options{ProgramID: consts.PumpSwapProgram})
	return NewPumpSwapBuilder(cli, loader, res)
}

func TestPumpSwapBuySwap(t *testing.T) {
	payer := pkOf(1)
	tokenMint := pkOf(2)
	pool := &quote.Pool{
		ID:         pkOf(0x60),
		BaseMint:   tokenMint,
		QuoteMint:  consts.WSOLMint,
		BaseVault:  pkOf(0x61),
		QuoteVault: pkOf(0x62),
		FeeBps:     25,
	}

	cli := &fakeChain{}
	baseAta := ataExists(t, cli, payer, tokenMint)
	quoteAta := ataExists(t, cli, payer, consts.WSOLMint)

	b := newPumpSwapFixture(t, cli)
	assert.Equal(t, consts.VenuePumpSwap, b.Venue())

	ixs, err := b.BuildSwap(context.Background(), BuildParams{
		Payer:       payer,
		InputMint:   consts.WSOLMint,
		OutputMint:  tokenMint,
		AmountIn:    big.NewInt(1_000_000),
		ExpectedOut: big.NewInt(50_000),
		SlippageBps: 100,
		Pool:        pool,
	})
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	ix := ixs[0]
	assert.Equal(t, consts.PumpSwapProgram, ix.ProgramID)

	// exact-out 买入：产出按滑点折减，输入取全部投入，判别符在最前
	disc := resolver.Discriminator("buy")
	require.Len(t, ix.Data, 8+8+8)
	assert.Equal(t, disc[:], ix.Data[:8])
	assert.Equal(t, uint64(49_500), binary.LittleEndian.Uint64(ix.Data[8:16]), "base_amount_out = 预期产出 × (1 - 滑点)")
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(ix.Data[16:24]))

	// 账户顺序严格按 schema，池子账户来自调用方
	require.Len(t, ix.Accounts, 15)
	assert.Equal(t, pool.ID, ix.Accounts[0].PubKey)
	assert.Equal(t, payer, ix.Accounts[1].PubKey)
	assert.True(t, ix.Accounts[1].IsSigner)
	assert.Equal(t, tokenMint, ix.Accounts[3].PubKey)
	assert.Equal(t, consts.WSOLMint, ix.Accounts[4].PubKey)
	assert.Equal(t, baseAta, ix.Accounts[5].PubKey)
	assert.Equal(t, quoteAta, ix.Accounts[6].PubKey)
	assert.Equal(t, pool.BaseVault, ix.Accounts[7].PubKey)
	assert.Equal(t, pool.QuoteVault, ix.Accounts[8].PubKey)
	assert.Equal(t, consts.TokenProgram, ix.Accounts[9].PubKey)
	assert.Equal(t, consts.SystemProgram, ix.Accounts[11].PubKey)
	assert.Equal(t, consts.AssociatedTokenProgram, ix.Accounts[12].PubKey)
	assert.Equal(t, consts.PumpSwapProgram, ix.Accounts[14].PubKey)
}

func TestPumpSwapSellSwap(t *testing.T) {
	payer := pkOf(1)
	tokenMint := pkOf(2)
	pool := &quote.Pool{
		ID:         pkOf(0x60),
		BaseMint:   tokenMint,
		QuoteMint:  consts.WSOLMint,
		BaseVault:  pkOf(0x61),
		QuoteVault: pkOf(0x62),
	}

	cli := &fakeChain{}
	ataExists(t, cli, payer, tokenMint)
	ataExists(t, cli, payer, consts.WSOLMint)

	b := newPumpSwapFixture(t, cli)
	ixs, err := b.BuildSwap(context.Background(), BuildParams{
		Payer:      payer,
		InputMint:  tokenMint,
		OutputMint: consts.WSOLMint,
		AmountIn:   big.NewInt(777),
		Pool:       pool,
	})
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	ix := ixs[0]
	disc := resolver.Discriminator("sell")
	assert.Equal(t, disc[:], ix.Data[:8])
	assert.Equal(t, uint64(777), binary.LittleEndian.Uint64(ix.Data[8:16]))
	// min_quote_amount_out 恒为零
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(ix.Data[16:24]))
}

func TestPumpSwapRequiresPool(t *testing.T) {
	b := newPumpSwapFixture(t, &fakeChain{})
	_, err := b.BuildSwap(context.Background(), BuildParams{
		Payer: pkOf(1), InputMint: pkOf(2), OutputMint: pkOf(3), AmountIn: big.NewInt(1),
	})
	assert.Error(t, err)
}

func TestPumpSwapBuyRequiresExpectedOut(t *testing.T) {
	payer := pkOf(1)
	tokenMint := pkOf(2)
	pool := &quote.Pool{
		ID: pkOf(0x60), BaseMint: tokenMint, QuoteMint: consts.WSOLMint,
		BaseVault: pkOf(0x61), QuoteVault: pkOf(0x62),
	}
	cli := &fakeChain{}
	ataExists(t, cli, payer, tokenMint)
	ataExists(t, cli, payer, consts.WSOLMint)

	b := newPumpSwapFixture(t, cli)
	_, err := b.BuildSwap(context.Background(), BuildParams{
		Payer: payer, InputMint: consts.WSOLMint, OutputMint: tokenMint,
		AmountIn: big.NewInt(1_000), Pool: pool,
	})
	assert.Error(t, err, "exact-out 买入缺少报价产出时拒绝构建")
}
