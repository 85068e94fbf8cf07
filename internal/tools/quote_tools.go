package tools

import (
	"math"
	"math/big"

	"github.com/blocto/solana-go-sdk/common"

	"dex-executor-sol/internal/consts"
)

const (
	WSOLDecimals = 9
	USDCDecimals = 6
	USDTDecimals = 6
)

// USDQuoteMints 具有稳定美元价格参考的报价币（右对）
var USDQuoteMints = []common.PublicKey{
	consts.WSOLMint,
	consts.USDCMint,
	consts.USDTMint,
}

var QuoteDecimals = map[common.PublicKey]uint8{
	consts.WSOLMint: WSOLDecimals,
	consts.USDCMint: USDCDecimals,
	consts.USDTMint: USDTDecimals,
}

// IsQuoteMint 是否为系统内置报价币
func IsQuoteMint(pk common.PublicKey) bool {
	_, ok := QuoteDecimals[pk]
	return ok
}

// UsdToAtoms 把美元名义量换算成报价币最小单位。
// quote 为 WSOL 时按 solUsd 折算，稳定币按 1:1。
func UsdToAtoms(usd float64, quote common.PublicKey, solUsd float64) *big.Int {
	if usd <= 0 {
		return big.NewInt(0)
	}
	dec, ok := QuoteDecimals[quote]
	if !ok {
		return big.NewInt(0)
	}
	amount := usd
	if quote == consts.WSOLMint {
		if solUsd <= 0 {
			return big.NewInt(0)
		}
		amount = usd / solUsd
	}
	atoms := math.Floor(amount * math.Pow10(int(dec)))
	if atoms <= 0 {
		return big.NewInt(0)
	}
	f := new(big.Float).SetFloat64(atoms)
	out, _ := f.Int(nil)
	return out
}

// AtomsToUsd UsdToAtoms 的逆向换算，用于成交后的估值。
func AtomsToUsd(atoms *big.Int, quote common.PublicKey, solUsd float64) float64 {
	dec, ok := QuoteDecimals[quote]
	if !ok || atoms == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(atoms).Float64()
	amount := f / math.Pow10(int(dec))
	if quote == consts.WSOLMint {
		return amount * solUsd
	}
	return amount
}
