package consts

// 执行路径上的交易场所编号
const (
	VenueUnknown  = iota // 0 (保留)
	VenuePumpFun         // 1 bonding curve（发射阶段）
	VenuePumpSwap        // 2 迁移后默认 AMM
	VenueRaydium         // 3 备选 AMM（Raydium V4）
)

var venueNames = []string{
	"Unknown",
	"PumpFun",
	"PumpSwap",
	"RaydiumV4",
}

func VenueName(v int) string {
	if v >= 1 && v < len(venueNames) {
		return venueNames[v]
	}
	return venueNames[0] // Unknown
}
