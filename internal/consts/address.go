package consts

import "github.com/blocto/solana-go-sdk/common"

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	//  Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	TokenProgram2022Str       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	ComputeBudgetProgramStr   = "ComputeBudget111111111111111111111111111111"
	SysVarRentStr             = "SysvarRent111111111111111111111111111111111"

	// USD 计价基础报价币（具有稳定市场价格）
	WSOLMintStr = "So11111111111111111111111111111111111111112"
	USDCMintStr = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMintStr = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

	// DEX: PumpFun（bonding curve 阶段）与 PumpSwap（迁移后 AMM）
	PumpFunProgramStr  = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	PumpSwapProgramStr = "pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA"
	PumpFeeProgramStr  = "pfeeUxB6jkeY1Hxd7CsFCAjcbHA9rWtchMGdZ6VojVZ"

	// DEX: Raydium
	RaydiumV4ProgramStr   = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
	RaydiumV4AuthorityStr = "5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1"
)

var (
	// Programs
	SystemProgram          = common.PublicKeyFromString(SystemProgramStr)
	TokenProgram           = common.PublicKeyFromString(TokenProgramStr)
	TokenProgram2022       = common.PublicKeyFromString(TokenProgram2022Str)
	AssociatedTokenProgram = common.PublicKeyFromString(AssociatedTokenProgramStr)
	ComputeBudgetProgram   = common.PublicKeyFromString(ComputeBudgetProgramStr)
	SysVarRent             = common.PublicKeyFromString(SysVarRentStr)

	// 稳定报价币（USD 估值）
	WSOLMint = common.PublicKeyFromString(WSOLMintStr)
	USDCMint = common.PublicKeyFromString(USDCMintStr)
	USDTMint = common.PublicKeyFromString(USDTMintStr)

	// DEX Program
	PumpFunProgram  = common.PublicKeyFromString(PumpFunProgramStr)
	PumpSwapProgram = common.PublicKeyFromString(PumpSwapProgramStr)
	PumpFeeProgram  = common.PublicKeyFromString(PumpFeeProgramStr)

	RaydiumV4Program   = common.PublicKeyFromString(RaydiumV4ProgramStr)
	RaydiumV4Authority = common.PublicKeyFromString(RaydiumV4AuthorityStr)
)
