package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/near/borsh-go"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/idl"
	"dex-executor-sol/pkg/logger"
)

// RoleError 指定账户角色无法解析。整个构建原子失败，绝不产出缺账户的指令。
type RoleError struct {
	Role string
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("无法解析账户角色 %q", e.Role)
}

// Inputs 调用方已知的输入：付款人、目标 mint、付款人在该 mint 下的持仓账户。
type Inputs struct {
	Payer            common.PublicKey
	Mint             common.PublicKey
	UserTokenAccount common.PublicKey
}

// Options resolver 行为配置。Now 可注入固定时钟。
type Options struct {
	ProgramID            common.PublicKey
	FeeRecipientOverride *common.PublicKey // 显式覆盖，绕过 Global 解码
	CreatorVaultOverride *common.PublicKey // 显式覆盖，绕过派生
	CacheTTL             time.Duration
	StorePath            string // 为空时不落盘
	Now                  func() time.Time
}

// Resolver 把声明式账户 schema 解析为具体地址，并持有两个进程级缓存
// （fee_recipient 单值、creator_vault 按 mint）。
type Resolver struct {
	cli       chain.Client
	schema    *idl.Idl
	programID common.PublicKey

	feeOverride   *common.PublicKey
	vaultOverride *common.PublicKey

	feeCache   *FeeRecipientCache
	vaultCache *CreatorVaultCache
	store      *VaultStore
	storeOnce  sync.Once
}

func New(cli chain.Client, schema *idl.Idl, opt Options) *Resolver {
	ttl := opt.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	programID := opt.ProgramID
	if programID == (common.PublicKey{}) {
		programID = consts.PumpFunProgram
	}
	r := &Resolver{
		cli:           cli,
		schema:        schema,
		programID:     programID,
		feeOverride:   opt.FeeRecipientOverride,
		vaultOverride: opt.CreatorVaultOverride,
		feeCache:      NewFeeRecipientCache(ttl, opt.Now),
		vaultCache:    NewCreatorVaultCache(ttl, opt.Now),
	}
	if opt.StorePath != "" {
		r.store = NewVaultStore(opt.StorePath)
	}
	return r
}

func (r *Resolver) ProgramID() common.PublicKey {
	return r.programID
}

func (r *Resolver) Schema() *idl.Idl {
	return r.schema
}

// ResolveAccounts 为指令的每个账户角色解析出具体地址。
// 全部成功才返回；任一角色失败则整个构建失败。
func (r *Resolver) ResolveAccounts(ctx context.Context, ix *idl.Instruction, in Inputs) (map[string]common.PublicKey, error) {
	return r.ResolveAccountsWith(ctx, ix, in, nil)
}

// ResolveAccountsWith 同 ResolveAccounts，但允许调用方预置部分角色
// （如 venue builder 已知的池子账户），预置项优先于规则表。
func (r *Resolver) ResolveAccountsWith(ctx context.Context, ix *idl.Instruction, in Inputs, seed map[string]common.PublicKey) (map[string]common.PublicKey, error) {
	resolved := make(map[string]common.PublicKey, len(ix.Accounts)+len(seed))
	for name, pk := range seed {
		resolved[name] = pk
	}
	for i := range ix.Accounts {
		acc := &ix.Accounts[i]
		if _, ok := resolved[acc.Name]; ok {
			continue
		}
		pk, err := r.resolveRole(ctx, acc, in, resolved)
		if err != nil {
			return nil, err
		}
		resolved[acc.Name] = pk
	}
	return resolved, nil
}

// roleRule 解析规则表的一项：precise 的名称谓词 + 对应解析动作。
// 按表序第一个命中的规则生效；所有规则落空即显式 no-match 终态。
type roleRule struct {
	match   func(role string) bool
	resolve func(r *Resolver, ctx context.Context, acc *idl.AccountRole, in Inputs, resolved map[string]common.PublicKey) (common.PublicKey, error)
}

func exact(names ...string) func(string) bool {
	return func(role string) bool {
		for _, n := range names {
			if role == n {
				return true
			}
		}
		return false
	}
}

func containsAll(subs ...string) func(string) bool {
	return func(role string) bool {
		for _, s := range subs {
			if !strings.Contains(role, s) {
				return false
			}
		}
		return true
	}
}

var roleRules = []roleRule{
	// 签名者语义角色
	{exact("user", "payer", "authority", "owner"), func(r *Resolver, _ context.Context, _ *idl.AccountRole, in Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return in.Payer, nil
	}},
	// 目标资产 mint
	{exact("mint", "token_mint"), func(r *Resolver, _ context.Context, _ *idl.AccountRole, in Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return in.Mint, nil
	}},
	// 用户持仓账户（ATA）
	{exact("associated_user"), func(r *Resolver, _ context.Context, _ *idl.AccountRole, in Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return AssociatedTokenAddress(in.Payer, in.Mint)
	}},
	// 周知程序与 sysvar
	{exact("associated_token_program"), fixed(consts.AssociatedTokenProgram)},
	{exact("token_program"), fixed(consts.TokenProgram)},
	{func(role string) bool { return strings.Contains(role, "system") }, fixed(consts.SystemProgram)},
	{func(role string) bool { return strings.Contains(role, "rent") }, fixed(consts.SysVarRent)},
	// bonding curve 名下的 token 账户：ATA(owner=bonding_curve)
	{func(role string) bool {
		return strings.Contains(role, "associated") && (strings.Contains(role, "bond") || strings.Contains(role, "curve"))
	}, func(r *Resolver, _ context.Context, _ *idl.AccountRole, in Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		bc, err := r.BondingCurvePDA(in.Mint)
		if err != nil {
			return common.PublicKey{}, err
		}
		return AssociatedTokenAddress(bc, in.Mint)
	}},
	// curve/bond 类账户的硬编码派生
	{func(role string) bool { return strings.Contains(role, "bond") || strings.Contains(role, "curve") }, func(r *Resolver, _ context.Context, _ *idl.AccountRole, in Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return r.BondingCurvePDA(in.Mint)
	}},
	// creator_vault：override → 缓存 → 派生（需读链解码 creator）
	{containsAll("creator", "vault"), func(r *Resolver, ctx context.Context, _ *idl.AccountRole, in Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return r.CreatorVault(ctx, in.Mint, false)
	}},
	// fee_config：fee 程序下的固定种子派生
	{containsAll("fee", "config"), func(r *Resolver, _ context.Context, _ *idl.AccountRole, _ Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return findPDA([][]byte{[]byte("fee_config"), r.programID.Bytes()}, consts.PumpFeeProgram)
	}},
	// fee_recipient / fee_receiver：Global 账户解码（带缓存）
	{func(role string) bool {
		return strings.Contains(role, "fee") && (strings.Contains(role, "recipient") || strings.Contains(role, "receiver"))
	}, func(r *Resolver, ctx context.Context, _ *idl.AccountRole, _ Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return r.FeeRecipient(ctx)
	}},
	// 全局状态 PDA
	{exact("global"), func(r *Resolver, _ context.Context, _ *idl.AccountRole, _ Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return findPDA([][]byte{[]byte("global")}, r.programID)
	}},
	// 事件权限 PDA
	{containsAll("event", "authorit"), func(r *Resolver, _ context.Context, _ *idl.AccountRole, _ Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return findPDA([][]byte{[]byte("event_authority")}, r.programID)
	}},
	// 其余 associated token 类角色退回用户持仓账户
	{containsAll("associated", "token"), func(r *Resolver, _ context.Context, _ *idl.AccountRole, in Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return in.UserTokenAccount, nil
	}},
	// 剩余 *_program 角色指向目标程序自身
	{func(role string) bool { return role == "program" || strings.HasSuffix(role, "program") }, func(r *Resolver, _ context.Context, _ *idl.AccountRole, _ Inputs, _ map[string]common.PublicKey) (common.PublicKey, error) {
		return r.programID, nil
	}},
}

func fixed(pk common.PublicKey) func(*Resolver, context.Context, *idl.AccountRole, Inputs, map[string]common.PublicKey) (common.PublicKey, error) {
	return func(*Resolver, context.Context, *idl.AccountRole, Inputs, map[string]common.PublicKey) (common.PublicKey, error) {
		return pk, nil
	}
}

func (r *Resolver) resolveRole(ctx context.Context, acc *idl.AccountRole, in Inputs, resolved map[string]common.PublicKey) (common.PublicKey, error) {
	// 1. schema 固定地址原样使用
	if acc.Address != "" {
		return common.PublicKeyFromString(acc.Address), nil
	}

	role := strings.ToLower(acc.Name)

	// 2. 语义角色与周知地址（精确谓词，避免误吞带派生规则的角色）
	for _, rule := range roleRules[:7] {
		if rule.match(role) {
			return rule.resolve(r, ctx, acc, in, resolved)
		}
	}

	// 3. schema 给出派生规则时按种子图派生
	if acc.PDA != nil && len(acc.PDA.Seeds) > 0 {
		pk, err := r.deriveFromSpec(ctx, acc, in, resolved)
		if err != nil {
			return common.PublicKey{}, err
		}
		return pk, nil
	}

	// 4. 名称启发式兜底
	for _, rule := range roleRules[7:] {
		if rule.match(role) {
			return rule.resolve(r, ctx, acc, in, resolved)
		}
	}

	// 5. 显式 no-match 终态
	return common.PublicKey{}, &RoleError{Role: acc.Name}
}

// deriveFromSpec 按 schema 派生规则解析账户：逐个解析种子字节
// （常量 / 账户引用 / 账户字段引用），拼接后对归属程序做哈希派生。
// 字段引用种子构成 derive→fetch→decode→derive 依赖链，借助 resolved
// 备忘按依赖序解析。
func (r *Resolver) deriveFromSpec(ctx context.Context, acc *idl.AccountRole, in Inputs, resolved map[string]common.PublicKey) (common.PublicKey, error) {
	owner := r.programID
	if p := acc.PDA.Program; p != nil {
		switch p.Kind {
		case "const":
			if len(p.Value) == 32 {
				owner = common.PublicKeyFromBytes(p.Value)
			} else if len(p.Value) > 0 {
				owner = common.PublicKeyFromString(string(p.Value))
			}
		case "account":
			// 种子路径里的 token 标准提示
			path := strings.ToLower(p.Path)
			if strings.Contains(path, "token_2022") {
				owner = consts.TokenProgram2022
			} else if strings.Contains(path, "token") {
				owner = consts.TokenProgram
			}
		}
	}

	seeds := make([][]byte, 0, len(acc.PDA.Seeds))
	for _, seed := range acc.PDA.Seeds {
		b, err := r.seedBytes(ctx, acc.Name, seed, in, resolved)
		if err != nil {
			return common.PublicKey{}, err
		}
		seeds = append(seeds, b)
	}
	if len(seeds) == 0 {
		return common.PublicKey{}, &RoleError{Role: acc.Name}
	}
	return findPDA(seeds, owner)
}

func (r *Resolver) seedBytes(ctx context.Context, roleName string, seed idl.Seed, in Inputs, resolved map[string]common.PublicKey) ([]byte, error) {
	switch seed.Kind {
	case "const":
		return seed.Value, nil
	case "account":
		path := strings.ToLower(seed.Path)
		if base, field, ok := strings.Cut(path, "."); ok {
			return r.fieldSeed(ctx, base, field, in, resolved)
		}
		pk, err := r.seedAccount(ctx, path, in, resolved)
		if err != nil {
			return nil, err
		}
		return pk.Bytes(), nil
	default:
		return nil, fmt.Errorf("账户 %s 含不支持的种子类型 %q", roleName, seed.Kind)
	}
}

// seedAccount 解析账户引用种子：优先取本次构建中已解析的角色，
// 否则按名称语义兜底派生。
func (r *Resolver) seedAccount(_ context.Context, path string, in Inputs, resolved map[string]common.PublicKey) (common.PublicKey, error) {
	if pk, ok := resolved[path]; ok {
		return pk, nil
	}
	switch {
	case strings.Contains(path, "mint"):
		return in.Mint, nil
	case strings.Contains(path, "authority") || strings.Contains(path, "user"):
		return in.Payer, nil
	case path == "token_program":
		return consts.TokenProgram, nil
	case strings.Contains(path, "bond") || strings.Contains(path, "curve"):
		pk, err := r.BondingCurvePDA(in.Mint)
		if err != nil {
			return common.PublicKey{}, err
		}
		resolved[path] = pk
		return pk, nil
	}
	return common.PublicKey{}, fmt.Errorf("种子引用了未解析的账户 %q", path)
}

// fieldSeed 账户字段引用种子：先确定被引用账户地址（必要时名称兜底派生），
// 再读取其原始数据并按 schema 布局解码目标字段；类型化解码失败时退回
// 固定尾部偏移读取。
func (r *Resolver) fieldSeed(ctx context.Context, base, field string, in Inputs, resolved map[string]common.PublicKey) ([]byte, error) {
	basePk, err := r.seedAccount(ctx, base, in, resolved)
	if err != nil {
		return nil, err
	}
	info, err := r.cli.GetAccountInfo(ctx, basePk)
	if err != nil {
		return nil, fmt.Errorf("读取种子引用账户 %s(%s) 失败: %w", base, basePk, err)
	}
	if !info.Exists {
		return nil, fmt.Errorf("种子引用账户 %s(%s) 不存在", base, basePk)
	}
	return r.decodeField(base, field, info.Data)
}

func (r *Resolver) decodeField(base, field string, data []byte) ([]byte, error) {
	if layout := r.layoutNameFor(base); layout != "" {
		if b, err := r.schema.FieldBytes(layout, field, data); err == nil {
			return b, nil
		} else {
			logger.Debugf("[resolver] schema 解码 %s.%s 失败，退回固定偏移: %v", base, field, err)
		}
	}
	// 固定偏移兜底：creator 是 BondingCurve 的末 32 字节
	if field == "creator" && len(data) >= 8+5*8+1+32 {
		return data[len(data)-32:], nil
	}
	return nil, fmt.Errorf("无法解码字段 %s.%s (len=%d)", base, field, len(data))
}

// layoutNameFor 角色名到账户布局名的映射（bonding_curve → BondingCurve）。
func (r *Resolver) layoutNameFor(role string) string {
	want := strings.ReplaceAll(strings.ToLower(role), "_", "")
	for _, a := range r.schema.Accounts {
		if strings.ToLower(a.Name) == want {
			return a.Name
		}
	}
	for _, t := range r.schema.Types {
		if strings.ToLower(t.Name) == want {
			return t.Name
		}
	}
	return ""
}

// FeeRecipient 解析 Pump.fun 手续费接收账户：override → TTL 缓存 →
// Global PDA 读链解码，schema 解码失败时按已知布局固定偏移读取
// （8 判别符 + 1 initialized + 32 authority 之后的 32 字节）。
func (r *Resolver) FeeRecipient(ctx context.Context) (common.PublicKey, error) {
	if r.feeOverride != nil {
		return *r.feeOverride, nil
	}
	if pk, ok := r.feeCache.Get(); ok {
		return pk, nil
	}

	globalPda, err := findPDA([][]byte{[]byte("global")}, r.programID)
	if err != nil {
		return common.PublicKey{}, err
	}
	info, err := r.cli.GetAccountInfo(ctx, globalPda)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("读取 Global 账户失败: %w", err)
	}
	if !info.Exists {
		return common.PublicKey{}, fmt.Errorf("Global 账户 %s 不存在", globalPda)
	}

	b, err := r.globalFeeRecipient(info.Data)
	if err != nil {
		return common.PublicKey{}, err
	}
	pk := common.PublicKeyFromBytes(b)
	r.feeCache.Put(pk)
	return pk, nil
}

// globalState Global 账户判别符之后的前缀布局（后续字段与取值无关）。
type globalState struct {
	Initialized  bool
	Authority    [32]byte
	FeeRecipient [32]byte
}

func (r *Resolver) globalFeeRecipient(data []byte) ([]byte, error) {
	if len(data) >= 8 {
		var st globalState
		if err := borsh.Deserialize(&st, data[8:]); err == nil {
			return st.FeeRecipient[:], nil
		}
	}
	if b, err := r.decodeField("global", "fee_recipient", data); err == nil {
		return b, nil
	}
	if len(data) < 8+1+32+32 {
		return nil, fmt.Errorf("Global 账户数据过短: len=%d", len(data))
	}
	return data[8+1+32 : 8+1+32+32], nil
}

// CreatorVault 解析指定 mint 的 creator_vault：override → TTL 缓存 →
// 磁盘缓存 → 读链派生（BondingCurve.creator 解码后二次派生）。
// persist=true 时把派生结果写入磁盘缓存。
func (r *Resolver) CreatorVault(ctx context.Context, mint common.PublicKey, persist bool) (common.PublicKey, error) {
	if r.vaultOverride != nil {
		return *r.vaultOverride, nil
	}
	r.ensureStoreLoaded()
	if pk, ok := r.vaultCache.Get(mint); ok {
		return pk, nil
	}

	pk, err := r.deriveCreatorVault(ctx, mint)
	if err != nil {
		// 派生失败时过期缓存仍可用（磁盘预热条目）
		if stale, ok := r.vaultCache.GetStale(mint); ok {
			logger.Warnf("[resolver] creator_vault 派生失败，使用过期缓存: mint=%s err=%v", mint, err)
			return stale, nil
		}
		return common.PublicKey{}, err
	}

	r.vaultCache.Put(mint, pk)
	if persist && r.store != nil {
		if err := r.store.Put(mint.ToBase58(), pk.ToBase58()); err != nil {
			logger.Warnf("[resolver] creator_vault 落盘失败: mint=%s err=%v", mint, err)
		}
	}
	return pk, nil
}

// bondingCurveState BondingCurve 账户判别符之后的 borsh 布局。
type bondingCurveState struct {
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              [32]byte
}

func (r *Resolver) deriveCreatorVault(ctx context.Context, mint common.PublicKey) (common.PublicKey, error) {
	bcPda, err := r.BondingCurvePDA(mint)
	if err != nil {
		return common.PublicKey{}, err
	}
	info, err := r.cli.GetAccountInfo(ctx, bcPda)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("读取 BondingCurve 失败: %w", err)
	}
	if !info.Exists {
		return common.PublicKey{}, fmt.Errorf("mint %s 没有 BondingCurve 账户", mint)
	}
	creator, err := r.curveCreator(info.Data)
	if err != nil {
		return common.PublicKey{}, err
	}
	return findPDA([][]byte{[]byte("creator-vault"), creator}, r.programID)
}

// curveCreator 从 BondingCurve 原始数据取 creator：优先按类型化 borsh
// 布局解码，布局不符时退回 schema 字段解码。
func (r *Resolver) curveCreator(data []byte) ([]byte, error) {
	if len(data) >= 8 {
		var st bondingCurveState
		if err := borsh.Deserialize(&st, data[8:]); err == nil {
			return st.Creator[:], nil
		}
	}
	return r.decodeField("bonding_curve", "creator", data)
}

// ensureStoreLoaded 首次使用时把磁盘缓存整表灌入内存缓存。
func (r *Resolver) ensureStoreLoaded() {
	if r.store == nil {
		return
	}
	r.storeOnce.Do(func() {
		entries, err := r.store.Load()
		if err != nil {
			logger.Warnf("[resolver] 加载 vault 磁盘缓存失败: %v", err)
			return
		}
		for mint, vault := range entries {
			r.vaultCache.Put(common.PublicKeyFromString(mint), common.PublicKeyFromString(vault))
		}
		if len(entries) > 0 {
			logger.Infof("[resolver] vault 磁盘缓存加载完成: %d 条", len(entries))
		}
	})
}

func (r *Resolver) BondingCurvePDA(mint common.PublicKey) (common.PublicKey, error) {
	return findPDA([][]byte{[]byte("bonding-curve"), mint.Bytes()}, r.programID)
}

func findPDA(seeds [][]byte, program common.PublicKey) (common.PublicKey, error) {
	pk, _, err := common.FindProgramAddress(seeds, program)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("PDA 派生失败: %w", err)
	}
	return pk, nil
}

// AssociatedTokenAddress 计算 owner 在指定 mint 下的关联持仓账户地址。
func AssociatedTokenAddress(owner, mint common.PublicKey) (common.PublicKey, error) {
	pk, _, err := common.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return common.PublicKey{}, fmt.Errorf("ATA 派生失败: %w", err)
	}
	return pk, nil
}
