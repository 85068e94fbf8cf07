package executor

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"

	"dex-executor-sol/internal/chain"
	"dex-executor-sol/internal/config"
	"dex-executor-sol/internal/consts"
	"dex-executor-sol/internal/model"
	"dex-executor-sol/internal/mq"
	"dex-executor-sol/internal/phase"
	"dex-executor-sol/internal/quote"
	"dex-executor-sol/internal/tools"
	"dex-executor-sol/internal/txbuild"
	"dex-executor-sol/internal/venue"
	"dex-executor-sol/pkg/logger"
)

// Mints 一次执行涉及的三个资产：目标 token、原生报价币（WSOL）、稳定报价币（USDC）。
type Mints struct {
	Token common.PublicKey
	Base  common.PublicKey
	Quote common.PublicKey
}

// Deps 编排器的全部外部依赖，测试中逐项替换。
type Deps struct {
	Cli      chain.Client
	Quoter   *quote.Quoter
	Builders map[int]venue.Builder
	Signer   types.Account
	SolUsd   func() float64 // 价格 oracle
	Reporter *mq.Reporter   // 可为 nil
	Now      func() time.Time
	Sleep    func(time.Duration)
}

// Executor 按决策周期驱动单资产的执行状态机：
// Gated → Sized → Routed → Sliced → Submitted → Settled，任一阶段可短路为 Skipped。
type Executor struct {
	cfg       config.ExecConfig
	cli       chain.Client
	quoter    *quote.Quoter
	builders  map[int]venue.Builder
	submitter *Submitter
	signer    types.Account
	solUsd    func() float64
	reporter  *mq.Reporter
	pnl       *DailyPnl
	deny      map[string]struct{}
	allow     map[string]struct{}
	now       func() time.Time
	sleep     func(time.Duration)
}

func New(cfg config.ExecConfig, submitter *Submitter, deps Deps) *Executor {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	deny := make(map[string]struct{}, len(cfg.DenyMints))
	for _, m := range cfg.DenyMints {
		deny[m] = struct{}{}
	}
	allow := make(map[string]struct{}, len(cfg.AllowMints))
	for _, m := range cfg.AllowMints {
		allow[m] = struct{}{}
	}
	return &Executor{
		cfg:       cfg,
		cli:       deps.Cli,
		quoter:    deps.Quoter,
		builders:  deps.Builders,
		submitter: submitter,
		signer:    deps.Signer,
		solUsd:    deps.SolUsd,
		reporter:  deps.Reporter,
		pnl:       NewDailyPnl(now),
		deny:      deny,
		allow:     allow,
		now:       now,
		sleep:     sleep,
	}
}

// Pnl 暴露给外部观察当日累计
func (e *Executor) Pnl() *DailyPnl {
	return e.pnl
}

// Execute 处理一条决策。安全门拦截与 hold 都是正常 no-op；
// 返回 error 仅表示该资产本周期的执行被中断，绝不中断进程。
func (e *Executor) Execute(ctx context.Context, d model.Decision, ph phase.Phase, mints Mints) ([]string, error) {
	if d.Action == model.ActionHold {
		return nil, nil
	}

	report := &mq.ExecutionReport{
		TokenMint: mints.Token.ToBase58(),
		Action:    d.Action,
		Phase:     ph.String(),
		SizeUsd:   d.SizeUsd,
	}

	// Gated
	if reason := e.gate(ctx, d, ph, mints); reason != "" {
		logger.Warnf("[executor] 安全门拦截: token=%s action=%s reason=%s", mints.Token, d.Action, reason)
		report.Skipped = reason
		e.publish(report)
		return nil, nil
	}

	// Sized
	amountIn, inMint, outMint, skip, err := e.size(ctx, d, mints)
	if err != nil {
		report.Error = err.Error()
		e.publish(report)
		return nil, err
	}
	if skip != "" {
		logger.Infof("[executor] 跳过: token=%s reason=%s", mints.Token, skip)
		report.Skipped = skip
		e.publish(report)
		return nil, nil
	}
	report.AmountIn = amountIn.String()

	// Routed
	chosen, chosenQ, altQ, skip, err := e.route(ctx, ph, inMint, outMint, amountIn)
	if err != nil {
		report.Error = err.Error()
		e.publish(report)
		return nil, err
	}
	if skip != "" {
		logger.Warnf("[executor] 路由无果: token=%s reason=%s", mints.Token, skip)
		report.Skipped = skip
		e.publish(report)
		return nil, nil
	}
	report.Venue = consts.VenueName(chosen)

	// Sliced + Submitted
	side := venue.SideBuy
	if d.Action == model.ActionExit {
		side = venue.SideSell
	}
	sigs, execErr := e.runPlan(ctx, planInput{
		chosen:   chosen,
		chosenQ:  chosenQ,
		altQ:     altQ,
		phase:    ph,
		side:     side,
		payer:    e.signer.PublicKey,
		inMint:   inMint,
		outMint:  outMint,
		amountIn: amountIn,
	})
	report.Slices = len(sigs)
	report.Signatures = sigs

	// Settled：已确认的切片永不回滚，无论后续是否失败都按实结算
	if len(sigs) > 0 {
		e.settle(d, outMint, chosenQ)
	}
	if execErr != nil {
		report.Error = execErr.Error()
	}
	e.publish(report)

	logger.Infof("[executor] %s %s venue=%s k=%d sigs=%d err=%v",
		d.Action, mints.Token, consts.VenueName(chosen), e.splits(), len(sigs), execErr)
	return sigs, execErr
}

// gate 依序执行安全门，返回非空表示拦截原因。
// 顺序固定：kill switch → 当日亏损上限 → 黑名单 → 白名单 → 策略开关 → 开盘前资产风控。
func (e *Executor) gate(ctx context.Context, d model.Decision, ph phase.Phase, mints Mints) string {
	if e.cfg.KillSwitch {
		return "kill switch 激活"
	}
	if limit := e.cfg.DailyLossLimitUsd; limit > 0 && e.pnl.Today() <= -limit {
		return fmt.Sprintf("触发当日亏损上限 %.2f USD", limit)
	}
	tokenStr := mints.Token.ToBase58()
	if _, denied := e.deny[tokenStr]; denied {
		return "黑名单资产"
	}
	if len(e.allow) > 0 {
		if _, ok := e.allow[tokenStr]; !ok {
			return "不在白名单"
		}
	}
	if ph == phase.PhaseCurve {
		if d.Action == model.ActionBuy && e.cfg.DisableCurveBuy {
			return "curve 阶段买入被策略禁用"
		}
		return ""
	}

	// 开放市场交易前探测 mint 权限位与归属程序
	safety, err := tools.ProbeMint(ctx, e.cli, mints.Token)
	if err != nil {
		return fmt.Sprintf("mint 不可验证: %v", err)
	}
	if e.cfg.BlockFreeze && safety.HasFreezeAuthority {
		return "freeze authority 未放弃"
	}
	if e.cfg.BlockMintAuth && safety.HasMintAuthority {
		return "mint authority 未放弃"
	}
	if safety.OwnerProgram != consts.TokenProgram {
		return fmt.Sprintf("非标准 token 程序: %s", safety.OwnerProgram)
	}
	return ""
}

// size 把决策换算成输入资产最小单位金额，并确定输入/输出 mint。
// 退出按持仓全量，不按决策声明的名义量。
func (e *Executor) size(ctx context.Context, d model.Decision, mints Mints) (*big.Int, common.PublicKey, common.PublicKey, string, error) {
	var zero common.PublicKey
	switch d.Action {
	case model.ActionBuy:
		quoteMint := mints.Quote
		if e.cfg.PreferWSOL {
			quoteMint = mints.Base
		}
		amount := tools.UsdToAtoms(d.SizeUsd, quoteMint, e.solUsd())
		if amount.Sign() <= 0 {
			return nil, zero, zero, "定尺结果为零", nil
		}
		return amount, quoteMint, mints.Token, "", nil

	case model.ActionExit:
		ata, _, err := common.FindAssociatedTokenAddress(e.signer.PublicKey, mints.Token)
		if err != nil {
			return nil, zero, zero, "", fmt.Errorf("持仓账户派生失败: %w", err)
		}
		balance, err := e.cli.GetTokenBalance(ctx, ata)
		if err != nil {
			return nil, zero, zero, "", fmt.Errorf("读取持仓失败: %w", err)
		}
		if balance.Sign() <= 0 {
			return nil, zero, zero, "无持仓可退出", nil
		}
		return balance, mints.Token, mints.Quote, "", nil
	}
	return nil, zero, zero, fmt.Sprintf("未知动作 %q", d.Action), nil
}

// route 选择执行 venue。curve 阶段恒走 bonding curve；
// 开放市场默认 venue A（PumpSwap），先看池子健康度，再按冲击差、冲击上限、
// 储备占比和报价新鲜度决定是否切到 venue B（Raydium）。两路报价并发取回后合流。
func (e *Executor) route(ctx context.Context, ph phase.Phase, inMint, outMint common.PublicKey, amountIn *big.Int) (int, *quote.VenueQuote, *quote.VenueQuote, string, error) {
	if ph == phase.PhaseCurve {
		return consts.VenuePumpFun, nil, nil, "", nil
	}

	var qA, qB *quote.VenueQuote
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		qA, _ = e.quoter.Quote(ctx, consts.VenuePumpSwap, inMint, outMint, amountIn)
	}()
	go func() {
		defer wg.Done()
		qB, _ = e.quoter.Quote(ctx, consts.VenueRaydium, inMint, outMint, amountIn)
	}()
	wg.Wait()

	if qA == nil && qB == nil {
		return consts.VenueUnknown, nil, nil, "两个 venue 均无可用报价", nil
	}
	if qA == nil {
		return consts.VenueRaydium, qB, nil, "", nil
	}
	if qB == nil {
		return consts.VenuePumpSwap, qA, nil, "", nil
	}

	// 默认 venue 不健康而备选健康时直接改走备选，不再比较冲击
	if !e.quoter.Healthy(ctx, consts.VenuePumpSwap, inMint, outMint) &&
		e.quoter.Healthy(ctx, consts.VenueRaydium, inMint, outMint) {
		logger.Infof("[executor] venue 切换到 %s: %s 池子不健康",
			consts.VenueName(consts.VenueRaydium), consts.VenueName(consts.VenuePumpSwap))
		return consts.VenueRaydium, qB, qA, "", nil
	}

	chosen := consts.VenuePumpSwap
	chosenQ, altQ := qA, qB

	switchTo := func(reason string) {
		chosen = consts.VenueRaydium
		chosenQ, altQ = qB, qA
		logger.Infof("[executor] venue 切换 %s -> %s: %s", consts.VenueName(consts.VenuePumpSwap), consts.VenueName(chosen), reason)
	}

	margin := float64(e.cfg.SwitchMarginBps)
	capBps := float64(e.cfg.ImpactCapBps)
	if qB.ImpactBps-qA.ImpactBps <= -margin {
		switchTo(fmt.Sprintf("冲击差 %.1f bps 超过切换阈值 %.0f", qB.ImpactBps-qA.ImpactBps, margin))
	} else if qA.ImpactBps > capBps && qB.ImpactBps <= capBps {
		switchTo(fmt.Sprintf("A 冲击 %.1f 超上限 %.0f 而 B 合规", qA.ImpactBps, capBps))
	}

	// 计划量超过所选 venue 输入储备的 1% 且冲击超限时，备选合规则改走备选
	onePercent := new(big.Int).Div(chosenQ.ReserveIn, big.NewInt(100))
	if amountIn.Cmp(onePercent) > 0 && chosenQ.ImpactBps > capBps && altQ.ImpactBps <= capBps {
		if chosen == consts.VenuePumpSwap {
			switchTo("计划量超储备 1% 且冲击超限")
		}
	}

	// 所选报价过期而备选新鲜则互换
	slotNow, err := e.cli.GetSlot(ctx)
	if err == nil {
		now := e.now()
		if !chosenQ.Fresh(slotNow, now) && altQ.Fresh(slotNow, now) {
			chosen = altQ.Venue
			chosenQ, altQ = altQ, chosenQ
			logger.Infof("[executor] venue 切换到 %s: 原报价过期", consts.VenueName(chosen))
		}
	}
	return chosen, chosenQ, altQ, "", nil
}

type planInput struct {
	chosen   int
	chosenQ  *quote.VenueQuote
	altQ     *quote.VenueQuote
	phase    phase.Phase
	side     venue.Side
	payer    common.PublicKey
	inMint   common.PublicKey
	outMint  common.PublicKey
	amountIn *big.Int
}

// runPlan 切片循环：逐片构建、提交、确认。切片间严格串行。
// 构建失败触发一次性 venue 切换并重试当前片；
// 提交失败（模拟失败除外）废弃剩余切片，已确认的不回滚。
func (e *Executor) runPlan(ctx context.Context, in planInput) ([]string, error) {
	slices := SplitAmount(in.amountIn, e.splits())
	sigs := make([]string, 0, len(slices))

	chosen := in.chosen
	chosenQ := in.chosenQ
	altQ := in.altQ
	failedOver := false

	for i := 0; i < len(slices); i++ {
		amt := slices[i]

		var ixs []types.Instruction
		// 原生资产作为中间腿时包装/解包
		if in.inMint == consts.WSOLMint {
			_, wrapIxs, err := txbuild.WrapWSOL(ctx, e.cli, in.payer, in.payer, amt)
			if err != nil {
				return sigs, err
			}
			ixs = append(ixs, wrapIxs...)
		}

		builder, ok := e.builders[chosen]
		if !ok {
			return sigs, fmt.Errorf("venue %s 无构建器", consts.VenueName(chosen))
		}
		swapIxs, err := builder.BuildSwap(ctx, venue.BuildParams{
			Payer:       in.payer,
			Side:        in.side,
			InputMint:   in.inMint,
			OutputMint:  in.outMint,
			AmountIn:    amt,
			ExpectedOut: sliceExpectedOut(chosenQ, amt, in.amountIn),
			SlippageBps: e.cfg.SlippageBps,
			Pool:        poolOf(chosenQ),
		})
		if err != nil {
			var be *venue.BuildError
			if errors.As(err, &be) && in.phase == phase.PhaseAMM && !failedOver && altQ != nil {
				failedOver = true
				logger.Warnf("[executor] %v，剩余计划切换到 %s", err, consts.VenueName(altQ.Venue))
				chosen = altQ.Venue
				chosenQ, altQ = altQ, nil
				i-- // 当前片在备选 venue 重试一次
				continue
			}
			return sigs, err
		}
		ixs = append(ixs, swapIxs...)

		if in.outMint == consts.WSOLMint {
			_, unwrapIxs, err := txbuild.UnwrapWSOL(in.payer)
			if err != nil {
				return sigs, err
			}
			ixs = append(ixs, unwrapIxs...)
		}

		full := txbuild.WithPriorityFee(ixs, e.cfg.PriorityFeeMicroLamports)
		msg, err := txbuild.Assemble(ctx, e.cli, in.payer, full)
		if err != nil {
			return sigs, err
		}

		res := e.submitter.SubmitAndConfirm(ctx, msg, e.signer)
		if res.Err != nil {
			if errors.Is(res.Err, ErrSimulateFailed) {
				// 只废弃本片
				logger.Warnf("[executor] 切片 %d/%d 模拟失败，跳过: %v", i+1, len(slices), res.Err)
				continue
			}
			// 已广播未确认的签名必须留痕，后续对账用
			if res.Signature != "" {
				logger.Warnf("[executor] 切片 %d/%d 已广播未确认, sig=%s: %v", i+1, len(slices), res.Signature, res.Err)
				sigs = append(sigs, res.Signature)
			}
			return sigs, res.Err
		}
		sigs = append(sigs, res.Signature)

		if delay := e.cfg.SliceDelayMs; delay > 0 && i < len(slices)-1 {
			e.sleep(time.Duration(delay) * time.Millisecond)
		}
	}
	return sigs, nil
}

// settle 按已确认批次更新当日 PnL：买入减名义量，
// 退出按所选 venue 报价产出折美元加回（无报价则不动）。
func (e *Executor) settle(d model.Decision, outMint common.PublicKey, chosenQ *quote.VenueQuote) {
	switch d.Action {
	case model.ActionBuy:
		e.pnl.Add(-d.SizeUsd)
	case model.ActionExit:
		if chosenQ != nil && tools.IsQuoteMint(outMint) {
			if est := tools.AtomsToUsd(chosenQ.OutAmount, outMint, e.solUsd()); est > 0 {
				e.pnl.Add(est)
			}
		}
	}
}

func (e *Executor) splits() int {
	if e.cfg.SplitsK < 1 {
		return 1
	}
	return e.cfg.SplitsK
}

func (e *Executor) publish(report *mq.ExecutionReport) {
	if e.reporter != nil {
		report.Timestamp = e.now().Unix()
		e.reporter.Publish(report)
	}
}

// SplitAmount 把金额分成 k 等份，余数并入最后一片。各片之和恒等于总量。
func SplitAmount(amount *big.Int, k int) []*big.Int {
	if k < 1 {
		k = 1
	}
	each := new(big.Int).Div(amount, big.NewInt(int64(k)))
	out := make([]*big.Int, k)
	used := new(big.Int)
	for i := 0; i < k-1; i++ {
		out[i] = new(big.Int).Set(each)
		used.Add(used, each)
	}
	out[k-1] = new(big.Int).Sub(amount, used)
	return out
}

func sliceExpectedOut(q *quote.VenueQuote, amt, total *big.Int) *big.Int {
	if q == nil || q.OutAmount == nil || total.Sign() == 0 {
		return nil
	}
	out := new(big.Int).Mul(q.OutAmount, amt)
	return out.Div(out, total)
}

func poolOf(q *quote.VenueQuote) *quote.Pool {
	if q == nil {
		return nil
	}
	return q.Pool
}
