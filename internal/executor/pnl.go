package executor

import (
	"sync"
	"time"

	"dex-executor-sol/pkg/logger"
)

// DailyPnl 当前 UTC 日的已实现盈亏累计（美元）。
// 只在切片批次落定后更新；日切换时恰好清零一次。
type DailyPnl struct {
	mu  sync.Mutex
	now func() time.Time
	day [3]int // 当前累计所属的 UTC 年月日
	usd float64
}

func NewDailyPnl(now func() time.Time) *DailyPnl {
	if now == nil {
		now = time.Now
	}
	p := &DailyPnl{now: now}
	p.day = utcDay(p.now())
	return p
}

// Today 返回当前 UTC 日的累计值，必要时先做日切换清零。
func (p *DailyPnl) Today() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roll()
	return p.usd
}

// Add 累加一笔已落定的盈亏（买入为负名义量，退出为正估值）。
func (p *DailyPnl) Add(deltaUsd float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roll()
	p.usd += deltaUsd
}

func (p *DailyPnl) roll() {
	day := utcDay(p.now())
	if day != p.day {
		logger.Infof("[executor] PnL 日切换 %v -> %v，清零（昨日累计 %.2f USD）", p.day, day, p.usd)
		p.day = day
		p.usd = 0
	}
}

func utcDay(t time.Time) [3]int {
	y, m, d := t.UTC().Date()
	return [3]int{y, int(m), d}
}
