package resolver

import (
	"sync"
	"time"

	"github.com/blocto/solana-go-sdk/common"
)

// FeeRecipientCache 进程级单值 TTL 缓存（fee_recipient 来自 Global 账户解码）。
// now 可注入，测试中用固定时钟。
type FeeRecipientCache struct {
	mu    sync.Mutex
	value common.PublicKey
	ok    bool
	at    time.Time
	ttl   time.Duration
	now   func() time.Time
}

func NewFeeRecipientCache(ttl time.Duration, now func() time.Time) *FeeRecipientCache {
	if now == nil {
		now = time.Now
	}
	return &FeeRecipientCache{ttl: ttl, now: now}
}

func (c *FeeRecipientCache) Get() (common.PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ok || c.now().Sub(c.at) >= c.ttl {
		return common.PublicKey{}, false
	}
	return c.value, true
}

func (c *FeeRecipientCache) Put(pk common.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = pk
	c.ok = true
	c.at = c.now()
}

type vaultEntry struct {
	vault common.PublicKey
	at    time.Time
}

// CreatorVaultCache 按 mint 维度的 creator_vault TTL 缓存。
type CreatorVaultCache struct {
	mu      sync.Mutex
	entries map[string]vaultEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewCreatorVaultCache(ttl time.Duration, now func() time.Time) *CreatorVaultCache {
	if now == nil {
		now = time.Now
	}
	return &CreatorVaultCache{
		entries: make(map[string]vaultEntry),
		ttl:     ttl,
		now:     now,
	}
}

// Get 返回未过期的缓存值。
func (c *CreatorVaultCache) Get(mint common.PublicKey) (common.PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[mint.ToBase58()]
	if !ok || c.now().Sub(e.at) >= c.ttl {
		return common.PublicKey{}, false
	}
	return e.vault, true
}

// GetStale 过期条目也返回（磁盘预热的兜底读取路径）。
func (c *CreatorVaultCache) GetStale(mint common.PublicKey) (common.PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[mint.ToBase58()]
	if !ok {
		return common.PublicKey{}, false
	}
	return e.vault, true
}

func (c *CreatorVaultCache) Put(mint, vault common.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[mint.ToBase58()] = vaultEntry{vault: vault, at: c.now()}
}
