package resolver

import (
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/stretchr/testify/assert"
)

// fakeClock 可手动推进的测试时钟
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func pkOf(b byte) common.PublicKey {
	var raw [32]byte
	for i := range raw {
		raw[i] = b
	}
	return common.PublicKeyFromBytes(raw[:])
}

func TestFeeRecipientCacheTTL(t *testing.T) {
	clock := newFakeClock()
	c := NewFeeRecipientCache(5*time.Minute, clock.Now)

	_, ok := c.Get()
	assert.False(t, ok, "空缓存不应命中")

	c.Put(pkOf(1))
	got, ok := c.Get()
	assert.True(t, ok)
	assert.Equal(t, pkOf(1), got)

	// TTL 内命中，TTL 后失效
	clock.Advance(4 * time.Minute)
	_, ok = c.Get()
	assert.True(t, ok)

	clock.Advance(2 * time.Minute)
	_, ok = c.Get()
	assert.False(t, ok, "过期后不应命中")

	// 重新写入后恢复
	c.Put(pkOf(2))
	got, ok = c.Get()
	assert.True(t, ok)
	assert.Equal(t, pkOf(2), got)
}

func TestCreatorVaultCachePerMint(t *testing.T) {
	clock := newFakeClock()
	c := NewCreatorVaultCache(5*time.Minute, clock.Now)

	mintA, mintB := pkOf(10), pkOf(11)
	c.Put(mintA, pkOf(20))

	got, ok := c.Get(mintA)
	assert.True(t, ok)
	assert.Equal(t, pkOf(20), got)

	// mint 维度隔离
	_, ok = c.Get(mintB)
	assert.False(t, ok)

	clock.Advance(6 * time.Minute)
	_, ok = c.Get(mintA)
	assert.False(t, ok, "过期后 Get 不应命中")

	// 过期条目对 GetStale 仍可见（兜底路径）
	stale, ok := c.GetStale(mintA)
	assert.True(t, ok)
	assert.Equal(t, pkOf(20), stale)

	_, ok = c.GetStale(mintB)
	assert.False(t, ok, "从未写入的条目不存在兜底")
}
