package oracle

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pythData 构造一份最小可解析的 Pyth 价格账户数据
func pythData(priceComponent int64, confComponent uint64, exponent int32, status uint32, publishTs int64) []byte {
	data := make([]byte, 240)
	binary.LittleEndian.PutUint32(data[20:24], uint32(exponent))
	binary.LittleEndian.PutUint64(data[96:104], uint64(publishTs))
	binary.LittleEndian.PutUint64(data[208:216], uint64(priceComponent))
	binary.LittleEndian.PutUint64(data[216:224], confComponent)
	binary.LittleEndian.PutUint32(data[224:228], status)
	return data
}

func TestParsePythPrice(t *testing.T) {
	now := time.Now().Unix()

	// 150.0 USD @ exponent -8
	price, ts, err := parsePythPrice(pythData(15_000_000_000, 1_000_000, -8, 1, now))
	require.NoError(t, err)
	assert.InDelta(t, 150.0, price, 1e-9)
	assert.Equal(t, now, ts)
}

func TestParsePythPriceRejects(t *testing.T) {
	now := time.Now().Unix()

	// 数据过短
	_, _, err := parsePythPrice(make([]byte, 100))
	assert.Error(t, err)

	// status 非 trading
	_, _, err = parsePythPrice(pythData(15_000_000_000, 1_000_000, -8, 0, now))
	assert.Error(t, err)

	// 价格非正
	_, _, err = parsePythPrice(pythData(-5, 1, -8, 1, now))
	assert.Error(t, err)

	// 置信区间过宽（conf/price > 5%）
	_, _, err = parsePythPrice(pythData(15_000_000_000, 1_000_000_000, -8, 1, now))
	assert.Error(t, err)

	// 发布时间过旧
	_, _, err = parsePythPrice(pythData(15_000_000_000, 1_000_000, -8, 1, now-300))
	assert.Error(t, err)
}
