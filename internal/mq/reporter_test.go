package mq

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-executor-sol/internal/config"
)

func TestExecutionReportJSON(t *testing.T) {
	report := ExecutionReport{
		Timestamp:  1748800000,
		TokenMint:  "mintA",
		Action:     "buy",
		Venue:      "pumpswap",
		Phase:      "amm",
		SizeUsd:    100,
		AmountIn:   "500000000",
		Slices:     3,
		Signatures: []string{"sig1", "sig2", "sig3"},
	}
	data, err := json.Marshal(&report)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "mintA", decoded["token_mint"])
	assert.Equal(t, "500000000", decoded["amount_in"])
	assert.Equal(t, 3.0, decoded["slices"])
	// 未命中安全门时不应出现 skipped / error 字段
	assert.NotContains(t, decoded, "skipped")
	assert.NotContains(t, decoded, "error")

	report.Skipped = "kill_switch"
	data, err = json.Marshal(&report)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "kill_switch", decoded["skipped"])
}

func TestReporterDisabledIsNoop(t *testing.T) {
	reporter, err := NewReporter(&config.ReportConfig{Enabled: false})
	require.NoError(t, err)

	// 未启用时 Publish / Close 不应触达任何 broker
	reporter.Publish(&ExecutionReport{TokenMint: "mintA", Action: "buy"})
	reporter.Close()
}
