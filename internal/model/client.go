package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/rest/httpc"
)

// Action 信号服务给出的动作
const (
	ActionBuy  = "buy"
	ActionHold = "hold"
	ActionExit = "exit"
)

// Decision 信号服务对单个资产的决策
type Decision struct {
	TokenMint string  `json:"token_mint"`
	Action    string  `json:"action"` // buy / hold / exit
	SizeUsd   float64 `json:"size_usd"`
	ZCaer     float64 `json:"z_caer,omitempty"`
	Caer      float64 `json:"caer,omitempty"`
}

// TradeTick 喂给信号服务的标准化成交事件
type TradeTick struct {
	Timestamp    int64   `json:"timestamp"`
	TokenMint    string  `json:"token_mint"`
	PriceUsd     float64 `json:"price_usd"`
	AmountTokens float64 `json:"amount_tokens"`
	IsBuy        bool    `json:"is_buy"`
}

// Client 信号服务 HTTP 客户端
type Client struct {
	baseUrl string
	timeout time.Duration
}

func NewClient(baseUrl string, timeoutMs int) *Client {
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{baseUrl: baseUrl, timeout: timeout}
}

type tickRequest struct {
	Trades []TradeTick `json:"trades"`
}

type decideRequest struct {
	TokenMints []string `json:"token_mints"`
}

type phaseRequest struct {
	TokenMint string `json:"token_mint"`
	Phase     string `json:"phase"`
}

// Tick 推送成交事件
func (c *Client) Tick(ctx context.Context, trades []TradeTick) error {
	return c.post(ctx, "/tick", tickRequest{Trades: trades}, nil)
}

// Decide 拉取指定资产列表的决策
func (c *Client) Decide(ctx context.Context, tokenMints []string) ([]Decision, error) {
	var out struct {
		Decisions []Decision `json:"decisions"`
	}
	if err := c.post(ctx, "/decide", decideRequest{TokenMints: tokenMints}, &out); err != nil {
		return nil, err
	}
	return out.Decisions, nil
}

// NotifyPhase 通知信号服务某资产的 phase 变化
func (c *Client) NotifyPhase(ctx context.Context, tokenMint, phase string) error {
	return c.post(ctx, "/phase", phaseRequest{TokenMint: tokenMint, Phase: phase}, nil)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := httpc.Do(ctx, http.MethodPost, c.baseUrl+path, body)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("请求 %s 状态码异常: %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", path, err)
	}
	return nil
}
