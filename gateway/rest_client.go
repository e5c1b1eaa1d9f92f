package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// RESTClient 通过券商 HTTP API 实现 VenueAPI；HTTPClient 可注入 httptest，
// 默认不发起真实网络调用。
type RESTClient struct {
	BaseURL        string
	APIKey         string
	SecretKey      string
	HTTPClient     *http.Client
	Limiter        RateLimiter
	DefaultTimeout time.Duration

	mu       sync.RWMutex
	cb       DealCallback
	stockAcc *Account
	futAcc   *Account
}

// NewDefaultHTTPClient 提供一个带超时的 http.Client。
func NewDefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func (c *RESTClient) wait() {
	if c.Limiter != nil {
		c.Limiter.Wait()
	}
}

func (c *RESTClient) get(ctx context.Context, path string, query url.Values, timeout time.Duration, out interface{}) error {
	if c == nil || c.HTTPClient == nil {
		return fmt.Errorf("http client not set")
	}
	if timeout <= 0 {
		timeout = c.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-PS-APIKEY", c.APIKey)
	req.Header.Set("X-PS-SECRET", c.SecretKey)

	c.wait()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListAccounts 枚举账户并缓存默认证券/期权账户（各取第一个）。
func (c *RESTClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := c.get(ctx, "/v1/accounts", nil, 0, &accounts); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	c.mu.Lock()
	for i := range accounts {
		acc := accounts[i]
		switch acc.Type {
		case AccountStock:
			if c.stockAcc == nil {
				c.stockAcc = &acc
			}
		case AccountFutOpt:
			if c.futAcc == nil {
				c.futAcc = &acc
			}
		}
	}
	c.mu.Unlock()
	return accounts, nil
}

// ListPositions 拉取指定账户的权威持仓快照。
func (c *RESTClient) ListPositions(ctx context.Context, account Account, timeout time.Duration) ([]PositionRecord, error) {
	q := url.Values{}
	q.Set("broker_id", account.BrokerID)
	q.Set("account_id", account.AccountID)
	q.Set("unit", "Common")
	var records []PositionRecord
	if err := c.get(ctx, "/v1/positions", q, timeout, &records); err != nil {
		return nil, fmt.Errorf("list positions %s: %w", account.Key(), err)
	}
	return records, nil
}

// ListTrades 拉取当日全部成交历史。
func (c *RESTClient) ListTrades(ctx context.Context) ([]TradeRecord, error) {
	var trades []TradeRecord
	if err := c.get(ctx, "/v1/trades", nil, 0, &trades); err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

// SetOrderCallback 注册成交回报回调，后注册覆盖前者。
func (c *RESTClient) SetOrderCallback(cb DealCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

// Dispatch 将一条成交回报送入已注册的回调；由 DealFeed 调用。
func (c *RESTClient) Dispatch(kind DealKind, ev DealEvent) {
	c.mu.RLock()
	cb := c.cb
	c.mu.RUnlock()
	if cb != nil {
		cb(kind, ev)
	}
}

func (c *RESTClient) StockAccount() (Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stockAcc == nil {
		return Account{}, false
	}
	return *c.stockAcc, true
}

func (c *RESTClient) FutOptAccount() (Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.futAcc == nil {
		return Account{}, false
	}
	return *c.futAcc, true
}
