package gateway

import (
	"context"
	"time"
)

// Action 买卖方向。
type Action string

const (
	ActionBuy  Action = "Buy"
	ActionSell Action = "Sell"
)

// Opposite 返回相反方向。
func (a Action) Opposite() Action {
	if a == ActionBuy {
		return ActionSell
	}
	return ActionBuy
}

// OrderCond 现股/资买/券卖等交割条件；期货委托没有该字段。
type OrderCond string

const (
	CondCash          OrderCond = "Cash"
	CondMarginTrading OrderCond = "MarginTrading"
	CondShortSelling  OrderCond = "ShortSelling"
)

// AccountType 区分证券账户与期权账户。
type AccountType string

const (
	AccountStock  AccountType = "S"
	AccountFutOpt AccountType = "F"
)

// Account 券商账户标识。
type Account struct {
	BrokerID  string      `json:"broker_id"`
	AccountID string      `json:"account_id"`
	Type      AccountType `json:"account_type"`
}

// Key 生成账户分区键（broker_id + account_id 拼接）。
func (a Account) Key() string { return a.BrokerID + a.AccountID }

// PositionRecord 权威端返回的持仓快照行。期货行 Cond 为空、YdQuantity 恒为 0。
type PositionRecord struct {
	Code       string    `json:"code"`
	Direction  Action    `json:"direction"`
	Quantity   int       `json:"quantity"`
	YdQuantity int       `json:"yd_quantity"`
	Cond       OrderCond `json:"cond"`
}

// TradeStatus 委托状态，仅 Filled 参与昨日抵销推导。
type TradeStatus string

const StatusFilled TradeStatus = "Filled"

// TradeRecord 当日成交历史中的一笔。期货成交没有 Cond。
type TradeRecord struct {
	BrokerID  string      `json:"broker_id"`
	AccountID string      `json:"account_id"`
	Code      string      `json:"code"`
	Action    Action      `json:"action"`
	Cond      OrderCond   `json:"cond"`
	Status    TradeStatus `json:"status"`
	Quantity  int         `json:"quantity"`
}

// AccountKey 成交记录所属账户的分区键。
func (t TradeRecord) AccountKey() string { return t.BrokerID + t.AccountID }

// DealKind 回报事件类型。
type DealKind string

const (
	StockDeal   DealKind = "StockDeal"
	FuturesDeal DealKind = "FuturesDeal"
)

// DealEvent 成交回报。Price 仅供记录，不参与任何持仓计算。
type DealEvent struct {
	Code      string    `json:"code"`
	Action    Action    `json:"action"`
	Quantity  int       `json:"quantity"`
	Price     float64   `json:"price"`
	Cond      OrderCond `json:"order_cond"`
	BrokerID  string    `json:"broker_id"`
	AccountID string    `json:"account_id"`
	Ts        time.Time `json:"-"`
}

// AccountKey 回报所属账户的分区键。
func (d DealEvent) AccountKey() string { return d.BrokerID + d.AccountID }

// DealCallback 成交回报的单槽回调。
type DealCallback func(kind DealKind, ev DealEvent)

// VenueAPI 交易所/券商侧能力抽象（权威数据来源）。
type VenueAPI interface {
	// ListAccounts 枚举全部账户。
	ListAccounts(ctx context.Context) ([]Account, error)
	// ListPositions 拉取权威持仓快照；timeout<=0 时由实现采用默认超时。
	ListPositions(ctx context.Context, account Account, timeout time.Duration) ([]PositionRecord, error)
	// ListTrades 拉取当日成交历史。
	ListTrades(ctx context.Context) ([]TradeRecord, error)
	// SetOrderCallback 注册成交回报回调（单槽，后注册者覆盖前者）。
	SetOrderCallback(cb DealCallback)
	// StockAccount 默认证券账户。
	StockAccount() (Account, bool)
	// FutOptAccount 默认期权账户。
	FutOptAccount() (Account, bool)
}
