package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// dealMessage 对应推送通道的回报包装。
type dealMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type dealPayload struct {
	Code      string  `json:"code"`
	Action    string  `json:"action"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Cond      string  `json:"order_cond"`
	BrokerID  string  `json:"broker_id"`
	AccountID string  `json:"account_id"`
	TsMs      int64   `json:"ts"`
}

// ParseDealMessage 解析一条推送消息。非成交类事件返回错误，由上层跳过。
func ParseDealMessage(raw []byte) (DealKind, DealEvent, error) {
	var msg dealMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", DealEvent{}, fmt.Errorf("parse deal envelope: %w", err)
	}

	var kind DealKind
	switch DealKind(msg.Event) {
	case StockDeal:
		kind = StockDeal
	case FuturesDeal:
		kind = FuturesDeal
	default:
		return "", DealEvent{}, fmt.Errorf("unhandled event %q", msg.Event)
	}

	var p dealPayload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		return "", DealEvent{}, fmt.Errorf("parse deal payload: %w", err)
	}

	ev := DealEvent{
		Code:      p.Code,
		Action:    normalizeAction(p.Action),
		Quantity:  p.Quantity,
		Price:     p.Price,
		Cond:      OrderCond(p.Cond),
		BrokerID:  p.BrokerID,
		AccountID: p.AccountID,
	}
	if p.TsMs > 0 {
		ev.Ts = time.UnixMilli(p.TsMs)
	}
	return kind, ev, nil
}

// normalizeAction 兼容小写的方向字符串。
func normalizeAction(s string) Action {
	switch s {
	case "Buy", "buy":
		return ActionBuy
	case "Sell", "sell":
		return ActionSell
	}
	return Action(s)
}
