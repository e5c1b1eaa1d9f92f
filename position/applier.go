package position

import (
	"errors"

	"go.uber.org/zap"

	"position-sync-go/gateway"
	"position-sync-go/logs"
	"position-sync-go/metrics"
)

// ErrMalformedDeal 回报缺少必要字段。
var ErrMalformedDeal = errors.New("malformed deal event")

// Applier 把一条成交回报转为账本变更。回报由外部流保证恰好送达一次，
// 重复送达会重复计数（已知限制，不做去重）。
type Applier struct {
	Book    *Book
	Tracker *Tracker
	Logger  *logs.Logger
}

// Apply 落账一条回报并刷新账户的不稳定窗口。
// 缺 code/action/quantity/账户 的回报整条丢弃，只记警告。
func (a *Applier) Apply(kind gateway.DealKind, ev gateway.DealEvent) error {
	if ev.Code == "" || ev.Action == "" || ev.Quantity <= 0 ||
		ev.BrokerID == "" || ev.AccountID == "" {
		metrics.DealsRejected.Inc()
		a.Logger.Warn("deal missing required fields",
			zap.String("code", ev.Code),
			zap.String("action", string(ev.Action)),
			zap.Int("quantity", ev.Quantity),
			zap.String("account", ev.AccountKey()))
		return ErrMalformedDeal
	}

	acct := ev.AccountKey()
	switch kind {
	case gateway.StockDeal:
		a.applyStock(acct, ev)
	case gateway.FuturesDeal:
		a.applyFutures(acct, ev)
	default:
		return nil
	}

	a.Tracker.Touch(acct, ev.Ts)
	metrics.DealsApplied.WithLabelValues(string(kind)).Inc()
	return nil
}

func (a *Applier) applyStock(acct string, ev gateway.DealEvent) {
	cond := ev.Cond
	if cond == "" {
		cond = gateway.CondCash
	}
	key := StockKey{Code: ev.Code, Cond: cond}

	a.Book.WithStock(acct, func(m map[StockKey]*StockPosition) {
		p := m[key]
		if p == nil {
			m[key] = &StockPosition{
				Code:      ev.Code,
				Direction: ev.Action,
				Quantity:  ev.Quantity,
				Cond:      cond,
			}
			a.Logger.Info("position opened",
				zap.String("code", ev.Code), zap.String("cond", string(cond)),
				zap.String("action", string(ev.Action)), zap.Int("quantity", ev.Quantity),
				zap.Float64("price", ev.Price))
			return
		}

		if p.Direction == ev.Action {
			p.Quantity += ev.Quantity
		} else {
			p.Quantity -= ev.Quantity
			// 反向成交先抵销未配对的昨日库存
			if p.YdQuantity > 0 {
				p.YdOffsetQty += ev.Quantity
				if p.YdOffsetQty > p.YdQuantity {
					p.YdOffsetQty = p.YdQuantity
				}
			}
		}

		// 交割条件变化（如当冲改约）时换键保留累计状态
		if p.Cond != cond {
			delete(m, p.Key())
			p.Cond = cond
		}

		if p.Quantity <= 0 {
			delete(m, key)
			a.Logger.Info("position closed",
				zap.String("code", ev.Code), zap.String("cond", string(cond)),
				zap.Int("quantity", ev.Quantity), zap.Float64("price", ev.Price))
			return
		}
		m[key] = p
		a.Logger.Info("position updated",
			zap.String("code", ev.Code), zap.String("cond", string(cond)),
			zap.String("action", string(ev.Action)), zap.Int("remaining", p.Quantity))
	})
}

func (a *Applier) applyFutures(acct string, ev gateway.DealEvent) {
	a.Book.WithFutures(acct, func(m map[string]*FuturesPosition) {
		p := m[ev.Code]
		if p == nil {
			m[ev.Code] = &FuturesPosition{
				Code:      ev.Code,
				Direction: ev.Action,
				Quantity:  ev.Quantity,
			}
			a.Logger.Info("futures position opened",
				zap.String("code", ev.Code), zap.String("action", string(ev.Action)),
				zap.Int("quantity", ev.Quantity))
			return
		}

		if p.Direction == ev.Action {
			p.Quantity += ev.Quantity
		} else {
			p.Quantity -= ev.Quantity
		}
		if p.Quantity <= 0 {
			delete(m, ev.Code)
			a.Logger.Info("futures position closed", zap.String("code", ev.Code))
			return
		}
		a.Logger.Info("futures position updated",
			zap.String("code", ev.Code), zap.Int("remaining", p.Quantity))
	})
}
