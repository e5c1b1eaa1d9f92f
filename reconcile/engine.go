package reconcile

import (
	"go.uber.org/zap"

	"position-sync-go/gateway"
	"position-sync-go/logs"
	"position-sync-go/metrics"
	"position-sync-go/position"
)

// TradeSums 当日已成交数量按方向的汇总。
type TradeSums struct {
	Buy  int
	Sell int
}

// opposite 返回与持仓方向相反的一侧成交量。
func (s TradeSums) opposite(dir gateway.Action) int {
	if dir == gateway.ActionBuy {
		return s.Sell
	}
	return s.Buy
}

// SumFilledStock 汇总某账户当日 Filled 现货成交，按 (code, cond) 分方向求和。
// 期货成交以 Cond 为空排除；缺字段的记录逐条跳过，不影响整批。
func SumFilledStock(trades []gateway.TradeRecord, acct string) map[position.StockKey]TradeSums {
	sums := make(map[position.StockKey]TradeSums)
	for _, t := range trades {
		if t.Status != gateway.StatusFilled || t.Cond == "" {
			continue
		}
		if t.Code == "" || t.Quantity <= 0 ||
			(t.Action != gateway.ActionBuy && t.Action != gateway.ActionSell) {
			continue
		}
		if t.AccountKey() != acct {
			continue
		}
		key := position.StockKey{Code: t.Code, Cond: t.Cond}
		s := sums[key]
		if t.Action == gateway.ActionBuy {
			s.Buy += t.Quantity
		} else {
			s.Sell += t.Quantity
		}
		sums[key] = s
	}
	return sums
}

// OffsetFor 由当日成交汇总与昨日库存推导已抵销数量：
// 反向成交先配对昨日库存，封顶于昨日库存本身。
func OffsetFor(sums TradeSums, dir gateway.Action, ydQty int) int {
	if ydQty <= 0 {
		return 0
	}
	opp := sums.opposite(dir)
	if opp > ydQty {
		return ydQty
	}
	return opp
}

// Result 一次现货对账的修正计数。
type Result struct {
	Mismatched    int
	MissingLocal  int
	MissingRemote int
}

// Engine 对账引擎：以权威持仓为准修正本地账本。
type Engine struct {
	Book   *position.Book
	Logger *logs.Logger
}

// ReconcileStock 对某账户做三向差分：数量不一致以权威为准并重置昨日字段，
// 仅权威存在的插入，仅本地存在的删除。差分与合并在账本锁内一次完成。
func (e *Engine) ReconcileStock(acct string, remote []gateway.PositionRecord, trades []gateway.TradeRecord) Result {
	sums := SumFilledStock(trades, acct)

	remoteByKey := make(map[position.StockKey]gateway.PositionRecord, len(remote))
	for _, r := range remote {
		if r.Code == "" {
			continue
		}
		cond := r.Cond
		if cond == "" {
			cond = gateway.CondCash
		}
		remoteByKey[position.StockKey{Code: r.Code, Cond: cond}] = r
	}

	var res Result
	e.Book.WithStock(acct, func(m map[position.StockKey]*position.StockPosition) {
		for key, r := range remoteByKey {
			local, ok := m[key]
			if !ok {
				if r.Quantity <= 0 {
					continue
				}
				m[key] = &position.StockPosition{
					Code:        r.Code,
					Direction:   r.Direction,
					Quantity:    r.Quantity,
					YdQuantity:  r.YdQuantity,
					YdOffsetQty: OffsetFor(sums[key], r.Direction, r.YdQuantity),
					Cond:        key.Cond,
				}
				res.MissingLocal++
				continue
			}
			if local.Quantity == r.Quantity {
				continue
			}
			// 数量不符：权威胜出，昨日库存与抵销量一并重置
			if r.Quantity <= 0 {
				delete(m, key)
			} else {
				local.Direction = r.Direction
				local.Quantity = r.Quantity
				local.YdQuantity = r.YdQuantity
				local.YdOffsetQty = OffsetFor(sums[key], r.Direction, r.YdQuantity)
			}
			res.Mismatched++
		}

		for key := range m {
			if _, ok := remoteByKey[key]; !ok {
				delete(m, key)
				res.MissingRemote++
			}
		}
	})

	metrics.ReconcileRuns.Inc()
	metrics.ReconcileCorrections.WithLabelValues("mismatched").Add(float64(res.Mismatched))
	metrics.ReconcileCorrections.WithLabelValues("missing_local").Add(float64(res.MissingLocal))
	metrics.ReconcileCorrections.WithLabelValues("missing_remote").Add(float64(res.MissingRemote))

	if res.Mismatched+res.MissingLocal+res.MissingRemote > 0 {
		e.Logger.Info("stock book corrected",
			zap.String("account", acct),
			zap.Int("mismatched", res.Mismatched),
			zap.Int("missing_local", res.MissingLocal),
			zap.Int("missing_remote", res.MissingRemote))
	}
	return res
}

// ReconcileFutures 期货不携带本地推导状态，直接以权威清单整体替换。
func (e *Engine) ReconcileFutures(acct string, remote []gateway.PositionRecord) {
	e.Book.ReplaceFutures(acct, remote)
	metrics.ReconcileRuns.Inc()
}
