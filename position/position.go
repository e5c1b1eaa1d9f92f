package position

import "position-sync-go/gateway"

// StockKey 现货持仓的复合键；同一代码不同交割条件互不影响。
type StockKey struct {
	Code string
	Cond gateway.OrderCond
}

// StockPosition 现货持仓。YdQuantity 为昨日库存，载入后只有对账会改写；
// YdOffsetQty 记录当日反向成交已抵销的昨日库存，0 <= YdOffsetQty <= YdQuantity。
type StockPosition struct {
	Code        string
	Direction   gateway.Action
	Quantity    int
	YdQuantity  int
	YdOffsetQty int
	Cond        gateway.OrderCond
}

// Key 持仓在账本中的键。
func (p StockPosition) Key() StockKey { return StockKey{Code: p.Code, Cond: p.Cond} }

// FuturesPosition 期货持仓；逐日结算，没有昨日库存概念。
type FuturesPosition struct {
	Code      string
	Direction gateway.Action
	Quantity  int
}
