package position

import (
	"errors"
	"testing"
	"time"

	"position-sync-go/gateway"
	"position-sync-go/logs"
)

func newTestApplier() (*Applier, *Book, *Tracker) {
	b := NewBook()
	tr := NewTracker()
	return &Applier{Book: b, Tracker: tr, Logger: logs.Nop()}, b, tr
}

func stockDeal(acct, code string, action gateway.Action, qty int, cond gateway.OrderCond) gateway.DealEvent {
	return gateway.DealEvent{
		Code:      code,
		Action:    action,
		Quantity:  qty,
		Price:     500,
		Cond:      cond,
		BrokerID:  "9100",
		AccountID: acct,
	}
}

func TestApplyBuyThenFullSell(t *testing.T) {
	a, b, _ := newTestApplier()
	acct := "91001234567"

	if err := a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionBuy, 10, gateway.CondCash)); err != nil {
		t.Fatalf("apply buy: %v", err)
	}
	p, ok := b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondCash})
	if !ok || p.Quantity != 10 || p.Direction != gateway.ActionBuy {
		t.Fatalf("position after buy: %+v ok=%v", p, ok)
	}

	if err := a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionSell, 10, gateway.CondCash)); err != nil {
		t.Fatalf("apply sell: %v", err)
	}
	if _, ok := b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondCash}); ok {
		t.Fatal("fully closed position still present")
	}
}

func TestApplyPartialClose(t *testing.T) {
	a, b, _ := newTestApplier()
	acct := "91001234567"

	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionBuy, 10, gateway.CondCash))
	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionSell, 7, gateway.CondCash))

	p, ok := b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondCash})
	if !ok || p.Quantity != 3 {
		t.Fatalf("expected quantity 3 after partial close, got %+v ok=%v", p, ok)
	}
}

func TestApplySignedSumZeroLeavesNoRow(t *testing.T) {
	a, b, _ := newTestApplier()
	acct := "91001234567"
	seq := []struct {
		action gateway.Action
		qty    int
	}{
		{gateway.ActionBuy, 4}, {gateway.ActionBuy, 6},
		{gateway.ActionSell, 3}, {gateway.ActionSell, 7},
	}
	for _, d := range seq {
		_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", d.action, d.qty, gateway.CondCash))
	}
	if got := b.ListStock(acct); len(got) != 0 {
		t.Fatalf("signed sum zero but row survives: %+v", got)
	}
}

func TestApplyCondIsolation(t *testing.T) {
	a, b, _ := newTestApplier()
	acct := "91001234567"

	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionBuy, 10, gateway.CondCash))
	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionBuy, 5, gateway.CondMarginTrading))

	if got := b.ListStock(acct); len(got) != 2 {
		t.Fatalf("expected two independent positions, got %+v", got)
	}
	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionSell, 5, gateway.CondMarginTrading))
	cash, _ := b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondCash})
	if cash.Quantity != 10 {
		t.Fatalf("cash position touched by margin close: %+v", cash)
	}
}

func TestApplyAccountIsolation(t *testing.T) {
	a, b, _ := newTestApplier()

	_ = a.Apply(gateway.StockDeal, stockDeal("ACC1", "2330", gateway.ActionBuy, 10, gateway.CondCash))
	_ = a.Apply(gateway.StockDeal, stockDeal("ACC2", "2330", gateway.ActionBuy, 5, gateway.CondCash))

	if got := b.ListStock("9100ACC1"); len(got) != 1 || got[0].Quantity != 10 {
		t.Fatalf("acc1 wrong: %+v", got)
	}
	if got := b.ListStock("9100ACC2"); len(got) != 1 || got[0].Quantity != 5 {
		t.Fatalf("acc2 wrong: %+v", got)
	}
}

func TestApplyDefaultsCondToCash(t *testing.T) {
	a, b, _ := newTestApplier()
	acct := "91001234567"

	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionBuy, 2, ""))
	if _, ok := b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondCash}); !ok {
		t.Fatal("missing cond should default to Cash")
	}
}

func TestApplyOffsetsYesterdayCarry(t *testing.T) {
	a, b, _ := newTestApplier()
	acct := "91001234567"
	b.UpsertStock(acct, StockPosition{
		Code: "2330", Direction: gateway.ActionBuy, Quantity: 10,
		YdQuantity: 10, Cond: gateway.CondMarginTrading,
	})

	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionSell, 3, gateway.CondMarginTrading))
	p, _ := b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondMarginTrading})
	if p.Quantity != 7 || p.YdOffsetQty != 3 {
		t.Fatalf("expected qty 7 offset 3, got %+v", p)
	}

	// 同方向加仓不动抵销量
	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionBuy, 5, gateway.CondMarginTrading))
	p, _ = b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondMarginTrading})
	if p.Quantity != 12 || p.YdOffsetQty != 3 {
		t.Fatalf("same-direction add changed offset: %+v", p)
	}

	// 抵销量封顶于昨日库存
	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionSell, 9, gateway.CondMarginTrading))
	p, _ = b.Stock(acct, StockKey{Code: "2330", Cond: gateway.CondMarginTrading})
	if p.Quantity != 3 || p.YdOffsetQty != 10 {
		t.Fatalf("expected qty 3 offset capped at 10, got %+v", p)
	}
}

func TestApplyMalformedDealDropped(t *testing.T) {
	a, b, tr := newTestApplier()

	bad := gateway.DealEvent{Action: gateway.ActionBuy, Quantity: 1, Price: 100, BrokerID: "9100", AccountID: "X"}
	if err := a.Apply(gateway.StockDeal, bad); !errors.Is(err, ErrMalformedDeal) {
		t.Fatalf("expected ErrMalformedDeal, got %v", err)
	}
	if got := b.ListStock("9100X"); len(got) != 0 {
		t.Fatalf("malformed deal mutated book: %+v", got)
	}
	if tr.Unstable("9100X", time.Hour) {
		t.Fatal("malformed deal refreshed staleness window")
	}
}

func TestApplyFuturesLifecycle(t *testing.T) {
	a, b, _ := newTestApplier()
	acct := "9100F01"
	deal := func(action gateway.Action, qty int) gateway.DealEvent {
		return gateway.DealEvent{
			Code: "TXFJ4", Action: action, Quantity: qty, Price: 17000,
			BrokerID: "9100", AccountID: "F01",
		}
	}

	_ = a.Apply(gateway.FuturesDeal, deal(gateway.ActionBuy, 2))
	_ = a.Apply(gateway.FuturesDeal, deal(gateway.ActionBuy, 1))
	p, ok := b.Futures(acct, "TXFJ4")
	if !ok || p.Quantity != 3 || p.Direction != gateway.ActionBuy {
		t.Fatalf("futures position after adds: %+v ok=%v", p, ok)
	}

	_ = a.Apply(gateway.FuturesDeal, deal(gateway.ActionSell, 3))
	if _, ok := b.Futures(acct, "TXFJ4"); ok {
		t.Fatal("fully closed futures position still present")
	}
}

func TestApplyRefreshesTracker(t *testing.T) {
	a, _, tr := newTestApplier()

	_ = a.Apply(gateway.StockDeal, stockDeal("1234567", "2330", gateway.ActionBuy, 1, gateway.CondCash))
	if !tr.Unstable("91001234567", time.Hour) {
		t.Fatal("applied deal did not refresh staleness window")
	}
}
