package position

import (
	"sync"

	"position-sync-go/gateway"
)

// Book 维护各账户的持仓账本。现货与期货是两张互不相交的表，
// 账户键为 broker_id+account_id 拼接（gateway.Account.Key）。
// 回报线程、读调用方与后台对账并发访问同一账户时由内部锁串行化；
// 所有 List* 返回调用时刻的拷贝快照，不是活动视图。
type Book struct {
	mu      sync.RWMutex
	stock   map[string]map[StockKey]*StockPosition
	futures map[string]map[string]*FuturesPosition
}

func NewBook() *Book {
	return &Book{
		stock:   make(map[string]map[StockKey]*StockPosition),
		futures: make(map[string]map[string]*FuturesPosition),
	}
}

// UpsertStock 写入一条现货持仓；数量为 0 的行不落账（账本不保留零行）。
func (b *Book) UpsertStock(acct string, p StockPosition) {
	if p.Quantity <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.stock[acct]
	if m == nil {
		m = make(map[StockKey]*StockPosition)
		b.stock[acct] = m
	}
	cp := p
	m[p.Key()] = &cp
}

// UpsertFutures 写入一条期货持仓，零数量同样跳过。
func (b *Book) UpsertFutures(acct string, p FuturesPosition) {
	if p.Quantity <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.futures[acct]
	if m == nil {
		m = make(map[string]*FuturesPosition)
		b.futures[acct] = m
	}
	cp := p
	m[p.Code] = &cp
}

// Stock 按键查询，返回拷贝。
func (b *Book) Stock(acct string, key StockKey) (StockPosition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.stock[acct][key]
	if !ok {
		return StockPosition{}, false
	}
	return *p, true
}

// Futures 按代码查询，返回拷贝。
func (b *Book) Futures(acct string, code string) (FuturesPosition, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.futures[acct][code]
	if !ok {
		return FuturesPosition{}, false
	}
	return *p, true
}

// ListStock 返回账户现货持仓快照。
func (b *Book) ListStock(acct string) []StockPosition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.stock[acct]
	out := make([]StockPosition, 0, len(m))
	for _, p := range m {
		out = append(out, *p)
	}
	return out
}

// ListFutures 返回账户期货持仓快照。
func (b *Book) ListFutures(acct string) []FuturesPosition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.futures[acct]
	out := make([]FuturesPosition, 0, len(m))
	for _, p := range m {
		out = append(out, *p)
	}
	return out
}

// WithStock 在写锁内对账户现货表执行 fn，供回报落账与对账的
// 读改写路径使用；fn 内不得再调用 Book 的其他方法。
func (b *Book) WithStock(acct string, fn func(m map[StockKey]*StockPosition)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.stock[acct]
	if m == nil {
		m = make(map[StockKey]*StockPosition)
		b.stock[acct] = m
	}
	fn(m)
}

// WithFutures 同 WithStock，作用于期货表。
func (b *Book) WithFutures(acct string, fn func(m map[string]*FuturesPosition)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.futures[acct]
	if m == nil {
		m = make(map[string]*FuturesPosition)
		b.futures[acct] = m
	}
	fn(m)
}

// ReplaceFutures 以权威清单整体替换账户期货表（期货对账不做差分）。
func (b *Book) ReplaceFutures(acct string, records []gateway.PositionRecord) {
	next := make(map[string]*FuturesPosition, len(records))
	for _, r := range records {
		if r.Code == "" || r.Quantity <= 0 {
			continue
		}
		next[r.Code] = &FuturesPosition{
			Code:      r.Code,
			Direction: r.Direction,
			Quantity:  r.Quantity,
		}
	}
	b.mu.Lock()
	b.futures[acct] = next
	b.mu.Unlock()
}
