// Package syncer 对外提供持仓同步引擎：启动时从权威端装载账本，
// 之后由成交回报增量驱动；读路径按账户新鲜度决定走本地快照
// 还是同步权威查询并在后台自愈差异（smart sync）。
package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"position-sync-go/gateway"
	"position-sync-go/logs"
	"position-sync-go/metrics"
	"position-sync-go/position"
	"position-sync-go/reconcile"
)

// Config 引擎配置。
type Config struct {
	// SyncThreshold 不稳定窗口；<=0 时关闭 smart sync，一律走本地。
	SyncThreshold time.Duration
	// DefaultTimeout 权威查询默认超时。
	DefaultTimeout time.Duration
	// Workers/QueueSize 后台对账池规模。
	Workers   int
	QueueSize int
}

// Result 读请求结果；按解析出的账户类型恰好填充其中一侧。
type Result struct {
	Account *gateway.Account
	Stock   []position.StockPosition
	Futures []position.FuturesPosition
}

// PositionSync 持仓同步引擎。
type PositionSync struct {
	api     gateway.VenueAPI
	book    *position.Book
	tracker *position.Tracker
	applier *position.Applier
	engine  *reconcile.Engine
	pool    *reconcile.Pool
	logger  *logs.Logger

	defaultTimeout time.Duration

	mu            sync.RWMutex
	syncThreshold time.Duration
	callback      gateway.DealCallback
}

// New 构建引擎：装载全部账户持仓、从当日成交推导昨日抵销量、
// 注册回报回调。单个账户装载失败只跳过该账户，不阻断启动。
func New(ctx context.Context, api gateway.VenueAPI, cfg Config, logger *logs.Logger) (*PositionSync, error) {
	return newWithClock(ctx, api, cfg, logger, nil)
}

// newWithClock 测试用入口，允许注入时钟。
func newWithClock(ctx context.Context, api gateway.VenueAPI, cfg Config, logger *logs.Logger, clock position.Clock) (*PositionSync, error) {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Second
	}
	book := position.NewBook()
	var tracker *position.Tracker
	if clock != nil {
		tracker = position.NewTrackerWithClock(clock)
	} else {
		tracker = position.NewTracker()
	}

	s := &PositionSync{
		api:            api,
		book:           book,
		tracker:        tracker,
		applier:        &position.Applier{Book: book, Tracker: tracker, Logger: logger},
		engine:         &reconcile.Engine{Book: book, Logger: logger},
		pool:           reconcile.NewPool(cfg.Workers, cfg.QueueSize, logger),
		logger:         logger,
		defaultTimeout: cfg.DefaultTimeout,
		syncThreshold:  cfg.SyncThreshold,
	}

	s.initialize(ctx)
	api.SetOrderCallback(s.OnOrderDeal)
	return s, nil
}

// initialize 从权威端装载所有账户的持仓与当日成交。
func (s *PositionSync) initialize(ctx context.Context) {
	accounts, err := s.api.ListAccounts(ctx)
	if err != nil {
		s.logger.Warn("list accounts failed, starting with empty book", zap.Error(err))
		return
	}

	trades, err := s.api.ListTrades(ctx)
	if err != nil {
		// 无成交历史时昨日抵销量从 0 起算
		s.logger.Warn("list trades failed, yd offsets start at zero", zap.Error(err))
		trades = nil
	}

	for _, acc := range accounts {
		records, err := s.api.ListPositions(ctx, acc, s.defaultTimeout)
		if err != nil {
			s.logger.Warn("load positions failed, account skipped",
				zap.String("account", acc.Key()), zap.Error(err))
			continue
		}
		s.loadAccount(acc, records, trades)
		s.logger.Info("positions initialized",
			zap.String("account", acc.Key()), zap.Int("records", len(records)))
	}
}

func (s *PositionSync) loadAccount(acc gateway.Account, records []gateway.PositionRecord, trades []gateway.TradeRecord) {
	acct := acc.Key()
	switch acc.Type {
	case gateway.AccountStock:
		sums := reconcile.SumFilledStock(trades, acct)
		for _, r := range records {
			if r.Quantity <= 0 {
				continue
			}
			cond := r.Cond
			if cond == "" {
				cond = gateway.CondCash
			}
			key := position.StockKey{Code: r.Code, Cond: cond}
			s.book.UpsertStock(acct, position.StockPosition{
				Code:        r.Code,
				Direction:   r.Direction,
				Quantity:    r.Quantity,
				YdQuantity:  r.YdQuantity,
				YdOffsetQty: reconcile.OffsetFor(sums[key], r.Direction, r.YdQuantity),
				Cond:        cond,
			})
		}
	case gateway.AccountFutOpt:
		for _, r := range records {
			s.book.UpsertFutures(acct, position.FuturesPosition{
				Code:      r.Code,
				Direction: r.Direction,
				Quantity:  r.Quantity,
			})
		}
	}
}

// OnOrderDeal 成交回报写路径；无论 smart sync 是否开启都会落账。
// 二级观察者在落账之后调用，异常只记日志，绝不回滚已完成的账本变更。
func (s *PositionSync) OnOrderDeal(kind gateway.DealKind, ev gateway.DealEvent) {
	if err := s.applier.Apply(kind, ev); err != nil {
		return
	}

	s.mu.RLock()
	cb := s.callback
	s.mu.RUnlock()
	if cb == nil {
		return
	}
	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Warn("observer callback panicked",
					zap.Any("panic", r), zap.String("code", ev.Code))
			}
		}()
		cb(kind, ev)
	}()
}

// RegisterCallback 注册二级观察者，每笔落账后调用。
func (s *PositionSync) RegisterCallback(cb gateway.DealCallback) {
	s.mu.Lock()
	s.callback = cb
	s.mu.Unlock()
}

// SetSyncThreshold 运行时调整不稳定窗口（配置热更新用）。
func (s *PositionSync) SetSyncThreshold(d time.Duration) {
	s.mu.Lock()
	s.syncThreshold = d
	s.mu.Unlock()
}

func (s *PositionSync) threshold() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncThreshold
}

// QueryPositions 读请求入口。account 为 nil 时按默认账户解析：
// 优先持有现货的默认证券账户，否则默认期权账户；都没有则返回空并
// 记警告。解析到账户后按 smart sync 决策：关闭或处于不稳定窗口
// 直接回本地快照；否则同步查权威并把对账任务交给后台池，权威查询
// 失败时退回本地快照，调用方永远拿得到结果。
func (s *PositionSync) QueryPositions(ctx context.Context, account *gateway.Account, timeout time.Duration) Result {
	acc, ok := s.resolveAccount(account)
	if !ok {
		s.logger.Warn("no account resolvable, returning empty result")
		return Result{}
	}

	th := s.threshold()
	if th <= 0 || s.tracker.Unstable(acc.Key(), th) {
		metrics.LocalSnapshots.Inc()
		return s.snapshot(acc)
	}

	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	metrics.AuthoritativeQueries.Inc()
	records, err := s.api.ListPositions(ctx, acc, timeout)
	if err != nil {
		s.logger.Warn("authoritative query failed, serving local snapshot",
			zap.String("account", acc.Key()), zap.Error(err))
		metrics.LocalSnapshots.Inc()
		return s.snapshot(acc)
	}

	s.submitReconcile(acc, records)
	return s.fromRemote(acc, records)
}

// resolveAccount 解析读请求作用的账户。
func (s *PositionSync) resolveAccount(account *gateway.Account) (gateway.Account, bool) {
	if account != nil {
		return *account, true
	}
	if acc, ok := s.api.StockAccount(); ok {
		if len(s.book.ListStock(acc.Key())) > 0 {
			return acc, true
		}
	}
	if acc, ok := s.api.FutOptAccount(); ok {
		return acc, true
	}
	return gateway.Account{}, false
}

// snapshot 返回本地账本当前快照。
func (s *PositionSync) snapshot(acc gateway.Account) Result {
	res := Result{Account: &acc}
	switch acc.Type {
	case gateway.AccountStock:
		res.Stock = s.book.ListStock(acc.Key())
	case gateway.AccountFutOpt:
		res.Futures = s.book.ListFutures(acc.Key())
	}
	return res
}

// fromRemote 把权威结果转成返回值；昨日抵销量沿用本地已知值，
// 精确值由后台对账重算。
func (s *PositionSync) fromRemote(acc gateway.Account, records []gateway.PositionRecord) Result {
	res := Result{Account: &acc}
	acct := acc.Key()
	switch acc.Type {
	case gateway.AccountStock:
		for _, r := range records {
			if r.Quantity <= 0 {
				continue
			}
			cond := r.Cond
			if cond == "" {
				cond = gateway.CondCash
			}
			p := position.StockPosition{
				Code:       r.Code,
				Direction:  r.Direction,
				Quantity:   r.Quantity,
				YdQuantity: r.YdQuantity,
				Cond:       cond,
			}
			if local, ok := s.book.Stock(acct, position.StockKey{Code: r.Code, Cond: cond}); ok {
				p.YdOffsetQty = local.YdOffsetQty
			}
			res.Stock = append(res.Stock, p)
		}
	case gateway.AccountFutOpt:
		for _, r := range records {
			if r.Quantity <= 0 {
				continue
			}
			res.Futures = append(res.Futures, position.FuturesPosition{
				Code:      r.Code,
				Direction: r.Direction,
				Quantity:  r.Quantity,
			})
		}
	}
	return res
}

// submitReconcile 用刚拿到的权威结果提交一次后台对账。
func (s *PositionSync) submitReconcile(acc gateway.Account, records []gateway.PositionRecord) {
	acct := acc.Key()
	accType := acc.Type
	s.pool.Submit(func() {
		switch accType {
		case gateway.AccountStock:
			trades, err := s.api.ListTrades(context.Background())
			if err != nil {
				s.logger.Warn("list trades failed during reconcile",
					zap.String("account", acct), zap.Error(err))
				trades = nil
			}
			s.engine.ReconcileStock(acct, records, trades)
		case gateway.AccountFutOpt:
			s.engine.ReconcileFutures(acct, records)
		}
	})
}

// Drain 等待所有已提交的后台对账完成（测试与关停用）。
func (s *PositionSync) Drain() {
	s.pool.Drain()
}

// Close 排空并停止后台池。
func (s *PositionSync) Close() {
	s.pool.Close()
}

// Book 暴露底层账本只读入口（快照语义）。
func (s *PositionSync) Book() *position.Book {
	return s.book
}
