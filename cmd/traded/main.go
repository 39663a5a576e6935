package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/account"
	"main/internal/adapter"
	"main/internal/audit"
	"main/internal/bus"
	"main/internal/controller"
	"main/internal/cooldown"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/position"
	"main/internal/provider/retail"
	"main/internal/provider/terminal"
	"main/internal/risk"
	"main/internal/schema"
	"main/pkg/conn"
	"main/pkg/retry"
)

const _sessionClose = 16 * time.Hour // 16:00 exchange time

type policyState struct {
	v atomic.Value
}

type policyResult struct {
	Regime string
	Mode   schema.PolicyMode
	Reason string
}

func (s *policyState) Store(r policyResult) { s.v.Store(r) }

func (s *policyState) Load() policyResult {
	if r, ok := s.v.Load().(policyResult); ok {
		return r
	}
	return policyResult{Mode: schema.PolicyNormal}
}

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 5*time.Second, "Config reload interval (0=disable)")
	riskTick := flag.Duration("risk-tick", 15*time.Second, "Risk evaluation interval")
	equity := flag.String("equity", "1000000", "Account equity for exposure percentages")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("config load from %s failed, err: %+v", *configPath, err)
		os.Exit(1)
	}
	equityValue, err := decimal.NewFromString(*equity)
	if err != nil || !equityValue.IsPositive() {
		logs.Errorf("equity must be a positive number, got %s", *equity)
		os.Exit(1)
	}

	if loaded.Profiling.Enable {
		profiler, err := startProfiler(loaded.Profiling)
		if err != nil {
			logs.Errorf("profiler start failed, err: %+v", err)
			os.Exit(1)
		}
		defer func() { _ = profiler.Stop() }()
	}

	metrics := obs.NewMetrics()
	queue := bus.NewQueue(loaded.BusCapacity)
	defer queue.Close()

	accounts := account.NewContext()
	adapters := buildAdapters(loaded)
	for mode, a := range adapters {
		accounts.Register(mode, a)
	}

	cool := cooldown.NewManager(loaded.Cooldown)
	ctrl := controller.New(accounts, cool, retry.DefaultPolicy())
	positions := position.NewManager()
	ctrl.SubscribeFills(func(acct schema.AccountID, fill schema.Fill) {
		bucket := schema.Bucket("default")
		if o, ok := ctrl.Order(acct, fill.OrderID); ok && o.Bucket != "" {
			bucket = o.Bucket
		}
		signed := fill.Qty.Mul(decimal.NewFromInt(fill.Side.Sign()))
		if _, err := positions.ApplyFill(fill.Symbol, bucket, signed, fill.Price); err != nil {
			logs.Errorf("apply fill %s for %s failed, err: %+v", fill.ExecID, fill.Symbol, err)
		}
	})

	for _, a := range adapters {
		a.Subscribe(func(msg schema.Message) {
			metrics.ObserveMessage(msg.Kind)
			ctrl.OnMessage(msg)
			if err := queue.TryPublish(msg); err != nil {
				switch err {
				case bus.ErrQueueFull:
					metrics.IncQueueDrop()
				case bus.ErrQueueClosed:
					metrics.IncQueueClosed()
				}
			}
		})
	}

	var recorder *audit.Recorder
	if loaded.Audit.Enable {
		db, err := conn.Postgres{DSN: loaded.Audit.DSN}.Open(nil)
		if err != nil {
			logs.Errorf("audit database open failed, err: %+v", err)
			os.Exit(1)
		}
		defer func() { _ = conn.Close(db) }()
		recorder = audit.NewRecorder(db)
		if err := recorder.Migrate(); err != nil {
			logs.Errorf("audit migrate failed, err: %+v", err)
			os.Exit(1)
		}
	}
	go queue.Run(ctx, func(msg schema.Message) {
		if recorder != nil {
			recorder.OnMessage(msg)
		}
	})

	connectVenues(ctx, accounts, adapters)
	if err := accounts.SetMode(loaded.Accounts.InitialMode); err != nil {
		logs.Errorf("initial mode %s failed, err: %+v", loaded.Accounts.InitialMode, err)
		os.Exit(1)
	}
	recoverOpenOrders(ctx, accounts, ctrl)

	runtime := &runtimeConfig{}
	runtime.Update(loaded)
	if *configReload > 0 {
		go ops.Watch(ctx, *configPath, *configReload, runtime.Update)
	}

	policy := &policyState{}
	runRiskLoop(ctx, *riskTick, riskLoopDeps{
		runtime:   runtime,
		ctrl:      ctrl,
		positions: positions,
		equity:    equityValue,
		metrics:   metrics,
		recorder:  recorder,
		accounts:  accounts,
		policy:    policy,
		cycles:    obs.NewCycleGenerator(0),
	})

	snapshot := metrics.Snapshot()
	logs.Infof("shutdown: messages=%v modes=%v drops=%d cancel_failed=%d",
		snapshot.MessageCounts, snapshot.PolicyModeCounts, snapshot.QueueDrops, snapshot.CancelFailed)
}

type runtimeConfig struct {
	v atomic.Value
}

func (r *runtimeConfig) Load() ops.Loaded {
	return r.v.Load().(ops.Loaded)
}

func (r *runtimeConfig) Update(loaded ops.Loaded) {
	r.v.Store(loaded)
}

func buildAdapters(loaded ops.Loaded) map[schema.Mode]*adapter.ExecutionAdapter {
	adapters := map[schema.Mode]*adapter.ExecutionAdapter{
		schema.ModeTerminal: adapter.New(
			loaded.Accounts.Terminal,
			schema.ModeTerminal,
			terminal.New(loaded.Terminal, &http.Client{}),
		),
		schema.ModePaper: adapter.New(
			loaded.Accounts.Paper,
			schema.ModePaper,
			retail.New(loaded.RetailPaper),
		),
	}
	if loaded.Accounts.Live != "" {
		adapters[schema.ModeLive] = adapter.New(
			loaded.Accounts.Live,
			schema.ModeLive,
			retail.New(loaded.RetailLive),
		)
	}
	return adapters
}

func connectVenues(ctx context.Context, accounts *account.Context, adapters map[schema.Mode]*adapter.ExecutionAdapter) {
	for mode, a := range adapters {
		if err := a.Connect(ctx, a.Account()); err != nil {
			logs.Warnf("venue %s connect failed, err: %+v", mode, err)
			continue
		}
		accounts.SetConnected(mode, true)
		logs.Infof("venue %s connected as %s", mode, a.Account())
	}
}

// recoverOpenOrders tracks orders already resting on the active venue so a
// restart never loses sight of them.
func recoverOpenOrders(ctx context.Context, accounts *account.Context, ctrl *controller.Controller) {
	ad, err := accounts.Active()
	if err != nil {
		return
	}
	open, err := ad.OpenOrders(ctx, ad.Account())
	if err != nil {
		logs.Warnf("open order recovery for %s failed, err: %+v", ad.Account(), err)
		return
	}
	for _, o := range open {
		err := ctrl.Track(controller.TrackedOrder{
			OrderID:    o.OrderID,
			Symbol:     o.Symbol,
			Side:       o.Side,
			Type:       schema.OrderTypeLimit,
			Qty:        o.Qty,
			LimitPrice: o.LimitPrice,
			Account:    ad.Account(),
			Mode:       ad.Mode(),
			Bucket:     "default",
			Status:     o.Status,
		})
		if err != nil {
			logs.Warnf("track recovered order %s failed, err: %+v", o.OrderID, err)
		}
	}
	if len(open) > 0 {
		logs.Infof("recovered %d open orders for %s", len(open), ad.Account())
	}
}

type riskLoopDeps struct {
	runtime   *runtimeConfig
	ctrl      *controller.Controller
	positions *position.Manager
	equity    decimal.Decimal
	metrics   *obs.Metrics
	recorder  *audit.Recorder
	accounts  *account.Context
	policy    *policyState
	cycles    *obs.CycleGenerator
}

func runRiskLoop(ctx context.Context, tick time.Duration, deps riskLoopDeps) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sys.Shutdown():
			return
		case <-ticker.C:
			evaluateOnce(ctx, deps)
		}
	}
}

func evaluateOnce(ctx context.Context, deps riskLoopDeps) {
	loaded := deps.runtime.Load()
	ad, err := deps.accounts.Active()
	if err != nil {
		return
	}
	active := ad.Account()
	cycle := deps.cycles.Next()

	live := deps.ctrl.Orders(controller.Filter{Account: active, LiveOnly: true})
	inflight := make([]position.Inflight, 0, len(live))
	for _, o := range live {
		inflight = append(inflight, position.Inflight{
			Symbol: o.Symbol,
			Bucket: o.Bucket,
			Qty:    o.Qty.Sub(o.FilledQty),
			Price:  o.LimitPrice,
		})
	}

	start := time.Now()
	snapshot := deps.positions.Exposure(deps.equity, nil, inflight)
	snapshot.MinutesToClose = minutesToClose(time.Now())
	regime := currentRegime(loaded.Regimes, snapshot.MinutesToClose)
	table := risk.NewTable(loaded.Risk)
	mode, reason := table.Decide(regime, snapshot)
	deps.metrics.ObserveRiskEval(time.Since(start))
	deps.metrics.IncPolicyMode(mode)

	previous := deps.policy.Load()
	deps.policy.Store(policyResult{Regime: regime.Name, Mode: mode, Reason: reason})
	if mode != previous.Mode {
		logs.Infof("cycle %d policy %s -> %s (%s): %s", cycle, previous.Mode, mode, regime.Name, reason)
		if deps.recorder != nil {
			deps.recorder.RecordDecision(cycle, regime.Name, mode, reason, snapshot)
		}
	}

	if mode == schema.PolicyHardDerisk {
		report, err := deps.ctrl.CancelOpenOrders(ctx, active)
		if err != nil {
			deps.metrics.IncCancelFailed()
			logs.Errorf("hard derisk cancel for %s failed, err: %+v", active, err)
			return
		}
		if report.Matched > 0 {
			logs.Infof("hard derisk cancelled %d/%d open orders for %s", report.Cancelled, report.Matched, active)
		}
	}
}

// currentRegime picks the late-session regime inside the final trading hour
// and otherwise the first configured regime.
func currentRegime(regimes []risk.Regime, minutesToClose float64) risk.Regime {
	if len(regimes) == 0 {
		return risk.Regime{Name: "default", TolerancePct: 100}
	}
	if minutesToClose > 0 && minutesToClose <= 60 {
		for _, r := range regimes {
			if r.LateSession {
				return r
			}
		}
	}
	return regimes[0]
}

func minutesToClose(now time.Time) float64 {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return 0
	}
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	remaining := midnight.Add(_sessionClose).Sub(local)
	if remaining <= 0 {
		return 0
	}
	return remaining.Minutes()
}

func startProfiler(cfg ops.ProfilingConfig) (*pyroscope.Profiler, error) {
	name := cfg.AppName
	if name == "" {
		name = "traded"
	}
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}
