package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

// ErrClosed is returned by Start after KillAll.
var ErrClosed = errors.New("dispatcher is closed")

// Options configures a Dispatcher.
type Options struct {
	Plugins   *PluginSet
	Callbacks abc.AccountCallbacks
	// Folder holds one subfolder of engine-private data per wallet.
	Folder platform.Folder
	// Settings are passed to every engine as optional settings.
	Settings    map[string]any
	KillTimeout time.Duration
	Log         *zap.Logger
}

// Dispatcher owns the running engines of one account.
type Dispatcher struct {
	plugins     *PluginSet
	callbacks   abc.AccountCallbacks
	folder      platform.Folder
	settings    map[string]any
	killTimeout time.Duration
	log         *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handles map[string]*handle
	// pending wallets wait for their plugin to load.
	pending map[string]abc.WalletInfo
	closed  bool
}

// handle is one wallet's engine. ready is closed once the start attempt
// has finished; engine is nil if it failed.
type handle struct {
	info   abc.WalletInfo
	engine plugin.CurrencyEngine
	queue  *queue
	ready  chan struct{}
}

// New creates a dispatcher. Wallets started before their plugin has
// loaded are started once loading finishes.
func New(opts Options) *Dispatcher {
	if opts.Callbacks == nil {
		opts.Callbacks = abc.NoopCallbacks{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.KillTimeout <= 0 {
		opts.KillTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		plugins:     opts.Plugins,
		callbacks:   opts.Callbacks,
		folder:      opts.Folder,
		settings:    opts.Settings,
		killTimeout: opts.KillTimeout,
		log:         opts.Log.Named("dispatch"),
		ctx:         ctx,
		cancel:      cancel,
		handles:     make(map[string]*handle),
		pending:     make(map[string]abc.WalletInfo),
	}
	go d.startPendingWhenLoaded()
	return d
}

// startPendingWhenLoaded claims every queued wallet under one lock, so a
// Kill that runs while they start finds their handles and stops them.
func (d *Dispatcher) startPendingWhenLoaded() {
	select {
	case <-d.plugins.Done():
	case <-d.ctx.Done():
		return
	}

	type claimed struct {
		p plugin.CurrencyPlugin
		h *handle
	}
	d.mu.Lock()
	var claims []claimed
	for id, info := range d.pending {
		if _, ok := d.plugins.lookup(info.Type); !ok {
			d.log.Warn("no plugin for wallet type", zap.String("wallet_id", id), zap.String("wallet_type", info.Type))
			continue
		}
		delete(d.pending, id)
		if p, h, _ := d.claim(info); h != nil {
			claims = append(claims, claimed{p: p, h: h})
		}
	}
	d.mu.Unlock()

	for _, c := range claims {
		// failures were already reported
		_ = d.run(d.ctx, c.p, c.h)
	}
}

// Start runs an engine for the wallet. Starting a running wallet is a
// no-op. A failed start is reported once to OnError, nothing is retained,
// and the next Start tries again.
func (d *Dispatcher) Start(ctx context.Context, info abc.WalletInfo) error {
	d.mu.Lock()
	p, h, err := d.claim(info)
	d.mu.Unlock()
	if h == nil {
		return err
	}
	return d.run(ctx, p, h)
}

// claim registers a handle for the wallet, or queues it while its plugin
// is loading. It returns a nil handle when there is nothing to start.
// d.mu must be held.
func (d *Dispatcher) claim(info abc.WalletInfo) (plugin.CurrencyPlugin, *handle, error) {
	if d.closed {
		return nil, nil, ErrClosed
	}
	if _, ok := d.handles[info.ID]; ok {
		return nil, nil, nil
	}
	p, ok := d.plugins.lookup(info.Type)
	if !ok {
		d.pending[info.ID] = info
		d.log.Debug("engine start queued", zap.String("wallet_id", info.ID), zap.String("wallet_type", info.Type))
		return nil, nil, nil
	}
	h := &handle{info: info, queue: newQueue(), ready: make(chan struct{})}
	d.handles[info.ID] = h
	return p, h, nil
}

// run starts a claimed handle's engine.
func (d *Dispatcher) run(ctx context.Context, p plugin.CurrencyPlugin, h *handle) error {
	info := h.info
	engine, err := d.startEngine(ctx, p, h)
	if err != nil {
		h.queue.close()
		d.mu.Lock()
		if d.handles[info.ID] == h {
			delete(d.handles, info.ID)
		}
		d.mu.Unlock()
		close(h.ready)

		engineErr := &abc.EngineError{WalletID: info.ID, Err: err}
		d.log.Error("engine failed to start", zap.String("wallet_id", info.ID), zap.Error(err))
		d.callbacks.OnError(engineErr)
		return engineErr
	}

	h.engine = engine
	close(h.ready)
	d.log.Info("engine started", zap.String("wallet_id", info.ID), zap.String("plugin", p.PluginName()))
	return nil
}

func (d *Dispatcher) startEngine(ctx context.Context, p plugin.CurrencyPlugin, h *handle) (plugin.CurrencyEngine, error) {
	engine, err := p.MakeEngine(ctx, h.info, plugin.MakeEngineOptions{
		WalletLocalFolder: d.folder.Folder(h.info.ID),
		Callbacks:         newWalletCallbacks(h.info.ID, h.queue, d.callbacks),
		OptionalSettings:  d.settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make engine: %w", err)
	}
	if err := engine.StartEngine(ctx); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}
	return engine, nil
}

// Kill stops the wallet's engine. Killing a stopped wallet is a no-op.
// Events the engine emitted but that were not yet delivered are dropped.
func (d *Dispatcher) Kill(ctx context.Context, walletID string) error {
	d.mu.Lock()
	delete(d.pending, walletID)
	h, ok := d.handles[walletID]
	delete(d.handles, walletID)
	d.mu.Unlock()
	if !ok {
		return nil
	}
	return d.kill(ctx, h, false)
}

// kill waits for the start attempt to settle and kills the engine. With
// wait set it also waits for the wallet's in-flight callback to return.
func (d *Dispatcher) kill(ctx context.Context, h *handle, wait bool) error {
	select {
	case <-h.ready:
	case <-ctx.Done():
		return &abc.EngineError{WalletID: h.info.ID, Err: ctx.Err()}
	}

	done := h.queue.close()
	var err error
	if h.engine != nil {
		if killErr := h.engine.KillEngine(ctx); killErr != nil {
			d.log.Warn("engine failed to stop", zap.String("wallet_id", h.info.ID), zap.Error(killErr))
			err = &abc.EngineError{WalletID: h.info.ID, Err: killErr}
		}
	}
	if wait {
		select {
		case <-done:
		case <-ctx.Done():
			return errors.Join(err, &abc.EngineError{WalletID: h.info.ID, Err: ctx.Err()})
		}
	}
	d.log.Info("engine stopped", zap.String("wallet_id", h.info.ID))
	return err
}

// Sync makes the running set match active: missing wallets are started and
// the rest are killed. Start failures are reported through OnError only.
func (d *Dispatcher) Sync(ctx context.Context, active []abc.WalletInfo) error {
	want := make(map[string]bool, len(active))
	for _, info := range active {
		want[info.ID] = true
	}

	d.mu.Lock()
	var stale []string
	for id := range d.handles {
		if !want[id] {
			stale = append(stale, id)
		}
	}
	for id := range d.pending {
		if !want[id] {
			delete(d.pending, id)
		}
	}
	d.mu.Unlock()

	var errs []error
	for _, id := range stale {
		if err := d.Kill(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, info := range active {
		if err := d.Start(ctx, info); errors.Is(err, ErrClosed) {
			return err
		}
	}
	return errors.Join(errs...)
}

// Engine returns the running engine of a wallet.
func (d *Dispatcher) Engine(walletID string) (plugin.CurrencyEngine, bool) {
	d.mu.Lock()
	h, ok := d.handles[walletID]
	d.mu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-h.ready:
		return h.engine, h.engine != nil
	default:
		return nil, false
	}
}

// Running lists wallets with a started or starting engine, sorted.
func (d *Dispatcher) Running() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.handles))
	for id := range d.handles {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Pending lists wallets waiting for their plugin, sorted.
func (d *Dispatcher) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// KillAll stops every engine concurrently and waits, up to the kill
// timeout, for engines and callbacks to finish. Later Starts fail.
func (d *Dispatcher) KillAll(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	handles := make([]*handle, 0, len(d.handles))
	for _, h := range d.handles {
		handles = append(handles, h)
	}
	clear(d.handles)
	clear(d.pending)
	d.mu.Unlock()
	d.cancel()

	ctx, cancel := context.WithTimeout(ctx, d.killTimeout)
	defer cancel()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, h := range handles {
		g.Go(func() error {
			if err := d.kill(ctx, h, true); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}
