package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/dispatch"
	"github.com/AlexZinkM/abc-core/platform"
	"github.com/AlexZinkM/abc-core/plugin"
)

const walletType = "wallet:fake"

func testIO(t *testing.T) platform.IO {
	t.Helper()
	io, err := platform.Resolve(platform.RawIO{
		Random: platform.CryptoRandom,
		Fetch:  platform.HTTPFetch(nil),
	})
	require.NoError(t, err)
	return io
}

func setup(t *testing.T, p *fakePlugin) (*dispatch.Dispatcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	io := testIO(t)
	plugins := dispatch.LoadPlugins(context.Background(), io,
		map[string]plugin.CurrencyPluginFactory{p.name: p.factory()}, nil, rec.OnError)
	require.NoError(t, plugins.Wait(context.Background()))

	d := dispatch.New(dispatch.Options{
		Plugins:     plugins,
		Callbacks:   rec,
		Folder:      io.Folder.Folder("wallets"),
		KillTimeout: time.Second,
	})
	t.Cleanup(func() { d.KillAll(context.Background()) })
	return d, rec
}

func wallet(id string) abc.WalletInfo {
	return abc.WalletInfo{ID: id, Type: walletType, Keys: map[string]any{}}
}

func TestDispatcher(t *testing.T) {
	t.Run("Engine events reach the account with the wallet id", testForwarding)
	t.Run("New transactions fire once per txid", testNewTransactions)
	t.Run("Start and kill are idempotent", testIdempotent)
	t.Run("A failed start is reported once and retried on request", testStartFailure)
	t.Run("Wallets wait for a plugin that is still loading", testPending)
	t.Run("Killing a queued wallet while plugins finish loading stops it", testKillWhileDraining)
	t.Run("Sync starts and kills to match the active set", testSync)
	t.Run("KillAll stops everything and closes the dispatcher", testKillAll)
}

func testForwarding(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	d, rec := setup(t, p)
	ctx := context.Background()

	require.NoError(t, d.Start(ctx, wallet("w1")))
	require.NoError(t, d.Start(ctx, wallet("w2")))

	e1, e2 := p.engine("w1"), p.engine("w2")
	for i := 0; i < 20; i++ {
		e1.callbacks.OnBalanceChanged("FAKE", string(rune('a'+i)))
	}
	e2.callbacks.OnBlockHeightChanged(7)
	e2.callbacks.OnAddressesChecked(0.5)
	e2.callbacks.OnTxidsChanged([]string{"x"})

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 23 }, time.Second, 5*time.Millisecond)

	var w1 []string
	for _, ev := range rec.snapshot() {
		if len(ev) > 10 && ev[:10] == "balance w1" {
			w1 = append(w1, ev)
		}
	}
	require.Len(t, w1, 20)
	for i, ev := range w1 {
		assert.Equal(t, "balance w1 FAKE "+string(rune('a'+i)), ev, "per-wallet order is kept")
	}
	assert.Contains(t, rec.snapshot(), "height w2")
	assert.Contains(t, rec.snapshot(), "checked w2")
	assert.Contains(t, rec.snapshot(), "txids w2")

	engine, ok := d.Engine("w1")
	require.True(t, ok)
	assert.Equal(t, "w1", engine.DumpData().WalletID)
}

func testNewTransactions(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	d, rec := setup(t, p)
	require.NoError(t, d.Start(context.Background(), wallet("w1")))
	cb := p.engine("w1").callbacks

	cb.OnTransactionsChanged([]abc.Transaction{{TxID: "a"}, {TxID: "b"}})
	cb.OnTransactionsChanged([]abc.Transaction{{TxID: "b"}, {TxID: "c"}})

	want := []string{
		"new w1 a", "new w1 b", "changed w1 a", "changed w1 b",
		"new w1 c", "changed w1 b", "changed w1 c",
	}
	require.Eventually(t, func() bool { return len(rec.snapshot()) == len(want) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, rec.snapshot())
}

func testIdempotent(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	d, _ := setup(t, p)
	ctx := context.Background()

	require.NoError(t, d.Start(ctx, wallet("w1")))
	require.NoError(t, d.Start(ctx, wallet("w1")))
	starts, _ := p.engine("w1").counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, []string{"w1"}, d.Running())

	require.NoError(t, d.Kill(ctx, "w1"))
	require.NoError(t, d.Kill(ctx, "w1"))
	_, kills := p.engine("w1").counts()
	assert.Equal(t, 1, kills)
	assert.Empty(t, d.Running())

	require.NoError(t, d.Kill(ctx, "never-started"))
}

func testStartFailure(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	d, rec := setup(t, p)
	ctx := context.Background()

	require.NoError(t, d.Start(ctx, wallet("ok")))
	p.failStart = 1
	err := d.Start(ctx, wallet("w1"))
	var engineErr *abc.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "w1", engineErr.WalletID)

	errs := rec.failures()
	require.Len(t, errs, 1)
	assert.True(t, abc.IsEngineError(errs[0]))
	assert.Equal(t, []string{"ok"}, d.Running(), "siblings keep running and nothing is retained")

	require.NoError(t, d.Start(ctx, wallet("w1")))
	assert.Equal(t, []string{"ok", "w1"}, d.Running())
	assert.Len(t, rec.failures(), 1)
}

func testPending(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	release := make(chan struct{})
	slow := func(ctx context.Context, io platform.IO) (plugin.CurrencyPlugin, error) {
		<-release
		return p, nil
	}

	rec := &recorder{}
	io := testIO(t)
	plugins := dispatch.LoadPlugins(context.Background(), io,
		map[string]plugin.CurrencyPluginFactory{"fake": slow}, nil, rec.OnError)
	d := dispatch.New(dispatch.Options{Plugins: plugins, Callbacks: rec, Folder: io.Folder})
	t.Cleanup(func() { d.KillAll(context.Background()) })

	require.NoError(t, d.Start(context.Background(), wallet("w1")))
	assert.Equal(t, []string{"w1"}, d.Pending())
	assert.Empty(t, d.Running())

	close(release)
	require.Eventually(t, func() bool {
		_, ok := d.Engine("w1")
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, d.Pending())
}

func testKillWhileDraining(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	p.gate = make(chan struct{})
	p.entered = make(chan string, 1)
	release := make(chan struct{})
	slow := func(ctx context.Context, io platform.IO) (plugin.CurrencyPlugin, error) {
		<-release
		return p, nil
	}

	rec := &recorder{}
	io := testIO(t)
	plugins := dispatch.LoadPlugins(context.Background(), io,
		map[string]plugin.CurrencyPluginFactory{"fake": slow}, nil, rec.OnError)
	d := dispatch.New(dispatch.Options{Plugins: plugins, Callbacks: rec, Folder: io.Folder})
	t.Cleanup(func() { d.KillAll(context.Background()) })

	ctx := context.Background()
	require.NoError(t, d.Start(ctx, wallet("a")))
	require.NoError(t, d.Start(ctx, wallet("b")))
	close(release)

	var first string
	select {
	case first = <-p.entered:
	case <-time.After(time.Second):
		t.Fatal("no engine was made")
	}
	other := "a"
	if first == "a" {
		other = "b"
	}
	assert.Empty(t, d.Pending(), "both wallets are claimed before any engine starts")

	killed := make(chan error, 1)
	go func() { killed <- d.Kill(ctx, other) }()
	time.Sleep(20 * time.Millisecond)
	close(p.gate)

	select {
	case err := <-killed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("kill did not return")
	}
	require.Eventually(t, func() bool {
		_, ok := d.Engine(first)
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{first}, d.Running())
	_, ok := d.Engine(other)
	assert.False(t, ok)
	if e := p.engine(other); e != nil {
		starts, kills := e.counts()
		assert.Equal(t, starts, kills, "an engine started for a killed wallet is stopped")
	}
}

func testSync(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	d, _ := setup(t, p)
	ctx := context.Background()

	require.NoError(t, d.Sync(ctx, []abc.WalletInfo{wallet("a"), wallet("b")}))
	assert.Equal(t, []string{"a", "b"}, d.Running())

	require.NoError(t, d.Sync(ctx, []abc.WalletInfo{wallet("b"), wallet("c")}))
	assert.Equal(t, []string{"b", "c"}, d.Running())
	_, kills := p.engine("a").counts()
	assert.Equal(t, 1, kills)
	starts, _ := p.engine("b").counts()
	assert.Equal(t, 1, starts)
}

func testKillAll(t *testing.T) {
	p := newFakePlugin("fake", walletType)
	d, rec := setup(t, p)
	ctx := context.Background()

	require.NoError(t, d.Start(ctx, wallet("a")))
	require.NoError(t, d.Start(ctx, wallet("b")))
	cb := p.engine("a").callbacks

	require.NoError(t, d.KillAll(ctx))
	for _, id := range []string{"a", "b"} {
		_, kills := p.engine(id).counts()
		assert.Equal(t, 1, kills)
	}
	assert.Empty(t, d.Running())

	before := len(rec.snapshot())
	cb.OnBalanceChanged("FAKE", "1")
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.snapshot(), before, "nothing is delivered after KillAll")

	assert.ErrorIs(t, d.Start(ctx, wallet("c")), dispatch.ErrClosed)
}

func TestPluginSet(t *testing.T) {
	good := newFakePlugin("good", walletType)
	bad := newFakePlugin("bad", "wallet:bad")
	bad.badInfo = true

	var errs []error
	plugins := dispatch.LoadPlugins(context.Background(), testIO(t), map[string]plugin.CurrencyPluginFactory{
		"good": good.factory(),
		"bad":  bad.factory(),
	}, nil, func(err error) { errs = append(errs, err) })

	list, err := plugins.CurrencyPlugins(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].PluginName())

	require.Len(t, errs, 1)
	assert.True(t, abc.IsValidationError(errs[0]))

	p, err := plugins.ForType(context.Background(), walletType)
	require.NoError(t, err)
	assert.Equal(t, "good", p.PluginName())

	_, err = plugins.ForType(context.Background(), "wallet:bad")
	assert.True(t, abc.IsNotFoundError(err))
}
