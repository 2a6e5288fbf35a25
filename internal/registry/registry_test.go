package registry_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/registry"
)

type memoryStore struct {
	mu      sync.Mutex
	wallets []abc.WalletInfoFull
	saves   int
	fail    error
}

func (s *memoryStore) Load(context.Context) ([]abc.WalletInfoFull, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets, nil
}

func (s *memoryStore) Save(_ context.Context, wallets []abc.WalletInfoFull) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.wallets = wallets
	s.saves++
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []registry.Event
}

func (r *recorder) record(e registry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) last() registry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newRegistry(t *testing.T, appID string, store *memoryStore) (*registry.Registry, *recorder) {
	t.Helper()
	rec := &recorder{}
	reg, err := registry.New(context.Background(), registry.Options{
		AppID:    appID,
		Store:    store,
		OnChange: rec.record,
	})
	require.NoError(t, err)
	return reg, rec
}

func createWallets(t *testing.T, reg *registry.Registry, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := range out {
		id, err := reg.CreateWallet(context.Background(), "wallet:test", map[string]any{"seed": fmt.Sprintf("seed-%d", i)})
		require.NoError(t, err)
		out[i] = id
	}
	return out
}

func TestRegistry(t *testing.T) {
	t.Run("Creating wallets appends in sort order", testCreateOrder)
	t.Run("Creating the same wallet twice returns one id", testCreateIdempotent)
	t.Run("Creating a removed wallet restores it", testCreateRestores)
	t.Run("Archive and delete move wallets between views", testViews)
	t.Run("Patches merge and only report real changes", testMergePatch)
	t.Run("Unknown wallets are not found", testNotFound)
	t.Run("Apps only see their own wallets", testAppVisibility)
	t.Run("A failed save leaves state unchanged", testSaveFailure)
	t.Run("Sort index patches reorder the views", testSortIndex)
	t.Run("Concurrent patches to different wallets all apply", testConcurrentPatches)
	t.Run("The list survives a reload", testReload)
	t.Run("Reloading reports changes made elsewhere", testReloadEvents)
}

func testCreateOrder(t *testing.T) {
	store := &memoryStore{}
	reg, rec := newRegistry(t, "", store)
	ids := createWallets(t, reg, 3)

	assert.Equal(t, ids, reg.ActiveWalletIDs())
	assert.Equal(t, ids, reg.ListWalletIDs())
	assert.Empty(t, reg.ArchivedWalletIDs())
	assert.Equal(t, 3, store.saves)

	all := reg.AllKeys()
	require.Len(t, all, 3)
	for i, w := range all {
		assert.Equal(t, i, w.SortIndex)
		assert.False(t, w.Archived)
		assert.False(t, w.Deleted)
		assert.Equal(t, []string{}, w.AppIDs)
	}

	event := rec.last()
	assert.Equal(t, []string{ids[2]}, event.Changed)
	require.Len(t, event.Activated, 1)
	assert.Equal(t, "wallet:test", event.Activated[0].Type)
}

func testCreateIdempotent(t *testing.T) {
	store := &memoryStore{}
	reg, _ := newRegistry(t, "", store)
	keys := map[string]any{"seed": "same"}

	first, err := reg.CreateWallet(context.Background(), "wallet:test", keys)
	require.NoError(t, err)
	second, err := reg.CreateWallet(context.Background(), "wallet:test", keys)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, reg.AllKeys(), 1)

	other, err := reg.CreateWallet(context.Background(), "wallet:other", keys)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	_, err = reg.CreateWallet(context.Background(), "", keys)
	assert.True(t, abc.IsValidationError(err))
}

func testCreateRestores(t *testing.T) {
	store := &memoryStore{}
	reg, rec := newRegistry(t, "", store)
	ids := createWallets(t, reg, 2)
	ctx := context.Background()
	keys := func(i int) map[string]any { return map[string]any{"seed": fmt.Sprintf("seed-%d", i)} }

	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{
		ids[0]: {Deleted: abc.Bool(true)},
		ids[1]: {Archived: abc.Bool(true)},
	}))
	assert.Empty(t, reg.ActiveWalletIDs())

	for i, want := range ids {
		saves := store.saves
		id, err := reg.CreateWallet(ctx, "wallet:test", keys(i))
		require.NoError(t, err)
		assert.Equal(t, want, id)
		assert.Equal(t, saves+1, store.saves)

		event := rec.last()
		assert.Equal(t, []string{id}, event.Changed)
		require.Len(t, event.Activated, 1)
		assert.Equal(t, id, event.Activated[0].ID)
	}
	assert.Equal(t, ids, reg.ActiveWalletIDs())
	assert.Empty(t, reg.ArchivedWalletIDs())
	for i, w := range reg.AllKeys() {
		assert.Equal(t, i, w.SortIndex)
		assert.False(t, w.Deleted)
		assert.False(t, w.Archived)
	}

	events := len(rec.events)
	_, err := reg.CreateWallet(ctx, "wallet:test", keys(0))
	require.NoError(t, err)
	assert.Len(t, rec.events, events, "an active wallet is left alone")

	app, appRec := newRegistry(t, "app.one", store)
	id, err := app.CreateWallet(ctx, "wallet:test", keys(0))
	require.NoError(t, err)
	assert.Equal(t, ids[0], id)
	assert.Equal(t, []string{id}, app.ActiveWalletIDs())
	assert.Equal(t, id, appRec.last().Activated[0].ID)

	reloaded, _ := newRegistry(t, "", store)
	assert.Equal(t, ids, reloaded.ActiveWalletIDs())
}

func testViews(t *testing.T) {
	reg, rec := newRegistry(t, "", &memoryStore{})
	ids := createWallets(t, reg, 2)
	a := ids[0]
	ctx := context.Background()

	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{a: {Archived: abc.Bool(true)}}))
	assert.NotContains(t, reg.ActiveWalletIDs(), a)
	assert.Contains(t, reg.ArchivedWalletIDs(), a)
	assert.Contains(t, reg.ListWalletIDs(), a)
	assert.Equal(t, []string{a}, rec.last().Deactivated)

	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{a: {Deleted: abc.Bool(true)}}))
	assert.NotContains(t, reg.ActiveWalletIDs(), a)
	assert.NotContains(t, reg.ArchivedWalletIDs(), a)
	assert.NotContains(t, reg.ListWalletIDs(), a)

	var found bool
	for _, w := range reg.AllKeys() {
		if w.ID == a {
			found = true
			assert.True(t, w.Deleted)
			assert.True(t, w.Archived)
		}
	}
	assert.True(t, found, "deleted wallets stay in AllKeys")

	_, err := reg.GetWalletInfo(a)
	assert.True(t, abc.IsNotFoundError(err))

	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{a: {Deleted: abc.Bool(false), Archived: abc.Bool(false)}}))
	assert.Contains(t, reg.ActiveWalletIDs(), a)
	event := rec.last()
	require.Len(t, event.Activated, 1)
	assert.Equal(t, a, event.Activated[0].ID)
}

func testMergePatch(t *testing.T) {
	store := &memoryStore{}
	reg, rec := newRegistry(t, "", store)
	a := createWallets(t, reg, 1)[0]
	ctx := context.Background()

	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{a: {Archived: abc.Bool(true)}}))
	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{a: {SortIndex: abc.Int(9)}}))

	w := reg.AllKeys()[0]
	assert.True(t, w.Archived, "an absent field is left unchanged")
	assert.Equal(t, 9, w.SortIndex)

	events := len(rec.events)
	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{a: {SortIndex: abc.Int(9)}}))
	assert.Len(t, rec.events, events, "a no-op patch emits nothing")
}

func testNotFound(t *testing.T) {
	store := &memoryStore{}
	reg, _ := newRegistry(t, "", store)
	a := createWallets(t, reg, 1)[0]
	saves := store.saves

	err := reg.ChangeWalletStates(context.Background(), abc.WalletStates{
		a:         {Archived: abc.Bool(true)},
		"missing": {Archived: abc.Bool(true)},
	})
	var notFound *abc.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ID)
	assert.Equal(t, saves, store.saves)
	assert.Contains(t, reg.ActiveWalletIDs(), a, "the batch is all or nothing")

	_, err = reg.GetWalletInfo("missing")
	assert.True(t, abc.IsNotFoundError(err))

	_, ok := reg.GetFirstWalletInfo("wallet:none")
	assert.False(t, ok)
}

func testAppVisibility(t *testing.T) {
	store := &memoryStore{}
	full, _ := newRegistry(t, "", store)
	mine := createWallets(t, full, 1)[0]

	app, _ := newRegistry(t, "app.one", store)
	assert.Empty(t, app.ListWalletIDs())
	err := app.ChangeWalletStates(context.Background(), abc.WalletStates{mine: {Archived: abc.Bool(true)}})
	assert.True(t, abc.IsNotFoundError(err))

	appWallet, err := app.CreateWallet(context.Background(), "wallet:test", map[string]any{"seed": "app"})
	require.NoError(t, err)
	assert.Equal(t, []string{appWallet}, app.ListWalletIDs())

	info, ok := app.GetFirstWalletInfo("wallet:test")
	require.True(t, ok)
	assert.Equal(t, appWallet, info.ID)

	reloaded, _ := newRegistry(t, "", store)
	assert.ElementsMatch(t, []string{mine, appWallet}, reloaded.ListWalletIDs())
}

func testSaveFailure(t *testing.T) {
	store := &memoryStore{}
	reg, rec := newRegistry(t, "", store)
	a := createWallets(t, reg, 1)[0]
	events := len(rec.events)

	store.fail = errors.New("disk full")
	err := reg.ChangeWalletStates(context.Background(), abc.WalletStates{a: {Archived: abc.Bool(true)}})
	assert.True(t, abc.IsStorageError(err))
	assert.Contains(t, reg.ActiveWalletIDs(), a)
	assert.Len(t, rec.events, events)

	_, err = reg.CreateWallet(context.Background(), "wallet:test", map[string]any{"seed": "new"})
	assert.True(t, abc.IsStorageError(err))
	assert.Len(t, reg.AllKeys(), 1)
}

func testSortIndex(t *testing.T) {
	reg, _ := newRegistry(t, "", &memoryStore{})
	ids := createWallets(t, reg, 3)
	ctx := context.Background()

	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{
		ids[0]: {SortIndex: abc.Int(10)},
		ids[2]: {SortIndex: abc.Int(-1)},
	}))
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, reg.ActiveWalletIDs())

	require.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{
		ids[0]: {SortIndex: abc.Int(1)},
		ids[1]: {SortIndex: abc.Int(1)},
	}))
	active := reg.ActiveWalletIDs()
	assert.Equal(t, ids[2], active[0])
	assert.Len(t, active, 3)
	if ids[0] < ids[1] {
		assert.Equal(t, []string{ids[0], ids[1]}, active[1:], "ties break by id")
	} else {
		assert.Equal(t, []string{ids[1], ids[0]}, active[1:], "ties break by id")
	}

	id, err := reg.CreateWallet(ctx, "wallet:test", map[string]any{"seed": "last"})
	require.NoError(t, err)
	active = reg.ActiveWalletIDs()
	assert.Equal(t, id, active[len(active)-1], "new wallets go after the current maximum")
}

func testConcurrentPatches(t *testing.T) {
	reg, _ := newRegistry(t, "", &memoryStore{})
	ids := createWallets(t, reg, 8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{id: {SortIndex: abc.Int(100 + i)}}))
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, reg.ChangeWalletStates(ctx, abc.WalletStates{id: {Archived: abc.Bool(i%2 == 0)}}))
		}()
	}
	wg.Wait()

	for i, w := range reg.AllKeys() {
		assert.Equal(t, ids[i], w.ID)
		assert.Equal(t, 100+i, w.SortIndex)
		assert.Equal(t, i%2 == 0, w.Archived)
	}
}

func testReload(t *testing.T) {
	store := &memoryStore{}
	reg, _ := newRegistry(t, "", store)
	ids := createWallets(t, reg, 2)
	require.NoError(t, reg.ChangeWalletStates(context.Background(), abc.WalletStates{ids[1]: {Archived: abc.Bool(true)}}))

	reloaded, _ := newRegistry(t, "", store)
	assert.Equal(t, []string{ids[0]}, reloaded.ActiveWalletIDs())
	assert.Equal(t, []string{ids[1]}, reloaded.ArchivedWalletIDs())

	info, err := reloaded.GetWalletInfo(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "seed-0", info.Keys["seed"])
}

func testReloadEvents(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	phone, _ := newRegistry(t, "", store)
	ids := createWallets(t, phone, 2)
	laptop, rec := newRegistry(t, "", store)

	require.NoError(t, laptop.Reload(ctx))
	assert.Empty(t, rec.events, "an unchanged list emits nothing")

	require.NoError(t, phone.ChangeWalletStates(ctx, abc.WalletStates{ids[0]: {Archived: abc.Bool(true)}}))
	added, err := phone.CreateWallet(ctx, "wallet:test", map[string]any{"seed": "added"})
	require.NoError(t, err)

	require.NoError(t, laptop.Reload(ctx))
	assert.Equal(t, phone.AllKeys(), laptop.AllKeys())
	event := rec.last()
	assert.ElementsMatch(t, []string{ids[0], added}, event.Changed)
	assert.Equal(t, []string{ids[0]}, event.Deactivated)
	require.Len(t, event.Activated, 1)
	assert.Equal(t, added, event.Activated[0].ID)

	store.mu.Lock()
	store.wallets = store.wallets[:1]
	kept := store.wallets[0].ID
	store.mu.Unlock()

	require.NoError(t, laptop.Reload(ctx))
	assert.Equal(t, []string{kept}, walletIDs(laptop.AllKeys()))
	event = rec.last()
	assert.ElementsMatch(t, []string{ids[1], added}, event.Changed)
	assert.ElementsMatch(t, []string{ids[1], added}, event.Deactivated)
	assert.Empty(t, event.Activated)
}

func walletIDs(wallets []abc.WalletInfoFull) []string {
	out := make([]string, len(wallets))
	for i, w := range wallets {
		out[i] = w.ID
	}
	return out
}
