// Package registry owns an account's wallet list: creation, soft lifecycle
// states and the views derived from them.
package registry

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
)

// Store persists the full wallet list.
type Store interface {
	Load(ctx context.Context) ([]abc.WalletInfoFull, error)
	Save(ctx context.Context, wallets []abc.WalletInfoFull) error
}

// Event describes one committed change.
type Event struct {
	// Changed lists every wallet whose record changed.
	Changed []string
	// Activated wallets entered the active set and need an engine.
	Activated []abc.WalletInfo
	// Deactivated wallets left the active set.
	Deactivated []string
}

// Empty reports whether the event carries nothing.
func (e Event) Empty() bool {
	return len(e.Changed) == 0 && len(e.Activated) == 0 && len(e.Deactivated) == 0
}

// Registry is safe for concurrent use. Changes to the same wallet are
// serialized; changes to different wallets only share the persist step.
type Registry struct {
	appID    string
	store    Store
	log      *zap.Logger
	onChange func(Event)

	mu      sync.RWMutex
	wallets map[string]abc.WalletInfoFull

	ids    keyedMutex
	saveMu sync.Mutex
}

// Options configures a Registry.
type Options struct {
	// AppID limits the views to wallets shared with this app. Empty sees all.
	AppID string
	Store Store
	Log   *zap.Logger
	// OnChange runs after every committed change, outside any lock.
	OnChange func(Event)
}

// New loads the wallet list from the store.
func New(ctx context.Context, opts Options) (*Registry, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.OnChange == nil {
		opts.OnChange = func(Event) {}
	}

	list, err := opts.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet list: %w", err)
	}
	wallets := make(map[string]abc.WalletInfoFull, len(list))
	for _, w := range list {
		wallets[w.ID] = w
	}

	return &Registry{
		appID:    opts.AppID,
		store:    opts.Store,
		log:      opts.Log,
		onChange: opts.OnChange,
		wallets:  wallets,
	}, nil
}

// WalletID derives the id of a wallet from its type and keys.
func WalletID(walletType string, keys map[string]any) (string, error) {
	raw, err := json.Marshal(keys)
	if err != nil {
		return "", &abc.ValidationError{Message: "wallet keys do not encode", Err: err}
	}
	h := sha256.New()
	h.Write([]byte(walletType))
	h.Write([]byte{0})
	h.Write(raw)
	return base58.Encode(h.Sum(nil)), nil
}

func (r *Registry) visible(w abc.WalletInfoFull) bool {
	return r.appID == "" || slices.Contains(w.AppIDs, r.appID)
}

// CreateWallet adds a wallet and persists the list before returning. The
// id depends only on type and keys, so creating the same wallet twice
// returns the existing id. An existing wallet that is archived, deleted or
// hidden from this app is restored to the active set.
func (r *Registry) CreateWallet(ctx context.Context, walletType string, keys map[string]any) (string, error) {
	if walletType == "" {
		return "", &abc.ValidationError{Message: "wallet type must not be empty"}
	}
	id, err := WalletID(walletType, keys)
	if err != nil {
		return "", err
	}

	unlock := r.ids.lock([]string{id})
	defer unlock()

	r.mu.RLock()
	existing, exists := r.wallets[id]
	r.mu.RUnlock()
	if exists {
		return id, r.restore(ctx, existing)
	}

	appIDs := []string{}
	if r.appID != "" {
		appIDs = append(appIDs, r.appID)
	}
	wallet := abc.WalletInfoFull{
		ID:     id,
		Type:   walletType,
		Keys:   maps.Clone(keys),
		AppIDs: appIDs,
	}

	err = r.commit(ctx, func(next map[string]abc.WalletInfoFull) {
		maxIndex := -1
		for _, w := range next {
			maxIndex = max(maxIndex, w.SortIndex)
		}
		wallet.SortIndex = maxIndex + 1
		next[id] = wallet
	})
	if err != nil {
		return "", err
	}

	r.log.Info("wallet created", zap.String("wallet_id", id), zap.String("type", walletType))
	r.onChange(Event{Changed: []string{id}, Activated: []abc.WalletInfo{wallet.Info()}})
	return id, nil
}

// restore brings an existing wallet back into this app's active set.
func (r *Registry) restore(ctx context.Context, before abc.WalletInfoFull) error {
	if before.Active() && r.visible(before) {
		return nil
	}

	var wallet abc.WalletInfoFull
	err := r.commit(ctx, func(next map[string]abc.WalletInfoFull) {
		wallet = next[before.ID]
		wallet.Archived = false
		wallet.Deleted = false
		if !r.visible(wallet) {
			wallet.AppIDs = append(slices.Clone(wallet.AppIDs), r.appID)
		}
		next[before.ID] = wallet
	})
	if err != nil {
		return err
	}

	r.log.Info("wallet restored", zap.String("wallet_id", before.ID),
		zap.Bool("was_archived", before.Archived), zap.Bool("was_deleted", before.Deleted))
	r.onChange(Event{Changed: []string{before.ID}, Activated: []abc.WalletInfo{wallet.Info()}})
	return nil
}

// ChangeWalletStates merges each patch into its wallet, persists, then
// reports which wallets entered or left the active set.
func (r *Registry) ChangeWalletStates(ctx context.Context, states abc.WalletStates) error {
	if len(states) == 0 {
		return nil
	}
	ids := slices.Sorted(maps.Keys(states))

	unlock := r.ids.lock(ids)
	defer unlock()

	r.mu.RLock()
	before := make(map[string]abc.WalletInfoFull, len(ids))
	for _, id := range ids {
		w, ok := r.wallets[id]
		if !ok || !r.visible(w) {
			r.mu.RUnlock()
			return &abc.NotFoundError{Kind: "wallet", ID: id}
		}
		before[id] = w
	}
	r.mu.RUnlock()

	var event Event
	err := r.commit(ctx, func(next map[string]abc.WalletInfoFull) {
		for _, id := range ids {
			w := next[id]
			states[id].Apply(&w)
			next[id] = w

			if sameState(w, before[id]) {
				continue
			}
			event.Changed = append(event.Changed, id)
			switch was, is := before[id].Active(), w.Active(); {
			case is && !was:
				event.Activated = append(event.Activated, w.Info())
			case was && !is:
				event.Deactivated = append(event.Deactivated, id)
			}
		}
	})
	if err != nil {
		return err
	}

	if !event.Empty() {
		r.log.Debug("wallet states changed",
			zap.Strings("changed", event.Changed),
			zap.Strings("deactivated", event.Deactivated))
		r.onChange(event)
	}
	return nil
}

// Reload replaces the list with the store's copy, for changes made by
// another device, and reports the difference as one event.
func (r *Registry) Reload(ctx context.Context) error {
	list, err := r.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load wallet list: %w", err)
	}
	next := make(map[string]abc.WalletInfoFull, len(list))
	for _, w := range list {
		next[w.ID] = w
	}

	r.mu.RLock()
	keys := slices.Concat(slices.Collect(maps.Keys(r.wallets)), slices.Collect(maps.Keys(next)))
	r.mu.RUnlock()
	unlock := r.ids.lock(keys)
	defer unlock()

	r.saveMu.Lock()
	r.mu.Lock()
	before := r.wallets
	r.wallets = next
	r.mu.Unlock()
	r.saveMu.Unlock()

	var event Event
	for _, id := range slices.Sorted(maps.Keys(next)) {
		w, was := next[id], before[id]
		if _, known := before[id]; known && sameState(w, was) && slices.Equal(w.AppIDs, was.AppIDs) {
			continue
		}
		event.Changed = append(event.Changed, id)
		if r.running(w) && !r.running(was) {
			event.Activated = append(event.Activated, w.Info())
		}
	}
	for _, id := range slices.Sorted(maps.Keys(before)) {
		w, kept := next[id]
		if !kept {
			event.Changed = append(event.Changed, id)
		}
		if r.running(before[id]) && !r.running(w) {
			event.Deactivated = append(event.Deactivated, id)
		}
	}

	if !event.Empty() {
		r.log.Info("wallet list reloaded",
			zap.Strings("changed", event.Changed),
			zap.Strings("deactivated", event.Deactivated))
		r.onChange(event)
	}
	return nil
}

// running reports whether w should have an engine in this app. The zero
// record stands for a wallet that is not in the list.
func (r *Registry) running(w abc.WalletInfoFull) bool {
	return w.ID != "" && w.Active() && r.visible(w)
}

func sameState(a, b abc.WalletInfoFull) bool {
	return a.Archived == b.Archived && a.Deleted == b.Deleted && a.SortIndex == b.SortIndex
}

// commit applies mutate to a copy of the list, persists the copy and only
// then makes it current.
func (r *Registry) commit(ctx context.Context, mutate func(map[string]abc.WalletInfoFull)) error {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	r.mu.RLock()
	next := maps.Clone(r.wallets)
	r.mu.RUnlock()

	mutate(next)

	if err := r.store.Save(ctx, sorted(next, func(abc.WalletInfoFull) bool { return true })); err != nil {
		return &abc.StorageError{Op: "save wallet list", Err: err}
	}

	r.mu.Lock()
	r.wallets = next
	r.mu.Unlock()
	return nil
}

// sorted returns the wallets that pass keep, ordered by (sortIndex, id).
func sorted(wallets map[string]abc.WalletInfoFull, keep func(abc.WalletInfoFull) bool) []abc.WalletInfoFull {
	out := make([]abc.WalletInfoFull, 0, len(wallets))
	for _, w := range wallets {
		if keep(w) {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b abc.WalletInfoFull) int {
		return cmp.Or(cmp.Compare(a.SortIndex, b.SortIndex), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (r *Registry) view(keep func(abc.WalletInfoFull) bool) []abc.WalletInfoFull {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sorted(r.wallets, func(w abc.WalletInfoFull) bool { return r.visible(w) && keep(w) })
}

func ids(wallets []abc.WalletInfoFull) []string {
	out := make([]string, len(wallets))
	for i, w := range wallets {
		out[i] = w.ID
	}
	return out
}

// AllKeys returns every visible wallet, deleted ones included.
func (r *Registry) AllKeys() []abc.WalletInfoFull {
	return r.view(func(abc.WalletInfoFull) bool { return true })
}

// ListWalletIDs returns the ids of visible, non-deleted wallets.
func (r *Registry) ListWalletIDs() []string {
	return ids(r.view(func(w abc.WalletInfoFull) bool { return !w.Deleted }))
}

// ActiveWalletIDs returns wallets that are neither archived nor deleted.
func (r *Registry) ActiveWalletIDs() []string {
	return ids(r.view(abc.WalletInfoFull.Active))
}

// ArchivedWalletIDs returns archived wallets that are not deleted.
func (r *Registry) ArchivedWalletIDs() []string {
	return ids(r.view(func(w abc.WalletInfoFull) bool { return w.Archived && !w.Deleted }))
}

// ActiveWallets returns the wallets that should have running engines.
func (r *Registry) ActiveWallets() []abc.WalletInfo {
	active := r.view(abc.WalletInfoFull.Active)
	out := make([]abc.WalletInfo, len(active))
	for i, w := range active {
		out[i] = w.Info()
	}
	return out
}

// GetWalletInfo returns a visible, non-deleted wallet.
func (r *Registry) GetWalletInfo(id string) (abc.WalletInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok || w.Deleted || !r.visible(w) {
		return abc.WalletInfo{}, &abc.NotFoundError{Kind: "wallet", ID: id}
	}
	return w.Info(), nil
}

// GetFirstWalletInfo returns the first non-deleted wallet of walletType in
// sort order.
func (r *Registry) GetFirstWalletInfo(walletType string) (abc.WalletInfo, bool) {
	list := r.view(func(w abc.WalletInfoFull) bool { return !w.Deleted && w.Type == walletType })
	if len(list) == 0 {
		return abc.WalletInfo{}, false
	}
	return list[0].Info(), true
}
