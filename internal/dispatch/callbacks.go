package dispatch

import (
	"slices"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/plugin"
)

// walletCallbacks is the callback set given to one engine. Every event is
// copied and queued, so an engine never waits on the account's observer.
type walletCallbacks struct {
	walletID string
	queue    *queue
	out      abc.AccountCallbacks

	// seen is only touched on the queue goroutine.
	seen map[string]struct{}
}

var _ plugin.EngineCallbacks = (*walletCallbacks)(nil)

func newWalletCallbacks(walletID string, q *queue, out abc.AccountCallbacks) *walletCallbacks {
	return &walletCallbacks{
		walletID: walletID,
		queue:    q,
		out:      out,
		seen:     make(map[string]struct{}),
	}
}

func (c *walletCallbacks) OnAddressesChecked(progress float64) {
	c.queue.push(func() { c.out.OnAddressesChecked(c.walletID, progress) })
}

func (c *walletCallbacks) OnBalanceChanged(currencyCode, nativeBalance string) {
	c.queue.push(func() { c.out.OnBalanceChanged(c.walletID, currencyCode, nativeBalance) })
}

func (c *walletCallbacks) OnBlockHeightChanged(height uint64) {
	c.queue.push(func() { c.out.OnBlockHeightChanged(c.walletID, height) })
}

// OnTransactionsChanged also reports first sightings through
// OnNewTransactions, before the change event.
func (c *walletCallbacks) OnTransactionsChanged(txs []abc.Transaction) {
	txs = slices.Clone(txs)
	c.queue.push(func() {
		var fresh []abc.Transaction
		for _, tx := range txs {
			if _, ok := c.seen[tx.TxID]; ok {
				continue
			}
			c.seen[tx.TxID] = struct{}{}
			fresh = append(fresh, tx)
		}
		if len(fresh) > 0 {
			c.out.OnNewTransactions(c.walletID, fresh)
		}
		c.out.OnTransactionsChanged(c.walletID, txs)
	})
}

func (c *walletCallbacks) OnTxidsChanged(txids []string) {
	txids = slices.Clone(txids)
	c.queue.push(func() { c.out.OnTxidsChanged(c.walletID, txids) })
}
