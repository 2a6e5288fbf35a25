package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/platform"
)

const txFile = "transactions.json"

// syncTransactions fetches signatures not seen before and reports the
// transactions among them that touch this wallet.
func (e *Engine) syncTransactions(ctx context.Context) error {
	tokens := e.enabledTokens()
	sigs, err := e.chain.Signatures(ctx, e.owner, tokens, e.plugin.cfg.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to list signatures: %w", err)
	}

	var changed []abc.Transaction
	for _, sig := range sigs {
		id := sig.String()
		e.mu.Lock()
		known, ok := e.txs[id]
		ignored := e.ignored[id]
		e.mu.Unlock()
		if ignored || ok && known.BlockHeight != 0 {
			continue
		}

		tx, err := e.chain.Transaction(ctx, sig, e.owner, tokens)
		if err != nil {
			return fmt.Errorf("failed to get transaction %s: %w", id, err)
		}
		if tx == nil {
			e.mu.Lock()
			e.ignored[id] = true
			e.mu.Unlock()
			continue
		}
		if ok && known.Metadata != nil {
			tx.Metadata = known.Metadata
		}
		changed = append(changed, *tx)
	}
	if len(changed) == 0 {
		return nil
	}
	return e.commit(ctx, changed)
}

// commit stores changed transactions, saves them and reports them.
func (e *Engine) commit(ctx context.Context, changed []abc.Transaction) error {
	e.mu.Lock()
	for _, tx := range changed {
		e.txs[tx.TxID] = tx
	}
	all := e.sortedLocked()
	e.mu.Unlock()

	if err := e.saveTransactions(ctx, all); err != nil {
		e.log.Warn("failed to save transactions", zap.Error(err))
	}

	txids := make([]string, len(changed))
	for i, tx := range changed {
		txids[i] = tx.TxID
	}
	e.callbacks.OnTransactionsChanged(changed)
	e.callbacks.OnTxidsChanged(txids)
	return nil
}

// sortedLocked lists transactions by time DESC (newest first). e.mu must be held.
func (e *Engine) sortedLocked() []abc.Transaction {
	out := make([]abc.Transaction, 0, len(e.txs))
	for _, tx := range e.txs {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].TxID < out[j].TxID
	})
	return out
}

// GetNumTransactions counts the wallet's transactions in one currency.
func (e *Engine) GetNumTransactions(opts abc.CurrencyCodeOptions) (int, error) {
	txs, err := e.GetTransactions(context.Background(), abc.TransactionsOptions{CurrencyCode: opts.CurrencyCode})
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// GetTransactions gets wallet transactions with filtering, newest first.
func (e *Engine) GetTransactions(ctx context.Context, opts abc.TransactionsOptions) ([]abc.Transaction, error) {
	code := strings.ToUpper(opts.CurrencyCode)
	if code == "" {
		code = currencyCode
	}
	if _, err := e.plugin.decimals(code); err != nil {
		return nil, err
	}
	search := strings.ToLower(opts.SearchString)

	e.mu.Lock()
	all := e.sortedLocked()
	e.mu.Unlock()

	result := make([]abc.Transaction, 0, len(all))
	for _, tx := range all {
		// Filter by currency
		if tx.CurrencyCode != code {
			continue
		}
		// Filter by dates
		if opts.StartDate != 0 && tx.Date < opts.StartDate {
			continue
		}
		if opts.EndDate != 0 && tx.Date > opts.EndDate {
			continue
		}
		if search != "" && !matches(tx, search) {
			continue
		}
		result = append(result, tx)
	}

	if opts.StartIndex > 0 {
		if opts.StartIndex >= len(result) {
			return []abc.Transaction{}, nil
		}
		result = result[opts.StartIndex:]
	}
	if opts.StartEntries > 0 && opts.StartEntries < len(result) {
		result = result[:opts.StartEntries]
	}
	return result, nil
}

func matches(tx abc.Transaction, search string) bool {
	fields := []string{tx.TxID}
	for _, key := range []string{"from", "to"} {
		if s, ok := tx.OtherParams[key].(string); ok {
			fields = append(fields, s)
		}
	}
	if tx.Metadata != nil {
		fields = append(fields, tx.Metadata.Name, tx.Metadata.Category, tx.Metadata.Notes)
	}
	return slices.ContainsFunc(fields, func(f string) bool {
		return strings.Contains(strings.ToLower(f), search)
	})
}

// SaveTx records a transaction this wallet created, usually right after
// broadcasting it, so it shows up before the node reports it.
func (e *Engine) SaveTx(ctx context.Context, tx *abc.Transaction) error {
	if tx == nil || tx.TxID == "" {
		return &abc.ValidationError{Message: "transaction has no txid"}
	}
	saved := *tx
	saved.SignedTx = ""
	if saved.OtherParams != nil {
		saved.OtherParams = maps.Clone(saved.OtherParams)
		delete(saved.OtherParams, paramUnsignedTx)
	}
	return e.commit(ctx, []abc.Transaction{saved})
}

func (e *Engine) loadTransactions(ctx context.Context) error {
	raw, err := e.folder.File(txFile).GetData(ctx)
	if err != nil {
		if platform.IsNotExist(err) {
			return nil
		}
		return &abc.StorageError{Op: "read transactions", Err: err}
	}

	var txs []abc.Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return fmt.Errorf("failed to decode saved transactions: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tx := range txs {
		e.txs[tx.TxID] = tx
	}
	return nil
}

func (e *Engine) saveTransactions(ctx context.Context, txs []abc.Transaction) error {
	raw, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("failed to encode transactions: %w", err)
	}
	if err := e.folder.File(txFile).SetData(ctx, raw); err != nil {
		return &abc.StorageError{Op: "write transactions", Err: err}
	}
	return nil
}
