package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/AlexZinkM/abc-core/abc"
)

// Token account size is 165 bytes
const tokenAccountSize = 165

// SolanaToken is an SPL token the client reports transfers for.
type SolanaToken struct {
	Code string
	Mint solana.PublicKey
}

// SolanaClient is a client for working with Solana RPC
type SolanaClient struct {
	rpcClient *rpc.Client
	rpcURL    string
}

// NewSolanaClient creates a client for the RPC node at rpcURL.
func NewSolanaClient(rpcURL string) *SolanaClient {
	return &SolanaClient{
		rpcClient: rpc.New(rpcURL),
		rpcURL:    rpcURL,
	}
}

// URL returns the RPC endpoint.
func (c *SolanaClient) URL() string {
	return c.rpcURL
}

// Slot returns the latest confirmed slot.
func (c *SolanaClient) Slot(ctx context.Context) (uint64, error) {
	slot, err := c.rpcClient.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, c.netErr("getSlot", err)
	}
	return slot, nil
}

// Balance gets SOL balance in lamports
func (c *SolanaClient) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	balance, err := c.rpcClient.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, c.netErr("getBalance", err)
	}
	return balance.Value, nil
}

// TokenBalance gets the owner's balance of mint in the token's smallest
// unit. A missing token account counts as zero.
func (c *SolanaClient) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ataAddress, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to find associated token account address: %w", err)
	}

	balance, err := c.rpcClient.GetTokenAccountBalance(ctx, ataAddress, rpc.CommitmentConfirmed)
	if err != nil {
		if isATANotFoundError(err) {
			return 0, nil
		}
		return 0, c.netErr("getTokenAccountBalance", err)
	}
	if balance.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token balance amount: %w", err)
	}
	return amount, nil
}

// AccountExists reports whether an account has been created on chain.
func (c *SolanaClient) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := c.rpcClient.GetAccountInfo(ctx, account)
	if err != nil {
		if isATANotFoundError(err) {
			return false, nil
		}
		return false, c.netErr("getAccountInfo", err)
	}
	return info != nil && info.Value != nil, nil
}

// TokenAccountRentExempt gets the lamports a new token account must hold.
func (c *SolanaClient) TokenAccountRentExempt(ctx context.Context) (uint64, error) {
	rentExempt, err := c.rpcClient.GetMinimumBalanceForRentExemption(ctx, tokenAccountSize, rpc.CommitmentFinalized)
	if err != nil {
		return 0, c.netErr("getMinimumBalanceForRentExemption", err)
	}
	return rentExempt, nil
}

// Signatures lists recent signatures touching the owner or its token
// accounts, newest first and without duplicates.
func (c *SolanaClient) Signatures(ctx context.Context, owner solana.PublicKey, tokens []SolanaToken, limit int) ([]solana.Signature, error) {
	addresses := []solana.PublicKey{owner}
	for _, token := range tokens {
		ata, _, err := solana.FindAssociatedTokenAddress(owner, token.Mint)
		if err != nil {
			return nil, fmt.Errorf("failed to find associated token account address: %w", err)
		}
		addresses = append(addresses, ata)
	}

	seen := make(map[solana.Signature]bool)
	var out []solana.Signature
	for _, address := range addresses {
		sigs, err := c.rpcClient.GetSignaturesForAddressWithOpts(ctx, address, &rpc.GetSignaturesForAddressOpts{
			Limit: &limit,
		})
		if err != nil {
			if isATANotFoundError(err) {
				continue
			}
			return nil, c.netErr("getSignaturesForAddress", err)
		}
		for _, sig := range sigs {
			if !seen[sig.Signature] {
				seen[sig.Signature] = true
				out = append(out, sig.Signature)
			}
		}
	}
	return out, nil
}

// Transaction fetches one transaction and reports the owner's side of it.
// It returns nil when the transaction neither moves the owner's SOL nor
// any of the given tokens.
func (c *SolanaClient) Transaction(ctx context.Context, sig solana.Signature, owner solana.PublicKey, tokens []SolanaToken) (*abc.Transaction, error) {
	// maxVersion is hardcoded - no point making it configurable because
	// new version support requires library update and rebuild anyway
	maxVersion := uint64(0)
	tx, err := c.rpcClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		return nil, c.netErr("getTransaction", err)
	}
	return parseTransaction(tx, sig, owner, tokens), nil
}

// Send submits a signed transaction.
func (c *SolanaClient) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpcClient.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false, // Transaction validation before node
		PreflightCommitment: rpc.CommitmentFinalized,
	})
	if err != nil {
		return solana.Signature{}, c.netErr("sendTransaction", err)
	}
	return sig, nil
}

// LatestBlockhash returns the blockhash new transactions must reference.
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	recent, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, c.netErr("getLatestBlockhash", err)
	}
	return recent.Value.Blockhash, nil
}

func (c *SolanaClient) netErr(op string, err error) error {
	return &abc.NetworkError{Op: "solana " + op, Err: err}
}

// parseTransaction extracts the owner's SOL or token movement.
// Logic: If a token moved, any SOL change is fee. Otherwise, SOL change is a transfer.
func parseTransaction(tx *rpc.GetTransactionResult, signature solana.Signature, owner solana.PublicKey, tokens []SolanaToken) *abc.Transaction {
	if tx == nil || tx.Meta == nil {
		return nil
	}
	ownerStr := owner.String()

	timestamp := time.Now()
	if tx.BlockTime != nil {
		timestamp = time.Unix(int64(*tx.BlockTime), 0)
	}

	status := "success"
	if tx.Meta.Err != nil {
		status = "failed"
	}

	decodedTx, err := tx.Transaction.GetTransaction()
	if err != nil {
		return nil
	}
	accountKeys := decodedTx.Message.AccountKeys

	// owner's SOL delta, needed for both token fees and SOL transfers
	ownerIndex := -1
	var ownerSOLDelta int64
	for i, key := range accountKeys {
		if key.Equals(owner) && i < len(tx.Meta.PreBalances) && i < len(tx.Meta.PostBalances) {
			ownerIndex = i
			ownerSOLDelta = int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
			break
		}
	}
	isFeePayer := ownerIndex == 0

	out := &abc.Transaction{
		TxID:        signature.String(),
		Date:        timestamp.Unix(),
		BlockHeight: tx.Slot,
		NetworkFee:  "0",
		OtherParams: map[string]any{"status": status},
	}

	for _, token := range tokens {
		deltas := tokenDeltas(tx.Meta, token.Mint)
		ourDelta := deltas[ownerStr]
		if ourDelta == 0 {
			continue
		}

		out.CurrencyCode = token.Code
		out.NativeAmount = strconv.FormatInt(ourDelta, 10)
		if ourDelta > 0 {
			out.OurReceiveAddresses = []string{ownerStr}
			out.OtherParams["from"] = counterparty(deltas, func(d int64) bool { return d < 0 })
			out.OtherParams["to"] = ownerStr
		} else {
			out.OtherParams["from"] = ownerStr
			out.OtherParams["to"] = counterparty(deltas, func(d int64) bool { return d > 0 })
			// Fee = total SOL cost we paid, sends only
			if ownerSOLDelta < 0 {
				out.NetworkFee = strconv.FormatInt(-ownerSOLDelta, 10)
			}
		}
		return out
	}

	// No token movement - check for SOL transfer
	if ownerSOLDelta == 0 {
		return nil
	}
	transfer := ownerSOLDelta
	if isFeePayer {
		transfer += int64(tx.Meta.Fee)
	}
	// Only show SOL transaction if there's an actual transfer (not just fee)
	if transfer == 0 {
		return nil
	}

	out.CurrencyCode = "SOL"
	out.NativeAmount = strconv.FormatInt(ownerSOLDelta, 10)
	if transfer > 0 {
		out.OurReceiveAddresses = []string{ownerStr}
		out.OtherParams["to"] = ownerStr
		for i, key := range accountKeys {
			if i < len(tx.Meta.PostBalances) && tx.Meta.PreBalances[i] > tx.Meta.PostBalances[i] && !key.Equals(owner) {
				out.OtherParams["from"] = key.String()
				break
			}
		}
	} else {
		out.OtherParams["from"] = ownerStr
		for i, key := range accountKeys {
			if i < len(tx.Meta.PostBalances) && tx.Meta.PostBalances[i] > tx.Meta.PreBalances[i] && !key.Equals(owner) {
				out.OtherParams["to"] = key.String()
				break
			}
		}
		if isFeePayer {
			out.NetworkFee = strconv.FormatUint(tx.Meta.Fee, 10)
		}
	}
	return out
}

// tokenDeltas sums balance changes of one mint per owner.
func tokenDeltas(meta *rpc.TransactionMeta, mint solana.PublicKey) map[string]int64 {
	deltas := make(map[string]int64)
	for _, pre := range meta.PreTokenBalances {
		if pre.Mint.Equals(mint) && pre.Owner != nil {
			amt, _ := strconv.ParseUint(pre.UiTokenAmount.Amount, 10, 64)
			deltas[pre.Owner.String()] -= int64(amt)
		}
	}
	for _, post := range meta.PostTokenBalances {
		if post.Mint.Equals(mint) && post.Owner != nil {
			amt, _ := strconv.ParseUint(post.UiTokenAmount.Amount, 10, 64)
			deltas[post.Owner.String()] += int64(amt)
		}
	}
	return deltas
}

func counterparty(deltas map[string]int64, match func(int64) bool) string {
	for owner, delta := range deltas {
		if match(delta) {
			return owner
		}
	}
	return ""
}

// isATANotFoundError checks if error indicates that an account doesn't exist
func isATANotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "could not find account") ||
		strings.Contains(errStr, "not found")
}
