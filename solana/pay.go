package solana

import (
	"context"
	"encoding/base64"
	"fmt"
	"maps"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/common"
)

const (
	solFeeLamports = 5000 // Fee in lamports (0.000005 SOL)

	paramUnsignedTx = "unsignedTx"
)

// MakeSpend builds an unsigned transfer to a single target. The returned
// transaction's NativeAmount is negative and includes the fee for SOL.
func (e *Engine) MakeSpend(ctx context.Context, spend abc.SpendInfo) (*abc.Transaction, error) {
	if len(spend.SpendTargets) != 1 {
		return nil, &abc.ValidationError{Message: "solana spends need exactly one target"}
	}
	target := spend.SpendTargets[0]

	code := spend.CurrencyCode
	if target.CurrencyCode != "" {
		code = target.CurrencyCode
	}
	if code == "" {
		code = currencyCode
	}
	if _, err := e.plugin.decimals(code); err != nil {
		return nil, err
	}

	// Validate recipient address
	toPubkey, err := solana.PublicKeyFromBase58(target.PublicAddress)
	if err != nil {
		return nil, &abc.ValidationError{Message: "invalid Solana address", Err: err}
	}
	amount, err := common.ParseNative(target.NativeAmount)
	if err != nil || amount == 0 {
		return nil, &abc.ValidationError{Message: "spend amount must be a positive integer", Err: err}
	}

	var instructions []solana.Instruction
	var total uint64
	if code == currencyCode {
		instructions, total, err = e.solInstructions(toPubkey, amount)
	} else {
		instructions, total, err = e.tokenInstructions(ctx, code, toPubkey, amount)
	}
	if err != nil {
		return nil, err
	}

	// Get latest blockhash (GetRecentBlockhash is deprecated, use GetLatestBlockhash)
	recent, err := e.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(instructions, recent, solana.TransactionPayer(e.owner))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	unsigned, err := encodeMessage(tx.Message)
	if err != nil {
		return nil, err
	}

	return &abc.Transaction{
		Date:         time.Now().Unix(),
		CurrencyCode: code,
		NativeAmount: "-" + strconv.FormatUint(total, 10),
		NetworkFee:   strconv.FormatUint(solFeeLamports, 10),
		Metadata:     spend.Metadata,
		OtherParams: map[string]any{
			"from":          e.owner.String(),
			"to":            toPubkey.String(),
			paramUnsignedTx: unsigned,
		},
	}, nil
}

// solInstructions checks the SOL balance covers amount plus fee.
func (e *Engine) solInstructions(to solana.PublicKey, lamports uint64) ([]solana.Instruction, uint64, error) {
	e.mu.Lock()
	balance := e.balances[currencyCode]
	e.mu.Unlock()

	required := lamports + solFeeLamports
	if balance < required {
		// Calculate max amount user can send
		var maxLamports uint64
		if balance > solFeeLamports {
			maxLamports = balance - solFeeLamports
		}
		return nil, 0, &abc.ValidationError{Message: fmt.Sprintf(
			"insufficient SOL balance. Transaction fee: %s SOL. Max you can send: %s SOL",
			common.FormatNative(solFeeLamports, solDecimals), common.FormatNative(maxLamports, solDecimals))}
	}

	transfer := system.NewTransferInstruction(lamports, e.owner, to).Build()
	return []solana.Instruction{transfer}, required, nil
}

// tokenInstructions builds an SPL transfer, creating the recipient's token
// account first when it does not exist yet.
func (e *Engine) tokenInstructions(ctx context.Context, code string, to solana.PublicKey, amount uint64) ([]solana.Instruction, uint64, error) {
	t := e.plugin.tokens[code]

	e.mu.Lock()
	tokenBalance := e.balances[code]
	solBalance := e.balances[currencyCode]
	e.mu.Unlock()

	if tokenBalance < amount {
		return nil, 0, &abc.ValidationError{Message: fmt.Sprintf("insufficient %s balance", code)}
	}
	if solBalance < solFeeLamports {
		return nil, 0, &abc.ValidationError{Message: fmt.Sprintf(
			"insufficient SOL for transaction fee (fee: %s SOL). Have: %s SOL",
			common.FormatNative(solFeeLamports, solDecimals), common.FormatNative(solBalance, solDecimals))}
	}

	source, _, err := solana.FindAssociatedTokenAddress(e.owner, t.mint)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find source token account address: %w", err)
	}
	dest, _, err := solana.FindAssociatedTokenAddress(to, t.mint)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find destination token account: %w", err)
	}
	exists, err := e.chain.AccountExists(ctx, dest)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get destination account info: %w", err)
	}

	var instructions []solana.Instruction
	if !exists {
		instructions = append(instructions, associatedtokenaccount.NewCreateInstruction(
			e.owner, // payer
			to,      // owner
			t.mint,  // mint
		).Build())
	}
	instructions = append(instructions, token.NewTransferCheckedInstruction(
		amount,
		uint8(t.decimals),
		source,
		t.mint,
		dest,
		e.owner,
		[]solana.PublicKey{},
	).Build())
	return instructions, amount, nil
}

// SignTx signs a transaction made by MakeSpend with the wallet's key.
func (e *Engine) SignTx(ctx context.Context, in *abc.Transaction) (*abc.Transaction, error) {
	if e.private == nil {
		return nil, &abc.ValidationError{Message: "watch-only wallet cannot sign"}
	}
	raw, _ := in.OtherParams[paramUnsignedTx].(string)
	if raw == "" {
		return nil, &abc.ValidationError{Message: "transaction was not made by MakeSpend"}
	}
	message, err := decodeMessage(raw)
	if err != nil {
		return nil, err
	}
	tx := &solana.Transaction{Message: *message}

	wallet := e.private
	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if wallet.PublicKey().Equals(key) {
			return &wallet
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	signed, err := encodeTx(tx)
	if err != nil {
		return nil, err
	}

	out := *in
	out.OtherParams = maps.Clone(in.OtherParams)
	out.SignedTx = signed
	out.TxID = tx.Signatures[0].String()
	return &out, nil
}

// BroadcastTx sends a signed transaction.
func (e *Engine) BroadcastTx(ctx context.Context, in *abc.Transaction) (*abc.Transaction, error) {
	if in.SignedTx == "" {
		return nil, &abc.ValidationError{Message: "transaction is not signed"}
	}
	tx, err := decodeTx(in.SignedTx)
	if err != nil {
		return nil, err
	}
	sig, err := e.chain.Send(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	e.log.Info("transaction sent", zap.String("txid", sig.String()), zap.String("currency", in.CurrencyCode))

	out := *in
	out.TxID = sig.String()
	return &out, nil
}

// encodeMessage serializes the unsigned part of a transaction.
func encodeMessage(message solana.Message) (string, error) {
	raw, err := message.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction message: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeMessage(s string) (*solana.Message, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &abc.ValidationError{Message: "transaction message is not base64", Err: err}
	}
	var message solana.Message
	if err := message.UnmarshalWithDecoder(bin.NewBinDecoder(raw)); err != nil {
		return nil, &abc.ValidationError{Message: "transaction message does not decode", Err: err}
	}
	return &message, nil
}

func encodeTx(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func decodeTx(s string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &abc.ValidationError{Message: "transaction is not base64", Err: err}
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, &abc.ValidationError{Message: "transaction does not decode", Err: err}
	}
	return tx, nil
}
