package solana

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/common"
)

const uriScheme = "solana"

// ParseURI reads a Solana Pay link or a bare address. Amounts in the link
// are decimal; the result carries them in the currency's smallest unit.
func (p *Plugin) ParseURI(uri string) (abc.ParsedURI, error) {
	var out abc.ParsedURI
	uri = strings.TrimSpace(uri)

	if isValidSolanaAddress(uri) {
		out.PublicAddress = uri
		out.CurrencyCode = currencyCode
		return out, nil
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme != uriScheme {
		return out, &abc.ValidationError{Message: "not a solana address or payment link", Err: err}
	}
	address := u.Opaque
	if address == "" {
		address = u.Host + u.Path
	}
	if !isValidSolanaAddress(address) {
		return out, &abc.ValidationError{Message: fmt.Sprintf("invalid Solana address %q", address)}
	}
	out.PublicAddress = address
	out.CurrencyCode = currencyCode

	query := u.Query()
	if mint := query.Get("spl-token"); mint != "" {
		t, ok := p.tokenByMint(mint)
		if !ok {
			return out, &abc.ValidationError{Message: fmt.Sprintf("unsupported token mint %q", mint)}
		}
		out.CurrencyCode = t.code
	}

	if amount := query.Get("amount"); amount != "" {
		decimals, err := p.decimals(out.CurrencyCode)
		if err != nil {
			return out, err
		}
		native, err := common.ParseWithDecimals(amount, decimals)
		if err != nil {
			return out, &abc.ValidationError{Message: "invalid amount in payment link", Err: err}
		}
		out.NativeAmount = fmt.Sprint(native)
	}

	label, message := query.Get("label"), query.Get("message")
	if label != "" || message != "" {
		out.Metadata = &abc.Metadata{Name: label, Notes: message}
	}
	return out, nil
}

// EncodeURI builds a Solana Pay link. A bare address comes back unchanged.
func (p *Plugin) EncodeURI(obj abc.EncodeURI) (string, error) {
	if !isValidSolanaAddress(obj.PublicAddress) {
		return "", &abc.ValidationError{Message: fmt.Sprintf("invalid Solana address %q", obj.PublicAddress)}
	}
	code := obj.CurrencyCode
	if code == "" {
		code = currencyCode
	}
	decimals, err := p.decimals(code)
	if err != nil {
		return "", err
	}

	query := url.Values{}
	if obj.NativeAmount != "" {
		native, err := common.ParseNative(obj.NativeAmount)
		if err != nil {
			return "", &abc.ValidationError{Message: "invalid native amount", Err: err}
		}
		query.Set("amount", common.FormatNative(native, decimals))
	}
	if code != currencyCode {
		query.Set("spl-token", p.tokens[code].mint.String())
	}
	if obj.Label != "" {
		query.Set("label", obj.Label)
	}
	if obj.Message != "" {
		query.Set("message", obj.Message)
	}

	if len(query) == 0 {
		return obj.PublicAddress, nil
	}
	return uriScheme + ":" + obj.PublicAddress + "?" + query.Encode(), nil
}
