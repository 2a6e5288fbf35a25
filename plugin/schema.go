package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema"

	"github.com/AlexZinkM/abc-core/abc"
)

// EthFeesSchema validates an Ethereum-style fee table keyed by address or
// "default".
const EthFeesSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "properties": {
      "gasLimit": {
        "type": "object",
        "properties": {
          "regularTransaction": { "type": "string" },
          "tokenTransaction": { "type": "string" }
        },
        "required": ["regularTransaction", "tokenTransaction"]
      },
      "gasPrice": {
        "type": "object",
        "properties": {
          "lowFee": { "type": "string" },
          "standardFeeLow": { "type": "string" },
          "standardFeeHigh": { "type": "string" },
          "standardFeeLowAmount": { "type": "string" },
          "standardFeeHighAmount": { "type": "string" },
          "highFee": { "type": "string" }
        },
        "required": [
          "lowFee",
          "standardFeeLow",
          "standardFeeHigh",
          "standardFeeLowAmount",
          "standardFeeHighAmount",
          "highFee"
        ]
      }
    },
    "required": ["gasLimit"]
  }
}`

// CurrencyInfoSchema validates a plugin's CurrencyInfo.
const CurrencyInfoSchema = `{
  "type": "object",
  "properties": {
    "walletTypes": {
      "type": "array",
      "items": { "type": "string" }
    },
    "currencyCode": { "type": "string" },
    "currencyName": { "type": "string" },
    "addressExplorer": { "type": "string" },
    "transactionExplorer": { "type": "string" },
    "denominations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": { "type": "string" },
          "multiplier": { "type": "string" },
          "symbol": { "type": "string" }
        },
        "required": ["name", "multiplier"]
      }
    },
    "symbolImage": { "type": "string" },
    "metaTokens": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "currencyCode": { "type": "string" },
          "currencyName": { "type": "string" },
          "denominations": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "name": { "type": "string" },
                "multiplier": { "type": "string" },
                "symbol": { "type": "string" }
              },
              "required": ["name", "multiplier"]
            }
          },
          "contractAddress": { "type": "string" },
          "symbolImage": { "type": "string" }
        },
        "required": ["currencyCode", "currencyName", "denominations"]
      }
    }
  },
  "required": [
    "walletTypes",
    "currencyCode",
    "currencyName",
    "defaultSettings",
    "denominations",
    "symbolImage",
    "addressExplorer",
    "transactionExplorer"
  ]
}`

const (
	ethFeesURL      = "abc://schema/eth-fees.json"
	currencyInfoURL = "abc://schema/currency-info.json"
)

var (
	schemasOnce sync.Once
	schemasErr  error
	ethFees     *jsonschema.Schema
	infoSchema  *jsonschema.Schema
)

func compileSchemas() error {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(ethFeesURL, strings.NewReader(EthFeesSchema)); err != nil {
			schemasErr = fmt.Errorf("failed to add fee schema: %w", err)
			return
		}
		if err := compiler.AddResource(currencyInfoURL, strings.NewReader(CurrencyInfoSchema)); err != nil {
			schemasErr = fmt.Errorf("failed to add currency info schema: %w", err)
			return
		}
		if ethFees, schemasErr = compiler.Compile(ethFeesURL); schemasErr != nil {
			return
		}
		infoSchema, schemasErr = compiler.Compile(currencyInfoURL)
	})
	return schemasErr
}

// ValidateCurrencyInfo checks info against CurrencyInfoSchema.
func ValidateCurrencyInfo(info abc.CurrencyInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return &abc.ValidationError{Message: "currency info does not encode", Err: err}
	}
	return validate(func() *jsonschema.Schema { return infoSchema }, raw, "currency info")
}

// ValidateEthFees checks a raw fee table against EthFeesSchema.
func ValidateEthFees(raw []byte) error {
	return validate(func() *jsonschema.Schema { return ethFees }, raw, "fee table")
}

func validate(schema func() *jsonschema.Schema, raw []byte, what string) error {
	if err := compileSchemas(); err != nil {
		return err
	}
	if err := schema().Validate(bytes.NewReader(raw)); err != nil {
		return &abc.ValidationError{Message: what + " does not match schema", Err: err}
	}
	return nil
}
