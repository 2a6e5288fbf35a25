package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/plugin"
)

func validInfo() abc.CurrencyInfo {
	return abc.CurrencyInfo{
		WalletTypes:         []string{"wallet:solana"},
		CurrencyCode:        "SOL",
		CurrencyName:        "Solana",
		AddressExplorer:     "https://explorer.solana.com/address/%s",
		TransactionExplorer: "https://explorer.solana.com/tx/%s",
		DefaultSettings:     map[string]any{},
		Denominations:       []abc.Denomination{{Name: "SOL", Multiplier: "1000000000", Symbol: "◎"}},
		SymbolImage:         "https://example.com/sol.png",
	}
}

func TestValidateCurrencyInfo(t *testing.T) {
	t.Run("A complete document passes", func(t *testing.T) {
		require.NoError(t, plugin.ValidateCurrencyInfo(validInfo()))
	})

	t.Run("Meta tokens need denominations", func(t *testing.T) {
		info := validInfo()
		info.MetaTokens = []abc.MetaToken{{CurrencyCode: "USDC", CurrencyName: "USD Coin"}}
		err := plugin.ValidateCurrencyInfo(info)
		assert.True(t, abc.IsValidationError(err))
	})

	t.Run("Null default settings still count as present", func(t *testing.T) {
		info := validInfo()
		info.DefaultSettings = nil
		require.NoError(t, plugin.ValidateCurrencyInfo(info))
	})

	t.Run("Denominations must be a list", func(t *testing.T) {
		info := validInfo()
		info.Denominations = nil
		assert.True(t, abc.IsValidationError(plugin.ValidateCurrencyInfo(info)))
	})
}

func TestValidateEthFees(t *testing.T) {
	good := []byte(`{
		"default": {
			"gasLimit": {"regularTransaction": "21000", "tokenTransaction": "200000"},
			"gasPrice": {
				"lowFee": "1000000001",
				"standardFeeLow": "40000000001",
				"standardFeeHigh": "300000000001",
				"standardFeeLowAmount": "100000000000000000",
				"standardFeeHighAmount": "10000000000000000000",
				"highFee": "40000000001"
			}
		},
		"0x1234": {
			"gasLimit": {"regularTransaction": "21001", "tokenTransaction": "37123"}
		}
	}`)
	require.NoError(t, plugin.ValidateEthFees(good))

	missingLimit := []byte(`{"default": {"gasPrice": {}}}`)
	assert.True(t, abc.IsValidationError(plugin.ValidateEthFees(missingLimit)))

	wrongType := []byte(`{"default": {"gasLimit": {"regularTransaction": 21000, "tokenTransaction": "1"}}}`)
	assert.True(t, abc.IsValidationError(plugin.ValidateEthFees(wrongType)))
}
