package abc

// Metadata is user-facing information attached to a transaction.
type Metadata struct {
	Name       string  `json:"name,omitempty"`
	Category   string  `json:"category,omitempty"`
	Notes      string  `json:"notes,omitempty"`
	AmountFiat float64 `json:"amountFiat,omitempty"`
	BizID      int     `json:"bizId,omitempty"`
	MiscJSON   string  `json:"miscJson,omitempty"`
}

// Transaction is a chain transaction as reported by a currency engine.
// Amounts are integer strings in the currency's smallest unit.
type Transaction struct {
	TxID                string         `json:"txid"`
	Date                int64          `json:"date"`
	CurrencyCode        string         `json:"currencyCode"`
	BlockHeight         uint64         `json:"blockHeight"`
	NativeAmount        string         `json:"nativeAmount"`
	NetworkFee          string         `json:"networkFee"`
	OurReceiveAddresses []string       `json:"ourReceiveAddresses"`
	SignedTx            string         `json:"signedTx"`
	Metadata            *Metadata      `json:"metadata,omitempty"`
	OtherParams         map[string]any `json:"otherParams,omitempty"`
}

// SpendTarget is one output of a spend.
type SpendTarget struct {
	CurrencyCode  string    `json:"currencyCode,omitempty"`
	DestWalletID  string    `json:"destWalletId,omitempty"`
	PublicAddress string    `json:"publicAddress,omitempty"`
	NativeAmount  string    `json:"nativeAmount,omitempty"`
	DestMetadata  *Metadata `json:"destMetadata,omitempty"`
}

// SpendInfo describes a spend to build with MakeSpend.
type SpendInfo struct {
	CurrencyCode     string        `json:"currencyCode,omitempty"`
	NoUnconfirmed    bool          `json:"noUnconfirmed,omitempty"`
	SpendTargets     []SpendTarget `json:"spendTargets"`
	NetworkFeeOption string        `json:"networkFeeOption,omitempty"`
	CustomNetworkFee string        `json:"customNetworkFee,omitempty"`
	Metadata         *Metadata     `json:"metadata,omitempty"`
}

// CurrencyCodeOptions selects a token on engine queries. Empty means the
// wallet's native currency.
type CurrencyCodeOptions struct {
	CurrencyCode string `json:"currencyCode,omitempty"`
}

// TransactionsOptions filters GetTransactions.
type TransactionsOptions struct {
	CurrencyCode string `json:"currencyCode,omitempty"`
	StartIndex   int    `json:"startIndex,omitempty"`
	StartEntries int    `json:"startEntries,omitempty"`
	StartDate    int64  `json:"startDate,omitempty"`
	EndDate      int64  `json:"endDate,omitempty"`
	SearchString string `json:"searchString,omitempty"`
}

// DataDump is diagnostic engine state.
type DataDump struct {
	WalletID   string         `json:"walletId"`
	WalletType string         `json:"walletType"`
	PluginType string         `json:"pluginType"`
	Data       map[string]any `json:"data"`
}
