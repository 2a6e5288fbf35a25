package abc

// Denomination is a display unit for a currency.
type Denomination struct {
	Name       string `json:"name"`
	Multiplier string `json:"multiplier"`
	Symbol     string `json:"symbol,omitempty"`
}

// MetaToken is a token a currency engine can track.
type MetaToken struct {
	CurrencyCode    string         `json:"currencyCode"`
	CurrencyName    string         `json:"currencyName"`
	Denominations   []Denomination `json:"denominations"`
	ContractAddress string         `json:"contractAddress,omitempty"`
	SymbolImage     string         `json:"symbolImage,omitempty"`
}

// CurrencyInfo describes the currency a plugin serves.
type CurrencyInfo struct {
	WalletTypes         []string       `json:"walletTypes"`
	CurrencyName        string         `json:"currencyName"`
	CurrencyCode        string         `json:"currencyCode"`
	AddressExplorer     string         `json:"addressExplorer"`
	TransactionExplorer string         `json:"transactionExplorer"`
	DefaultSettings     map[string]any `json:"defaultSettings"`
	Denominations       []Denomination `json:"denominations"`
	SymbolImage         string         `json:"symbolImage"`
	MetaTokens          []MetaToken    `json:"metaTokens,omitempty"`
}

// ParsedURI is the result of parsing a payment link or address.
type ParsedURI struct {
	PublicAddress       string    `json:"publicAddress,omitempty"`
	NativeAmount        string    `json:"nativeAmount,omitempty"`
	CurrencyCode        string    `json:"currencyCode,omitempty"`
	Metadata            *Metadata `json:"metadata,omitempty"`
	BitIDURI            string    `json:"bitIDURI,omitempty"`
	BitIDDomain         string    `json:"bitIDDomain,omitempty"`
	BitIDCallbackURI    string    `json:"bitIDCallbackUri,omitempty"`
	PaymentProtocolURI  string    `json:"paymentProtocolUri,omitempty"`
	ReturnURI           string    `json:"returnUri,omitempty"`
	BitIDPaymentAddress string    `json:"bitidPaymentAddress,omitempty"`
	BitIDKycProvider    string    `json:"bitidKycProvider,omitempty"`
	BitIDKycRequest     string    `json:"bitidKycRequest,omitempty"`
}

// EncodeURI is the input to a plugin's EncodeURI.
type EncodeURI struct {
	PublicAddress string `json:"publicAddress"`
	NativeAmount  string `json:"nativeAmount,omitempty"`
	CurrencyCode  string `json:"currencyCode,omitempty"`
	Label         string `json:"label,omitempty"`
	Message       string `json:"message,omitempty"`
}

// FreshAddress is a receive address handed out by an engine.
type FreshAddress struct {
	PublicAddress string `json:"publicAddress"`
	SegwitAddress string `json:"segwitAddress,omitempty"`
}
