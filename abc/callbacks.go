package abc

// AccountCallbacks observes one logged-in account.
// Wallet events carry the id of the wallet whose engine emitted them.
type AccountCallbacks interface {
	// OnDataChanged fires when a login sync finds the account's OTP
	// settings or wallet list changed on the server.
	OnDataChanged()
	OnKeyListChanged()
	OnLoggedOut()
	// OnOTPRequired fires when the server starts asking this device for an
	// OTP code it cannot produce.
	OnOTPRequired()
	OnOTPSkew(drift int)
	// OnRemotePasswordChange fires when another device changed the password.
	OnRemotePasswordChange()
	OnError(err error)

	OnAddressesChecked(walletID string, progressRatio float64)
	OnBalanceChanged(walletID, currencyCode, nativeBalance string)
	OnBlockHeightChanged(walletID string, blockHeight uint64)
	OnNewTransactions(walletID string, txs []Transaction)
	OnTransactionsChanged(walletID string, txs []Transaction)
	OnTxidsChanged(walletID string, txids []string)
	// OnWalletDataChanged fires for every wallet whose record changed.
	OnWalletDataChanged(walletID string)
}

// NoopCallbacks implements AccountCallbacks with empty methods.
// Embed it to override only the events you care about.
type NoopCallbacks struct{}

var _ AccountCallbacks = NoopCallbacks{}

func (NoopCallbacks) OnDataChanged()                              {}
func (NoopCallbacks) OnKeyListChanged()                           {}
func (NoopCallbacks) OnLoggedOut()                                {}
func (NoopCallbacks) OnOTPRequired()                              {}
func (NoopCallbacks) OnOTPSkew(int)                               {}
func (NoopCallbacks) OnRemotePasswordChange()                     {}
func (NoopCallbacks) OnError(error)                               {}
func (NoopCallbacks) OnAddressesChecked(string, float64)          {}
func (NoopCallbacks) OnBalanceChanged(string, string, string)     {}
func (NoopCallbacks) OnBlockHeightChanged(string, uint64)         {}
func (NoopCallbacks) OnNewTransactions(string, []Transaction)     {}
func (NoopCallbacks) OnTransactionsChanged(string, []Transaction) {}
func (NoopCallbacks) OnTxidsChanged(string, []string)             {}
func (NoopCallbacks) OnWalletDataChanged(string)                  {}
