package model

import "time"

// LoginStash is the per-username record kept on the device.
type LoginStash struct {
	Username        string        `json:"username"`
	UserID          string        `json:"userId"`
	LastLogin       time.Time     `json:"lastLogin"`
	PasswordKeySnrp *Snrp         `json:"passwordKeySnrp,omitempty"`
	PasswordBox     *EncryptedBox `json:"passwordBox,omitempty"`
	Pin2Key         string        `json:"pin2Key,omitempty"`
	Recovery2Key    string        `json:"recovery2Key,omitempty"`
	OtpKey          string        `json:"otpKey,omitempty"`
	OtpResetDate    *time.Time    `json:"otpResetDate,omitempty"`
	WalletBox       *EncryptedBox `json:"walletBox,omitempty"`
}
