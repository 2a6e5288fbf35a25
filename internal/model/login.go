package model

import "time"

// LoginRequest is the body of POST /api/v2/login. Exactly one credential
// group is set: passwordAuth or loginAuth with userId, pin2Id with
// pin2Auth, or recovery2Id with recovery2Auth.
type LoginRequest struct {
	UserID        string   `json:"userId,omitempty"`
	PasswordAuth  string   `json:"passwordAuth,omitempty"`
	LoginAuth     string   `json:"loginAuth,omitempty"`
	Pin2ID        string   `json:"pin2Id,omitempty"`
	Pin2Auth      string   `json:"pin2Auth,omitempty"`
	Recovery2ID   string   `json:"recovery2Id,omitempty"`
	Recovery2Auth []string `json:"recovery2Auth,omitempty"`
	OTP           string   `json:"otp,omitempty"`
}

// LoginReply carries everything a device needs to rebuild its login stash.
type LoginReply struct {
	UserID          string        `json:"userId"`
	PasswordKeySnrp *Snrp         `json:"passwordKeySnrp,omitempty"`
	PasswordBox     *EncryptedBox `json:"passwordBox,omitempty"`
	Pin2Box         *EncryptedBox `json:"pin2Box,omitempty"`
	Recovery2Box    *EncryptedBox `json:"recovery2Box,omitempty"`
	WalletBox       *EncryptedBox `json:"walletBox,omitempty"`
	OtpKey          string        `json:"otpKey,omitempty"`
	OtpResetDate    *time.Time    `json:"otpResetDate,omitempty"`
	// OtpDrift is the accepted code's offset in time steps.
	OtpDrift int `json:"otpDrift,omitempty"`
}

// CreateLoginRequest is the body of POST /api/v2/login/create.
type CreateLoginRequest struct {
	UserID          string        `json:"userId"`
	LoginAuth       string        `json:"loginAuth"`
	PasswordAuth    string        `json:"passwordAuth,omitempty"`
	PasswordKeySnrp *Snrp         `json:"passwordKeySnrp,omitempty"`
	PasswordBox     *EncryptedBox `json:"passwordBox,omitempty"`
	WalletBox       *EncryptedBox `json:"walletBox,omitempty"`
}

// AuthBody proves possession of the login key.
type AuthBody struct {
	UserID    string `json:"userId"`
	LoginAuth string `json:"loginAuth"`
}

// ChangePasswordRequest is the body of POST /api/v2/login/password.
type ChangePasswordRequest struct {
	AuthBody
	PasswordAuth    string        `json:"passwordAuth"`
	PasswordKeySnrp *Snrp         `json:"passwordKeySnrp"`
	PasswordBox     *EncryptedBox `json:"passwordBox"`
}

// ChangePin2Request is the body of POST /api/v2/login/pin2.
// An empty Pin2ID removes PIN login.
type ChangePin2Request struct {
	AuthBody
	Pin2ID   string        `json:"pin2Id,omitempty"`
	Pin2Auth string        `json:"pin2Auth,omitempty"`
	Pin2Box  *EncryptedBox `json:"pin2Box,omitempty"`
}

// ChangeRecovery2Request is the body of POST /api/v2/login/recovery2.
type ChangeRecovery2Request struct {
	AuthBody
	Recovery2ID   string        `json:"recovery2Id"`
	Recovery2Auth []string      `json:"recovery2Auth"`
	Question2Box  *EncryptedBox `json:"question2Box"`
	Recovery2Box  *EncryptedBox `json:"recovery2Box"`
}

// Recovery2QuestionsRequest is the body of POST /api/v2/login/recovery2/questions.
type Recovery2QuestionsRequest struct {
	Recovery2ID string `json:"recovery2Id"`
}

// Recovery2QuestionsReply returns the encrypted questions.
type Recovery2QuestionsReply struct {
	Question2Box *EncryptedBox `json:"question2Box"`
}

// QuestionChoicesReply is the reply of GET /api/v2/questions.
type QuestionChoicesReply struct {
	Choices []string `json:"choices"`
}

// EnableOtpRequest is the body of POST /api/v2/login/otp.
type EnableOtpRequest struct {
	AuthBody
	OtpKey string `json:"otpKey"`
	// OtpTimeout is the reset window in seconds. Zero uses the server default.
	OtpTimeout int64 `json:"otpTimeout,omitempty"`
}

// OtpResetRequest is the body of POST /api/v2/otp/reset.
type OtpResetRequest struct {
	UserID        string `json:"userId"`
	OtpResetToken string `json:"otpResetToken"`
}

// OtpResetReply reports when a requested reset matures.
type OtpResetReply struct {
	OtpResetDate time.Time `json:"otpResetDate"`
}

// SaveWalletsRequest is the body of POST /api/v2/login/wallets.
type SaveWalletsRequest struct {
	AuthBody
	WalletBox *EncryptedBox `json:"walletBox"`
}

// UsernameAvailableRequest is the body of POST /api/v2/users/available.
type UsernameAvailableRequest struct {
	UserID string `json:"userId"`
}

// UsernameAvailableReply reports whether a user id is free.
type UsernameAvailableReply struct {
	Available bool `json:"available"`
}

// StatusResponse is returned by endpoints without a payload.
type StatusResponse struct {
	Success bool `json:"success"`
}
