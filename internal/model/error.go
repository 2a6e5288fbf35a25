package model

import "time"

// Error codes returned by the login server.
const (
	CodeBadRequest      = "bad_request"
	CodeBadCredentials  = "bad_credentials"
	CodeOtpRequired     = "otp_required"
	CodeOtpResetPending = "otp_reset_pending"
	CodeNotFound        = "not_found"
	CodeLobbyExpired    = "lobby_expired"
	CodeAlreadyResolved = "already_resolved"
	CodeConflict        = "conflict"
	CodeInternal        = "internal"
)

// ErrorResponse is the consistent JSON structure for all API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	// Set with CodeOtpRequired and CodeOtpResetPending.
	OtpResetToken string     `json:"otpResetToken,omitempty"`
	OtpResetDate  *time.Time `json:"otpResetDate,omitempty"`
}
