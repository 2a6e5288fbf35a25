package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/model"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

// errorResponse maps service errors to a status and error body.
func errorResponse(err error) (int, model.ErrorResponse) {
	var (
		otpRequired *abc.OtpRequiredError
		otpPending  *abc.OtpResetPendingError
	)
	switch {
	case abc.IsAuthError(err):
		return http.StatusUnauthorized, model.ErrorResponse{Error: "invalid credentials", Code: model.CodeBadCredentials}
	case errors.As(err, &otpRequired):
		return http.StatusUnauthorized, model.ErrorResponse{
			Error:         err.Error(),
			Code:          model.CodeOtpRequired,
			OtpResetToken: otpRequired.ResetToken,
			OtpResetDate:  otpRequired.ResetDate,
		}
	case errors.As(err, &otpPending):
		date := otpPending.ResetDate
		return http.StatusUnauthorized, model.ErrorResponse{
			Error:        err.Error(),
			Code:         model.CodeOtpResetPending,
			OtpResetDate: &date,
		}
	case abc.IsLobbyExpiredError(err):
		return http.StatusNotFound, model.ErrorResponse{Error: err.Error(), Code: model.CodeLobbyExpired}
	case abc.IsAlreadyResolvedError(err):
		return http.StatusConflict, model.ErrorResponse{Error: err.Error(), Code: model.CodeAlreadyResolved}
	case errors.Is(err, abc.ErrUsernameTaken):
		return http.StatusConflict, model.ErrorResponse{Error: err.Error(), Code: model.CodeConflict}
	case abc.IsNotFoundError(err):
		return http.StatusNotFound, model.ErrorResponse{Error: err.Error(), Code: model.CodeNotFound}
	case abc.IsValidationError(err):
		return http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: model.CodeBadRequest}
	default:
		return http.StatusInternalServerError, model.ErrorResponse{Error: "internal error", Code: model.CodeInternal}
	}
}

// decode reads a JSON body. It writes the error response itself and
// returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "invalid JSON body", Code: model.CodeBadRequest})
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	http.Error(w, "Method not allowed. should be "+allowed, http.StatusMethodNotAllowed)
}
