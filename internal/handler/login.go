package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/internal/server"
)

// LoginHandler serves the account endpoints of the login server.
type LoginHandler struct {
	svc *server.Service
	log *zap.Logger
}

// NewLoginHandler creates a LoginHandler.
func NewLoginHandler(svc *server.Service, log *zap.Logger) *LoginHandler {
	return &LoginHandler{svc: svc, log: log}
}

// Login handles POST /api/v2/login
// @Summary      Log in
// @Description  Verifies one credential group and the account's OTP code
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.LoginRequest  true  "credentials"
// @Success      200      {object}  model.LoginReply
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login [post]
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	reply, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// Create handles POST /api/v2/login/create
// @Summary      Create account
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.CreateLoginRequest  true  "new account"
// @Success      200      {object}  model.StatusResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /api/v2/login/create [post]
func (h *LoginHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.CreateLoginRequest
	if !decode(w, r, &req) {
		return
	}
	h.status(w, h.svc.CreateLogin(r.Context(), req))
}

// Password handles POST /api/v2/login/password
// @Summary      Change password
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.ChangePasswordRequest  true  "new password data"
// @Success      200      {object}  model.StatusResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login/password [post]
func (h *LoginHandler) Password(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	h.status(w, h.svc.ChangePassword(r.Context(), req))
}

// Pin2 handles POST /api/v2/login/pin2
// @Summary      Change or remove PIN
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.ChangePin2Request  true  "new pin data"
// @Success      200      {object}  model.StatusResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login/pin2 [post]
func (h *LoginHandler) Pin2(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.ChangePin2Request
	if !decode(w, r, &req) {
		return
	}
	h.status(w, h.svc.ChangePin2(r.Context(), req))
}

// Recovery2 handles POST /api/v2/login/recovery2
// @Summary      Set recovery questions
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.ChangeRecovery2Request  true  "recovery data"
// @Success      200      {object}  model.StatusResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login/recovery2 [post]
func (h *LoginHandler) Recovery2(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.ChangeRecovery2Request
	if !decode(w, r, &req) {
		return
	}
	h.status(w, h.svc.ChangeRecovery2(r.Context(), req))
}

// Recovery2Questions handles POST /api/v2/login/recovery2/questions
// @Summary      Fetch recovery questions
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.Recovery2QuestionsRequest  true  "recovery id"
// @Success      200      {object}  model.Recovery2QuestionsReply
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login/recovery2/questions [post]
func (h *LoginHandler) Recovery2Questions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.Recovery2QuestionsRequest
	if !decode(w, r, &req) {
		return
	}
	box, err := h.svc.Recovery2Questions(r.Context(), req.Recovery2ID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Recovery2QuestionsReply{Question2Box: box})
}

// Questions handles GET /api/v2/questions
// @Summary      List recovery question choices
// @Tags         login
// @Produce      json
// @Success      200  {object}  model.QuestionChoicesReply
// @Router       /api/v2/questions [get]
func (h *LoginHandler) Questions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	choices, err := h.svc.QuestionChoices(r.Context())
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.QuestionChoicesReply{Choices: choices})
}

// Otp handles POST and DELETE /api/v2/login/otp
// @Summary      Enable or disable OTP
// @Tags         otp
// @Accept       json
// @Produce      json
// @Param        request  body      model.EnableOtpRequest  true  "otp secret (POST) or auth only (DELETE)"
// @Success      200      {object}  model.StatusResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login/otp [post]
// @Router       /api/v2/login/otp [delete]
func (h *LoginHandler) Otp(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req model.EnableOtpRequest
		if !decode(w, r, &req) {
			return
		}
		h.status(w, h.svc.EnableOtp(r.Context(), req))
	case http.MethodDelete:
		var req model.AuthBody
		if !decode(w, r, &req) {
			return
		}
		h.status(w, h.svc.DisableOtp(r.Context(), req))
	default:
		methodNotAllowed(w, "POST, DELETE")
	}
}

// CancelOtpReset handles DELETE /api/v2/login/otp/reset
// @Summary      Cancel a pending OTP reset
// @Tags         otp
// @Accept       json
// @Produce      json
// @Param        request  body      model.AuthBody  true  "auth"
// @Success      200      {object}  model.StatusResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login/otp/reset [delete]
func (h *LoginHandler) CancelOtpReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodDelete)
		return
	}
	var req model.AuthBody
	if !decode(w, r, &req) {
		return
	}
	h.status(w, h.svc.CancelOtpReset(r.Context(), req))
}

// RequestOtpReset handles POST /api/v2/otp/reset
// @Summary      Request an OTP reset
// @Description  Starts the reset window using the token from an otp_required error
// @Tags         otp
// @Accept       json
// @Produce      json
// @Param        request  body      model.OtpResetRequest  true  "reset token"
// @Success      200      {object}  model.OtpResetReply
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/otp/reset [post]
func (h *LoginHandler) RequestOtpReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.OtpResetRequest
	if !decode(w, r, &req) {
		return
	}
	date, err := h.svc.RequestOtpReset(r.Context(), req.UserID, req.OtpResetToken)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.OtpResetReply{OtpResetDate: date})
}

// Wallets handles POST /api/v2/login/wallets
// @Summary      Save the encrypted wallet list
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.SaveWalletsRequest  true  "wallet box"
// @Success      200      {object}  model.StatusResponse
// @Failure      401      {object}  model.ErrorResponse
// @Router       /api/v2/login/wallets [post]
func (h *LoginHandler) Wallets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.SaveWalletsRequest
	if !decode(w, r, &req) {
		return
	}
	h.status(w, h.svc.SaveWallets(r.Context(), req))
}

// UsernameAvailable handles POST /api/v2/users/available
// @Summary      Check whether a user id is free
// @Tags         login
// @Accept       json
// @Produce      json
// @Param        request  body      model.UsernameAvailableRequest  true  "user id"
// @Success      200      {object}  model.UsernameAvailableReply
// @Router       /api/v2/users/available [post]
func (h *LoginHandler) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req model.UsernameAvailableRequest
	if !decode(w, r, &req) {
		return
	}
	available, err := h.svc.UsernameAvailable(r.Context(), req.UserID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.UsernameAvailableReply{Available: available})
}

func (h *LoginHandler) status(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.StatusResponse{Success: true})
}
