package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/platform"
)

const maxReplyBytes = 1 << 20

// AuthClient talks to the login server through the context's fetch.
type AuthClient struct {
	baseURL string
	apiKey  string
	fetch   platform.FetchFunc
	log     *zap.Logger
}

// NewAuthClient creates a client for the login server at baseURL.
func NewAuthClient(baseURL, apiKey string, fetch platform.FetchFunc, log *zap.Logger) *AuthClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		fetch:   fetch,
		log:     log,
	}
}

// Login verifies one credential group and returns the account's login data.
func (c *AuthClient) Login(ctx context.Context, req model.LoginRequest) (*model.LoginReply, error) {
	var reply model.LoginReply
	if err := c.do(ctx, http.MethodPost, "/api/v2/login", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CreateLogin registers a new account.
func (c *AuthClient) CreateLogin(ctx context.Context, req model.CreateLoginRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v2/login/create", req, nil)
}

// ChangePassword replaces the password authenticator and box.
func (c *AuthClient) ChangePassword(ctx context.Context, req model.ChangePasswordRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v2/login/password", req, nil)
}

// ChangePin2 replaces or removes the PIN authenticator.
func (c *AuthClient) ChangePin2(ctx context.Context, req model.ChangePin2Request) error {
	return c.do(ctx, http.MethodPost, "/api/v2/login/pin2", req, nil)
}

// ChangeRecovery2 replaces the recovery questions and answers.
func (c *AuthClient) ChangeRecovery2(ctx context.Context, req model.ChangeRecovery2Request) error {
	return c.do(ctx, http.MethodPost, "/api/v2/login/recovery2", req, nil)
}

// Recovery2Questions fetches the encrypted recovery questions.
func (c *AuthClient) Recovery2Questions(ctx context.Context, recovery2ID string) (*model.EncryptedBox, error) {
	var reply model.Recovery2QuestionsReply
	req := model.Recovery2QuestionsRequest{Recovery2ID: recovery2ID}
	if err := c.do(ctx, http.MethodPost, "/api/v2/login/recovery2/questions", req, &reply); err != nil {
		return nil, err
	}
	if reply.Question2Box == nil {
		return nil, &abc.AuthError{}
	}
	return reply.Question2Box, nil
}

// QuestionChoices lists the server's recovery question suggestions.
func (c *AuthClient) QuestionChoices(ctx context.Context) ([]string, error) {
	var reply model.QuestionChoicesReply
	if err := c.do(ctx, http.MethodGet, "/api/v2/questions", nil, &reply); err != nil {
		return nil, err
	}
	return reply.Choices, nil
}

// EnableOtp turns on OTP for the account.
func (c *AuthClient) EnableOtp(ctx context.Context, req model.EnableOtpRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v2/login/otp", req, nil)
}

// DisableOtp turns off OTP for the account.
func (c *AuthClient) DisableOtp(ctx context.Context, auth model.AuthBody) error {
	return c.do(ctx, http.MethodDelete, "/api/v2/login/otp", auth, nil)
}

// CancelOtpReset drops a pending OTP reset.
func (c *AuthClient) CancelOtpReset(ctx context.Context, auth model.AuthBody) error {
	return c.do(ctx, http.MethodDelete, "/api/v2/login/otp/reset", auth, nil)
}

// RequestOtpReset starts the reset timer using a token from an OTP error.
func (c *AuthClient) RequestOtpReset(ctx context.Context, userID, resetToken string) (time.Time, error) {
	var reply model.OtpResetReply
	req := model.OtpResetRequest{UserID: userID, OtpResetToken: resetToken}
	if err := c.do(ctx, http.MethodPost, "/api/v2/otp/reset", req, &reply); err != nil {
		return time.Time{}, err
	}
	return reply.OtpResetDate, nil
}

// SaveWallets uploads the encrypted wallet list.
func (c *AuthClient) SaveWallets(ctx context.Context, req model.SaveWalletsRequest) error {
	return c.do(ctx, http.MethodPost, "/api/v2/login/wallets", req, nil)
}

// UsernameAvailable reports whether userID is unregistered.
func (c *AuthClient) UsernameAvailable(ctx context.Context, userID string) (bool, error) {
	var reply model.UsernameAvailableReply
	req := model.UsernameAvailableRequest{UserID: userID}
	if err := c.do(ctx, http.MethodPost, "/api/v2/users/available", req, &reply); err != nil {
		return false, err
	}
	return reply.Available, nil
}

// CreateLobby opens an edge-login lobby.
func (c *AuthClient) CreateLobby(ctx context.Context, id string, req model.CreateLobbyRequest) error {
	return lobbyErr(id, c.do(ctx, http.MethodPost, lobbyPath(id), req, nil))
}

// FetchLobby reads a lobby and its reply, if any.
func (c *AuthClient) FetchLobby(ctx context.Context, id string) (*model.Lobby, error) {
	var lobby model.Lobby
	if err := c.do(ctx, http.MethodGet, lobbyPath(id), nil, &lobby); err != nil {
		return nil, lobbyErr(id, err)
	}
	return &lobby, nil
}

// ReplyLobby stores the approving device's reply. A lobby accepts one reply.
func (c *AuthClient) ReplyLobby(ctx context.Context, id string, reply model.LobbyReply) error {
	return lobbyErr(id, c.do(ctx, http.MethodPut, lobbyPath(id), reply, nil))
}

// DeleteLobby cancels a lobby.
func (c *AuthClient) DeleteLobby(ctx context.Context, id string) error {
	return lobbyErr(id, c.do(ctx, http.MethodDelete, lobbyPath(id), nil, nil))
}

func lobbyPath(id string) string {
	return "/api/v2/lobby/" + url.PathEscape(id)
}

// lobbyErr fills in the lobby id on lobby errors.
func lobbyErr(id string, err error) error {
	var expired *abc.LobbyExpiredError
	if errors.As(err, &expired) {
		expired.LobbyID = id
	}
	var resolved *abc.AlreadyResolvedError
	if errors.As(err, &resolved) {
		resolved.LobbyID = id
	}
	return err
}

func (c *AuthClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	op := method + " " + path
	resp, err := c.fetch(req)
	if err != nil {
		c.log.Warn("login server request failed", zap.String("op", op), zap.Error(err))
		return &abc.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return &abc.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.mapError(op, resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &abc.NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode reply: %w", err)}
	}
	return nil
}

// mapError turns an error reply into the matching error type.
func (c *AuthClient) mapError(op string, status int, raw []byte) error {
	var body model.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = http.StatusText(status)
	}

	switch body.Code {
	case model.CodeBadCredentials:
		return &abc.AuthError{}
	case model.CodeOtpRequired:
		return &abc.OtpRequiredError{ResetToken: body.OtpResetToken, ResetDate: body.OtpResetDate}
	case model.CodeOtpResetPending:
		pending := &abc.OtpResetPendingError{}
		if body.OtpResetDate != nil {
			pending.ResetDate = *body.OtpResetDate
		}
		return pending
	case model.CodeLobbyExpired:
		return &abc.LobbyExpiredError{}
	case model.CodeAlreadyResolved:
		return &abc.AlreadyResolvedError{}
	case model.CodeConflict:
		return abc.ErrUsernameTaken
	case model.CodeNotFound:
		return &abc.NotFoundError{Kind: "resource", ID: op}
	case model.CodeBadRequest:
		return &abc.ValidationError{Message: body.Error}
	}

	c.log.Warn("login server error", zap.String("op", op), zap.Int("status", status), zap.String("error", body.Error))
	return &abc.NetworkError{Op: op, StatusCode: status, Err: errors.New(body.Error)}
}
