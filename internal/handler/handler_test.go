package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/abc-core/internal/authtest"
	"github.com/AlexZinkM/abc-core/internal/model"
)

func send(t *testing.T, srv *authtest.Server, method, path string, body any) (*http.Response, model.ErrorResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out model.ErrorResponse
	if resp.StatusCode != http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestLoginHandler(t *testing.T) {
	srv := authtest.NewServer(t)

	create := model.CreateLoginRequest{UserID: "user-1", LoginAuth: "auth"}
	resp, _ := send(t, srv, http.MethodPost, "/api/v2/login/create", create)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("Existing users conflict", func(t *testing.T) {
		resp, body := send(t, srv, http.MethodPost, "/api/v2/login/create", create)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, model.CodeConflict, body.Code)
	})

	t.Run("Bad credentials are unauthorized", func(t *testing.T) {
		resp, body := send(t, srv, http.MethodPost, "/api/v2/login", model.LoginRequest{UserID: "user-1", LoginAuth: "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, model.CodeBadCredentials, body.Code)
	})

	t.Run("Missing credentials are a bad request", func(t *testing.T) {
		resp, body := send(t, srv, http.MethodPost, "/api/v2/login", model.LoginRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, model.CodeBadRequest, body.Code)
	})

	t.Run("OTP failures carry a reset token", func(t *testing.T) {
		resp, _ := send(t, srv, http.MethodPost, "/api/v2/login/otp", model.EnableOtpRequest{
			AuthBody: model.AuthBody{UserID: "user-1", LoginAuth: "auth"},
			OtpKey:   "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := send(t, srv, http.MethodPost, "/api/v2/login", model.LoginRequest{UserID: "user-1", LoginAuth: "auth"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, model.CodeOtpRequired, body.Code)
		assert.NotEmpty(t, body.OtpResetToken)
	})

	t.Run("Wrong methods are rejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v2/login", nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("Question choices are listed", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + "/api/v2/questions")
		require.NoError(t, err)
		defer resp.Body.Close()
		var reply model.QuestionChoicesReply
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
		assert.NotEmpty(t, reply.Choices)
	})
}

func TestLobbyHandler(t *testing.T) {
	srv := authtest.NewServer(t)

	t.Run("Unknown lobbies are expired", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v2/lobby/missing", nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var body model.ErrorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, model.CodeLobbyExpired, body.Code)
	})

	t.Run("Invalid JSON is a bad request", func(t *testing.T) {
		resp, err := srv.Client().Post(srv.URL+"/api/v2/lobby/abc", "application/json", bytes.NewReader([]byte("{")))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
