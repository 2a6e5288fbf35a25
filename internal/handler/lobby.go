package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/internal/server"
)

// LobbyHandler serves the edge-login lobby endpoints.
type LobbyHandler struct {
	svc *server.Service
	log *zap.Logger
}

// NewLobbyHandler creates a LobbyHandler.
func NewLobbyHandler(svc *server.Service, log *zap.Logger) *LobbyHandler {
	return &LobbyHandler{svc: svc, log: log}
}

// Lobby handles POST, GET, PUT and DELETE /api/v2/lobby/{id}
// @Summary      Edge-login lobby
// @Description  POST opens a lobby, GET reads it, PUT stores the single reply, DELETE cancels it
// @Tags         lobby
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true   "lobby id"
// @Param        request  body      model.CreateLobbyRequest  false  "lobby (POST) or model.LobbyReply (PUT)"
// @Success      200      {object}  model.Lobby
// @Failure      404      {object}  model.ErrorResponse
// @Failure      409      {object}  model.ErrorResponse
// @Router       /api/v2/lobby/{id} [post]
// @Router       /api/v2/lobby/{id} [get]
// @Router       /api/v2/lobby/{id} [put]
// @Router       /api/v2/lobby/{id} [delete]
func (h *LobbyHandler) Lobby(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: "lobby id is required", Code: model.CodeBadRequest})
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req model.CreateLobbyRequest
		if !decode(w, r, &req) {
			return
		}
		h.status(w, h.svc.CreateLobby(r.Context(), id, req))
	case http.MethodGet:
		lobby, err := h.svc.GetLobby(r.Context(), id)
		if err != nil {
			writeError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, lobby)
	case http.MethodPut:
		var reply model.LobbyReply
		if !decode(w, r, &reply) {
			return
		}
		h.status(w, h.svc.ReplyLobby(r.Context(), id, reply))
	case http.MethodDelete:
		h.status(w, h.svc.DeleteLobby(r.Context(), id))
	default:
		methodNotAllowed(w, "POST, GET, PUT, DELETE")
	}
}

func (h *LobbyHandler) status(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, model.StatusResponse{Success: true})
}
