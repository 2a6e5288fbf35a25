package server

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/internal/model"
)

// CreateLobby opens a lobby. The id must be derived from the public key.
func (s *Service) CreateLobby(ctx context.Context, id string, req model.CreateLobbyRequest) error {
	pub, err := base64.StdEncoding.DecodeString(req.PublicKey)
	if err != nil || len(pub) == 0 {
		return badRequest("publicKey must be base64")
	}
	if crypto.LobbyID(pub) != id {
		return badRequest("lobby id does not match public key")
	}

	ttl := time.Duration(req.Timeout) * time.Second
	if ttl <= 0 || ttl > s.lobbyMaxTimeout {
		ttl = s.lobbyMaxTimeout
	}

	lobby := &model.Lobby{ID: id, PublicKey: req.PublicKey, LoginRequest: req.LoginRequest}
	if err := s.lobbies.Create(ctx, lobby, ttl); err != nil {
		if errors.Is(err, ErrExists) {
			return &abc.AlreadyResolvedError{LobbyID: id}
		}
		return err
	}
	s.log.Info("lobby created", zap.String("lobby_id", id), zap.Duration("ttl", ttl))
	return nil
}

// GetLobby returns a live lobby.
func (s *Service) GetLobby(ctx context.Context, id string) (*model.Lobby, error) {
	lobby, err := s.lobbies.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &abc.LobbyExpiredError{LobbyID: id}
		}
		return nil, err
	}
	return lobby, nil
}

// ReplyLobby stores the single reply a lobby accepts.
func (s *Service) ReplyLobby(ctx context.Context, id string, reply model.LobbyReply) error {
	if reply.PublicKey == "" || reply.Box.DataBase64 == "" {
		return badRequest("reply publicKey and box are required")
	}
	err := s.lobbies.SetReply(ctx, id, reply)
	switch {
	case errors.Is(err, ErrNotFound):
		return &abc.LobbyExpiredError{LobbyID: id}
	case errors.Is(err, ErrResolved):
		return &abc.AlreadyResolvedError{LobbyID: id}
	case err != nil:
		return err
	}
	s.log.Info("lobby resolved", zap.String("lobby_id", id))
	return nil
}

// DeleteLobby cancels a lobby. Deleting a missing lobby succeeds.
func (s *Service) DeleteLobby(ctx context.Context, id string) error {
	return s.lobbies.Delete(ctx, id)
}
