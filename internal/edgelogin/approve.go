package edgelogin

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/internal/login"
	"github.com/AlexZinkM/abc-core/internal/model"
)

// Lobby is a lobby as seen by the approving device.
type Lobby struct {
	ID           string
	LoginRequest *LoginRequest
}

// LoginRequest is the requesting app's description plus the approval action.
type LoginRequest struct {
	AppID           string
	DisplayName     string
	DisplayImageURL string

	broker    *Broker
	session   *login.Session
	lobbyID   string
	peerKey   []byte
	mu        sync.Mutex
	approved  bool
	approving bool
}

// FetchLobby reads a lobby on behalf of the logged-in session.
func (b *Broker) FetchLobby(ctx context.Context, lobbyID string, s *login.Session) (*Lobby, error) {
	if s.Zeroed() {
		return nil, abc.ErrLoggedOut
	}
	lobby, err := b.lobbies.FetchLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if lobby.Reply != nil {
		return nil, &abc.AlreadyResolvedError{LobbyID: lobbyID}
	}
	peer, err := base64.StdEncoding.DecodeString(lobby.PublicKey)
	if err != nil || crypto.LobbyID(peer) != lobbyID {
		return nil, &abc.ValidationError{Message: "lobby public key does not match its id"}
	}

	return &Lobby{
		ID: lobbyID,
		LoginRequest: &LoginRequest{
			AppID:           lobby.LoginRequest.AppID,
			DisplayName:     lobby.LoginRequest.DisplayName,
			DisplayImageURL: lobby.LoginRequest.DisplayImageURL,
			broker:          b,
			session:         s,
			lobbyID:         lobbyID,
			peerKey:         peer,
		},
	}, nil
}

// Approve sends the session's login key to the requester. A request can be
// approved once; later calls return *abc.AlreadyResolvedError.
func (r *LoginRequest) Approve(ctx context.Context) error {
	r.mu.Lock()
	if r.approved || r.approving {
		r.mu.Unlock()
		return &abc.AlreadyResolvedError{LobbyID: r.lobbyID}
	}
	r.approving = true
	r.mu.Unlock()

	err := r.approve(ctx)

	r.mu.Lock()
	r.approving = false
	if err == nil || abc.IsAlreadyResolvedError(err) {
		r.approved = true
	}
	r.mu.Unlock()
	return err
}

func (r *LoginRequest) approve(ctx context.Context) error {
	loginKey := r.session.LoginKey()
	if loginKey == nil {
		return abc.ErrLoggedOut
	}
	defer clear(loginKey)

	b := r.broker
	private, public, err := crypto.LobbyKeyPair(b.random)
	if err != nil {
		return err
	}
	defer clear(private)

	key, err := crypto.LobbySharedKey(private, r.peerKey, r.lobbyID)
	if err != nil {
		return err
	}
	defer clear(key)

	box, err := crypto.EncryptJSON(b.random, model.EdgeLoginPayload{
		Username: r.session.Username,
		LoginKey: login.EncodeLoginKey(loginKey),
		OtpKey:   r.session.OtpKey(),
	}, key)
	if err != nil {
		return fmt.Errorf("failed to seal lobby reply: %w", err)
	}

	err = b.lobbies.ReplyLobby(ctx, r.lobbyID, model.LobbyReply{
		PublicKey: base64.StdEncoding.EncodeToString(public),
		Box:       *box,
	})
	if err != nil {
		return err
	}
	b.log.Info("edge login approved", zap.String("lobby_id", r.lobbyID), zap.String("app_id", r.AppID))
	return nil
}
