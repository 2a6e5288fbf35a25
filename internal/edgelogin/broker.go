// Package edgelogin runs the lobby handshake that lets a new device log in
// with the approval of a device that is already logged in.
package edgelogin

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/crypto"
	"github.com/AlexZinkM/abc-core/internal/login"
	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/platform"
)

const (
	DefaultTimeout      = 10 * time.Minute
	DefaultPollInterval = time.Second

	uriPrefix = "edge://edge/"
)

var errNoReply = errors.New("lobby has no reply yet")

// Lobbies is the lobby part of the login server API.
type Lobbies interface {
	CreateLobby(ctx context.Context, id string, req model.CreateLobbyRequest) error
	FetchLobby(ctx context.Context, id string) (*model.Lobby, error)
	ReplyLobby(ctx context.Context, id string, reply model.LobbyReply) error
	DeleteLobby(ctx context.Context, id string) error
}

// KeyLogin finishes an edge login once the reply is open.
type KeyLogin interface {
	LoginWithEdgeKey(ctx context.Context, username string, loginKey []byte, otpKey string) (*login.Session, error)
}

// Options configures a Broker.
type Options struct {
	Lobbies      Lobbies
	Login        KeyLogin
	Random       platform.RandomFunc
	Timeout      time.Duration
	PollInterval time.Duration
	Log          *zap.Logger
}

// Broker creates and answers lobbies.
type Broker struct {
	lobbies  Lobbies
	login    KeyLogin
	random   platform.RandomFunc
	timeout  time.Duration
	interval time.Duration
	log      *zap.Logger
}

func NewBroker(opts Options) *Broker {
	b := &Broker{
		lobbies:  opts.Lobbies,
		login:    opts.Login,
		random:   opts.Random,
		timeout:  opts.Timeout,
		interval: opts.PollInterval,
		log:      opts.Log,
	}
	if b.timeout <= 0 {
		b.timeout = DefaultTimeout
	}
	if b.interval <= 0 {
		b.interval = DefaultPollInterval
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	b.log = b.log.Named("edgelogin")
	return b
}

// RequestOptions describes the requesting app and receives the outcome.
type RequestOptions struct {
	AppID           string
	DisplayName     string
	DisplayImageURL string

	// OnProcessLogin fires once the approving account is known.
	OnProcessLogin func(username string)
	// OnLogin fires exactly once with the session or the reason there is none.
	// It does not fire after Cancel.
	OnLogin func(err error, s *login.Session)
}

// Request is a pending edge login on the requesting device.
type Request struct {
	ID string

	lobbies Lobbies
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.Mutex
	canceled bool
	resolved bool
}

// RequestEdgeLogin opens a lobby and starts waiting for its reply in the
// background. The returned request is usable right away.
func (b *Broker) RequestEdgeLogin(ctx context.Context, opts RequestOptions) (*Request, error) {
	private, public, err := crypto.LobbyKeyPair(b.random)
	if err != nil {
		return nil, err
	}
	id := crypto.LobbyID(public)

	err = b.lobbies.CreateLobby(ctx, id, model.CreateLobbyRequest{
		PublicKey: base64.StdEncoding.EncodeToString(public),
		LoginRequest: model.LobbyLoginRequest{
			AppID:           opts.AppID,
			DisplayName:     opts.DisplayName,
			DisplayImageURL: opts.DisplayImageURL,
		},
		Timeout: int64(b.timeout / time.Second),
	})
	if err != nil {
		clear(private)
		return nil, fmt.Errorf("failed to create lobby: %w", err)
	}

	pollCtx, cancel := context.WithTimeout(context.Background(), b.timeout)
	req := &Request{
		ID:      id,
		lobbies: b.lobbies,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	b.log.Info("edge login requested", zap.String("lobby_id", id), zap.String("app_id", opts.AppID))

	go func() {
		defer close(req.done)
		defer cancel()
		defer clear(private)
		b.wait(pollCtx, req, private, opts)
	}()
	return req, nil
}

// wait polls until the lobby has a reply, then logs in with it.
func (b *Broker) wait(ctx context.Context, req *Request, private []byte, opts RequestOptions) {
	reply, err := b.poll(ctx, req.ID)
	if err == nil {
		var payload model.EdgeLoginPayload
		payload, err = openReply(private, req.ID, reply)
		if err == nil {
			if opts.OnProcessLogin != nil && !req.isCanceled() {
				opts.OnProcessLogin(payload.Username)
			}
			var session *login.Session
			session, err = b.finish(ctx, payload)
			delivered := req.deliver(opts.OnLogin, err, session)
			if session != nil && (!delivered || opts.OnLogin == nil) {
				session.Zero()
			}
			return
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		err = &abc.LobbyExpiredError{LobbyID: req.ID}
	}
	if req.isCanceled() {
		b.log.Debug("edge login canceled", zap.String("lobby_id", req.ID))
		return
	}
	b.log.Warn("edge login failed", zap.String("lobby_id", req.ID), zap.Error(err))
	req.deliver(opts.OnLogin, err, nil)
}

func (b *Broker) poll(ctx context.Context, id string) (*model.LobbyReply, error) {
	op := func() (*model.LobbyReply, error) {
		lobby, err := b.lobbies.FetchLobby(ctx, id)
		if err != nil {
			if abc.IsLobbyExpiredError(err) {
				return nil, backoff.Permanent(err)
			}
			b.log.Debug("lobby poll failed", zap.String("lobby_id", id), zap.Error(err))
			return nil, err
		}
		if lobby.Reply == nil {
			return nil, errNoReply
		}
		return lobby.Reply, nil
	}

	reply, err := backoff.RetryWithData(op, backoff.WithContext(backoff.NewConstantBackOff(b.interval), ctx))
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return reply, err
}

func (b *Broker) finish(ctx context.Context, payload model.EdgeLoginPayload) (*login.Session, error) {
	loginKey, err := login.DecodeLoginKey(payload.LoginKey)
	if err != nil {
		return nil, err
	}
	defer clear(loginKey)
	return b.login.LoginWithEdgeKey(ctx, payload.Username, loginKey, payload.OtpKey)
}

func openReply(private []byte, id string, reply *model.LobbyReply) (model.EdgeLoginPayload, error) {
	var payload model.EdgeLoginPayload
	peer, err := base64.StdEncoding.DecodeString(reply.PublicKey)
	if err != nil {
		return payload, &abc.ValidationError{Message: "lobby reply public key is not base64", Err: err}
	}
	key, err := crypto.LobbySharedKey(private, peer, id)
	if err != nil {
		return payload, err
	}
	defer clear(key)
	if err := crypto.DecryptJSON(&reply.Box, key, &payload); err != nil {
		return payload, fmt.Errorf("failed to open lobby reply: %w", err)
	}
	return payload, nil
}

// URI is the link other devices open to approve the request.
func (r *Request) URI() string {
	return uriPrefix + r.ID
}

// QRCode renders URI as a PNG of the given size in pixels.
func (r *Request) QRCode(size int) ([]byte, error) {
	qr, err := qrcode.New(r.URI(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}
	return png, nil
}

// Cancel stops waiting and deletes the lobby. Later approvals fail with
// *abc.LobbyExpiredError. Calling it after the login resolved is a no-op.
func (r *Request) Cancel(ctx context.Context) error {
	r.mu.Lock()
	if r.canceled || r.resolved {
		r.mu.Unlock()
		return nil
	}
	r.canceled = true
	r.mu.Unlock()

	r.cancel()
	if err := r.lobbies.DeleteLobby(ctx, r.ID); err != nil {
		return fmt.Errorf("failed to delete lobby: %w", err)
	}
	return nil
}

// Done is closed when the request stops waiting.
func (r *Request) Done() <-chan struct{} {
	return r.done
}

func (r *Request) isCanceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canceled
}

// deliver calls onLogin unless the request was canceled. It reports whether
// the callback ran.
func (r *Request) deliver(onLogin func(error, *login.Session), err error, s *login.Session) bool {
	r.mu.Lock()
	if r.canceled || r.resolved {
		r.mu.Unlock()
		return false
	}
	r.resolved = true
	r.mu.Unlock()

	if onLogin != nil {
		onLogin(err, s)
	}
	return true
}
