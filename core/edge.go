package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/AlexZinkM/abc-core/abc"
	"github.com/AlexZinkM/abc-core/internal/edgelogin"
	"github.com/AlexZinkM/abc-core/internal/login"
)

// EdgeLoginOptions configures RequestEdgeLogin.
type EdgeLoginOptions struct {
	DisplayName     string
	DisplayImageURL string
	// Callbacks are bound to the account the login produces.
	Callbacks abc.AccountCallbacks

	// OnProcessLogin fires once the approving user is known, before OnLogin.
	OnProcessLogin func(username string)
	// OnLogin fires exactly once with the account or the reason there is
	// none. It does not fire after Cancel.
	OnLogin func(err error, account *Account)
}

// EdgeLoginRequest is a pending login that another device approves.
type EdgeLoginRequest struct {
	ID string

	req *edgelogin.Request
}

// RequestEdgeLogin opens a lobby for an already logged-in device to
// approve. Show the request's URI or QR code to that device.
func (c *Context) RequestEdgeLogin(ctx context.Context, opts EdgeLoginOptions) (*EdgeLoginRequest, error) {
	req, err := c.broker.RequestEdgeLogin(ctx, edgelogin.RequestOptions{
		AppID:           c.cfg.AppID,
		DisplayName:     opts.DisplayName,
		DisplayImageURL: opts.DisplayImageURL,
		OnProcessLogin:  opts.OnProcessLogin,
		OnLogin: func(err error, s *login.Session) {
			if opts.OnLogin == nil {
				if s != nil {
					s.Zero()
				}
				return
			}
			if err != nil {
				opts.OnLogin(err, nil)
				return
			}
			account, err := c.open(context.Background(), s, abc.AccountOptions{Callbacks: opts.Callbacks})
			if err != nil {
				c.log.Warn("edge login failed to open account", zap.Error(err))
				opts.OnLogin(err, nil)
				return
			}
			opts.OnLogin(nil, account)
		},
	})
	if err != nil {
		return nil, err
	}
	return &EdgeLoginRequest{ID: req.ID, req: req}, nil
}

// URI is the link the approving device opens.
func (r *EdgeLoginRequest) URI() string { return r.req.URI() }

// QRCode renders URI as a PNG of size by size pixels.
func (r *EdgeLoginRequest) QRCode(size int) ([]byte, error) { return r.req.QRCode(size) }

// Cancel closes the lobby. Approving it afterwards fails with
// *abc.LobbyExpiredError.
func (r *EdgeLoginRequest) Cancel(ctx context.Context) error { return r.req.Cancel(ctx) }

// Done is closed once the request has finished for any reason.
func (r *EdgeLoginRequest) Done() <-chan struct{} { return r.req.Done() }
