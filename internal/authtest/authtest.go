// Package authtest runs an in-process login server for tests.
package authtest

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/AlexZinkM/abc-core/internal/api"
	"github.com/AlexZinkM/abc-core/internal/client"
	"github.com/AlexZinkM/abc-core/internal/server"
	"github.com/AlexZinkM/abc-core/platform"
)

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Server is a login server listening on a local port.
type Server struct {
	*httptest.Server
	Service *server.Service
	Clock   *Clock
}

// NewServer starts a server with in-memory stores and the cheapest bcrypt
// cost. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	clock := NewClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, err := server.NewService(server.Options{
		Users:           server.NewMemoryUserStore(),
		Lobbies:         server.NewMemoryLobbyStore(clock.Now),
		BcryptCost:      bcrypt.MinCost,
		OtpResetWindow:  7 * 24 * time.Hour,
		OtpDriftSteps:   1,
		LobbyMaxTimeout: 10 * time.Minute,
		Now:             clock.Now,
		Log:             zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	srv := httptest.NewServer(api.SetupRouter(svc, zap.NewNop()))
	t.Cleanup(srv.Close)
	return &Server{Server: srv, Service: svc, Clock: clock}
}

// Fetch sends requests through the server's client.
func (s *Server) Fetch() platform.FetchFunc {
	return platform.HTTPFetch(s.Server.Client())
}

// AuthClient returns a client bound to the server.
func (s *Server) AuthClient() *client.AuthClient {
	return client.NewAuthClient(s.URL, "", s.Fetch(), zap.NewNop())
}
