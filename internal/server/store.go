package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AlexZinkM/abc-core/internal/model"
	"github.com/AlexZinkM/abc-core/internal/otp"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrExists   = errors.New("record already exists")
	ErrResolved = errors.New("lobby already has a reply")
)

// User is the server's record of one account. Authenticators are stored
// hashed; boxes are opaque.
type User struct {
	UserID string

	PasswordAuthHash []byte
	PasswordKeySnrp  *model.Snrp
	PasswordBox      *model.EncryptedBox

	// LoginAuthHash is SHA-256 of the loginAuth string.
	LoginAuthHash []byte

	Pin2ID       string
	Pin2AuthHash []byte
	Pin2Box      *model.EncryptedBox

	Recovery2ID       string
	Recovery2AuthHash []byte
	Question2Box      *model.EncryptedBox
	Recovery2Box      *model.EncryptedBox

	WalletBox *model.EncryptedBox

	Otp           otp.State
	OtpResetToken string
}

// UserStore persists accounts.
type UserStore interface {
	Get(ctx context.Context, userID string) (*User, error)
	Create(ctx context.Context, user *User) error
	Put(ctx context.Context, user *User) error
	FindByPin2ID(ctx context.Context, pin2ID string) (*User, error)
	FindByRecovery2ID(ctx context.Context, recovery2ID string) (*User, error)
}

// LobbyStore persists edge-login lobbies until they expire.
type LobbyStore interface {
	Create(ctx context.Context, lobby *model.Lobby, ttl time.Duration) error
	Get(ctx context.Context, id string) (*model.Lobby, error)
	SetReply(ctx context.Context, id string, reply model.LobbyReply) error
	Delete(ctx context.Context, id string) error
}

// MemoryUserStore keeps users in process memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]User
}

var _ UserStore = (*MemoryUserStore)(nil)

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]User)}
}

func (s *MemoryUserStore) Get(_ context.Context, userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.UserID]; ok {
		return ErrExists
	}
	s.users[user.UserID] = *user
	return nil
}

func (s *MemoryUserStore) Put(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.UserID]; !ok {
		return ErrNotFound
	}
	s.users[user.UserID] = *user
	return nil
}

func (s *MemoryUserStore) FindByPin2ID(_ context.Context, pin2ID string) (*User, error) {
	return s.find(func(u *User) bool { return u.Pin2ID == pin2ID })
}

func (s *MemoryUserStore) FindByRecovery2ID(_ context.Context, recovery2ID string) (*User, error) {
	return s.find(func(u *User) bool { return u.Recovery2ID == recovery2ID })
}

func (s *MemoryUserStore) find(match func(*User) bool) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if match(&u) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// MemoryLobbyStore keeps lobbies in process memory.
type MemoryLobbyStore struct {
	mu      sync.Mutex
	lobbies map[string]model.Lobby
	now     func() time.Time
}

var _ LobbyStore = (*MemoryLobbyStore)(nil)

func NewMemoryLobbyStore(now func() time.Time) *MemoryLobbyStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryLobbyStore{lobbies: make(map[string]model.Lobby), now: now}
}

// live returns the lobby if it exists and has not expired. Caller holds mu.
func (s *MemoryLobbyStore) live(id string) (model.Lobby, bool) {
	lobby, ok := s.lobbies[id]
	if !ok {
		return model.Lobby{}, false
	}
	if !s.now().Before(lobby.ExpiresAt) {
		delete(s.lobbies, id)
		return model.Lobby{}, false
	}
	return lobby, true
}

func (s *MemoryLobbyStore) Create(_ context.Context, lobby *model.Lobby, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(lobby.ID); ok {
		return ErrExists
	}
	stored := *lobby
	stored.ExpiresAt = s.now().Add(ttl).UTC()
	s.lobbies[lobby.ID] = stored
	return nil
}

func (s *MemoryLobbyStore) Get(_ context.Context, id string) (*model.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.live(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &lobby, nil
}

func (s *MemoryLobbyStore) SetReply(_ context.Context, id string, reply model.LobbyReply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.live(id)
	if !ok {
		return ErrNotFound
	}
	if lobby.Reply != nil {
		return ErrResolved
	}
	lobby.Reply = &reply
	s.lobbies[id] = lobby
	return nil
}

func (s *MemoryLobbyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
	return nil
}
