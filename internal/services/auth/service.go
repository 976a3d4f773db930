package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamehub/internal/dependencies/clock"
	"github.com/mcoot/gamehub/internal/dependencies/random"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage"
)

// tokenBytes is the entropy behind every session token
const tokenBytes = 24

// Session is the live binding between an account and a connection
type Session struct {
	Token     string
	Account   string
	Role      model.Role
	ConnID    string // connection that performed the login
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
	// BcryptCost is the hashing cost for new accounts. Zero uses bcrypt.DefaultCost.
	BcryptCost int
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
		BcryptCost:      bcrypt.DefaultCost,
	}
}

// Service is the session registry. It holds at most one session per
// account; a login replaces whatever session the account had before.
type Service struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu        sync.RWMutex
	sessions  map[string]*Session            // token -> session
	byAccount map[string]string              // account -> current token
	byConn    map[string]map[string]struct{} // conn -> tokens issued on it
	onExpire  func(Session)

	sessionDuration time.Duration
	bcryptCost      int
}

// New creates a new auth Service
func New(storage storage.Storage, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		random:          random,
		logger:          logger.With(slog.String("component", "auth")),
		sessions:        make(map[string]*Session),
		byAccount:       make(map[string]string),
		byConn:          make(map[string]map[string]struct{}),
		sessionDuration: cfg.SessionDuration,
		bcryptCost:      cfg.BcryptCost,
	}
}

// OnExpire sets the callback run for every session removed because it
// expired. It is called without the registry lock held.
func (s *Service) OnExpire(fn func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// Register creates an account. An empty role defaults to player.
func (s *Service) Register(ctx context.Context, name, password string, role model.Role) (*model.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalidRequest)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", model.ErrInvalidRequest)
	}
	if role == "" {
		role = model.RolePlayer
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrInvalidRequest, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		Name:         name,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.storage.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account registered", slog.String("account", name), slog.String("role", string(role)))
	return account, nil
}

// Login verifies credentials and issues a session bound to connID.
// Any previous session for the account is invalidated immediately.
func (s *Service) Login(ctx context.Context, name, password, connID string) (*Session, error) {
	account, err := s.storage.GetAccount(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}

	now := s.clock.Now()
	session := &Session{
		Token:     "sess_" + s.random.Token(tokenBytes),
		Account:   account.Name,
		Role:      account.Role,
		ConnID:    connID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	replaced := s.byAccount[account.Name]
	if replaced != "" {
		s.removeLocked(replaced)
	}
	s.sessions[session.Token] = session
	s.byAccount[account.Name] = session.Token
	if s.byConn[connID] == nil {
		s.byConn[connID] = make(map[string]struct{})
	}
	s.byConn[connID][session.Token] = struct{}{}
	s.mu.Unlock()

	s.logger.Info("login",
		slog.String("account", account.Name),
		slog.String("conn_id", connID),
		slog.Bool("replaced_session", replaced != ""),
	)
	out := *session
	return &out, nil
}

// Authenticate resolves a token to its session
func (s *Service) Authenticate(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	var out Session
	if ok {
		out = *session
	}
	s.mu.RUnlock()

	if !ok {
		return nil, model.ErrInvalidSession
	}

	if s.clock.Now().After(out.ExpiresAt) {
		s.mu.Lock()
		removed := false
		if current, ok := s.sessions[token]; ok && current == session {
			s.removeLocked(token)
			removed = true
		}
		onExpire := s.onExpire
		s.mu.Unlock()
		if removed {
			s.expired([]Session{out}, onExpire)
		}
		return nil, model.ErrInvalidSession
	}

	return &out, nil
}

// Logout removes the session for token. Unknown tokens are ignored.
// Reports whether a session was removed.
func (s *Service) Logout(token string) bool {
	s.mu.Lock()
	session, ok := s.sessions[token]
	if ok {
		s.removeLocked(token)
	}
	s.mu.Unlock()

	if ok {
		s.logger.Info("logout", slog.String("account", session.Account))
	}
	return ok
}

// ReleaseConnection drops every session still bound to connID and
// returns them. Sessions already replaced by a newer login elsewhere
// are not returned.
func (s *Service) ReleaseConnection(connID string) []Session {
	s.mu.Lock()
	tokens := s.byConn[connID]
	released := make([]Session, 0, len(tokens))
	for token := range tokens {
		if session, ok := s.sessions[token]; ok {
			released = append(released, *session)
		}
		s.removeLocked(token)
	}
	delete(s.byConn, connID)
	s.mu.Unlock()

	for _, session := range released {
		s.logger.Info("session released on disconnect",
			slog.String("account", session.Account),
			slog.String("conn_id", connID),
		)
	}
	return released
}

// CurrentToken returns the token currently held by account, if any
func (s *Service) CurrentToken(account string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.byAccount[account]
	return token, ok
}

// ActiveSessions returns the number of live sessions
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanExpiredSessions removes expired sessions (call periodically)
func (s *Service) CleanExpiredSessions() int {
	now := s.clock.Now()
	s.mu.Lock()
	var removed []Session
	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			removed = append(removed, *session)
			s.removeLocked(token)
		}
	}
	onExpire := s.onExpire
	s.mu.Unlock()

	s.expired(removed, onExpire)
	return len(removed)
}

func (s *Service) expired(sessions []Session, onExpire func(Session)) {
	for _, session := range sessions {
		s.logger.Info("session expired",
			slog.String("account", session.Account),
			slog.String("conn_id", session.ConnID),
		)
		if onExpire != nil {
			onExpire(session)
		}
	}
}

// removeLocked deletes token from every index. Caller holds s.mu.
func (s *Service) removeLocked(token string) {
	session, ok := s.sessions[token]
	if !ok {
		return
	}
	delete(s.sessions, token)
	if s.byAccount[session.Account] == token {
		delete(s.byAccount, session.Account)
	}
	if tokens, ok := s.byConn[session.ConnID]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.byConn, session.ConnID)
		}
	}
}
