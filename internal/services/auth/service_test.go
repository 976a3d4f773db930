package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamehub/internal/dependencies/mocks"
	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/storage/memory"
	"github.com/mcoot/gamehub/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.service = New(s.storage, s.clock, s.random, Config{
		SessionDuration: 24 * time.Hour,
		BcryptCost:      bcrypt.MinCost,
	}, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ServiceSuite) register(name string, role model.Role) {
	_, err := s.service.Register(s.ctx, name, "pw-"+name, role)
	s.Require().NoError(err)
}

func (s *ServiceSuite) login(name, connID string) *Session {
	session, err := s.service.Login(s.ctx, name, "pw-"+name, connID)
	s.Require().NoError(err)
	return session
}

// Register tests

func (s *ServiceSuite) TestRegisterCreatesAccount() {
	account, err := s.service.Register(s.ctx, "dev1", "p1", model.RoleDeveloper)
	s.Require().NoError(err)
	s.Equal("dev1", account.Name)
	s.Equal(model.RoleDeveloper, account.Role)
	s.NotEqual("p1", account.PasswordHash)

	stored, err := s.storage.GetAccount(s.ctx, "dev1")
	s.Require().NoError(err)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("p1")))
}

func (s *ServiceSuite) TestRegisterDefaultsToPlayer() {
	account, err := s.service.Register(s.ctx, "alice", "p2", "")
	s.Require().NoError(err)
	s.Equal(model.RolePlayer, account.Role)
}

func (s *ServiceSuite) TestRegisterFailsIfNameExists() {
	s.register("alice", model.RolePlayer)

	_, err := s.service.Register(s.ctx, "alice", "different", model.RolePlayer)
	s.ErrorIs(err, model.ErrAccountExists)
}

func (s *ServiceSuite) TestRegisterRejectsBadInput() {
	_, err := s.service.Register(s.ctx, "  ", "pw", model.RolePlayer)
	s.ErrorIs(err, model.ErrInvalidRequest)

	_, err = s.service.Register(s.ctx, "alice", "", model.RolePlayer)
	s.ErrorIs(err, model.ErrInvalidRequest)

	_, err = s.service.Register(s.ctx, "alice", "pw", model.Role("admin"))
	s.ErrorIs(err, model.ErrInvalidRequest)
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	s.register("alice", model.RolePlayer)
	s.random.QueueToken("abc")

	session := s.login("alice", "conn-1")

	s.Equal("sess_abc", session.Token)
	s.Equal("alice", session.Account)
	s.Equal(model.RolePlayer, session.Role)
	s.Equal("conn-1", session.ConnID)
	s.Equal(s.clock.Now().Add(24*time.Hour), session.ExpiresAt)
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	s.register("alice", model.RolePlayer)

	_, err := s.service.Login(s.ctx, "alice", "wrong", "conn-1")
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginFailsWithUnknownAccount() {
	_, err := s.service.Login(s.ctx, "nobody", "pw", "conn-1")
	s.ErrorIs(err, model.ErrInvalidCredentials)
}

func (s *ServiceSuite) TestSecondLoginInvalidatesFirstToken() {
	s.register("alice", model.RolePlayer)

	first := s.login("alice", "conn-1")
	second := s.login("alice", "conn-2")
	s.NotEqual(first.Token, second.Token)

	_, err := s.service.Authenticate(first.Token)
	s.ErrorIs(err, model.ErrInvalidSession)

	got, err := s.service.Authenticate(second.Token)
	s.Require().NoError(err)
	s.Equal("alice", got.Account)
	s.Equal(1, s.service.ActiveSessions())
}

func (s *ServiceSuite) TestConcurrentLoginsLeaveOneSession() {
	s.register("alice", model.RolePlayer)

	const n = 8
	var wg sync.WaitGroup
	tokens := make(chan string, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := s.service.Login(s.ctx, "alice", "pw-alice", "conn-"+string(rune('a'+i)))
			s.NoError(err)
			tokens <- session.Token
		}()
	}
	wg.Wait()
	close(tokens)

	valid := 0
	for token := range tokens {
		if _, err := s.service.Authenticate(token); err == nil {
			valid++
		}
	}
	s.Equal(1, valid)

	current, ok := s.service.CurrentToken("alice")
	s.True(ok)
	_, err := s.service.Authenticate(current)
	s.NoError(err)
}

// Authenticate tests

func (s *ServiceSuite) TestAuthenticateFailsWithUnknownToken() {
	_, err := s.service.Authenticate("invalid_token")
	s.ErrorIs(err, model.ErrInvalidSession)
}

func (s *ServiceSuite) TestAuthenticateFailsWhenExpired() {
	s.register("alice", model.RolePlayer)
	session := s.login("alice", "conn-1")

	s.clock.Advance(25 * time.Hour)

	_, err := s.service.Authenticate(session.Token)
	s.ErrorIs(err, model.ErrInvalidSession)
	s.Equal(0, s.service.ActiveSessions())
}

// Logout tests

func (s *ServiceSuite) TestLogoutIsIdempotent() {
	s.register("alice", model.RolePlayer)
	session := s.login("alice", "conn-1")

	s.True(s.service.Logout(session.Token))
	s.False(s.service.Logout(session.Token))

	_, err := s.service.Authenticate(session.Token)
	s.ErrorIs(err, model.ErrInvalidSession)
	_, ok := s.service.CurrentToken("alice")
	s.False(ok)
}

func (s *ServiceSuite) TestLogoutOfReplacedTokenKeepsNewSession() {
	s.register("alice", model.RolePlayer)
	first := s.login("alice", "conn-1")
	second := s.login("alice", "conn-2")

	s.False(s.service.Logout(first.Token))

	_, err := s.service.Authenticate(second.Token)
	s.NoError(err)
}

// ReleaseConnection tests

func (s *ServiceSuite) TestReleaseConnectionDropsItsSessions() {
	s.register("alice", model.RolePlayer)
	s.register("bob", model.RolePlayer)
	alice := s.login("alice", "conn-1")
	bob := s.login("bob", "conn-2")

	released := s.service.ReleaseConnection("conn-1")
	s.Require().Len(released, 1)
	s.Equal("alice", released[0].Account)

	_, err := s.service.Authenticate(alice.Token)
	s.ErrorIs(err, model.ErrInvalidSession)
	_, err = s.service.Authenticate(bob.Token)
	s.NoError(err)
}

func (s *ServiceSuite) TestExpiryNotifiesOnce() {
	var expired []string
	s.service.OnExpire(func(session Session) { expired = append(expired, session.Account) })

	s.register("alice", model.RolePlayer)
	s.register("bob", model.RolePlayer)
	alice := s.login("alice", "conn-1")
	bob := s.login("bob", "conn-2")
	s.clock.Advance(25 * time.Hour)

	_, err := s.service.Authenticate(alice.Token)
	s.ErrorIs(err, model.ErrInvalidSession)
	s.Equal([]string{"alice"}, expired)

	s.Equal(1, s.service.CleanExpiredSessions())
	s.Equal([]string{"alice", "bob"}, expired)

	_, err = s.service.Authenticate(bob.Token)
	s.ErrorIs(err, model.ErrInvalidSession)
	s.Zero(s.service.CleanExpiredSessions())
	s.Equal([]string{"alice", "bob"}, expired)
}

func (s *ServiceSuite) TestLogoutAndDisconnectDoNotNotifyExpiry() {
	called := false
	s.service.OnExpire(func(Session) { called = true })

	s.register("alice", model.RolePlayer)
	s.register("bob", model.RolePlayer)
	alice := s.login("alice", "conn-1")
	s.login("bob", "conn-2")

	s.True(s.service.Logout(alice.Token))
	s.Len(s.service.ReleaseConnection("conn-2"), 1)
	s.False(called)
}

func (s *ServiceSuite) TestReleaseConnectionSkipsReplacedSessions() {
	s.register("alice", model.RolePlayer)
	s.login("alice", "conn-1")
	fresh := s.login("alice", "conn-2")

	released := s.service.ReleaseConnection("conn-1")
	s.Empty(released)

	_, err := s.service.Authenticate(fresh.Token)
	s.NoError(err)
}

func (s *ServiceSuite) TestReleaseUnknownConnectionIsNoop() {
	s.Empty(s.service.ReleaseConnection("never-seen"))
}

// CleanExpiredSessions tests

func (s *ServiceSuite) TestCleanExpiredSessionsRemovesExpired() {
	s.register("alice", model.RolePlayer)
	s.register("bob", model.RolePlayer)
	alice := s.login("alice", "conn-1")

	s.clock.Advance(25 * time.Hour)
	bob := s.login("bob", "conn-2")

	s.Equal(1, s.service.CleanExpiredSessions())

	_, err := s.service.Authenticate(alice.Token)
	s.ErrorIs(err, model.ErrInvalidSession)
	_, err = s.service.Authenticate(bob.Token)
	s.NoError(err)
}
