package server

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
	"github.com/mcoot/gamehub/internal/services/auth"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/lobby"
)

// access is the authentication a route needs
type access int

const (
	public access = iota
	authenticated
	developerOnly
	playerOnly
)

// Call is one request being handled
type Call struct {
	ConnID  string
	Request *protocol.Request
	// Session is set for every route that is not public
	Session *auth.Session
}

type handlerFunc func(ctx context.Context, call *Call) (any, error)

type route struct {
	access access
	handle handlerFunc
}

// Dispatcher routes decoded requests to the services by action name
type Dispatcher struct {
	auth    *auth.Service
	catalog *catalog.Service
	lobby   *lobby.Controller
	logger  *slog.Logger
	routes  map[string]route
}

// NewDispatcher creates a Dispatcher with every action registered
func NewDispatcher(authService *auth.Service, catalogService *catalog.Service, lobbyController *lobby.Controller, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		auth:    authService,
		catalog: catalogService,
		lobby:   lobbyController,
		logger:  logger,
	}
	authService.OnExpire(func(session auth.Session) {
		d.releaseAccount(context.Background(), session.Account)
	})
	d.routes = map[string]route{
		protocol.ActionPing:     {public, d.ping},
		protocol.ActionRegister: {public, d.register},
		protocol.ActionLogin:    {public, d.login},
		protocol.ActionLogout:   {public, d.logout},
		protocol.ActionWhoAmI:   {authenticated, d.whoAmI},

		protocol.ActionPublishGame:  {developerOnly, d.publishGame},
		protocol.ActionUpdateGame:   {developerOnly, d.updateGame},
		protocol.ActionDelistGame:   {developerOnly, d.delistGame},
		protocol.ActionListGames:    {authenticated, d.listGames},
		protocol.ActionGetGame:      {authenticated, d.getGame},
		protocol.ActionDownloadGame: {playerOnly, d.downloadGame},
		protocol.ActionSubmitReview: {playerOnly, d.submitReview},
		protocol.ActionListReviews:  {authenticated, d.listReviews},

		protocol.ActionCreateRoom: {playerOnly, d.createRoom},
		protocol.ActionListRooms:  {authenticated, d.listRooms},
		protocol.ActionGetRoom:    {authenticated, d.getRoom},
		protocol.ActionJoinRoom:   {playerOnly, d.joinRoom},
		protocol.ActionLeaveRoom:  {playerOnly, d.leaveRoom},
		protocol.ActionSetReady:   {playerOnly, d.setReady},
		protocol.ActionStartGame:  {playerOnly, d.startGame},
		protocol.ActionEndGame:    {playerOnly, d.endGame},
		protocol.ActionCloseRoom:  {playerOnly, d.closeRoom},
	}
	return d
}

// Dispatch handles one request payload and always returns a response
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, payload []byte) *protocol.Response {
	start := time.Now()
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		d.logger.Debug("malformed request", slog.String("conn_id", connID), slog.String("error", err.Error()))
		return toWireError(err).response()
	}

	resp := d.dispatch(ctx, connID, req)

	attrs := []any{
		slog.String("conn_id", connID),
		slog.String("action", req.Action),
		slog.String("status", resp.Status),
		slog.Duration("duration", time.Since(start)),
	}
	if resp.ErrorKind != "" {
		attrs = append(attrs, slog.String("error_kind", resp.ErrorKind))
	}
	d.logger.Info("request handled", attrs...)
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, connID string, req *protocol.Request) (resp *protocol.Response) {
	r, ok := d.routes[req.Action]
	if !ok {
		return protocol.Fail(protocol.KindUnknownAction, protocol.ClassRequest,
			fmt.Sprintf("unknown action %q", req.Action))
	}

	call := &Call{ConnID: connID, Request: req}
	if r.access != public {
		session, err := d.authorize(req.Token, r.access)
		if err != nil {
			return toWireError(err).response()
		}
		call.Session = session
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("panic recovered",
				slog.Any("error", p),
				slog.String("stack", string(debug.Stack())),
				slog.String("action", req.Action),
				slog.String("conn_id", connID),
			)
			resp = protocol.Fail(protocol.KindInternal, protocol.ClassInternal, "Internal server error")
		}
	}()

	data, err := r.handle(ctx, call)
	if err != nil {
		we := toWireError(err)
		if we.class == protocol.ClassInternal {
			d.logger.Error("request failed",
				slog.String("action", req.Action),
				slog.String("conn_id", connID),
				slog.String("error", err.Error()),
			)
		}
		return we.response()
	}

	resp, err = protocol.OK(data)
	if err != nil {
		d.logger.Error("failed to encode response", slog.String("action", req.Action), slog.String("error", err.Error()))
		return protocol.Fail(protocol.KindInternal, protocol.ClassInternal, "Internal server error")
	}
	return resp
}

func (d *Dispatcher) authorize(token string, need access) (*auth.Session, error) {
	if token == "" {
		return nil, model.ErrInvalidSession
	}
	session, err := d.auth.Authenticate(token)
	if err != nil {
		return nil, err
	}
	switch {
	case need == developerOnly && session.Role != model.RoleDeveloper:
		return nil, fmt.Errorf("%w: developer account required", model.ErrPermissionDenied)
	case need == playerOnly && session.Role != model.RolePlayer:
		return nil, fmt.Errorf("%w: player account required", model.ErrPermissionDenied)
	}
	return session, nil
}

// Disconnected releases the sessions bound to a dropped connection and
// applies the room disconnect policy to their accounts
func (d *Dispatcher) Disconnected(ctx context.Context, connID string) {
	for _, session := range d.auth.ReleaseConnection(connID) {
		d.releaseAccount(ctx, session.Account)
	}
}

// releaseAccount runs room cleanup for an ended session unless the account has already
// logged in again elsewhere
func (d *Dispatcher) releaseAccount(ctx context.Context, account string) {
	if _, ok := d.auth.CurrentToken(account); ok {
		return
	}
	d.lobby.ReleaseAccount(ctx, account)
}
