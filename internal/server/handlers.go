package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
	"github.com/mcoot/gamehub/internal/services/catalog"
	"github.com/mcoot/gamehub/internal/services/lobby"
)

func (d *Dispatcher) ping(_ context.Context, _ *Call) (any, error) {
	return map[string]bool{"pong": true}, nil
}

// Accounts and sessions

func (d *Dispatcher) register(ctx context.Context, call *Call) (any, error) {
	var req protocol.RegisterRequest
	if err := call.Request.Bind(&req); err != nil {
		return nil, err
	}
	account, err := d.auth.Register(ctx, req.Name, req.Password, model.Role(strings.ToLower(req.Role)))
	if err != nil {
		return nil, err
	}
	return protocol.AccountFromModel(account), nil
}

func (d *Dispatcher) login(ctx context.Context, call *Call) (any, error) {
	var req protocol.LoginRequest
	if err := call.Request.Bind(&req); err != nil {
		return nil, err
	}
	session, err := d.auth.Login(ctx, req.Name, req.Password, call.ConnID)
	if err != nil {
		return nil, err
	}
	return protocol.Session{
		Token:     session.Token,
		Account:   session.Account,
		Role:      string(session.Role),
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// logout is public so a stale token still gets a clean no-op
func (d *Dispatcher) logout(ctx context.Context, call *Call) (any, error) {
	session, err := d.auth.Authenticate(call.Request.Token)
	removed := d.auth.Logout(call.Request.Token)
	if removed && err == nil {
		d.releaseAccount(ctx, session.Account)
	}
	return map[string]bool{"logged_out": removed}, nil
}

func (d *Dispatcher) whoAmI(_ context.Context, call *Call) (any, error) {
	return protocol.Session{
		Account:   call.Session.Account,
		Role:      string(call.Session.Role),
		ExpiresAt: call.Session.ExpiresAt,
	}, nil
}

// Catalog

func (d *Dispatcher) publishGame(ctx context.Context, call *Call) (any, error) {
	var req protocol.PublishGameRequest
	if err := call.Request.Bind(&req); err != nil {
		return nil, err
	}
	game, err := d.catalog.Publish(ctx, call.Session.Account, catalog.PublishInput{
		Name:        req.Name,
		Version:     req.Version,
		Description: req.Description,
		ServerEntry: req.ServerEntry,
	})
	if err != nil {
		return nil, err
	}
	return protocol.GameFromModel(game), nil
}

func (d *Dispatcher) updateGame(ctx context.Context, call *Call) (any, error) {
	var req protocol.UpdateGameRequest
	if err := call.Request.Bind(&req); err != nil {
		return nil, err
	}
	game, err := d.catalog.Update(ctx, call.Session.Account, model.GameID(req.GameID), catalog.UpdateInput{
		Version:     req.Version,
		Description: req.Description,
		ServerEntry: req.ServerEntry,
	})
	if err != nil {
		return nil, err
	}
	return protocol.GameFromModel(game), nil
}

func (d *Dispatcher) delistGame(ctx context.Context, call *Call) (any, error) {
	id, err := bindGameID(call)
	if err != nil {
		return nil, err
	}
	if err := d.catalog.Delist(ctx, call.Session.Account, id); err != nil {
		return nil, err
	}
	return protocol.GameRequest{GameID: string(id)}, nil
}

func (d *Dispatcher) listGames(ctx context.Context, _ *Call) (any, error) {
	summaries, err := d.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	games := make([]protocol.Game, 0, len(summaries))
	for _, s := range summaries {
		g := protocol.GameFromModel(s.Listing)
		g.AverageRating = s.AverageRating
		g.ReviewCount = s.ReviewCount
		games = append(games, g)
	}
	return games, nil
}

func (d *Dispatcher) getGame(ctx context.Context, call *Call) (any, error) {
	id, err := bindGameID(call)
	if err != nil {
		return nil, err
	}
	details, err := d.catalog.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return protocol.GameDetails{
		Game:    protocol.GameFromModel(details.Listing),
		Reviews: protocol.ReviewsFromModel(details.Reviews),
	}, nil
}

func (d *Dispatcher) downloadGame(ctx context.Context, call *Call) (any, error) {
	id, err := bindGameID(call)
	if err != nil {
		return nil, err
	}
	game, err := d.catalog.RecordDownload(ctx, call.Session.Account, id)
	if err != nil {
		return nil, err
	}
	return protocol.Download{
		GameID:    string(game.ID),
		Version:   game.Version,
		FilesRoot: game.FilesRoot,
		Entry:     game.ServerEntry,
	}, nil
}

func (d *Dispatcher) submitReview(ctx context.Context, call *Call) (any, error) {
	var req protocol.SubmitReviewRequest
	if err := call.Request.Bind(&req); err != nil {
		return nil, err
	}
	review, err := d.catalog.SubmitReview(ctx, call.Session.Account, model.GameID(req.GameID), req.Rating, req.Comment)
	if err != nil {
		return nil, err
	}
	return protocol.ReviewFromModel(review), nil
}

func (d *Dispatcher) listReviews(ctx context.Context, call *Call) (any, error) {
	id, err := bindGameID(call)
	if err != nil {
		return nil, err
	}
	reviews, err := d.catalog.ListReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	return protocol.ReviewsFromModel(reviews), nil
}

// Rooms

func (d *Dispatcher) createRoom(ctx context.Context, call *Call) (any, error) {
	var req protocol.CreateRoomRequest
	if err := call.Request.Bind(&req); err != nil {
		return nil, err
	}
	if req.GameID == "" {
		return nil, fmt.Errorf("%w: game_id is required", model.ErrInvalidRequest)
	}
	room, err := d.lobby.CreateRoom(ctx, call.Session.Account, lobby.CreateInput{
		GameID:   model.GameID(req.GameID),
		Capacity: req.Capacity,
		Name:     req.Name,
	})
	if err != nil {
		return nil, err
	}
	return protocol.RoomFromModel(room), nil
}

func (d *Dispatcher) listRooms(ctx context.Context, _ *Call) (any, error) {
	return protocol.RoomsFromModel(d.lobby.ListRooms(ctx)), nil
}

func (d *Dispatcher) getRoom(ctx context.Context, call *Call) (any, error) {
	id, err := bindRoomID(call)
	if err != nil {
		return nil, err
	}
	return roomResult(d.lobby.GetRoom(ctx, id))
}

func (d *Dispatcher) joinRoom(ctx context.Context, call *Call) (any, error) {
	id, err := bindRoomID(call)
	if err != nil {
		return nil, err
	}
	return roomResult(d.lobby.JoinRoom(ctx, call.Session.Account, id))
}

func (d *Dispatcher) leaveRoom(ctx context.Context, call *Call) (any, error) {
	id, err := bindRoomID(call)
	if err != nil {
		return nil, err
	}
	result, err := d.lobby.LeaveRoom(ctx, call.Session.Account, id)
	if err != nil {
		return nil, err
	}
	out := protocol.LeaveResult{Closed: result.Closed}
	if result.Room != nil {
		room := protocol.RoomFromModel(result.Room)
		out.Room = &room
	}
	return out, nil
}

func (d *Dispatcher) setReady(ctx context.Context, call *Call) (any, error) {
	var req protocol.SetReadyRequest
	if err := call.Request.Bind(&req); err != nil {
		return nil, err
	}
	if req.RoomID == "" {
		return nil, fmt.Errorf("%w: room_id is required", model.ErrInvalidRequest)
	}
	return roomResult(d.lobby.SetReady(ctx, call.Session.Account, model.RoomID(req.RoomID), req.Ready))
}

func (d *Dispatcher) startGame(ctx context.Context, call *Call) (any, error) {
	id, err := bindRoomID(call)
	if err != nil {
		return nil, err
	}
	return roomResult(d.lobby.StartGame(ctx, call.Session.Account, id))
}

func (d *Dispatcher) endGame(ctx context.Context, call *Call) (any, error) {
	id, err := bindRoomID(call)
	if err != nil {
		return nil, err
	}
	return roomResult(d.lobby.EndGame(ctx, call.Session.Account, id))
}

func (d *Dispatcher) closeRoom(ctx context.Context, call *Call) (any, error) {
	id, err := bindRoomID(call)
	if err != nil {
		return nil, err
	}
	if err := d.lobby.CloseRoom(ctx, call.Session.Account, id); err != nil {
		return nil, err
	}
	return protocol.RoomRequest{RoomID: string(id)}, nil
}

func bindGameID(call *Call) (model.GameID, error) {
	var req protocol.GameRequest
	if err := call.Request.Bind(&req); err != nil {
		return "", err
	}
	if req.GameID == "" {
		return "", fmt.Errorf("%w: game_id is required", model.ErrInvalidRequest)
	}
	return model.GameID(req.GameID), nil
}

func bindRoomID(call *Call) (model.RoomID, error) {
	var req protocol.RoomRequest
	if err := call.Request.Bind(&req); err != nil {
		return "", err
	}
	if req.RoomID == "" {
		return "", fmt.Errorf("%w: room_id is required", model.ErrInvalidRequest)
	}
	return model.RoomID(strings.ToUpper(req.RoomID)), nil
}

func roomResult(room *model.Room, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return protocol.RoomFromModel(room), nil
}
