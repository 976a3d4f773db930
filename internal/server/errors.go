package server

import (
	"errors"

	"github.com/mcoot/gamehub/internal/model"
	"github.com/mcoot/gamehub/internal/protocol"
)

// wireError is the error triple sent back to clients
type wireError struct {
	kind    string
	class   string
	message string
}

func (e wireError) response() *protocol.Response {
	return protocol.Fail(e.kind, e.class, e.message)
}

// toWireError maps a handler error to its kind and class. Errors that
// are not part of the protocol are reported as Internal without detail.
func toWireError(err error) wireError {
	var we wireError
	switch {
	// Auth
	case errors.Is(err, model.ErrInvalidCredentials):
		we = wireError{protocol.KindInvalidCredentials, protocol.ClassAuth, "Invalid name or password"}
	case errors.Is(err, model.ErrInvalidSession):
		we = wireError{protocol.KindInvalidSession, protocol.ClassAuth, "Invalid or expired session"}
	case errors.Is(err, model.ErrAccountExists):
		we = wireError{protocol.KindAccountExists, protocol.ClassAuth, "Account name is taken"}
	case errors.Is(err, model.ErrPermissionDenied):
		we = wireError{protocol.KindPermissionDenied, protocol.ClassAuth, ""}

	// Rooms
	case errors.Is(err, model.ErrAlreadyHosting):
		we = wireError{protocol.KindAlreadyHosting, protocol.ClassState, "Already hosting a room"}
	case errors.Is(err, model.ErrAlreadyInRoom):
		we = wireError{protocol.KindAlreadyInRoom, protocol.ClassState, "Already in a room"}
	case errors.Is(err, model.ErrRoomFull):
		we = wireError{protocol.KindRoomFull, protocol.ClassState, "Room is full"}
	case errors.Is(err, model.ErrNotHost):
		we = wireError{protocol.KindNotHost, protocol.ClassState, "Only the host can do that"}
	case errors.Is(err, model.ErrNotAllReady):
		we = wireError{protocol.KindNotAllReady, protocol.ClassState, "Not every member is ready"}
	case errors.Is(err, model.ErrInvalidState):
		we = wireError{protocol.KindInvalidState, protocol.ClassState, ""}
	case errors.Is(err, model.ErrNotInRoom):
		we = wireError{protocol.KindNotInRoom, protocol.ClassState, "Not a member of this room"}
	case errors.Is(err, model.ErrRoomNotFound):
		we = wireError{protocol.KindRoomNotFound, protocol.ClassState, "Room not found"}

	// Catalog
	case errors.Is(err, model.ErrGameNotFound):
		we = wireError{protocol.KindGameNotFound, protocol.ClassState, "Game not found"}
	case errors.Is(err, model.ErrGameNotDownloaded):
		we = wireError{protocol.KindNotDownloaded, protocol.ClassState, "Download the game first"}
	case errors.Is(err, model.ErrOutdatedVersion):
		we = wireError{protocol.KindOutdatedVersion, protocol.ClassState, ""}
	case errors.Is(err, model.ErrNotOwner):
		we = wireError{protocol.KindNotOwner, protocol.ClassState, "Only the owner can change this game"}
	case errors.Is(err, model.ErrVersionNotNewer):
		we = wireError{protocol.KindVersionNotNewer, protocol.ClassState, ""}

	// Resources
	case errors.Is(err, model.ErrNoPortAvailable):
		we = wireError{protocol.KindNoPortAvailable, protocol.ClassResource, "No game server port available"}
	case errors.Is(err, model.ErrLaunchFailure):
		we = wireError{protocol.KindLaunchFailure, protocol.ClassResource, "Game server failed to start"}

	// Requests
	case errors.Is(err, protocol.ErrMalformed):
		we = wireError{protocol.KindMalformedRequest, protocol.ClassRequest, ""}
	case errors.Is(err, model.ErrInvalidCapacity):
		we = wireError{protocol.KindInvalidCapacity, protocol.ClassRequest, ""}
	case errors.Is(err, model.ErrInvalidVersion):
		we = wireError{protocol.KindInvalidVersion, protocol.ClassRequest, ""}
	case errors.Is(err, model.ErrInvalidRating):
		we = wireError{protocol.KindInvalidRating, protocol.ClassRequest, "Rating must be between 1 and 5"}
	case errors.Is(err, model.ErrInvalidRequest):
		we = wireError{protocol.KindInvalidRequest, protocol.ClassRequest, ""}

	default:
		return wireError{protocol.KindInternal, protocol.ClassInternal, "Internal server error"}
	}

	// Empty messages carry the wrapped detail, which is ours to show
	if we.message == "" {
		we.message = err.Error()
	}
	return we
}
