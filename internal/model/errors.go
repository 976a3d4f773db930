package model

import "errors"

// Common errors used across the application
var (
	// Account and session errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrPermissionDenied   = errors.New("role does not permit this action")

	// Catalog errors
	ErrGameNotFound      = errors.New("game not found")
	ErrGameNotDownloaded = errors.New("game has not been downloaded")
	ErrOutdatedVersion   = errors.New("downloaded game version is outdated")
	ErrNotOwner          = errors.New("account does not own this game")
	ErrVersionNotNewer   = errors.New("version must be greater than the current version")
	ErrInvalidVersion    = errors.New("invalid version")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")

	// Room errors
	ErrRoomNotFound    = errors.New("room not found")
	ErrAlreadyHosting  = errors.New("account already hosts a room")
	ErrAlreadyInRoom   = errors.New("account is already in a room")
	ErrNotInRoom       = errors.New("account is not a member of this room")
	ErrRoomFull        = errors.New("room is full")
	ErrNotHost         = errors.New("account is not the host")
	ErrNotAllReady     = errors.New("not all members are ready")
	ErrInvalidState    = errors.New("room is not in a valid state for this action")
	ErrInvalidCapacity = errors.New("invalid room capacity")

	// Runtime errors
	ErrNoPortAvailable = errors.New("no port available")
	ErrLaunchFailure   = errors.New("game server failed to launch")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
)
