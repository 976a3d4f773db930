package protocol

// RegisterRequest creates an account
type RegisterRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// LoginRequest opens a session
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// PublishGameRequest lists a new game
type PublishGameRequest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	ServerEntry string `json:"server_entry"`
}

// UpdateGameRequest publishes a new version of a game
type UpdateGameRequest struct {
	GameID      string  `json:"game_id"`
	Version     string  `json:"version"`
	Description *string `json:"description,omitempty"`
	ServerEntry *string `json:"server_entry,omitempty"`
}

// GameRequest addresses a single game
type GameRequest struct {
	GameID string `json:"game_id"`
}

// SubmitReviewRequest rates a downloaded game
type SubmitReviewRequest struct {
	GameID  string `json:"game_id"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// CreateRoomRequest opens a room
type CreateRoomRequest struct {
	GameID   string `json:"game_id"`
	Capacity int    `json:"capacity"`
	Name     string `json:"name,omitempty"`
}

// RoomRequest addresses a single room
type RoomRequest struct {
	RoomID string `json:"room_id"`
}

// SetReadyRequest toggles the caller's ready flag
type SetReadyRequest struct {
	RoomID string `json:"room_id"`
	Ready  bool   `json:"ready"`
}
