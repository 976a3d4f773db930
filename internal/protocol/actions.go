package protocol

// Action names accepted by the hub
const (
	ActionPing     = "ping"
	ActionRegister = "register"
	ActionLogin    = "login"
	ActionLogout   = "logout"
	ActionWhoAmI   = "whoami"

	ActionPublishGame  = "publish_game"
	ActionUpdateGame   = "update_game"
	ActionDelistGame   = "delist_game"
	ActionListGames    = "list_games"
	ActionGetGame      = "get_game"
	ActionDownloadGame = "download_game"
	ActionSubmitReview = "submit_review"
	ActionListReviews  = "list_reviews"

	ActionCreateRoom = "create_room"
	ActionListRooms  = "list_rooms"
	ActionGetRoom    = "get_room"
	ActionJoinRoom   = "join_room"
	ActionLeaveRoom  = "leave_room"
	ActionSetReady   = "set_ready"
	ActionStartGame  = "start_game"
	ActionEndGame    = "end_game"
	ActionCloseRoom  = "close_room"
)

// Error classes
const (
	ClassAuth      = "AuthError"
	ClassState     = "StateError"
	ClassResource  = "ResourceError"
	ClassTransport = "TransportError"
	ClassRequest   = "RequestError"
	ClassInternal  = "InternalError"
)

// Error kinds
const (
	KindInvalidCredentials = "InvalidCredentials"
	KindInvalidSession     = "InvalidSession"
	KindAccountExists      = "AccountExists"
	KindPermissionDenied   = "PermissionDenied"

	KindAlreadyHosting  = "AlreadyHosting"
	KindAlreadyInRoom   = "AlreadyInRoom"
	KindRoomFull        = "RoomFull"
	KindNotHost         = "NotHost"
	KindNotAllReady     = "NotAllReady"
	KindInvalidState    = "InvalidState"
	KindNotInRoom       = "NotInRoom"
	KindRoomNotFound    = "RoomNotFound"
	KindGameNotFound    = "GameNotFound"
	KindNotDownloaded   = "GameNotDownloaded"
	KindOutdatedVersion = "OutdatedVersion"
	KindNotOwner        = "NotOwner"
	KindVersionNotNewer = "VersionNotNewer"

	KindNoPortAvailable = "NoPortAvailable"
	KindLaunchFailure   = "LaunchFailure"

	KindMalformedRequest = "MalformedRequest"
	KindUnknownAction    = "UnknownAction"
	KindInvalidRequest   = "InvalidRequest"
	KindInvalidCapacity  = "InvalidCapacity"
	KindInvalidVersion   = "InvalidVersion"
	KindInvalidRating    = "InvalidRating"

	KindInternal = "Internal"
)
