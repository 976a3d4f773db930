package redis

import (
	"fmt"

	"github.com/mcoot/gamehub/internal/model"
)

// Key prefix for all hub data
const keyPrefix = "gamehub"

// accountKey returns the Redis key for an Account
func accountKey(name string) string {
	return fmt.Sprintf("%s:account:%s", keyPrefix, name)
}

// gameKey returns the Redis key for a GameListing
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// gamesIndexKey returns the Redis key for the SET of all game IDs
func gamesIndexKey() string {
	return fmt.Sprintf("%s:idx:games", keyPrefix)
}

// downloadKey returns the Redis key for an account's download of a game
func downloadKey(account string, id model.GameID) string {
	return fmt.Sprintf("%s:download:%s:%s", keyPrefix, id, account)
}

// reviewsKey returns the Redis key for the HASH of reviewer -> review
func reviewsKey(id model.GameID) string {
	return fmt.Sprintf("%s:reviews:%s", keyPrefix, id)
}

// roomKey returns the Redis key for a Room
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// roomsIndexKey returns the Redis key for the SET of room IDs
func roomsIndexKey() string {
	return fmt.Sprintf("%s:idx:rooms", keyPrefix)
}

// allKeysPattern matches every key written by this package
func allKeysPattern() string {
	return keyPrefix + ":*"
}
