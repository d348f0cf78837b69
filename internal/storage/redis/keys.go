package redis

import (
	"fmt"

	"github.com/mcoot/boardgame-groups/internal/model"
)

// Key prefix for all tracker data
const keyPrefix = "bggroups"

// Key generation functions for each entity type

// userKey returns the Redis key for a User
func userKey(id model.UserID) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, id)
}

// usersKey returns the Redis key for the SET of all user IDs
func usersKey() string {
	return fmt.Sprintf("%s:users", keyPrefix)
}

// usernameIndexKey returns the Redis key for the username -> user_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// emailIndexKey returns the Redis key for the email -> user_id index
func emailIndexKey(email string) string {
	return fmt.Sprintf("%s:idx:email:%s", keyPrefix, email)
}

// groupKey returns the Redis key for a Group
func groupKey(id model.GroupID) string {
	return fmt.Sprintf("%s:group:%s", keyPrefix, id)
}

// identifierIndexKey returns the Redis key for the identifier -> group_id index
func identifierIndexKey(identifier string) string {
	return fmt.Sprintf("%s:idx:group_identifier:%s", keyPrefix, identifier)
}

// gameKey returns the Redis key for a catalog Game
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// gamesKey returns the Redis key for the SET of all catalog game IDs
func gamesKey() string {
	return fmt.Sprintf("%s:games", keyPrefix)
}

// gameNameIndexKey returns the Redis key for the name -> game_id index
func gameNameIndexKey(name string) string {
	return fmt.Sprintf("%s:idx:game_name:%s", keyPrefix, name)
}

// playKey returns the Redis key for a Play
func playKey(id model.PlayID) string {
	return fmt.Sprintf("%s:play:%s", keyPrefix, id)
}

// playsForGroupIndexKey returns the Redis key for the SET of play keys in a group
func playsForGroupIndexKey(groupID model.GroupID) string {
	return fmt.Sprintf("%s:idx:plays_for_group:%s", keyPrefix, groupID)
}

// playsForUserIndexKey returns the Redis key for the SET of play keys a user took part in
func playsForUserIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:plays_for_user:%s", keyPrefix, username)
}

// validationKeyKey returns the Redis key for a ValidationKey
func validationKeyKey(token string) string {
	return fmt.Sprintf("%s:validation_key:%s", keyPrefix, token)
}

// validationKeysForUserIndexKey returns the Redis key for the SET of validation key keys for a user
func validationKeysForUserIndexKey(userID model.UserID) string {
	return fmt.Sprintf("%s:idx:validation_keys_for_user:%s", keyPrefix, userID)
}
