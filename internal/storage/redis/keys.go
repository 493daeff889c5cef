package redis

import "fmt"

// Key prefix for all typerace data
const keyPrefix = "typerace"

// playerKey returns the Redis key holding one player record
func playerKey(username string) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, username)
}

// playersIndexKey returns the Redis LIST of usernames in registration order
func playersIndexKey() string {
	return fmt.Sprintf("%s:players", keyPrefix)
}
