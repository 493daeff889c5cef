package queue

import "fmt"

// AlreadyQueuedMessage is sent to a second connection of a waiting player
const AlreadyQueuedMessage = "You are already in the waiting queue."

// EnteredMessage confirms a first entry into the queue
func EnteredMessage(ranking int, token string) string {
	return fmt.Sprintf("You entered the waiting queue with ranking %d.\n"+
		"In case the connection breaks, your token to reconnect is %q.", ranking, token)
}

// ReenteredMessage confirms a return to the queue after a reconnect or a
// finished match. renewed marks a token that changed since the last one.
func ReenteredMessage(ranking int, token string, renewed bool) string {
	kind := "token"
	if renewed {
		kind = "new token"
	}
	return fmt.Sprintf("You reentered the waiting queue with ranking %d.\n"+
		"In case the connection breaks, your %s to reconnect is %q.", ranking, kind, token)
}
