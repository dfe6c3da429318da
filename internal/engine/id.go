package engine

import "github.com/google/uuid"

// newID returns a random ID for navigator sessions and trigger entries.
func newID() string {
	return uuid.NewString()
}
