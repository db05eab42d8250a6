package uuidx

import "github.com/google/uuid"

// New generates a version 7 UUID. Version 7 IDs sort by creation time, so
// consumer IDs list in registration order. It panics if the random source
// fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
