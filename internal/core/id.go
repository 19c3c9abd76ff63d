package core

import (
	"github.com/google/uuid"
)

// NewID returns a random UUIDv4 string used for submission records.
func NewID() string {
	return uuid.NewString()
}
