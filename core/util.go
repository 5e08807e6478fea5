package core

import (
	"time"

	"github.com/google/uuid"
)

var NowFunc = time.Now // mockable

// Now returns the current UTC time truncated to the precision kept by the database.
func Now() time.Time {
	return NowFunc().UTC().Truncate(time.Microsecond)
}

// NewID returns a new random record identifier.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id looks like an identifier returned by NewID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
