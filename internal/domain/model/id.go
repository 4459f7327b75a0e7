package model

import "github.com/google/uuid"

// ValidID reports whether id can name a session or document. Anything else
// cannot exist in storage and is treated as not found by callers.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
