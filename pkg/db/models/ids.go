package models

import "github.com/google/uuid"

// ensureID assigns ids client-side. Neither dialect's schema carries a uuid
// default.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
