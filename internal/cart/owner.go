package cart

import (
	"strings"

	"github.com/google/uuid"
)

// Owner identifies whose cart is being addressed: an authenticated user or an
// anonymous session, never both. The zero Owner is invalid.
type Owner struct {
	userID     uuid.UUID
	sessionKey string
}

// UserOwner addresses the cart of an authenticated user.
func UserOwner(userID uuid.UUID) Owner {
	return Owner{userID: userID}
}

// SessionOwner addresses the cart of an anonymous session.
func SessionOwner(sessionKey string) Owner {
	return Owner{sessionKey: strings.TrimSpace(sessionKey)}
}

// Validate rejects owners that name neither or both identities.
func (o Owner) Validate() error {
	hasUser := o.userID != uuid.Nil
	hasSession := o.sessionKey != ""
	if hasUser == hasSession {
		return InvalidOwnerError()
	}
	return nil
}

// UserID returns the user identity when the owner is a user.
func (o Owner) UserID() (uuid.UUID, bool) {
	return o.userID, o.userID != uuid.Nil
}

// SessionKey returns the anonymous key when the owner is a session.
func (o Owner) SessionKey() (string, bool) {
	return o.sessionKey, o.sessionKey != ""
}

// IsUser reports whether the owner is an authenticated user.
func (o Owner) IsUser() bool {
	return o.userID != uuid.Nil
}

func (o Owner) String() string {
	switch {
	case o.userID != uuid.Nil && o.sessionKey == "":
		return "user:" + o.userID.String()
	case o.sessionKey != "" && o.userID == uuid.Nil:
		return "session:" + o.sessionKey
	default:
		return "invalid"
	}
}
