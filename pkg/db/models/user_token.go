package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// UserToken is a one-time token for email verification or password reset.
type UserToken struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index:user_tokens_user_kind_idx"`
	Kind      enums.UserTokenKind `gorm:"column:kind;type:text;not null;index:user_tokens_user_kind_idx"`
	Token     uuid.UUID           `gorm:"column:token;type:uuid;not null;uniqueIndex"`
	IsUsed    bool                `gorm:"column:is_used;not null"`
	ExpiresAt time.Time           `gorm:"column:expires_at;not null"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	User      *User               `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (t *UserToken) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	if t.Token == uuid.Nil {
		t.Token = uuid.New()
	}
	return nil
}

// IsExpired reports whether the token's window has passed at now.
func (t *UserToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsValid reports whether the token can still be redeemed.
func (t *UserToken) IsValid(now time.Time) bool {
	return !t.IsUsed && !t.IsExpired(now)
}
