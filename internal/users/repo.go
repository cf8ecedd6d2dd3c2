package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts a new user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateLastLogin refreshes the user's last_login_at timestamp.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

// UpdateProfile writes the editable profile columns.
func (r *Repository) UpdateProfile(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).
		Model(user).
		Select("first_name", "last_name", "phone_number", "updated_at").
		Updates(user).Error
}

// UpdatePassword replaces the stored password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("password_hash", hash).Error
}

// MarkVerified flags the user's email as confirmed.
func (r *Repository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("is_verified", true).Error
}

// CreateToken stores a one-time token.
func (r *Repository) CreateToken(ctx context.Context, token *models.UserToken) error {
	return r.db.WithContext(ctx).Omit("User").Create(token).Error
}

// FindToken loads a token of the given kind with its user.
func (r *Repository) FindToken(ctx context.Context, token uuid.UUID, kind enums.UserTokenKind) (*models.UserToken, error) {
	var row models.UserToken
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("token = ? AND kind = ?", token, kind).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkTokenUsed consumes the token. It reports false when the token was
// already used, so a token is redeemed at most once.
func (r *Repository) MarkTokenUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.UserToken{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	return res.RowsAffected > 0, res.Error
}

// InvalidateTokens marks every unused token of kind for the user as used.
func (r *Repository) InvalidateTokens(ctx context.Context, userID uuid.UUID, kind enums.UserTokenKind) error {
	return r.db.WithContext(ctx).
		Model(&models.UserToken{}).
		Where("user_id = ? AND kind = ? AND is_used = ?", userID, kind, false).
		Update("is_used", true).Error
}
