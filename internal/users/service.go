package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// Service covers the account flows of a signed-up user.
type Service interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*UserDTO, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	VerifyEmail(ctx context.Context, token uuid.UUID) error
	ResendVerification(ctx context.Context, userID uuid.UUID) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token uuid.UUID, newPassword string) error
	IssueVerification(ctx context.Context, tx *gorm.DB, user *models.User) (*models.UserToken, error)
}

// ProfileInput carries the editable profile fields; nil leaves a field as is.
type ProfileInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sessionRevoker interface {
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

// ServiceParams bundles the dependencies of the users service.
type ServiceParams struct {
	Repo           *Repository
	Tx             txRunner
	Mailer         Mailer
	Sessions       sessionRevoker
	PasswordConfig config.PasswordConfig
	TokensConfig   config.TokensConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	repo        *Repository
	tx          txRunner
	mailer      Mailer
	sessions    sessionRevoker
	passwordCfg config.PasswordConfig
	tokensCfg   config.TokensConfig
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the users service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		mailer:      params.Mailer,
		sessions:    params.Sessions,
		passwordCfg: params.PasswordConfig,
		tokensCfg:   params.TokensConfig,
		logg:        params.Logger,
		now:         now,
	}, nil
}

func (s *service) GetProfile(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, input ProfileInput) (*UserDTO, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.FirstName != nil {
		user.FirstName = trimmedOrNil(*input.FirstName)
	}
	if input.LastName != nil {
		user.LastName = trimmedOrNil(*input.LastName)
	}
	if input.Phone != nil {
		user.Phone = trimmedOrNil(NormalizePhone(*input.Phone))
	}
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return FromModel(user), nil
}

// ChangePassword replaces the password after checking the current one and
// signs the user out everywhere.
func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	valid, err := security.VerifyPassword(oldPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeValidation, "old password is incorrect")
	}
	if err := s.setPassword(ctx, s.repo, user.ID, newPassword); err != nil {
		return err
	}
	s.revokeSessions(ctx, user.ID)
	return nil
}

func (s *service) VerifyEmail(ctx context.Context, token uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := s.redeem(ctx, repo, token, enums.UserTokenKindEmailVerification)
		if err != nil {
			return err
		}
		if err := repo.MarkVerified(ctx, row.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark user verified")
		}
		return nil
	})
}

// ResendVerification retires outstanding verification tokens and mails a new one.
func (s *service) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is already verified")
	}

	var token *models.UserToken
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).InvalidateTokens(ctx, user.ID, enums.UserTokenKindEmailVerification); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "invalidate verification tokens")
		}
		token, err = s.IssueVerification(ctx, tx, user)
		return err
	})
	if err != nil {
		return err
	}
	s.mail(ctx, "verification", s.mailer.SendVerification(ctx, user, token.Token))
	return nil
}

// RequestPasswordReset mails a reset token when the email is registered. An
// unknown email succeeds silently so accounts cannot be probed.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !user.IsActive {
		return nil
	}

	token := &models.UserToken{
		UserID:    user.ID,
		Kind:      enums.UserTokenKindPasswordReset,
		ExpiresAt: s.now().Add(s.tokensCfg.PasswordResetTTL),
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reset token")
	}
	s.mail(ctx, "password_reset", s.mailer.SendPasswordReset(ctx, user, token.Token))
	return nil
}

func (s *service) ConfirmPasswordReset(ctx context.Context, token uuid.UUID, newPassword string) error {
	var userID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := s.redeem(ctx, repo, token, enums.UserTokenKindPasswordReset)
		if err != nil {
			return err
		}
		userID = row.UserID
		return s.setPassword(ctx, repo, row.UserID, newPassword)
	})
	if err != nil {
		return err
	}
	s.revokeSessions(ctx, userID)
	return nil
}

// IssueVerification stores a fresh email verification token for user on tx.
func (s *service) IssueVerification(ctx context.Context, tx *gorm.DB, user *models.User) (*models.UserToken, error) {
	token := &models.UserToken{
		UserID:    user.ID,
		Kind:      enums.UserTokenKindEmailVerification,
		ExpiresAt: s.now().Add(s.tokensCfg.EmailVerificationTTL),
	}
	if err := s.repo.WithTx(tx).CreateToken(ctx, token); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create verification token")
	}
	return token, nil
}

func (s *service) redeem(ctx context.Context, repo *Repository, token uuid.UUID, kind enums.UserTokenKind) (*models.UserToken, error) {
	row, err := repo.FindToken(ctx, token, kind)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidToken()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
	}
	if !row.IsValid(s.now()) {
		return nil, invalidToken()
	}
	used, err := repo.MarkTokenUsed(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume token")
	}
	if !used {
		return nil, invalidToken()
	}
	return row, nil
}

func (s *service) setPassword(ctx context.Context, repo *Repository, userID uuid.UUID, password string) error {
	if err := security.CheckPasswordStrength(password); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	return nil
}

func (s *service) loadUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) revokeSessions(ctx context.Context, userID uuid.UUID) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithUserID(ctx, userID.String()), "error", err.Error()), "users.sessions.revoke_failed")
	}
}

func (s *service) mail(ctx context.Context, template string, err error) {
	if err != nil {
		s.logg.Error(s.logg.WithField(ctx, "template", template), "users.mail.failed", err)
	}
}

func invalidToken() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "token is invalid or expired")
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone drops the separators people commonly type.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
}

func trimmedOrNil(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
