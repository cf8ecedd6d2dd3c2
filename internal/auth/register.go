package auth

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

// RegisterRequest contains the payload required to open an account.
type RegisterRequest struct {
	Email           string  `json:"email" validate:"required,email"`
	Password        string  `json:"password" validate:"required,password_strength"`
	PasswordConfirm string  `json:"password_confirm" validate:"required,eqfield=Password"`
	FirstName       *string `json:"first_name,omitempty" validate:"omitempty,max=150"`
	LastName        *string `json:"last_name,omitempty" validate:"omitempty,max=150"`
	Phone           *string `json:"phone_number,omitempty" validate:"omitempty,phone"`
}

// RegisterService handles the sign-up transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

type verificationIssuer interface {
	IssueVerification(ctx context.Context, tx *gorm.DB, user *models.User) (*models.UserToken, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	Tx             txRunner
	Users          *users.Repository
	Verification   verificationIssuer
	Mailer         users.Mailer
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
}

type registerService struct {
	tx           txRunner
	users        *users.Repository
	verification verificationIssuer
	mailer       users.Mailer
	passwordCfg  config.PasswordConfig
	logg         *logger.Logger
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	switch {
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Users == nil:
		return nil, fmt.Errorf("user repository required")
	case params.Verification == nil:
		return nil, fmt.Errorf("verification issuer required")
	case params.Mailer == nil:
		return nil, fmt.Errorf("mailer required")
	}
	return &registerService{
		tx:           params.Tx,
		users:        params.Users,
		verification: params.Verification,
		mailer:       params.Mailer,
		passwordCfg:  params.PasswordConfig,
		logg:         params.Logger,
	}, nil
}

// Register creates the user and a verification token in one transaction,
// then mails the verification link and a welcome note.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := security.CheckPasswordStrength(req.Password); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	var phone *string
	if req.Phone != nil {
		normalized := users.NormalizePhone(*req.Phone)
		phone = &normalized
	}

	var (
		user  *models.User
		token *models.UserToken
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		created, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Phone:        phone,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		user = created

		token, err = s.verification.IssueVerification(ctx, tx, created)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerification(ctx, user, token.Token); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "auth.register.verification_mail_failed", err)
	}
	if err := s.mailer.SendWelcome(ctx, user); err != nil {
		s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "auth.register.welcome_mail_failed", err)
	}
	return users.FromModel(user), nil
}
