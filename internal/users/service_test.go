package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/security"
)

type sentMail struct {
	template string
	to       string
	token    uuid.UUID
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *captureMailer) SendVerification(ctx context.Context, user *models.User, token uuid.UUID) error {
	m.record("verify_email", user, token)
	return nil
}

func (m *captureMailer) SendPasswordReset(ctx context.Context, user *models.User, token uuid.UUID) error {
	m.record("password_reset", user, token)
	return nil
}

func (m *captureMailer) SendWelcome(ctx context.Context, user *models.User) error {
	m.record("welcome", user, uuid.Nil)
	return nil
}

func (m *captureMailer) record(template string, user *models.User, token uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{template: template, to: user.Email, token: token})
}

func (m *captureMailer) last(t *testing.T, template string) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].template == template {
			return m.sent[i]
		}
	}
	t.Fatalf("no %s mail sent", template)
	return sentMail{}
}

type countingRevoker struct {
	calls []uuid.UUID
}

func (r *countingRevoker) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	r.calls = append(r.calls, userID)
	return nil
}

type fixture struct {
	svc     Service
	repo    *Repository
	mailer  *captureMailer
	revoker *countingRevoker
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		repo:    NewRepository(conn),
		mailer:  &captureMailer{},
		revoker: &countingRevoker{},
		clock:   &now,
	}
	svc, err := NewService(ServiceParams{
		Repo:     f.repo,
		Tx:       db.FromGorm(conn),
		Mailer:   f.mailer,
		Sessions: f.revoker,
		TokensConfig: config.TokensConfig{
			EmailVerificationTTL: 24 * time.Hour,
			PasswordResetTTL:     time.Hour,
		},
		Now: func() time.Time { return *f.clock },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) createUser(t *testing.T, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	user, err := f.repo.Create(context.Background(), CreateUserDTO{Email: email, PasswordHash: hash})
	require.NoError(t, err)
	return user
}

func (f *fixture) issueVerification(t *testing.T, user *models.User) *models.UserToken {
	t.Helper()
	var token *models.UserToken
	err := f.repo.db.Transaction(func(tx *gorm.DB) error {
		var err error
		token, err = f.svc.IssueVerification(context.Background(), tx, user)
		return err
	})
	require.NoError(t, err)
	return token
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code())
}

func TestProfileRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "ivan@example.com", "Secret123")

	first, last, phone := "  Ivan ", "Petrov", "+7 912 345-67-89"
	dto, err := f.svc.UpdateProfile(ctx, user.ID, ProfileInput{FirstName: &first, LastName: &last, Phone: &phone})
	require.NoError(t, err)
	require.Equal(t, "Ivan Petrov", dto.FullName)
	require.Equal(t, "+79123456789", *dto.Phone)

	blank := ""
	dto, err = f.svc.UpdateProfile(ctx, user.ID, ProfileInput{LastName: &blank})
	require.NoError(t, err)
	require.Nil(t, dto.LastName)
	require.Equal(t, "Ivan", *dto.FirstName)

	loaded, err := f.svc.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Ivan", loaded.FullName)

	_, err = f.svc.GetProfile(ctx, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "change@example.com", "Secret123")

	requireCode(t, f.svc.ChangePassword(ctx, user.ID, "Wrong1234", "Another123"), pkgerrors.CodeValidation)
	requireCode(t, f.svc.ChangePassword(ctx, user.ID, "Secret123", "short"), pkgerrors.CodeValidation)
	require.Empty(t, f.revoker.calls)

	require.NoError(t, f.svc.ChangePassword(ctx, user.ID, "Secret123", "Another123"))
	stored, err := f.repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("Another123", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []uuid.UUID{user.ID}, f.revoker.calls)
}

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "verify@example.com", "Secret123")
	token := f.issueVerification(t, user)

	require.NoError(t, f.svc.VerifyEmail(ctx, token.Token))
	stored, err := f.repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.True(t, stored.IsVerified)

	// a token redeems once
	requireCode(t, f.svc.VerifyEmail(ctx, token.Token), pkgerrors.CodeValidation)
	requireCode(t, f.svc.VerifyEmail(ctx, uuid.New()), pkgerrors.CodeValidation)
}

func TestVerifyEmailExpiredToken(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "late@example.com", "Secret123")
	token := f.issueVerification(t, user)

	*f.clock = f.clock.Add(25 * time.Hour)
	requireCode(t, f.svc.VerifyEmail(context.Background(), token.Token), pkgerrors.CodeValidation)

	stored, err := f.repo.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.False(t, stored.IsVerified)
}

func TestResendVerificationRetiresOldTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "resend@example.com", "Secret123")
	old := f.issueVerification(t, user)

	require.NoError(t, f.svc.ResendVerification(ctx, user.ID))
	fresh := f.mailer.last(t, "verify_email")
	require.NotEqual(t, old.Token, fresh.token)

	requireCode(t, f.svc.VerifyEmail(ctx, old.Token), pkgerrors.CodeValidation)
	require.NoError(t, f.svc.VerifyEmail(ctx, fresh.token))

	requireCode(t, f.svc.ResendVerification(ctx, user.ID), pkgerrors.CodeValidation)
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.createUser(t, "reset@example.com", "Secret123")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, " RESET@example.com "))
	mail := f.mailer.last(t, "password_reset")
	require.Equal(t, user.Email, mail.to)

	requireCode(t, f.svc.ConfirmPasswordReset(ctx, mail.token, "weak"), pkgerrors.CodeValidation)
	require.NoError(t, f.svc.ConfirmPasswordReset(ctx, mail.token, "Brandnew123"))

	stored, err := f.repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("Brandnew123", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []uuid.UUID{user.ID}, f.revoker.calls)

	requireCode(t, f.svc.ConfirmPasswordReset(ctx, mail.token, "Another123"), pkgerrors.CodeValidation)
}

func TestPasswordResetTokenKindsDoNotMix(t *testing.T) {
	f := newFixture(t)
	user := f.createUser(t, "kinds@example.com", "Secret123")
	token := f.issueVerification(t, user)

	requireCode(t, f.svc.ConfirmPasswordReset(context.Background(), token.Token, "Brandnew123"), pkgerrors.CodeValidation)

	row, err := f.repo.FindToken(context.Background(), token.Token, enums.UserTokenKindEmailVerification)
	require.NoError(t, err)
	require.False(t, row.IsUsed)
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	require.Empty(t, f.mailer.sent)
}

func TestLogMailerLinks(t *testing.T) {
	mailer := NewLogMailer(nil, "https://shop.example.com/")
	token := uuid.MustParse("9f1c3b8e-2a57-4c1e-9c1a-0c7e2f3d4b5a")

	require.Equal(t, "https://shop.example.com/verify-email/9f1c3b8e-2a57-4c1e-9c1a-0c7e2f3d4b5a", mailer.VerificationLink(token))
	require.Equal(t, "https://shop.example.com/reset-password/9f1c3b8e-2a57-4c1e-9c1a-0c7e2f3d4b5a", mailer.ResetLink(token))
	require.Error(t, mailer.SendWelcome(context.Background(), nil))
}
