package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Mailer delivers account emails.
type Mailer interface {
	SendVerification(ctx context.Context, user *models.User, token uuid.UUID) error
	SendPasswordReset(ctx context.Context, user *models.User, token uuid.UUID) error
	SendWelcome(ctx context.Context, user *models.User) error
}

// LogMailer writes every email to the log instead of sending it.
type LogMailer struct {
	logg        *logger.Logger
	frontendURL string
}

// NewLogMailer builds a LogMailer linking to frontendURL.
func NewLogMailer(logg *logger.Logger, frontendURL string) *LogMailer {
	return &LogMailer{logg: logg, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (m *LogMailer) SendVerification(ctx context.Context, user *models.User, token uuid.UUID) error {
	return m.send(ctx, user, "verify_email", m.VerificationLink(token))
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, user *models.User, token uuid.UUID) error {
	return m.send(ctx, user, "password_reset", m.ResetLink(token))
}

func (m *LogMailer) SendWelcome(ctx context.Context, user *models.User) error {
	return m.send(ctx, user, "welcome", m.frontendURL)
}

// VerificationLink is the frontend page that confirms an email token.
func (m *LogMailer) VerificationLink(token uuid.UUID) string {
	return fmt.Sprintf("%s/verify-email/%s", m.frontendURL, token)
}

// ResetLink is the frontend page that accepts a new password.
func (m *LogMailer) ResetLink(token uuid.UUID) string {
	return fmt.Sprintf("%s/reset-password/%s", m.frontendURL, token)
}

func (m *LogMailer) send(ctx context.Context, user *models.User, template, link string) error {
	if user == nil {
		return fmt.Errorf("mail recipient required")
	}
	ctx = m.logg.WithFields(ctx, map[string]any{
		"to":       user.Email,
		"greeting": user.ShortName(),
		"template": template,
		"link":     link,
	})
	m.logg.Info(ctx, "mail.sent")
	return nil
}
