// Package mailer sends account activation and password reset emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/anonto42/nano-midea/identity/internal/logging"
	"github.com/anonto42/nano-midea/identity/internal/models"
	"github.com/anonto42/nano-midea/identity/pkg/config"
	"github.com/samber/oops"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Mailer delivers the emails that carry raw tokens to users.
type Mailer interface {
	SendActivationEmail(ctx context.Context, user *models.User, token string) error
	SendPasswordResetEmail(ctx context.Context, user *models.User, token string) error
}

// Sender delivers prepared messages. *gomail.Dialer implements it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

var (
	activationBody = template.Must(template.New("activation").Parse(
		`<p>Hi {{.Name}},</p><p>Welcome! Click <a href="{{.Link}}">here</a> to activate your account.</p>`))
	resetBody = template.Must(template.New("reset").Parse(
		`<p>Hi {{.Name}},</p><p>Click <a href="{{.Link}}">here</a> to reset your password.</p>` +
			`<p>This link will expire in two hours. If you did not request a reset, ignore this email.</p>`))
)

// SMTPMailer sends mail through an SMTP server.
type SMTPMailer struct {
	sender  Sender
	from    string
	baseURL string
	log     *zap.Logger
}

// NewSMTPMailer creates a new SMTPMailer
func NewSMTPMailer(sender Sender, from, baseURL string, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		sender:  sender,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logging.OrNop(log).Named("mailer"),
	}
}

// FromConfig returns an SMTPMailer when mail is configured and a NopMailer
// otherwise.
func FromConfig(cfg *config.Config, log *zap.Logger) Mailer {
	if !cfg.MailEnabled() {
		logging.OrNop(log).Warn("MAIL_HOST not set, outgoing mail disabled")
		return NopMailer{Log: log}
	}
	d := gomail.NewDialer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password)
	return NewSMTPMailer(d, cfg.Mail.SenderAddress, cfg.AppBaseURL, log)
}

// ActivationLink is the URL a user follows to activate their account.
func (m *SMTPMailer) ActivationLink(user *models.User, token string) string {
	return m.link("account_activations", user, token)
}

// PasswordResetLink is the URL a user follows to choose a new password.
func (m *SMTPMailer) PasswordResetLink(user *models.User, token string) string {
	return m.link("password_resets", user, token)
}

func (m *SMTPMailer) link(resource string, user *models.User, token string) string {
	return fmt.Sprintf("%s/%s/%s/edit?email=%s",
		m.baseURL, resource, url.PathEscape(token), url.QueryEscape(user.Email))
}

func (m *SMTPMailer) SendActivationEmail(ctx context.Context, user *models.User, token string) error {
	return m.send(ctx, user, "Account activation", activationBody, m.ActivationLink(user, token))
}

func (m *SMTPMailer) SendPasswordResetEmail(ctx context.Context, user *models.User, token string) error {
	return m.send(ctx, user, "Password reset", resetBody, m.PasswordResetLink(user, token))
}

func (m *SMTPMailer) send(ctx context.Context, user *models.User, subject string, body *template.Template, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.EqualFold(user.Email, m.from) {
		return oops.Code("MAIL_INVALID_RECIPIENT").With("user_id", user.ID).Errorf("invalid email address")
	}

	var buf bytes.Buffer
	if err := body.Execute(&buf, struct{ Name, Link string }{user.Name, link}); err != nil {
		return oops.Code("MAIL_RENDER_FAILED").With("subject", subject).Wrap(err)
	}

	msg := gomail.NewMessage(gomail.SetEncoding(gomail.Unencoded))
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", user.Email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", buf.String())

	if err := m.sender.DialAndSend(msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("user_id", user.ID).
			With("subject", subject).
			Wrap(err)
	}
	m.log.Info("mail sent", zap.Uint("user_id", user.ID), zap.String("subject", subject))
	return nil
}

// NopMailer drops every message. It logs at debug level when Log is set.
type NopMailer struct {
	Log *zap.Logger
}

func (n NopMailer) SendActivationEmail(_ context.Context, user *models.User, _ string) error {
	logging.OrNop(n.Log).Debug("activation email dropped", zap.Uint("user_id", user.ID))
	return nil
}

func (n NopMailer) SendPasswordResetEmail(_ context.Context, user *models.User, _ string) error {
	logging.OrNop(n.Log).Debug("reset email dropped", zap.Uint("user_id", user.ID))
	return nil
}
