package utils

import (
	"fmt"
	"plantify/config"
	"plantify/models"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer delivers a single HTML email
type Mailer interface {
	SendEmail(toEmail, subject, htmlContent string) error
}

// PostmarkMailer sends through Postmark
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(serverToken, from string) *PostmarkMailer {
	return &PostmarkMailer{client: postmark.NewClient(serverToken, ""), from: from}
}

func (m *PostmarkMailer) SendEmail(toEmail, subject, htmlContent string) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlContent,
		TextBody: htmlContent,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendGridMailer sends through the SendGrid v3 API
type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, from string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), from: mail.NewEmail("Plantify", from)}
}

func (m *SendGridMailer) SendEmail(toEmail, subject, htmlContent string) error {
	message := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", toEmail), htmlContent, htmlContent)
	resp, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to send email: sendgrid status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// LogMailer only logs outgoing mail; used when no provider is configured
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendEmail(toEmail, subject, _ string) error {
	m.log.Info("email provider disabled, dropping email",
		zap.String("to", toEmail),
		zap.String("subject", subject),
	)
	return nil
}

// NewMailer picks the backend named in cfg.Provider
func NewMailer(cfg config.EmailConfig, log *zap.Logger) Mailer {
	switch cfg.Provider {
	case "postmark":
		return NewPostmarkMailer(cfg.PostmarkToken, cfg.Sender)
	case "sendgrid":
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.Sender)
	default:
		return NewLogMailer(log)
	}
}

// EmailService renders the application's emails and hands them to a Mailer
type EmailService struct {
	mailer Mailer
}

// NewEmailService initializes and returns a new EmailService instance
func NewEmailService(mailer Mailer) *EmailService {
	return &EmailService{mailer: mailer}
}

// SendEmail sends a basic email to the specified recipient
func (es *EmailService) SendEmail(toEmail, subject, htmlContent string) error {
	return es.mailer.SendEmail(toEmail, subject, htmlContent)
}

// SendPasswordResetEmail sends the reset link to the user
func (es *EmailService) SendPasswordResetEmail(toEmail, resetURL string) error {
	subject := "Password Reset Request"
	htmlContent := fmt.Sprintf(
		"<p>You requested a password reset.</p><p>Reset your password using this link: <a href=\"%s\">%s</a></p><p>The link expires shortly. If you did not request this, ignore this email.</p>",
		resetURL, resetURL,
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}

// SendOrderConfirmationEmail sends an order confirmation email to the buyer
func (es *EmailService) SendOrderConfirmationEmail(toEmail, name string, order *models.Order) error {
	subject := "Order Confirmation - Plantify"
	htmlContent := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Thank you for your purchase! Your order (ID: %s) with %d item(s) has been placed successfully.<br><br>Total Amount: <strong>₹%.2f</strong><br>Payment Method: <strong>%s</strong><br>Shipping to: %s<br><br>Thank you for shopping with us!",
		name,
		order.ID.Hex(),
		len(order.Items),
		order.TotalAmount,
		order.PaymentMethod,
		order.ShippingAddress,
	)
	return es.SendEmail(toEmail, subject, htmlContent)
}
