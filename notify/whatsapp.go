package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// WhatsAppSender delivers through the Twilio messages API
type WhatsAppSender struct {
	client *twilio.RestClient
	from   string
}

// NewWhatsAppSender builds a sender for the given account and sandbox or
// business number
func NewWhatsAppSender(accountSID, authToken, fromNumber string) (*WhatsAppSender, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" {
		return nil, errors.New("notify: twilio credentials and sender number are required")
	}
	from, err := FormatPhoneNumber(fromNumber, "")
	if err != nil {
		return nil, fmt.Errorf("notify: sender number: %w", err)
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &WhatsAppSender{client: client, from: from}, nil
}

func (s *WhatsAppSender) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.from)
	params.SetBody(body)

	done := make(chan error, 1)
	go func() {
		_, err := s.client.Api.CreateMessage(params)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("twilio: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender logs messages instead of sending them; used when Twilio is not configured
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, to, body string) error {
	s.log.Info("whatsapp disabled, message not sent", zap.String("to", to), zap.String("body", body))
	return nil
}
