// Package sender turns queued notification messages into outbound email.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/synergyhq/billing-portal/internal/lib/sl"
	"github.com/synergyhq/billing-portal/internal/lib/smtp"
	"github.com/synergyhq/billing-portal/internal/services/auth"
	"github.com/synergyhq/billing-portal/internal/services/reconciler"
)

type SenderService struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

func NewSenderService(log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

// SendPasswordReset emails the single-use reset link to the account holder.
func (s *SenderService) SendPasswordReset(body []byte) error {
	var message auth.PasswordResetMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{message.Email}
	subject := "Reset your password"
	bodyText := fmt.Sprintf("Hello, %s!\n\n"+
		"We received a request to reset the password for your account.\n"+
		"Follow the link below to choose a new password:\n\n%s\n\n"+
		"The link expires in one hour and can be used only once.\n"+
		"If you did not request this, you can safely ignore this email.",
		message.Name, message.ResetURL)

	return s.sendEmail(to, subject, bodyText)
}

// SendPaymentFailed notifies the account holder that a charge was declined.
func (s *SenderService) SendPaymentFailed(body []byte) error {
	var message reconciler.PaymentFailedMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}

	to := []string{message.Email}
	subject := "Payment failed"
	bodyText := fmt.Sprintf("Hello, %s!\n\n"+
		"We could not process your payment of %.2f %s.\n"+
		"Reason: %s\n\n"+
		"Please update your payment method in the billing portal to keep "+
		"your subscription active.",
		message.Name, float64(message.AmountCents)/100,
		strings.ToUpper(message.Currency), message.Reason)

	return s.sendEmail(to, subject, bodyText)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetFrom(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetFrom()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetFrom()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent", slog.String("subject", subject), slog.Any("to", to))
	return nil
}
