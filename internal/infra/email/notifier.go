package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

// SMTPNotifier sends notification emails through a plain SMTP relay.
type SMTPNotifier struct {
	host   string
	port   int
	from   string
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, logger: logger}
}

func (n *SMTPNotifier) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	contentType := "text/plain; charset=utf-8"
	if strings.Contains(body, "<p>") || strings.Contains(body, "<a ") {
		contentType = "text/html; charset=utf-8"
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: %s\r\n\r\n%s",
		n.from, to, subject, contentType, body,
	)

	if err := smtp.SendMail(addr, nil, n.from, []string{to}, []byte(msg)); err != nil {
		n.logger.Error("failed to send notification email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("notification email sent",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}
