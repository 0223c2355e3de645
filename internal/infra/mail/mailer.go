package mail

import (
	"context"
	"fmt"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"course-marketplace/internal/config"
	"course-marketplace/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Mailer = (*SMTPMailer)(nil)

// SMTPMailer sends transactional mail over plain SMTP. Every send opens its
// own connection; volume is one mail per completed payment plus the
// occasional alert, so pooling buys nothing.
type SMTPMailer struct {
	dialer     *gomail.Dialer
	from       string
	adminEmail string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:       cfg.From,
		adminEmail: cfg.AdminEmail,
	}
}

func (m *SMTPMailer) SendInvoice(ctx context.Context, to, name, courseTitle, invoiceNumber, attachmentPath string, amountCents int64, currency string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Your invoice %s", invoiceNumber))
	msg.SetBody("text/html", fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Thank you for your purchase of <b>%s</b>.</p>
<p>Amount paid: <b>%s</b></p>
<p>Your invoice <b>%s</b> is attached.</p>`,
		name, courseTitle, formatAmount(amountCents, currency), invoiceNumber))
	if attachmentPath != "" {
		msg.Attach(attachmentPath)
	}
	return m.send(ctx, msg)
}

func (m *SMTPMailer) SendAnomalyAlert(ctx context.Context, subject string, lines []string) error {
	if m.adminEmail == "" {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.adminEmail)
	msg.SetHeader("Subject", "[payments] "+subject)
	msg.SetBody("text/plain", strings.Join(lines, "\n"))
	return m.send(ctx, msg)
}

// send respects ctx cancellation around the blocking dial-and-send.
func (m *SMTPMailer) send(ctx context.Context, msg *gomail.Message) error {
	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func formatAmount(cents int64, currency string) string {
	if currency == "VND" {
		return fmt.Sprintf("%d %s", cents, currency)
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
