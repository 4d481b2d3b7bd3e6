package email

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"coursedash.app/cloud/internal/logger"
	"coursedash.app/cloud/internal/models"
)

var ErrNotConfigured = errors.New("SMTP configuration missing")

type Sender interface {
	Send(to, subject, body string) error
}

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(to, subject, body string) error {
	if s.host == "" || s.port == "" || s.username == "" || s.password == "" {
		logger.Error("SMTP configuration missing")
		return ErrNotConfigured
	}
	if strings.ContainsAny(to+subject, "\r\n") {
		return fmt.Errorf("invalid header value")
	}

	auth := smtp.PlainAuth("", s.username, s.password, s.host)
	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s\r\n", s.from, to, subject, body))

	addr := s.host + ":" + s.port
	if err := s.sendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// Discard drops every message; used when SMTP is not configured.
type Discard struct{}

func (Discard) Send(to, subject, body string) error {
	logger.Debug("Email discarded", map[string]interface{}{
		"to":      to,
		"subject": subject,
	})
	return nil
}

// CertificateReceipt builds the confirmation sent once a certificate order
// is paid.
func CertificateReceipt(courseTitle string, product models.Product, order models.Order) (subject, body string) {
	subject = fmt.Sprintf("Your certificate for %s", courseTitle)
	body = fmt.Sprintf(`Hello,

Thank you for your purchase. Your order has been confirmed.

ORDER DETAILS
Order: %s
Course: %s
Product: %s
Amount Paid: %s

Your certificate will be issued on your dashboard once you complete the course.
`, order.ID, courseTitle, product.Title, models.FormatPrice(order.Total, order.Currency))
	return subject, body
}
