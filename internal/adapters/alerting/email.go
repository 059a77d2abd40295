package alerting

import (
	"context"

	"gopkg.in/gomail.v2"

	"review_sync/internal/domain"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Email sends alerts over SMTP.
type Email struct {
	sender   mailSender
	from, to string
}

func NewEmail(host string, port int, user, pass, from, to string) *Email {
	return &Email{sender: gomail.NewDialer(host, port, user, pass), from: from, to: to}
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, r domain.EnrichedReview) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to)
	m.SetHeader("Subject", title(r))
	m.SetBody("text/plain", body(r))
	return e.sender.DialAndSend(m)
}
