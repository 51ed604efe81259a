package services

import (
	"context"

	"gopkg.in/gomail.v2"
)

type EmailService interface {
	SendEmail(ctx context.Context, to, subject, msg string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type emailService struct {
	from   string
	dialer *gomail.Dialer
}

func NewEmailService(cfg SMTPConfig) EmailService {
	return &emailService{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// SendEmail delivers a plain-text message. gomail has no context support, so
// the send runs in its own goroutine and ctx only bounds how long we wait.
func (e *emailService) SendEmail(ctx context.Context, to, subject, msg string) error {
	m := e.newMessage(to, subject, msg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *emailService) newMessage(to, subject, msg string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", msg)
	return m
}
