// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

const emailSubject = "کد یکبار مصرف شرکت در انتخابات انجمن های علمی"

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL prefixes the voting link placed in the message
	BaseURL string
}

type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailSender delivers codes over SMTP
type EmailSender struct {
	client  mailClient
	from    string
	baseURL string
}

func NewEmailSender(cfg EmailConfig) (*EmailSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &EmailSender{client: c, from: cfg.From, baseURL: cfg.BaseURL}, nil
}

func (s *EmailSender) Send(ctx context.Context, email, code string) Delivery {
	m, err := s.message(email, code)
	if err != nil {
		return Delivery{Err: err}
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return Delivery{Err: fmt.Errorf("smtp send failed: %w", err)}
	}
	return Delivery{OK: true, Response: "sent"}
}

func (s *EmailSender) message(to, code string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(emailSubject)
	m.SetBodyString(mail.TypeTextPlain, emailBody(s.baseURL, code))
	return m, nil
}

func emailBody(baseURL, code string) string {
	return fmt.Sprintf("با سلام و احترام؛\nکد یکبار مصرف شما برای شرکت در انتخابات انجمن های علمی: %s\n%s/vote/%s/\nبا تشکر",
		code, baseURL, code)
}
