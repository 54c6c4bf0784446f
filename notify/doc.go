// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package notify delivers one-time codes and operational alerts.

# Gateway

A Gateway holds one Sender per channel. Channels are switched off by
passing nil:

	var email, sms notify.Sender
	if cfg.SendEmail {
		email, _ = notify.NewEmailSender(emailCfg)
	}
	if cfg.SendSMS {
		sms = notify.NewSMSSender(smsCfg)
	}
	gw := notify.NewGateway(email, sms)

	res := gw.SendOTP(ctx, notify.Recipient{Email: e, Phone: p}, code)
	if !res.Any() {
		// nothing reached the voter; an operator can resend later
	}

SendOTP never returns an error. Every attempt is listed in the Result with
its provider response so callers can log deliveries.

# Channels

  - SMSSender: ippanel pattern API over HTTP, "apikey" header, success on 200
  - EmailSender: SMTP via github.com/wneessen/go-mail, message includes the
    voting link

# Alerts

Alerter is used for failures no voter can act on, such as running out of
OTP codes. TelegramAlerter posts to a chat through
github.com/go-telegram-bot-api/telegram-bot-api/v5; LogAlerter logs with
slog.
*/
package notify
