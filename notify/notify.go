// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"context"
	"log/slog"

	"github.com/danielhkuo/assocvote/models"
)

// Delivery is the outcome of a single send
type Delivery struct {
	OK       bool
	Response string
	Err      error
}

// Sender delivers a one-time code to one destination over one channel.
// Failures are reported in the Delivery, never panicked or logged here.
type Sender interface {
	Send(ctx context.Context, destination, code string) Delivery
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, destination, code string) Delivery

func (f SenderFunc) Send(ctx context.Context, destination, code string) Delivery {
	return f(ctx, destination, code)
}

type Recipient struct {
	Email string
	Phone string
}

type Attempt struct {
	Channel     string
	Destination string
	Delivery
}

type Result struct {
	Attempts []Attempt
}

// Sent reports whether the channel delivered successfully
func (r Result) Sent(channel string) bool {
	for _, a := range r.Attempts {
		if a.Channel == channel && a.OK {
			return true
		}
	}
	return false
}

// Any reports whether at least one channel delivered
func (r Result) Any() bool {
	for _, a := range r.Attempts {
		if a.OK {
			return true
		}
	}
	return false
}

// Gateway fans a code out to every enabled channel. A nil sender means
// the channel is disabled.
type Gateway struct {
	email Sender
	sms   Sender
}

func NewGateway(email, sms Sender) *Gateway {
	return &Gateway{email: email, sms: sms}
}

// Enabled lists the channels that will be attempted
func (g *Gateway) Enabled() []string {
	var ch []string
	if g.email != nil {
		ch = append(ch, models.ChannelEmail)
	}
	if g.sms != nil {
		ch = append(ch, models.ChannelSMS)
	}
	return ch
}

// SendOTP tries each enabled channel that has a destination. It never
// fails; callers inspect the Result.
func (g *Gateway) SendOTP(ctx context.Context, to Recipient, code string) Result {
	var res Result

	if g.email != nil && to.Email != "" {
		d := g.email.Send(ctx, to.Email, code)
		res.Attempts = append(res.Attempts, Attempt{Channel: models.ChannelEmail, Destination: to.Email, Delivery: d})
		if !d.OK {
			slog.Warn("email delivery failed", "destination", to.Email, "error", d.Err)
		}
	}

	if g.sms != nil && to.Phone != "" {
		d := g.sms.Send(ctx, to.Phone, code)
		res.Attempts = append(res.Attempts, Attempt{Channel: models.ChannelSMS, Destination: to.Phone, Delivery: d})
		if !d.OK {
			slog.Warn("sms delivery failed", "destination", to.Phone, "error", d.Err)
		}
	}

	return res
}
