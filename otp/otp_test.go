// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/notify"
	"github.com/danielhkuo/assocvote/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type recordingAlerter struct{ alerts []string }

func (r *recordingAlerter) Alert(_ context.Context, msg string) { r.alerts = append(r.alerts, msg) }

func TestIssue_Idempotent(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")

	m := NewManager(conn, nil)

	first, err := m.Issue(ctx, conn, v.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(first.Token) != TokenLength {
		t.Errorf("expected %d-digit token, got %q", TokenLength, first.Token)
	}

	second, err := m.Issue(ctx, conn, v.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if second.Token != first.Token || second.ID != first.ID {
		t.Errorf("second Issue() returned a new token: %s vs %s", second.Token, first.Token)
	}

	if n := testutil.CountRows(t, conn, "otp", "voter_id = $1", v.ID); n != 1 {
		t.Errorf("expected 1 otp row, got %d", n)
	}
}

func TestIssue_NewTokenAfterUseOrExpiry(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")

	tests := []struct {
		name      string
		createdAt time.Time
		used      bool
	}{
		{"used", time.Now(), true},
		{"expired", time.Now().Add(-3 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testutil.CreateTestVoter(t, conn, g.ID, "", "")
			old := testutil.CreateTestOTP(t, conn, v.ID, tt.createdAt, tt.used)

			o, err := NewManager(conn, nil).Issue(ctx, conn, v.ID)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			if o.Token == old.Token {
				t.Error("expected a fresh token")
			}
		})
	}
}

func TestIssue_RetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	taken := testutil.CreateTestVoter(t, conn, g.ID, "", "")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")

	existing := testutil.CreateTestOTP(t, conn, taken.ID, time.Now(), false)

	codes := []string{existing.Token, existing.Token, "00000042"}
	calls := 0
	gen := func() (string, error) {
		c := codes[calls]
		calls++
		return c, nil
	}

	o, err := NewManager(conn, nil, WithGenerator(gen)).Issue(ctx, conn, v.ID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if o.Token != "00000042" {
		t.Errorf("expected third code, got %s", o.Token)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestIssue_ExhaustedRetries(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	taken := testutil.CreateTestVoter(t, conn, g.ID, "", "")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")
	existing := testutil.CreateTestOTP(t, conn, taken.ID, time.Now(), false)

	calls := 0
	gen := func() (string, error) {
		calls++
		return existing.Token, nil
	}
	alerter := &recordingAlerter{}

	_, err := NewManager(conn, nil, WithGenerator(gen), WithAlerter(alerter)).Issue(ctx, conn, v.ID)
	if !errors.Is(err, ErrExhaustedRetries) {
		t.Fatalf("expected ErrExhaustedRetries, got %v", err)
	}
	if calls != MaxTries {
		t.Errorf("expected %d attempts, got %d", MaxTries, calls)
	}
	if len(alerter.alerts) != 1 {
		t.Errorf("expected one alert, got %d", len(alerter.alerts))
	}
	if n := testutil.CountRows(t, conn, "otp", "voter_id = $1", v.ID); n != 0 {
		t.Errorf("no otp should be stored, got %d", n)
	}
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")

	base := time.Now().UTC().Truncate(time.Second)
	fresh := testutil.CreateTestOTP(t, conn, v.ID, base, false)
	used := testutil.CreateTestOTP(t, conn, v.ID, base, true)

	c := &clock{t: base}
	m := NewManager(conn, nil, WithClock(c.now))

	tests := []struct {
		name          string
		token         string
		requireUnused bool
		at            time.Time
		wantErr       error
	}{
		{"fresh", fresh.Token, true, base, nil},
		{"just before expiry", fresh.Token, true, base.Add(2*time.Hour - time.Second), nil},
		{"at expiry", fresh.Token, true, base.Add(2 * time.Hour), ErrExpired},
		{"after expiry", fresh.Token, true, base.Add(3 * time.Hour), ErrExpired},
		{"expired but navigation", fresh.Token, false, base.Add(3 * time.Hour), nil},
		{"used", used.Token, true, base, ErrExpired},
		{"used but navigation", used.Token, false, base, nil},
		{"unknown", "99999999", false, base, ErrNotFound},
		{"malformed", "abc", false, base, ErrNotFound},
		{"too long", fresh.Token + "0", false, base, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.t = tt.at
			voter, _, err := m.Validate(ctx, conn, tt.token, tt.requireUnused)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && voter.ID != v.ID {
				t.Errorf("Validate() voter = %s, want %s", voter.ID, v.ID)
			}
		})
	}
}

func TestConsume(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")
	o := testutil.CreateTestOTP(t, conn, v.ID, time.Now(), false)

	m := NewManager(conn, nil)
	if err := m.Consume(ctx, conn, o.Token); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	// Second consume is a no-op
	if err := m.Consume(ctx, conn, o.Token); err != nil {
		t.Fatalf("second Consume() error = %v", err)
	}
	if _, _, err := m.Validate(ctx, conn, o.Token, true); !errors.Is(err, ErrExpired) {
		t.Errorf("consumed token should be expired, got %v", err)
	}
	if err := m.Consume(ctx, conn, "00000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown token: expected ErrNotFound, got %v", err)
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")
	o := testutil.CreateTestOTP(t, conn, v.ID, time.Now(), false)

	var smsCodes []string
	sms := notify.SenderFunc(func(_ context.Context, _, code string) notify.Delivery {
		smsCodes = append(smsCodes, code)
		return notify.Delivery{OK: true, Response: `{"status":"OK"}`}
	})
	email := notify.SenderFunc(func(context.Context, string, string) notify.Delivery {
		return notify.Delivery{Err: errors.New("smtp down")}
	})

	m := NewManager(conn, notify.NewGateway(email, sms))
	res, err := m.Dispatch(ctx, v, o)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if !res.Sent(models.ChannelSMS) || res.Sent(models.ChannelEmail) {
		t.Errorf("unexpected result %+v", res)
	}
	if len(smsCodes) != 1 || smsCodes[0] != o.Token {
		t.Errorf("sms got %v", smsCodes)
	}

	if n := testutil.CountRows(t, conn, "notification", "voter_id = $1", v.ID); n != 2 {
		t.Errorf("expected 2 notification rows, got %d", n)
	}
	if n := testutil.CountRows(t, conn, "notification", "channel = $1 AND success = $2", "email", false); n != 1 {
		t.Errorf("expected failed email logged, got %d", n)
	}
	if n := testutil.CountRows(t, conn, "otp", "id = $1 AND otp_sent = $2", o.ID, 1); n != 1 {
		t.Error("otp_sent should be 1")
	}
}

func TestDispatch_NothingDelivered(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")
	o := testutil.CreateTestOTP(t, conn, v.ID, time.Now(), false)

	// All channels disabled
	res, err := NewManager(conn, nil).Dispatch(ctx, v, o)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Any() {
		t.Error("nothing should be sent")
	}
	if n := testutil.CountRows(t, conn, "otp", "id = $1 AND otp_sent = $2", o.ID, 0); n != 1 {
		t.Error("otp_sent should stay 0")
	}
}

func TestResend(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")
	live := testutil.CreateTestOTP(t, conn, v.ID, time.Now(), false)

	sms := notify.SenderFunc(func(context.Context, string, string) notify.Delivery {
		return notify.Delivery{OK: true}
	})
	m := NewManager(conn, notify.NewGateway(nil, sms))

	o, res, err := m.Resend(ctx, v.ID)
	if err != nil {
		t.Fatalf("Resend() error = %v", err)
	}
	if o.Token != live.Token {
		t.Error("Resend() should reuse the live token")
	}
	if !res.Any() || o.OTPSent != 1 {
		t.Errorf("expected one delivery, got sent=%d", o.OTPSent)
	}

	if _, _, err := m.Resend(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown voter: expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	conn := testutil.SetupTestDB(t)
	g := testutil.CreateTestGroup(t, conn, "Alpha")
	v := testutil.CreateTestVoter(t, conn, g.ID, "", "")

	testutil.CreateTestOTP(t, conn, v.ID, time.Now(), false)
	testutil.CreateTestOTP(t, conn, v.ID, time.Now(), true)
	testutil.CreateTestOTP(t, conn, v.ID, time.Now().Add(-5*time.Hour), false)

	s, err := NewManager(conn, nil).Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	want := Stats{Total: 3, Used: 1, Active: 1, Expired: 1}
	if s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}
}
