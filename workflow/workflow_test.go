// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package workflow

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielhkuo/assocvote/ledger"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/otp"
	"github.com/danielhkuo/assocvote/registry"
	"github.com/danielhkuo/assocvote/testutil"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newController(conn *sql.DB, clk *clock, cfg Config) *Controller {
	otps := otp.NewManager(conn, nil, otp.WithClock(clk.now))
	return New(conn, otps, ledger.New(conn), registry.New(conn, otps), cfg, WithClock(clk.now))
}

type fixture struct {
	conn   *sql.DB
	clk    *clock
	c      *Controller
	alpha  models.Group
	beta   models.Group
	voter  models.Voter
	token  string
	inner  []models.Candidate
	outer  models.Candidate
	medata ledger.Metadata
}

// newFixture sets up a confirmed Alpha voter with a live link, four Alpha
// candidates and one Beta candidate
func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	clk := &clock{t: time.Now()}

	f := &fixture{conn: conn, clk: clk, c: newController(conn, clk, Config{})}
	f.alpha = testutil.CreateTestGroup(t, conn, "Alpha")
	f.beta = testutil.CreateTestGroup(t, conn, "Beta")
	for _, name := range []string{"Reza", "Nima", "Leila", "Ava"} {
		f.inner = append(f.inner, testutil.CreateTestCandidate(t, conn, f.alpha.ID, name))
	}
	f.outer = testutil.CreateTestCandidate(t, conn, f.beta.ID, "Omid")

	f.voter = testutil.CreateTestVoter(t, conn, f.alpha.ID, "1234567890", "")
	testutil.ConfirmTestVoter(t, conn, f.voter.ID)
	f.token = testutil.CreateTestOTP(t, conn, f.voter.ID, clk.t, false).Token
	f.medata = ledger.Metadata{IPAddress: "10.0.0.1", UserAgent: "test", Device: "Desktop"}
	return f
}

func (f *fixture) ids(cs ...models.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestResolve_States(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fresh := testutil.CreateTestVoter(t, f.conn, f.alpha.ID, "", "")
	freshToken := testutil.CreateTestOTP(t, f.conn, fresh.ID, f.clk.t, false).Token

	tests := []struct {
		name    string
		token   string
		want    State
		wantErr error
	}{
		{"unknown token", "00000000", LinkInvalid, ErrLinkInvalid},
		{"malformed token", "abc", LinkInvalid, ErrLinkInvalid},
		{"unconfirmed", freshToken, AwaitingConfirmation, nil},
		{"confirmed", f.token, AwaitingVote, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := f.c.Resolve(ctx, tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
			if s.State != tt.want {
				t.Errorf("State = %v, want %v", s.State, tt.want)
			}
		})
	}
}

func TestSession_Redirect(t *testing.T) {
	tests := []struct {
		state    State
		step     Step
		want     Step
		redirect bool
	}{
		{AwaitingConfirmation, StepConfirmInfo, StepConfirmInfo, false},
		{AwaitingConfirmation, StepSelect, StepConfirmInfo, true},
		{AwaitingConfirmation, StepConfirmation, StepConfirmInfo, true},
		{AwaitingVote, StepSelect, StepSelect, false},
		{AwaitingVote, StepConfirmation, StepSelect, true},
		{Voted, StepSelect, StepConfirmation, true},
		{Voted, StepConfirmation, StepConfirmation, false},
	}

	for _, tt := range tests {
		got, redirect := Session{State: tt.state}.Redirect(tt.step)
		if got != tt.want || redirect != tt.redirect {
			t.Errorf("%v.Redirect(%v) = (%v, %v), want (%v, %v)", tt.state, tt.step, got, redirect, tt.want, tt.redirect)
		}
	}
}

func TestConfirmInformation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	v := testutil.CreateTestVoter(t, f.conn, f.alpha.ID, "", "")
	token := testutil.CreateTestOTP(t, f.conn, v.ID, f.clk.t, false).Token

	s, err := f.c.ConfirmInformation(ctx, token)
	if err != nil {
		t.Fatalf("ConfirmInformation() error = %v", err)
	}
	if s.State != AwaitingVote || s.Voter.ConfirmedInformation == nil {
		t.Fatalf("expected confirmed session, got %v", s.State)
	}
	first := *s.Voter.ConfirmedInformation

	f.clk.t = f.clk.t.Add(time.Minute)
	again, err := f.c.ConfirmInformation(ctx, token)
	if err != nil {
		t.Fatalf("ConfirmInformation() error = %v", err)
	}
	if !again.Voter.ConfirmedInformation.Equal(first) {
		t.Error("second confirmation should keep the first time")
	}

	if _, err := f.c.ConfirmInformation(ctx, "99999999"); !errors.Is(err, ErrLinkInvalid) {
		t.Errorf("expected ErrLinkInvalid, got %v", err)
	}
}

func TestCandidates_OwnGroupOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	s, err := f.c.Resolve(ctx, f.token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	cs, err := f.c.Candidates(ctx, s)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(cs) != len(f.inner) {
		t.Fatalf("expected %d candidates, got %d", len(f.inner), len(cs))
	}
	for _, c := range cs {
		if c.GroupID != f.alpha.ID {
			t.Errorf("candidate %s is from another group", c.ID)
		}
	}
}

func TestSubmit_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	receipt, err := f.c.Submit(ctx, f.token, f.ids(f.inner[:3]...), f.medata)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if !receipt.Voter.Voted {
		t.Error("receipt voter should be marked voted")
	}
	if len(receipt.Ballots) != 3 {
		t.Fatalf("expected 3 ballots, got %d", len(receipt.Ballots))
	}
	codes := make(map[string]bool)
	for _, b := range receipt.Ballots {
		if len(b.ConfirmationCode) != ledger.ConfirmationCodeLength || codes[b.ConfirmationCode] {
			t.Errorf("bad confirmation code %q", b.ConfirmationCode)
		}
		codes[b.ConfirmationCode] = true
	}

	if n := testutil.CountRows(t, f.conn, "vote", "voter_id = $1 AND device = $2", f.voter.ID, "Desktop"); n != 3 {
		t.Errorf("expected 3 stored ballots, got %d", n)
	}
	if n := testutil.CountRows(t, f.conn, "otp", "token = $1 AND is_used = $2", f.token, true); n != 1 {
		t.Error("otp should be consumed")
	}

	s, err := f.c.Resolve(ctx, f.token)
	if err != nil {
		t.Fatalf("used link should still resolve: %v", err)
	}
	if s.State != Voted {
		t.Errorf("expected Voted, got %v", s.State)
	}
	r, err := f.c.Receipt(ctx, s)
	if err != nil {
		t.Fatalf("Receipt() error = %v", err)
	}
	if len(r.Ballots) != 3 {
		t.Errorf("expected 3 receipt entries, got %d", len(r.Ballots))
	}

	// A second submission for new candidates is refused
	if _, err := f.c.Submit(ctx, f.token, f.ids(f.inner[3]), f.medata); !errors.Is(err, ErrAlreadyVoted) {
		t.Errorf("expected ErrAlreadyVoted, got %v", err)
	}
	if _, err := f.c.Submit(ctx, f.token, f.ids(f.inner[0]), f.medata); !errors.Is(err, ErrDuplicateBallot) {
		t.Errorf("expected ErrDuplicateBallot, got %v", err)
	}
}

func TestSubmit_InvalidSelections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sixth := testutil.CreateTestCandidate(t, f.conn, f.alpha.ID, "Sina")
	seventh := testutil.CreateTestCandidate(t, f.conn, f.alpha.ID, "Tara")

	tests := []struct {
		name string
		ids  []string
	}{
		{"empty", nil},
		{"repeated", f.ids(f.inner[0], f.inner[0])},
		{"too many", f.ids(append(f.inner, sixth, seventh)...)},
		{"unknown", []string{f.inner[0].ID, "missing"}},
		{"other group", f.ids(f.inner[0], f.inner[1], f.outer)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.c.Submit(ctx, f.token, tt.ids, f.medata)
			var se *SelectionError
			if !errors.As(err, &se) || !errors.Is(err, ErrInvalidSelection) {
				t.Fatalf("expected *SelectionError, got %v", err)
			}
		})
	}

	if n := testutil.CountRows(t, f.conn, "vote", ""); n != 0 {
		t.Errorf("rejected submissions must not store ballots, got %d", n)
	}
	if n := testutil.CountRows(t, f.conn, "otp", "token = $1 AND is_used = $2", f.token, false); n != 1 {
		t.Error("otp should still be unused")
	}
}

func TestSubmit_CapCountsExistingBallots(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	extra := testutil.CreateTestCandidate(t, f.conn, f.alpha.ID, "Sina")
	extra2 := testutil.CreateTestCandidate(t, f.conn, f.alpha.ID, "Tara")
	// Two ballots already on file, recorded without marking the voter
	for _, c := range f.inner[:2] {
		testutil.CreateTestVote(t, f.conn, f.voter.ID, c.ID, f.clk.t)
	}
	if _, err := f.conn.Exec(`UPDATE voter SET voted = $1 WHERE id = $2`, false, f.voter.ID); err != nil {
		t.Fatal(err)
	}

	_, err := f.c.Submit(ctx, f.token, f.ids(f.inner[2], f.inner[3], extra, extra2), f.medata)
	if !errors.Is(err, ErrInvalidSelection) {
		t.Errorf("expected the cap to reject a sixth ballot, got %v", err)
	}

	if _, err := f.c.Submit(ctx, f.token, f.ids(f.inner[2], f.inner[3], extra), f.medata); err != nil {
		t.Fatalf("Submit() within the cap error = %v", err)
	}
	if n := testutil.CountRows(t, f.conn, "vote", "voter_id = $1", f.voter.ID); n != 5 {
		t.Errorf("expected 5 ballots, got %d", n)
	}
}

func TestSubmit_ExpiredLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Passes navigation while still fresh, then ages past the window
	if _, err := f.c.Resolve(ctx, f.token); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	f.clk.t = f.clk.t.Add(otp.DefaultValidity + time.Minute)

	s, err := f.c.Resolve(ctx, f.token)
	if err != nil {
		t.Fatalf("expired link should still resolve for navigation: %v", err)
	}
	if s.State != AwaitingVote {
		t.Errorf("expected AwaitingVote, got %v", s.State)
	}

	if _, err := f.c.Submit(ctx, f.token, f.ids(f.inner[0]), f.medata); !errors.Is(err, ErrLinkExpired) {
		t.Fatalf("expected ErrLinkExpired, got %v", err)
	}
	if n := testutil.CountRows(t, f.conn, "vote", ""); n != 0 {
		t.Errorf("expected no ballots, got %d", n)
	}
}

func TestSubmit_Unconfirmed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	fresh := testutil.CreateTestVoter(t, f.conn, f.alpha.ID, "", "")
	token := testutil.CreateTestOTP(t, f.conn, fresh.ID, f.clk.t, false).Token

	if _, err := f.c.Submit(ctx, token, f.ids(f.inner[0]), f.medata); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if n := testutil.CountRows(t, f.conn, "vote", "voter_id = $1", fresh.ID); n != 0 {
		t.Errorf("expected no ballots, got %d", n)
	}
	if n := testutil.CountRows(t, f.conn, "voter", "id = $1 AND voted = $2", fresh.ID, true); n != 0 {
		t.Error("unconfirmed voter should not be marked voted")
	}
	if n := testutil.CountRows(t, f.conn, "otp", "token = $1 AND is_used = $2", token, true); n != 0 {
		t.Error("link should not be consumed")
	}
}

func TestSubmit_UnknownLink(t *testing.T) {
	f := newFixture(t)
	if _, err := f.c.Submit(context.Background(), "12345678", f.ids(f.inner[0]), f.medata); !errors.Is(err, ErrLinkInvalid) {
		t.Errorf("expected ErrLinkInvalid, got %v", err)
	}
}

func TestSubmit_VotingClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tehran, err := time.LoadLocation("Asia/Tehran")
	if err != nil {
		t.Skip("tzdata not available")
	}
	f.clk.t = time.Date(2025, 3, 1, 23, 30, 0, 0, tehran)
	window := VotingWindow{Enforce: true, ClosedFromHour: 22, ClosedUntilHour: 6, Location: tehran}
	c := newController(f.conn, f.clk, Config{Window: window})

	if _, err := c.Submit(ctx, f.token, f.ids(f.inner[0]), f.medata); !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("expected ErrVotingClosed, got %v", err)
	}
	if n := testutil.CountRows(t, f.conn, "vote", ""); n != 0 {
		t.Errorf("expected no ballots, got %d", n)
	}
}

func TestVotingWindow_Closed(t *testing.T) {
	at := func(h, m, sec int) time.Time { return time.Date(2025, 3, 1, h, m, sec, 0, time.UTC) }
	night := VotingWindow{Enforce: true, ClosedFromHour: 22, ClosedUntilHour: 6}

	tests := []struct {
		name   string
		window VotingWindow
		hour   int
		minute int
		second int
		want   bool
	}{
		{"last second before opening", night, 5, 59, 59, true},
		{"opening instant", night, 6, 0, 0, false},
		{"last second before closing", night, 21, 59, 59, false},
		{"closing instant", night, 22, 0, 0, true},
		{"not enforced", VotingWindow{ClosedFromHour: 22, ClosedUntilHour: 6}, 23, 0, 0, false},
		{"late night", VotingWindow{Enforce: true, ClosedFromHour: 22, ClosedUntilHour: 6}, 23, 0, 0, true},
		{"early morning", VotingWindow{Enforce: true, ClosedFromHour: 22, ClosedUntilHour: 6}, 5, 0, 0, true},
		{"afternoon", VotingWindow{Enforce: true, ClosedFromHour: 22, ClosedUntilHour: 6}, 14, 0, 0, false},
		{"same day window", VotingWindow{Enforce: true, ClosedFromHour: 12, ClosedUntilHour: 14}, 13, 0, 0, true},
		{"equal hours", VotingWindow{Enforce: true, ClosedFromHour: 3, ClosedUntilHour: 3}, 3, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Closed(at(tt.hour, tt.minute, tt.second)); got != tt.want {
				t.Errorf("Closed(%02d:%02d:%02d) = %v, want %v", tt.hour, tt.minute, tt.second, got, tt.want)
			}
		})
	}
}

func TestSubmit_ConcurrentIdenticalSubmissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const workers = 8
	var wg sync.WaitGroup
	var ok, dup, other atomic.Int32
	selection := f.ids(f.inner[0], f.inner[1])

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.c.Submit(ctx, f.token, selection, f.medata)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrDuplicateBallot):
				dup.Add(1)
			default:
				other.Add(1)
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || dup.Load() != workers-1 || other.Load() != 0 {
		t.Errorf("got %d successes, %d duplicates, %d others", ok.Load(), dup.Load(), other.Load())
	}
	for _, id := range selection {
		if n := testutil.CountRows(t, f.conn, "vote", "voter_id = $1 AND candidate_id = $2", f.voter.ID, id); n != 1 {
			t.Errorf("expected exactly one ballot for %s, got %d", id, n)
		}
	}
}
