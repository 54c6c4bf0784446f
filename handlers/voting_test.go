// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/testutil"
	"github.com/danielhkuo/assocvote/workflow"
)

type votingFixture struct {
	env        testEnv
	h          *VotingHandler
	group      models.Group
	candidates []models.Candidate
	voter      models.Voter
	token      string
}

func newVotingFixture(t *testing.T, confirmed bool) votingFixture {
	t.Helper()
	env := newTestEnv(t)
	f := votingFixture{env: env, h: NewVotingHandler(env.db, env.cfg, env.svc)}
	f.group = testutil.CreateTestGroup(t, env.db, "Alpha")
	for _, name := range []string{"Reza", "Nima", "Leila"} {
		f.candidates = append(f.candidates, testutil.CreateTestCandidate(t, env.db, f.group.ID, name))
	}
	f.voter = testutil.CreateTestVoter(t, env.db, f.group.ID, "", "")
	if confirmed {
		testutil.ConfirmTestVoter(t, env.db, f.voter.ID)
	}
	f.token = testutil.CreateTestOTP(t, env.db, f.voter.ID, time.Now(), false).Token
	return f
}

func (f votingFixture) do(method, page string, body interface{}, handler http.HandlerFunc) *httptest.ResponseRecorder {
	req := testutil.MakeRequest(method, "/vote/"+f.token+page, body, nil)
	req.SetPathValue("token", f.token)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestConfirmInfo(t *testing.T) {
	f := newVotingFixture(t, false)

	w := f.do("GET", "/", nil, f.h.ConfirmInfo)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.ConfirmInfoResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.State != "awaiting_confirmation" || resp.Voter.ID != f.voter.ID || resp.Group.Name != "Alpha" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestConfirmInfo_UnknownLink(t *testing.T) {
	f := newVotingFixture(t, false)
	f.token = "00000000"

	w := f.do("GET", "/", nil, f.h.ConfirmInfo)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestConfirm_RedirectsToSelect(t *testing.T) {
	f := newVotingFixture(t, false)

	w := f.do("POST", "/confirm", nil, f.h.Confirm)
	testutil.AssertStatus(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/vote/"+f.token+"/select" {
		t.Errorf("unexpected Location %q", loc)
	}
	if n := testutil.CountRows(t, f.env.db, "voter", "id = $1 AND confirmed_information IS NOT NULL", f.voter.ID); n != 1 {
		t.Error("voter should be confirmed")
	}
}

func TestNavigationRedirects(t *testing.T) {
	tests := []struct {
		name      string
		confirmed bool
		voted     bool
		method    string
		page      string
		handler   func(*VotingHandler) http.HandlerFunc
		wantPage  string
	}{
		{"select before confirming", false, false, "GET", "/select", func(h *VotingHandler) http.HandlerFunc { return h.SelectForm }, "/"},
		{"select after voting", true, true, "GET", "/select", func(h *VotingHandler) http.HandlerFunc { return h.SelectForm }, "/confirmation"},
		{"submit after voting", true, true, "POST", "/select", func(h *VotingHandler) http.HandlerFunc { return h.Select }, "/confirmation"},
		{"confirmation before confirming", false, false, "GET", "/confirmation", func(h *VotingHandler) http.HandlerFunc { return h.Confirmation }, "/"},
		{"confirmation before voting", true, false, "GET", "/confirmation", func(h *VotingHandler) http.HandlerFunc { return h.Confirmation }, "/select"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVotingFixture(t, tt.confirmed)
			if tt.voted {
				testutil.CreateTestVote(t, f.env.db, f.voter.ID, f.candidates[0].ID, time.Now())
			}

			var body interface{}
			if tt.method == "POST" {
				body = models.SelectCandidatesRequest{CandidateIDs: []string{f.candidates[1].ID}}
			}

			w := f.do(tt.method, tt.page, body, tt.handler(f.h))
			testutil.AssertStatus(t, w, http.StatusSeeOther)
			if loc := w.Header().Get("Location"); loc != "/vote/"+f.token+tt.wantPage {
				t.Errorf("Location = %q, want %q", loc, "/vote/"+f.token+tt.wantPage)
			}
		})
	}
}

func TestSelectForm(t *testing.T) {
	f := newVotingFixture(t, true)
	other := testutil.CreateTestGroup(t, f.env.db, "Beta")
	testutil.CreateTestCandidate(t, f.env.db, other.ID, "Omid")

	w := f.do("GET", "/select", nil, f.h.SelectForm)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.SelectCandidatesResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.MaxSelections != 5 || len(resp.Candidates) != 3 {
		t.Errorf("expected 3 own-group candidates and max 5, got %d and %d", len(resp.Candidates), resp.MaxSelections)
	}
}

func TestSelect_Success(t *testing.T) {
	f := newVotingFixture(t, true)

	ids := []string{f.candidates[0].ID, f.candidates[1].ID}
	w := f.do("POST", "/select", models.SelectCandidatesRequest{CandidateIDs: ids}, f.h.Select)
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.ReceiptResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Ballots) != 2 || !resp.Voter.Voted {
		t.Fatalf("unexpected receipt %+v", resp)
	}

	var ip, device string
	if err := f.env.db.QueryRow(`SELECT ip_address, device FROM vote WHERE voter_id = $1 LIMIT 1`, f.voter.ID).Scan(&ip, &device); err != nil {
		t.Fatal(err)
	}
	if ip != "192.0.2.1" || !strings.HasPrefix(device, "Mobile") {
		t.Errorf("request metadata not stored: ip=%q device=%q", ip, device)
	}

	w = f.do("GET", "/confirmation", nil, f.h.Confirmation)
	testutil.AssertStatus(t, w, http.StatusOK)
	var receipt models.ReceiptResponse
	testutil.AssertJSON(t, w, &receipt)
	if len(receipt.Ballots) != 2 || receipt.Ballots[0].ConfirmationCode != resp.Ballots[0].ConfirmationCode {
		t.Errorf("confirmation page should repeat the receipt")
	}
}

func TestSelect_Errors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, f *votingFixture) []string
		status int
	}{
		{"empty selection", func(t *testing.T, f *votingFixture) []string { return nil }, http.StatusBadRequest},
		{"repeated candidate", func(t *testing.T, f *votingFixture) []string {
			return []string{f.candidates[0].ID, f.candidates[0].ID}
		}, http.StatusBadRequest},
		{"candidate from another group", func(t *testing.T, f *votingFixture) []string {
			g := testutil.CreateTestGroup(t, f.env.db, "Beta")
			return []string{testutil.CreateTestCandidate(t, f.env.db, g.ID, "Omid").ID}
		}, http.StatusBadRequest},
		{"expired link", func(t *testing.T, f *votingFixture) []string {
			if _, err := f.env.db.Exec(`UPDATE otp SET created_at = $1 WHERE token = $2`, time.Now().UTC().Add(-3*time.Hour), f.token); err != nil {
				t.Fatal(err)
			}
			return []string{f.candidates[0].ID}
		}, http.StatusGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newVotingFixture(t, true)
			ids := tt.setup(t, &f)

			w := f.do("POST", "/select", models.SelectCandidatesRequest{CandidateIDs: ids}, f.h.Select)
			testutil.AssertStatus(t, w, tt.status)
			if n := testutil.CountRows(t, f.env.db, "vote", ""); n != 0 {
				t.Errorf("expected no ballots, got %d", n)
			}
		})
	}
}

func TestSelect_InvalidJSON(t *testing.T) {
	f := newVotingFixture(t, true)

	req := httptest.NewRequest("POST", "/vote/"+f.token+"/select", nil)
	req.SetPathValue("token", f.token)
	w := httptest.NewRecorder()
	f.h.Select(w, req)

	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestVoteError_Unconfirmed(t *testing.T) {
	f := newVotingFixture(t, false)

	req := testutil.MakeRequest("POST", "/vote/"+f.token+"/select", nil, nil)
	w := httptest.NewRecorder()
	f.h.voteError(w, req, f.token, workflow.ErrNotConfirmed)

	testutil.AssertStatus(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/vote/"+f.token+"/" {
		t.Errorf("expected redirect to confirm info, got %q", loc)
	}
}
