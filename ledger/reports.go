// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/danielhkuo/assocvote/db"
	"github.com/danielhkuo/assocvote/models"
)

// HourLabelFormat labels hourly chart buckets
const HourLabelFormat = "2006/01/02 15:00"

// FreezeCutoff returns today's cutoff at hour:00 in loc, in UTC
func FreezeCutoff(now time.Time, hour int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc).UTC()
}

// Frozen reports whether now is at or past today's cutoff
func Frozen(now time.Time, hour int, loc *time.Location) bool {
	return !now.Before(FreezeCutoff(now, hour, loc))
}

// candidateTallies counts valid ballots per candidate. Candidates without
// ballots are returned with zero votes.
func (l *Ledger) candidateTallies(ctx context.Context, groupID string, asOf *time.Time) ([]models.CandidateTally, error) {
	var args db.Args
	join := `LEFT JOIN vote b ON b.candidate_id = c.id AND b.valid = ` + args.Add(true)
	if asOf != nil {
		join += ` AND b.created_at < ` + args.Add(asOf.UTC())
	}
	where := ""
	if groupID != "" {
		where = `WHERE c.group_id = ` + args.Add(groupID)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT c.id, c.first_name, c.last_name, c.candidate_code, c.group_id, COUNT(b.id)
		FROM candidate c
		`+join+`
		`+where+`
		GROUP BY c.id, c.first_name, c.last_name, c.candidate_code, c.group_id
		ORDER BY c.last_name, c.candidate_code
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to tally ballots: %w", err)
	}
	defer rows.Close()

	tallies := []models.CandidateTally{}
	for rows.Next() {
		var t models.CandidateTally
		if err := rows.Scan(&t.CandidateID, &t.FirstName, &t.LastName, &t.CandidateCode, &t.GroupID, &t.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}

func withPercentages(tallies []models.CandidateTally) int {
	total := 0
	for _, t := range tallies {
		total += t.Votes
	}
	for i := range tallies {
		if total > 0 {
			tallies[i].Percentage = float64(tallies[i].Votes) / float64(total) * 100
		}
	}
	return total
}

// Tally counts valid ballots for every candidate of the group. With asOf
// set, only ballots created strictly before it are counted.
func (l *Ledger) Tally(ctx context.Context, groupID string, asOf *time.Time) ([]models.CandidateTally, error) {
	tallies, err := l.candidateTallies(ctx, groupID, asOf)
	if err != nil {
		return nil, err
	}
	withPercentages(tallies)
	return tallies, nil
}

// TallyGroups tallies every group that has at least one candidate, zero
// vote groups included, ordered by name. validOnly skips groups marked
// invalid.
func (l *Ledger) TallyGroups(ctx context.Context, asOf *time.Time, validOnly bool) ([]models.GroupTally, error) {
	var args db.Args
	query := `
		SELECT g.id, g.name
		FROM voting_group g
		WHERE EXISTS (SELECT 1 FROM candidate c WHERE c.group_id = g.id)`
	if validOnly {
		query += ` AND g.valid = ` + args.Add(true)
	}
	query += ` ORDER BY g.name`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	var groups []models.GroupTally
	index := make(map[string]int)
	for rows.Next() {
		var g models.GroupTally
		if err := rows.Scan(&g.GroupID, &g.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		index[g.GroupID] = len(groups)
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	tallies, err := l.candidateTallies(ctx, "", asOf)
	if err != nil {
		return nil, err
	}
	for _, t := range tallies {
		if i, ok := index[t.GroupID]; ok {
			groups[i].Candidates = append(groups[i].Candidates, t)
		}
	}
	for i := range groups {
		groups[i].TotalVotes = withPercentages(groups[i].Candidates)
	}

	if groups == nil {
		groups = []models.GroupTally{}
	}
	return groups, nil
}

// SortByVotes orders each group's candidates by descending vote count
func SortByVotes(groups []models.GroupTally) {
	for _, g := range groups {
		sort.SliceStable(g.Candidates, func(i, j int) bool {
			return g.Candidates[i].Votes > g.Candidates[j].Votes
		})
	}
}

// crossGroupFilter matches voters sharing a national ID or a student
// number with ballots in more than one group
const crossGroupFilter = `(
		v.national_id IN (
			SELECT vr.national_id
			FROM vote b
			JOIN voter vr ON vr.id = b.voter_id
			JOIN candidate c ON c.id = b.candidate_id
			GROUP BY vr.national_id
			HAVING COUNT(DISTINCT c.group_id) > 1
		)
		OR v.student_number IN (
			SELECT vr.student_number
			FROM vote b
			JOIN voter vr ON vr.id = b.voter_id
			JOIN candidate c ON c.id = b.candidate_id
			GROUP BY vr.student_number
			HAVING COUNT(DISTINCT c.group_id) > 1
		)
	)`

// CrossGroupVoters returns voters holding ballots whose identity also
// voted in another group. Matching on national ID and on student number
// are independent signals.
func (l *Ledger) CrossGroupVoters(ctx context.Context) ([]models.Voter, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+db.VoterColumns("v")+`
		FROM voter v
		WHERE `+crossGroupFilter+`
		AND EXISTS (SELECT 1 FROM vote b WHERE b.voter_id = v.id)
		ORDER BY v.national_id, v.created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cross-group voters: %w", err)
	}
	defer rows.Close()

	voters := []models.Voter{}
	for rows.Next() {
		v, err := db.ScanVoter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		voters = append(voters, v)
	}
	return voters, rows.Err()
}

// AverageBallotsPerVoter is the mean ballot count over voters marked voted
func (l *Ledger) AverageBallotsPerVoter(ctx context.Context) (float64, error) {
	var avg float64
	err := l.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(cnt), 0)
		FROM (
			SELECT COUNT(b.id) AS cnt
			FROM voter v
			LEFT JOIN vote b ON b.voter_id = v.id
			WHERE v.voted = $1
			GROUP BY v.id
		) per_voter
	`, true).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to average ballots: %w", err)
	}
	return avg, nil
}

const listQuery = `
		SELECT %s,
			v.first_name, v.last_name, v.national_id, v.student_number, v.field_of_study, vg.name,
			c.first_name, c.last_name, cg.name
		FROM vote b
		JOIN voter v ON v.id = b.voter_id
		JOIN voting_group vg ON vg.id = v.group_id
		JOIN candidate c ON c.id = b.candidate_id
		JOIN voting_group cg ON cg.id = c.group_id
		%s
		ORDER BY b.created_at, b.id`

// List returns every ballot joined with voter, candidate and group names
func (l *Ledger) List(ctx context.Context) ([]models.VoteRow, error) {
	return l.list(ctx, "")
}

// ListCrossGroup returns the ballots of cross-group voters
func (l *Ledger) ListCrossGroup(ctx context.Context) ([]models.VoteRow, error) {
	return l.list(ctx, "WHERE "+crossGroupFilter)
}

func (l *Ledger) list(ctx context.Context, where string) ([]models.VoteRow, error) {
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf(listQuery, db.VoteColumns("b"), where))
	if err != nil {
		return nil, fmt.Errorf("failed to list ballots: %w", err)
	}
	defer rows.Close()

	list := []models.VoteRow{}
	for rows.Next() {
		var r models.VoteRow
		dest := append(db.VoteDest(&r.Vote),
			&r.VoterFirstName, &r.VoterLastName, &r.VoterNationalID, &r.VoterStudentNumber,
			&r.VoterFieldOfStudy, &r.VoterGroupName,
			&r.CandidateFirstName, &r.CandidateLastName, &r.CandidateGroupName)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// Hourly buckets times into hours in loc, in chronological order.
// Hours without entries are omitted.
func Hourly(times []time.Time, loc *time.Location) models.ChartSeries {
	if loc == nil {
		loc = time.UTC
	}
	series := models.ChartSeries{Labels: []string{}, Data: []int{}}

	var last time.Time
	for _, t := range times {
		lt := t.In(loc)
		hour := time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), 0, 0, 0, loc)
		if len(series.Data) > 0 && hour.Equal(last) {
			series.Data[len(series.Data)-1]++
			continue
		}
		series.Labels = append(series.Labels, hour.Format(HourLabelFormat))
		series.Data = append(series.Data, 1)
		last = hour
	}
	return series
}
