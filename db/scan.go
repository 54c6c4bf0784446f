// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"strings"

	"github.com/danielhkuo/assocvote/models"
)

// Scanner is implemented by *sql.Row and *sql.Rows
type Scanner interface {
	Scan(dest ...any) error
}

var (
	groupColumns     = []string{"id", "name", "description", "established_year", "valid", "created_at", "updated_at"}
	candidateColumns = []string{"id", "first_name", "last_name", "gender", "student_number", "national_id",
		"education_level", "field_of_study", "phone", "candidate_code", "group_id", "created_at", "updated_at"}
	voterColumns = []string{"id", "first_name", "last_name", "gender", "fathers_name", "education_level",
		"field_of_study", "national_id", "student_number", "phone", "email", "group_id", "voted",
		"confirmed_information", "created_by", "created_at", "updated_at"}
	otpColumns  = []string{"id", "voter_id", "token", "created_at", "otp_sent", "is_used"}
	voteColumns = []string{"id", "voter_id", "candidate_id", "confirmation_code", "ip_address",
		"user_agent", "device", "created_by", "valid", "created_at"}
)

func columns(alias string, cols []string) string {
	if alias == "" {
		return strings.Join(cols, ", ")
	}
	prefixed := make([]string, len(cols))
	for i, c := range cols {
		prefixed[i] = alias + "." + c
	}
	return strings.Join(prefixed, ", ")
}

// GroupColumns lists voting_group columns in GroupDest order, optionally
// qualified with a table alias. Same for the other entities below.
func GroupColumns(alias string) string     { return columns(alias, groupColumns) }
func CandidateColumns(alias string) string { return columns(alias, candidateColumns) }
func VoterColumns(alias string) string     { return columns(alias, voterColumns) }
func OTPColumns(alias string) string       { return columns(alias, otpColumns) }
func VoteColumns(alias string) string      { return columns(alias, voteColumns) }

func GroupDest(g *models.Group) []any {
	return []any{&g.ID, &g.Name, &g.Description, &g.EstablishedYear, &g.Valid, &g.CreatedAt, &g.UpdatedAt}
}

func CandidateDest(c *models.Candidate) []any {
	return []any{&c.ID, &c.FirstName, &c.LastName, &c.Gender, &c.StudentNumber, &c.NationalID,
		&c.EducationLevel, &c.FieldOfStudy, &c.Phone, &c.CandidateCode, &c.GroupID, &c.CreatedAt, &c.UpdatedAt}
}

func VoterDest(v *models.Voter) []any {
	return []any{&v.ID, &v.FirstName, &v.LastName, &v.Gender, &v.FathersName, &v.EducationLevel,
		&v.FieldOfStudy, &v.NationalID, &v.StudentNumber, &v.Phone, &v.Email, &v.GroupID, &v.Voted,
		&v.ConfirmedInformation, &v.CreatedBy, &v.CreatedAt, &v.UpdatedAt}
}

func OTPDest(o *models.OTP) []any {
	return []any{&o.ID, &o.VoterID, &o.Token, &o.CreatedAt, &o.OTPSent, &o.IsUsed}
}

func VoteDest(v *models.Vote) []any {
	return []any{&v.ID, &v.VoterID, &v.CandidateID, &v.ConfirmationCode, &v.IPAddress,
		&v.UserAgent, &v.Device, &v.CreatedBy, &v.Valid, &v.CreatedAt}
}

func ScanGroup(s Scanner) (models.Group, error) {
	var g models.Group
	err := s.Scan(GroupDest(&g)...)
	return g, err
}

func ScanCandidate(s Scanner) (models.Candidate, error) {
	var c models.Candidate
	err := s.Scan(CandidateDest(&c)...)
	return c, err
}

func ScanVoter(s Scanner) (models.Voter, error) {
	var v models.Voter
	err := s.Scan(VoterDest(&v)...)
	return v, err
}

func ScanOTP(s Scanner) (models.OTP, error) {
	var o models.OTP
	err := s.Scan(OTPDest(&o)...)
	return o, err
}

func ScanVote(s Scanner) (models.Vote, error) {
	var v models.Vote
	err := s.Scan(VoteDest(&v)...)
	return v, err
}
