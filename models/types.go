package models

import "time"

// Operator roles
const (
	RoleStaff     = "staff"
	RoleSuperuser = "superuser"
)

// Notification channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Gender and degree values accepted on registration forms
var (
	Genders         = []string{"M", "F"}
	EducationLevels = []string{"BSc", "MSc", "PhD"}
)

// Request types

type RegisterVoterRequest struct {
	FirstName      string  `json:"first_name"`
	LastName       string  `json:"last_name"`
	Gender         string  `json:"gender"`
	FathersName    string  `json:"fathers_name"`
	EducationLevel string  `json:"education_level"`
	FieldOfStudy   string  `json:"field_of_study"`
	NationalID     string  `json:"national_id"`
	StudentNumber  string  `json:"student_number"`
	Phone          string  `json:"phone"`
	Email          *string `json:"email,omitempty"`
	GroupID        string  `json:"group_id"`
}

type GroupRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	EstablishedYear *int   `json:"established_year,omitempty"`
	Valid           *bool  `json:"valid,omitempty"`
}

type CandidateRequest struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Gender         string `json:"gender"`
	StudentNumber  string `json:"student_number"`
	NationalID     string `json:"national_id"`
	EducationLevel string `json:"education_level"`
	FieldOfStudy   string `json:"field_of_study"`
	Phone          string `json:"phone"`
	CandidateCode  int    `json:"candidate_code"`
	GroupID        string `json:"group_id"`
}

type SelectCandidatesRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
}

type InvalidateVoteRequest struct {
	Valid bool `json:"valid"`
}

// Response types

type RegisterVoterResponse struct {
	Voter     Voter `json:"voter"`
	OTPSent   bool  `json:"otp_sent"`
	EmailSent bool  `json:"email_sent"`
	SMSSent   bool  `json:"sms_sent"`
}

type ResendOTPResponse struct {
	VoterID   string `json:"voter_id"`
	OTPSent   int    `json:"otp_sent"`
	EmailSent bool   `json:"email_sent"`
	SMSSent   bool   `json:"sms_sent"`
	Message   string `json:"message"`
}

type ConfirmInfoResponse struct {
	Token string `json:"otp_token"`
	State string `json:"state"`
	Voter Voter  `json:"voter"`
	Group Group  `json:"group"`
}

type SelectCandidatesResponse struct {
	Token         string      `json:"otp_token"`
	Voter         Voter       `json:"voter"`
	MaxSelections int         `json:"max_selections"`
	Candidates    []Candidate `json:"candidates"`
}

type ReceiptResponse struct {
	Token   string        `json:"otp_token"`
	Voter   Voter         `json:"voter"`
	Ballots []BallotEntry `json:"ballots"`
	Message string        `json:"message,omitempty"`
}

type BallotEntry struct {
	CandidateID      string    `json:"candidate_id"`
	CandidateName    string    `json:"candidate_name"`
	CandidateCode    int       `json:"candidate_code"`
	ConfirmationCode string    `json:"confirmation_code"`
	CreatedAt        time.Time `json:"created_at"`
}

type CrossGroupResponse struct {
	Voters []Voter   `json:"voters"`
	Votes  []VoteRow `json:"votes"`
}

// Domain types

type Operator struct {
	Name    string `json:"name" yaml:"name"`
	Role    string `json:"role" yaml:"role"`
	KeyHash string `json:"-" yaml:"key_hash"`
}

type Group struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	EstablishedYear *int      `json:"established_year,omitempty"`
	Valid           bool      `json:"valid"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Candidate struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Gender         string    `json:"gender"`
	StudentNumber  string    `json:"student_number"`
	NationalID     string    `json:"-"`
	EducationLevel string    `json:"education_level"`
	FieldOfStudy   string    `json:"field_of_study"`
	Phone          string    `json:"-"`
	CandidateCode  int       `json:"candidate_code"`
	GroupID        string    `json:"group_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c Candidate) FullName() string {
	return c.FirstName + " " + c.LastName
}

type Voter struct {
	ID                   string     `json:"id"`
	FirstName            string     `json:"first_name"`
	LastName             string     `json:"last_name"`
	Gender               string     `json:"gender"`
	FathersName          string     `json:"fathers_name"`
	EducationLevel       string     `json:"education_level"`
	FieldOfStudy         string     `json:"field_of_study"`
	NationalID           string     `json:"national_id"`
	StudentNumber        string     `json:"student_number"`
	Phone                string     `json:"phone"`
	Email                *string    `json:"email,omitempty"`
	GroupID              string     `json:"group_id"`
	Voted                bool       `json:"voted"`
	ConfirmedInformation *time.Time `json:"confirmed_information,omitempty"`
	CreatedBy            *string    `json:"created_by,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type OTP struct {
	ID        string    `json:"id"`
	VoterID   string    `json:"voter_id"`
	Token     string    `json:"-"` // Never expose in JSON
	CreatedAt time.Time `json:"created_at"`
	OTPSent   int       `json:"otp_sent"`
	IsUsed    bool      `json:"is_used"`
}

// Vote is one ballot row: a voter choosing one candidate
type Vote struct {
	ID               string    `json:"id"`
	VoterID          string    `json:"voter_id"`
	CandidateID      string    `json:"candidate_id"`
	ConfirmationCode string    `json:"confirmation_code"`
	IPAddress        string    `json:"ip_address"`
	UserAgent        string    `json:"user_agent"`
	Device           string    `json:"device"`
	CreatedBy        *string   `json:"created_by,omitempty"`
	Valid            bool      `json:"valid"`
	CreatedAt        time.Time `json:"created_at"`
}

// VoteRow is a ballot joined with its voter, candidate and group for listings
type VoteRow struct {
	Vote
	VoterFirstName     string `json:"voter_first_name"`
	VoterLastName      string `json:"voter_last_name"`
	VoterNationalID    string `json:"voter_national_id"`
	VoterStudentNumber string `json:"voter_student_number"`
	VoterFieldOfStudy  string `json:"voter_field_of_study"`
	VoterGroupName     string `json:"voter_group_name"`
	CandidateFirstName string `json:"candidate_first_name"`
	CandidateLastName  string `json:"candidate_last_name"`
	CandidateGroupName string `json:"candidate_group_name"`
}

// Report types

type CandidateTally struct {
	CandidateID   string  `json:"candidate_id"`
	FirstName     string  `json:"first_name"`
	LastName      string  `json:"last_name"`
	CandidateCode int     `json:"candidate_code"`
	GroupID       string  `json:"group_id"`
	Votes         int     `json:"votes"`
	Percentage    float64 `json:"percentage"`
}

type GroupTally struct {
	GroupID    string           `json:"group_id"`
	Name       string           `json:"name"`
	TotalVotes int              `json:"total_votes"`
	Candidates []CandidateTally `json:"candidates,omitempty"`
}

// ChartSeries is the labels/data shape consumed by dashboard charts
type ChartSeries struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

type SlideshowResponse struct {
	Groups       []GroupTally `json:"groups"`
	UpdatedTime  string       `json:"updated_time"`
	Frozen       bool         `json:"frozen"`
	TotalVotes   int          `json:"total_votes"`
	TotalDisplay string       `json:"total_votes_display"`
}

type DashboardResponse struct {
	GroupCount     int `json:"group_count"`
	CandidateCount int `json:"candidate_count"`

	// Superuser-only fields
	VoteCount            *int     `json:"vote_count,omitempty"`
	VoterCount           *int     `json:"voter_count,omitempty"`
	SMSCount             *int     `json:"sms_count,omitempty"`
	EmailCount           *int     `json:"email_count,omitempty"`
	OperatorCount        *int     `json:"operator_count,omitempty"`
	OTPCount             *int     `json:"otp_count,omitempty"`
	UsedOTPCount         *int     `json:"used_otp_count,omitempty"`
	ActiveOTPCount       *int     `json:"active_otp_count,omitempty"`
	ExpiredOTPCount      *int     `json:"expired_otp_count,omitempty"`
	AverageVotesPerVoter *float64 `json:"average_votes_per_voter,omitempty"`
	LastVoteAt           *string  `json:"last_vote_at,omitempty"`
	VoteCountDisplay     string   `json:"vote_count_display,omitempty"`
	CrossGroupVoterCount *int     `json:"cross_group_voter_count,omitempty"`
}

// Error response

type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}
