// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Request Types

Types for parsing incoming JSON:

  - RegisterVoterRequest: voter identity and group_id
  - GroupRequest: name, description, established_year, valid
  - CandidateRequest: candidate identity, candidate_code, group_id
  - SelectCandidatesRequest: candidate_ids (1 to 5)
  - InvalidateVoteRequest: valid

# Response Types

  - RegisterVoterResponse: voter plus per-channel OTP delivery flags
  - ResendOTPResponse: otp_sent counter and delivery flags
  - ConfirmInfoResponse, SelectCandidatesResponse, ReceiptResponse:
    the three screens of the voting link
  - CrossGroupResponse: voters flagged for voting in several groups
  - SlideshowResponse, DashboardResponse, ChartSeries: reporting views
  - ErrorResponse: error, message, optional field messages

# Domain Types

  - Group: organizational unit that scopes candidates
  - Candidate: globally unique student number, national id and code
  - Voter: unique national id and student number within a group
  - OTP: 8-digit access token bound to a voter
  - Vote: one ballot row (voter, candidate) with a confirmation code
  - VoteRow: a ballot joined with voter, candidate and group names
  - Operator: staff or superuser account from the operators file

# Constants

Operator roles:

	RoleStaff     = "staff"
	RoleSuperuser = "superuser"

Notification channels:

	ChannelEmail = "email"
	ChannelSMS   = "sms"
*/
package models
