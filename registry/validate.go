// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/danielhkuo/assocvote/auth"
	"github.com/danielhkuo/assocvote/models"
)

const (
	nationalIDLength = 10
	maxNameLength    = 100
	maxStudentNumber = 20
	maxPhoneLength   = 11
	minPhoneLength   = 10
	maxEmailLength   = 50
)

type fieldErrors map[string]string

func (f fieldErrors) require(field, value string, max int) {
	switch {
	case value == "":
		f[field] = "this field is required"
	case utf8.RuneCountInString(value) > max:
		f[field] = "value is too long"
	}
}

func (f fieldErrors) oneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		f[field] = "must be one of " + strings.Join(allowed, ", ")
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func (f fieldErrors) nationalID(value string) {
	if !auth.IsNumericCode(value, nationalIDLength) {
		f["national_id"] = "national ID must be 10 digits"
	}
}

func (f fieldErrors) phone(value string) {
	if len(value) < minPhoneLength || len(value) > maxPhoneLength || !auth.IsNumericCode(value, len(value)) {
		f["phone"] = "phone must be 10 or 11 digits"
	}
}

// normalizeVoter trims every text field in place
func normalizeVoter(req *models.RegisterVoterRequest) {
	for _, s := range []*string{&req.FirstName, &req.LastName, &req.Gender, &req.FathersName,
		&req.EducationLevel, &req.FieldOfStudy, &req.NationalID, &req.StudentNumber, &req.Phone, &req.GroupID} {
		*s = strings.TrimSpace(*s)
	}
	if req.Email != nil {
		e := strings.TrimSpace(*req.Email)
		if e == "" {
			req.Email = nil
		} else {
			req.Email = &e
		}
	}
}

// ValidateVoter normalizes and checks a registration form
func ValidateVoter(req *models.RegisterVoterRequest) error {
	normalizeVoter(req)

	f := fieldErrors{}
	f.require("first_name", req.FirstName, maxNameLength)
	f.require("last_name", req.LastName, maxNameLength)
	f.require("fathers_name", req.FathersName, maxNameLength)
	f.require("field_of_study", req.FieldOfStudy, 50)
	f.require("student_number", req.StudentNumber, maxStudentNumber)
	f.require("group_id", req.GroupID, 64)
	f.oneOf("gender", req.Gender, models.Genders)
	f.oneOf("education_level", req.EducationLevel, models.EducationLevels)
	f.nationalID(req.NationalID)
	f.phone(req.Phone)

	if req.Email != nil {
		if len(*req.Email) > maxEmailLength {
			f["email"] = "value is too long"
		} else if _, err := mail.ParseAddress(*req.Email); err != nil {
			f["email"] = "invalid email address"
		}
	}

	return f.err()
}

// ValidateCandidate normalizes and checks a candidate form
func ValidateCandidate(req *models.CandidateRequest) error {
	for _, s := range []*string{&req.FirstName, &req.LastName, &req.Gender, &req.StudentNumber,
		&req.NationalID, &req.EducationLevel, &req.FieldOfStudy, &req.Phone, &req.GroupID} {
		*s = strings.TrimSpace(*s)
	}

	f := fieldErrors{}
	f.require("first_name", req.FirstName, maxNameLength)
	f.require("last_name", req.LastName, maxNameLength)
	f.require("field_of_study", req.FieldOfStudy, 200)
	f.require("student_number", req.StudentNumber, maxStudentNumber)
	f.require("group_id", req.GroupID, 64)
	f.oneOf("gender", req.Gender, models.Genders)
	f.oneOf("education_level", req.EducationLevel, models.EducationLevels)
	f.nationalID(req.NationalID)
	if req.Phone != "" {
		f.phone(req.Phone)
	}
	if req.CandidateCode <= 0 {
		f["candidate_code"] = "candidate code must be a positive number"
	}

	return f.err()
}

// ValidateGroup normalizes and checks a group form
func ValidateGroup(req *models.GroupRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)

	f := fieldErrors{}
	f.require("name", req.Name, maxNameLength)
	if req.EstablishedYear != nil && (*req.EstablishedYear < 1000 || *req.EstablishedYear > 9999) {
		f["established_year"] = "year must have four digits"
	}
	return f.err()
}
