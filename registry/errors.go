// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrGroupNotFound         = errors.New("group not found")
	ErrValidation            = errors.New("validation failed")
	ErrDuplicateRegistration = errors.New("duplicate registration")
	ErrDuplicateCandidate    = errors.New("duplicate candidate")
	ErrDuplicateGroup        = errors.New("a group with this name already exists")
	ErrProtected             = errors.New("group still has candidates")
)

// ValidationError carries one message per rejected field
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "invalid fields: " + strings.Join(keys, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateRegistrationError names the identifier already registered in
// the group
type DuplicateRegistrationError struct {
	Field   string
	Message string
}

func (e *DuplicateRegistrationError) Error() string { return e.Message }

func (e *DuplicateRegistrationError) Unwrap() error { return ErrDuplicateRegistration }

var (
	errNationalIDTaken = &DuplicateRegistrationError{
		Field:   "national_id",
		Message: "a voter with this national ID is already registered in this group",
	}
	errStudentNumberTaken = &DuplicateRegistrationError{
		Field:   "student_number",
		Message: "a voter with this student number is already registered in this group",
	}
)
