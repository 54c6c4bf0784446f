// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/assocvote/models"
)

var (
	ErrInvalidOperatorKey = errors.New("invalid operator key")
	ErrUnknownOperator    = errors.New("unknown operator")
)

var ten = big.NewInt(10)

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateNumericCode returns length decimal digits drawn from crypto/rand.
// Leading zeros are kept, so every code has exactly length characters.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("code length must be positive")
	}
	b := make([]byte, length)
	for i := range b {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate code digit: %w", err)
		}
		b[i] = byte('0' + d.Int64())
	}
	return string(b), nil
}

// IsNumericCode reports whether s is exactly length ASCII digits
func IsNumericCode(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// HashOperatorKey produces the bcrypt hash stored in the operators file
func HashOperatorKey(key string, cost int) (string, error) {
	if key == "" {
		return "", errors.New("operator key cannot be empty")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash operator key: %w", err)
	}
	return string(h), nil
}

// ValidateOperatorKey checks the presented key against the operator's hash
func ValidateOperatorKey(op models.Operator, key string) error {
	if op.KeyHash == "" || key == "" {
		return ErrInvalidOperatorKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.KeyHash), []byte(key)); err != nil {
		return ErrInvalidOperatorKey
	}
	return nil
}

// Authenticate finds the named operator and validates their key.
// Names are compared in constant time so lookups do not leak which
// operators exist.
func Authenticate(operators []models.Operator, name, key string) (models.Operator, error) {
	var found *models.Operator
	for i := range operators {
		if subtle.ConstantTimeCompare([]byte(operators[i].Name), []byte(name)) == 1 {
			found = &operators[i]
		}
	}
	if found == nil {
		return models.Operator{}, ErrUnknownOperator
	}
	if err := ValidateOperatorKey(*found, key); err != nil {
		return models.Operator{}, err
	}
	return *found, nil
}

// IsSuperuser reports whether the operator holds the superuser role
func IsSuperuser(op models.Operator) bool {
	return op.Role == models.RoleSuperuser
}
