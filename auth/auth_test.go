// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/assocvote/models"
)

func TestGenerateID(t *testing.T) {
	tests := []struct {
		name    string
		byteLen int
		wantLen int // hex encoded length = byteLen * 2
	}{
		{"8 bytes", 8, 16},
		{"16 bytes", 16, 32},
		{"24 bytes", 24, 48},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := GenerateID(tt.byteLen)
			if err != nil {
				t.Fatalf("GenerateID() error = %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("GenerateID() length = %d, want %d", len(id), tt.wantLen)
			}
			// Verify it's valid hex
			for _, c := range id {
				if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
					t.Errorf("GenerateID() contains invalid hex char: %c", c)
				}
			}
		})
	}

	// Test randomness - two IDs should be different
	id1, _ := GenerateID(16)
	id2, _ := GenerateID(16)
	if id1 == id2 {
		t.Error("GenerateID() produced duplicate IDs (extremely unlikely)")
	}
}

func TestGenerateNumericCode(t *testing.T) {
	for _, length := range []int{8, 16} {
		code, err := GenerateNumericCode(length)
		if err != nil {
			t.Fatalf("GenerateNumericCode(%d) error = %v", length, err)
		}
		if !IsNumericCode(code, length) {
			t.Errorf("GenerateNumericCode(%d) = %q, not %d digits", length, code, length)
		}
	}

	if _, err := GenerateNumericCode(0); err == nil {
		t.Error("GenerateNumericCode(0) should fail")
	}

	// 16 digits give 10^16 codes, duplicates in 1000 draws mean a broken source
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code, _ := GenerateNumericCode(16)
		if seen[code] {
			t.Fatalf("GenerateNumericCode() produced duplicate code: %s", code)
		}
		seen[code] = true
	}
}

func TestIsNumericCode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"12345678", true},
		{"00000000", true},
		{"1234567", false},
		{"123456789", false},
		{"1234567a", false},
		{"", false},
		{"١٢٣٤٥٦٧٨", false}, // non-ASCII digits
	}
	for _, tt := range tests {
		if got := IsNumericCode(tt.in, 8); got != tt.want {
			t.Errorf("IsNumericCode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	hash, err := HashOperatorKey("s3cret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashOperatorKey() error = %v", err)
	}
	operators := []models.Operator{
		{Name: "alice", Role: models.RoleSuperuser, KeyHash: hash},
		{Name: "bob", Role: models.RoleStaff, KeyHash: hash},
	}

	tests := []struct {
		name    string
		op      string
		key     string
		wantErr error
	}{
		{"valid superuser", "alice", "s3cret", nil},
		{"valid staff", "bob", "s3cret", nil},
		{"wrong key", "alice", "nope", ErrInvalidOperatorKey},
		{"empty key", "alice", "", ErrInvalidOperatorKey},
		{"unknown operator", "carol", "s3cret", ErrUnknownOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := Authenticate(operators, tt.op, tt.key)
			if err != tt.wantErr {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && op.Name != tt.op {
				t.Errorf("Authenticate() returned %q, want %q", op.Name, tt.op)
			}
		})
	}

	if !IsSuperuser(operators[0]) || IsSuperuser(operators[1]) {
		t.Error("IsSuperuser() misreports roles")
	}
}

func TestHashOperatorKey_Empty(t *testing.T) {
	if _, err := HashOperatorKey("", bcrypt.MinCost); err == nil {
		t.Error("HashOperatorKey(\"\") should fail")
	}
}
