// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides operator authentication and random code generation.

# Numeric Codes

OTP tokens (8 digits) and ballot confirmation codes (16 digits) are drawn
digit by digit from crypto/rand:

	token, err := auth.GenerateNumericCode(8)
	ok := auth.IsNumericCode(token, 8)

Uniqueness is not checked here; callers insert the code against a UNIQUE
column and retry on conflict.

# Operator Keys

Operators authenticate with a name and a secret key. Only the bcrypt hash
of the key is stored in the operators file:

	hash, err := auth.HashOperatorKey("secret", bcrypt.DefaultCost)
	op, err := auth.Authenticate(cfg.Operators, name, key)

Authenticate returns ErrUnknownOperator or ErrInvalidOperatorKey on failure.

# Random IDs

	requestID, err := auth.GenerateID(8)

Produces hex-encoded random bytes, used for request IDs.
*/
package auth
