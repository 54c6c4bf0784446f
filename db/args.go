// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import "strconv"

// Args collects query arguments for dynamically built SQL and hands out
// $n placeholders in the order values are added.
type Args []any

func (a *Args) Add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}
