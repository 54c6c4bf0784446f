// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"strings"

	"github.com/mssola/useragent"
)

// DeviceInfo summarizes a User-Agent header as "kind / os / browser",
// e.g. "Mobile / Android 13 / Chrome 120.0.0.0"
func DeviceInfo(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Other"
	}

	ua := useragent.New(userAgent)
	kind := "PC"
	switch {
	case ua.Bot():
		kind = "Bot"
	case ua.Mobile():
		kind = "Mobile"
	}

	parts := []string{kind}
	if os := ua.OS(); os != "" {
		parts = append(parts, os)
	}
	if name, version := ua.Browser(); name != "" {
		parts = append(parts, strings.TrimSpace(name+" "+version))
	}
	return strings.Join(parts, " / ")
}
