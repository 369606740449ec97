// Copyright (C) 2024  wwhai
//
// This program is free software; you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License along
// with this program; if not, see <https://www.gnu.org/licenses/>.

package ped

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseFrame classifies a raw PED response and normalizes it into a Frame,
// per §4.2's four ordered rules.
func ParseFrame(raw string, logger *Logger) Frame {
	if logger == nil {
		logger = discardLogger
	}

	trimmed := strings.TrimSpace(raw)

	// Rule 1: empty/whitespace input.
	if trimmed == "" {
		return EmptyFrame()
	}

	// Rule 2: leading "error" token.
	if isLeadingToken(trimmed, "error") {
		logger.Errorf("PED error reply: %s", raw)
		if idx := strings.IndexByte(trimmed, '{'); idx >= 0 {
			tail := trimmed[idx:]
			if gjson.Valid(tail) {
				return FrameFromObject(tail)
			}
			return FrameWithFields([]string{"error", "parseError"}, map[string]string{
				"error":      raw,
				"parseError": "malformed object after 'error' prefix",
			})
		}
		return FrameWithFields([]string{"error"}, map[string]string{"error": raw})
	}

	// Rule 3: leading "transaction" token — strip the prefix and fall
	// through to rule 4 on the remainder.
	body := trimmed
	if isLeadingToken(trimmed, "transaction") {
		if idx := strings.IndexByte(trimmed, '{'); idx >= 0 {
			body = trimmed[idx:]
		}
	}

	// Rule 4: parse as a JSON object.
	if gjson.Valid(body) {
		parsed := gjson.Parse(body)
		if parsed.IsObject() {
			return FrameFromObject(body)
		}
	}
	return FrameWithFields([]string{"parseError", "raw"}, map[string]string{
		"parseError": "response is not a JSON object",
		"raw":        raw,
	})
}

// isLeadingToken reports whether s begins with token followed by a word
// boundary (end-of-string, whitespace, or '{') — matching the gateway's
// "error {...}" / "error oops" / "transaction {...}" shapes without
// mistaking a field or value that merely contains the token as a prefix.
func isLeadingToken(s, token string) bool {
	if !strings.HasPrefix(s, token) {
		return false
	}
	if len(s) == len(token) {
		return true
	}
	next := s[len(token)]
	return next == ' ' || next == '\t' || next == '{'
}
