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

// Known error-class substrings (§6, §7; case-sensitive).
const (
	ErrBusySubstring    = "Previous command still in progress"
	ErrTimeoutSubstring = "Command timed out"
)

// Idle-text substrings recognized by the idle predicate (§4.3, §8 P4).
const (
	IdleTextNoTxn      = "NO TXN"
	IdleTextSystemIdle = "SYSTEM IDLE"
)

// Frame is a tagged JSON tree with typed, optional accessors, per Design
// Notes §9: "do not bake a closed schema into the Engine". It wraps a raw
// JSON string, a gjson.Result, or a synthetic value for the diagnostic
// shapes the parser produces (ParseError, plain error strings).
type Frame struct {
	raw    string
	result gjson.Result
}

// EmptyFrame is the canonical empty object frame (§4.2 rule 1).
func EmptyFrame() Frame {
	return Frame{raw: "{}", result: gjson.Parse("{}")}
}

// FrameFromObject wraps an already-parsed JSON object string.
func FrameFromObject(raw string) Frame {
	return Frame{raw: raw, result: gjson.Parse(raw)}
}

// FrameWithFields builds a Frame from a synthetic field set, used by the
// parser to materialize {error: raw} / {parseError, raw} shapes (§4.2
// rules 2 and 4) without hand-rolling JSON escaping. fieldOrder controls
// key order so tests can assert on exact output.
func FrameWithFields(fieldOrder []string, fields map[string]string) Frame {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range fieldOrder {
		if i > 0 {
			b.WriteByte(',')
		}
		b.Write(gjson.AppendJSONString(nil, k))
		b.WriteByte(':')
		b.Write(gjson.AppendJSONString(nil, fields[k]))
	}
	b.WriteByte('}')
	raw := b.String()
	return Frame{raw: raw, result: gjson.Parse(raw)}
}

// Raw returns the frame's backing JSON text.
func (f Frame) Raw() string { return f.raw }

// IsEmpty reports whether the frame carries no fields at all — the
// condition get_status retries on (§4.3, §7 EmptyStatus).
func (f Frame) IsEmpty() bool {
	if !f.result.IsObject() {
		return strings.TrimSpace(f.raw) == ""
	}
	empty := true
	f.result.ForEach(func(_, _ gjson.Result) bool {
		empty = false
		return false
	})
	return empty
}

func (f Frame) str(path string) (string, bool) {
	r := f.result.Get(path)
	if !r.Exists() {
		return "", false
	}
	return r.String(), true
}

func (f Frame) boolField(path string) (bool, bool) {
	r := f.result.Get(path)
	if !r.Exists() {
		return false, false
	}
	return r.Bool(), true
}

// Error returns the frame's "error" field, if present.
func (f Frame) Error() (string, bool) { return f.str("error") }

// ParseError returns the frame's "parseError" field, if present (§4.2 rule 4).
func (f Frame) ParseError() (string, bool) { return f.str("parseError") }

// IsBusy reports whether the frame's error field contains the PED-busy
// substring (error 110, §4.4 step 3).
func (f Frame) IsBusy() bool {
	e, ok := f.Error()
	return ok && strings.Contains(e, ErrBusySubstring)
}

// IsCommandTimeout reports whether the frame's error field contains the
// command-timed-out substring (error 101, §4.4 step 5).
func (f Frame) IsCommandTimeout() bool {
	e, ok := f.Error()
	return ok && strings.Contains(e, ErrTimeoutSubstring)
}

// Complete returns the "complete" field, defaulting to false when absent.
func (f Frame) Complete() bool {
	v, _ := f.boolField("complete")
	return v
}

// InProgress returns the "inProgress" field, defaulting to false when absent.
func (f Frame) InProgress() bool {
	v, _ := f.boolField("inProgress")
	return v
}

// DisplayText returns the "displayText" field, if present.
func (f Frame) DisplayText() (string, bool) { return f.str("displayText") }

// Parameter returns the "parameter" field, if present.
func (f Frame) Parameter() (string, bool) { return f.str("parameter") }

// ParameterType returns the "parameterType" field, if present.
func (f Frame) ParameterType() (string, bool) { return f.str("parameterType") }

// HasParameterPrompt reports whether both parameter and parameterType are
// present and non-empty (§4.4 step 6).
func (f Frame) HasParameterPrompt() bool {
	p, pok := f.Parameter()
	pt, ptok := f.ParameterType()
	return pok && ptok && p != "" && pt != ""
}

// Amount, Cashback, Currency are echoed back verbatim in update payloads
// (§3, §8 P7).
func (f Frame) Amount() (string, bool)   { return f.str("amount") }
func (f Frame) Cashback() (string, bool) { return f.str("cashback") }
func (f Frame) Currency() (string, bool) { return f.str("currency") }

// SourceID reads the correlation id, accepting either casing the gateway
// uses on inbound frames (Design Notes §9 open question — preserved
// literally, not normalized). Lower-case sourceid is tried first as the
// more common spelling in gateway captures.
func (f Frame) SourceID() (string, bool) {
	if v, ok := f.str("sourceid"); ok {
		return v, true
	}
	return f.str("sourceId")
}

// Success, Declined, AuthCode, RRN, PanMasked are Result Frame fields (§3).
func (f Frame) Success() bool { v, _ := f.boolField("success"); return v }
func (f Frame) Declined() (bool, bool) {
	r := f.result.Get("declined")
	if !r.Exists() {
		return false, false
	}
	return r.Bool(), true
}
func (f Frame) AuthCode() (string, bool)  { return f.str("authCode") }
func (f Frame) RRN() (string, bool)       { return f.str("rrn") }
func (f Frame) PanMasked() (string, bool) { return f.str("panMasked") }

// Approved implements §3's definition: success == true AND declined != true.
func (f Frame) Approved() bool {
	declined, _ := f.Declined()
	return f.Success() && !declined
}

// ReceiptLines returns the text lines of a custReceipt/merchReceipt array
// field ({text} objects), per §3.
func (f Frame) ReceiptLines(field string) []string {
	var lines []string
	f.result.Get(field).ForEach(func(_, v gjson.Result) bool {
		lines = append(lines, v.Get("text").String())
		return true
	})
	return lines
}
