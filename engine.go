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
	"time"

	"github.com/tidwall/sjson"
)

// Engine drives one logical transaction lifecycle (C4): idle gate, start,
// poll loop with parameter-prompt handling and busy/timeout backoff, and
// guaranteed terminal cancellation. An Engine assumes sole ownership of
// its Session for the duration of Run (§5).
type Engine struct {
	session *Session
	cfg     Config
	logger  *Logger
	stats   *Stats
}

// NewEngine builds an Engine driving session. stats may be nil to disable
// phase-duration recording.
func NewEngine(session *Session, cfg Config, logger *Logger, stats *Stats) *Engine {
	if logger == nil {
		logger = discardLogger
	}
	return &Engine{session: session, cfg: cfg, logger: logger, stats: stats}
}

// Run drives sourceId's transaction to completion and returns its terminal
// Result Frame (I4: some frame is always returned, except on transport
// exhaustion per §7). pollInterval and baseTimeout override the Engine's
// Config defaults for this invocation, matching §4.4's recommended
// defaults of pollInterval=3s, baseTimeout=120s (reports use 60s).
func (e *Engine) Run(sourceID string, payload any, pollInterval, baseTimeout time.Duration) (Frame, error) {
	e.waitForIdle()

	if err := e.session.StartTransaction(payload); err != nil {
		return Frame{}, &PeripheralError{SourceID: sourceID, Cause: err}
	}

	start := time.Now()
	updateSent := false
	busy := NewBusyBackoff(e.cfg)
	completeObserved := false
	cancelIssued := false

	for {
		phaseDeadline := baseTimeout
		if updateSent {
			phaseDeadline = e.cfg.ExtendedPostUpdateTimeout
		}
		if time.Since(start) >= phaseDeadline {
			break
		}

		iterStart := time.Now()
		status := e.session.GetStatus()
		e.stats.recordPollIteration(time.Since(iterStart))

		if status.IsBusy() {
			sleep := busy.Next()
			e.stats.recordBusyBackoff(sleep)
			time.Sleep(sleep)
			continue
		}
		busy.Reset()

		if status.IsCommandTimeout() {
			time.Sleep(e.cfg.CommandTimeoutBackoff)
			continue
		}

		if status.HasParameterPrompt() {
			wasUpdateSent := updateSent
			updatePayload, err := e.buildUpdatePayload(sourceID, status)
			if err != nil {
				return Frame{}, &PeripheralError{SourceID: sourceID, Cause: err}
			}
			if err := e.session.UpdateTransaction(updatePayload); err != nil {
				return Frame{}, &PeripheralError{SourceID: sourceID, Cause: err}
			}
			updateSent = true

			// §9 Open Question: the spec literally computes the phase
			// deadline as updateSent?150:baseTimeout, yet separately
			// tests > (updateSent?150:90) here. Preserved literally using
			// updateSent's value *before* this update (wasUpdateSent): the
			// first prompt in a transaction is checked against the 90s
			// safety threshold, any subsequent prompt against 150s.
			threshold := e.cfg.PreUpdateSafetyThreshold
			if wasUpdateSent {
				threshold = e.cfg.ExtendedPostUpdateTimeout
			}
			if time.Since(start) > threshold {
				if err := e.session.CancelTransaction(); err != nil {
					return Frame{}, &PeripheralError{SourceID: sourceID, Cause: err}
				}
				cancelIssued = true
				e.logger.Warnf("sourceId %s: post-update deadline (%s) exceeded, cancelling", sourceID, threshold)
				break
			}

			time.Sleep(pollInterval)
			continue
		}

		if status.Complete() {
			completeObserved = true
			break
		}

		time.Sleep(pollInterval)
	}

	if !completeObserved && !cancelIssued {
		final := e.session.GetStatus()
		if final.Complete() {
			completeObserved = true
		} else {
			if err := e.session.CancelTransaction(); err != nil {
				return Frame{}, &PeripheralError{SourceID: sourceID, Cause: err}
			}
			e.logger.Warnf("sourceId %s: phase deadline exceeded, cancelling", sourceID)
		}
	}

	result, err := e.session.GetResult(sourceID)
	if err != nil {
		return Frame{}, &PeripheralError{SourceID: sourceID, Cause: err}
	}
	return result, nil
}

// waitForIdle implements the unbounded admission gate (§4.4): loops
// get_status() then is_ped_idle() until the PED reports idle, sleeping a
// fixed IdleGateSleep between attempts. Preserved literally even though
// is_ped_idle() issues its own get_status() call internally — the spec
// names both calls explicitly.
func (e *Engine) waitForIdle() {
	for {
		e.session.GetStatus()
		if e.session.IsPedIdle() {
			return
		}
		time.Sleep(e.cfg.IdleGateSleep)
	}
}

// buildUpdatePayload constructs the updateTransaction payload of §4.4 step
// 6: success:false plus amount/cashback/sourceid/currency/inProgress/
// displayText/parameter/parameterType echoed from status, and a computed
// parameterValue (§4.4.a, §8 P7). The outbound field is always written as
// lower-case "sourceid" (§9 Open Question).
func (e *Engine) buildUpdatePayload(sourceID string, status Frame) (string, error) {
	parameter, _ := status.Parameter()
	parameterType, _ := status.ParameterType()
	amount, _ := status.Amount()
	cashback, _ := status.Cashback()
	currency, _ := status.Currency()
	displayText, _ := status.DisplayText()

	payload := "{}"
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		payload, err = sjson.Set(payload, path, value)
	}

	set("success", false)
	set("amount", amount)
	set("cashback", cashback)
	set("sourceid", sourceID)
	set("currency", currency)
	set("inProgress", status.InProgress())
	set("displayText", displayText)
	set("parameter", parameter)
	set("parameterType", parameterType)
	set("parameterValue", defaultParameterValue(parameter, parameterType))
	return payload, err
}

// defaultParameterValue implements §4.4.a's default-value policy.
func defaultParameterValue(parameter, parameterType string) string {
	switch {
	case strings.EqualFold(parameter, "checkcard"):
		return "continue"
	case strings.EqualFold(parameterType, "alphanumeric"):
		return "ok"
	case strings.EqualFold(parameterType, "numeric"):
		return "0"
	case strings.EqualFold(parameterType, "boolean"):
		return "true"
	default:
		return ""
	}
}
