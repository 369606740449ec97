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
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Session exposes the PED command primitives (C3) over a LineTransport and
// a Frame parser. A Session is not safe to share across concurrent
// transactions (Design Notes §9 "half-duplex ownership without locks") —
// each caller must own one for the duration of a transaction.
type Session struct {
	transport *LineTransport
	cfg       Config
	backoff   Backoff
	logger    *Logger
}

// NewSession wraps transport with the PED command primitives.
func NewSession(transport *LineTransport, cfg Config, logger *Logger) *Session {
	if logger == nil {
		logger = discardLogger
	}
	return &Session{transport: transport, cfg: cfg, backoff: NewBackoff(cfg), logger: logger}
}

// Connect establishes the underlying transport.
func (s *Session) Connect() error { return s.transport.Connect() }

// Disconnect tears down the underlying transport, best-effort.
func (s *Session) Disconnect() { s.transport.Disconnect() }

// StartTransaction emits startTransaction <payload> fire-and-forget; the
// response, if any, is discarded — the subsequent get_status cycle
// observes progress (§4.3).
func (s *Session) StartTransaction(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ped: marshal startTransaction payload: %w", err)
	}
	_, err = s.transport.SendAndRecv("startTransaction " + string(body))
	return err
}

// GetStatus emits getStatus() and parses the reply. If the parsed frame is
// empty, it retries up to MaxRetryAttempts times with linear backoff; after
// exhaustion it returns an empty Frame (never raises) — §4.3, §7
// EmptyStatus, §8 P2/S4. Transport errors during retry follow the same
// swallow-on-exhaustion pattern.
func (s *Session) GetStatus() Frame {
	for attempt := 1; attempt <= s.cfg.MaxRetryAttempts; attempt++ {
		raw, err := s.transport.SendAndRecv("getStatus()")
		if err != nil {
			s.logger.Warnf("getStatus attempt %d/%d transport error: %v", attempt, s.cfg.MaxRetryAttempts, err)
			if attempt < s.cfg.MaxRetryAttempts {
				time.Sleep(s.backoff.Linear(attempt))
			}
			continue
		}

		frame := ParseFrame(raw, s.logger)
		if !frame.IsEmpty() {
			return frame
		}

		s.logger.Warnf("getStatus attempt %d/%d returned an empty frame", attempt, s.cfg.MaxRetryAttempts)
		if attempt < s.cfg.MaxRetryAttempts {
			time.Sleep(s.backoff.Linear(attempt))
		}
	}
	return EmptyFrame()
}

// GetResult emits getResult(<sourceId>) and returns the parsed frame. No
// retry — called only at terminal steps (§4.3).
func (s *Session) GetResult(sourceID string) (Frame, error) {
	raw, err := s.transport.SendAndRecv(fmt.Sprintf("getResult(%s)", sourceID))
	if err != nil {
		return Frame{}, err
	}
	return ParseFrame(raw, s.logger), nil
}

// UpdateTransaction emits updateTransaction <obj> in response to a
// parameter prompt (§4.4 step 6).
func (s *Session) UpdateTransaction(payload string) error {
	_, err := s.transport.SendAndRecv("updateTransaction " + payload)
	return err
}

// CancelTransaction emits cancelTransaction() (§4.4 loop exit, I3).
func (s *Session) CancelTransaction() error {
	_, err := s.transport.SendAndRecv("cancelTransaction()")
	return err
}

// CheckLastTransactionResult is the crash-recovery helper invoked at
// startup if the host retained a prior sourceId (§4.3, S6). An empty
// sourceID short-circuits to an empty Frame without issuing any command.
func (s *Session) CheckLastTransactionResult(sourceID string) (Frame, error) {
	if sourceID == "" {
		return EmptyFrame(), nil
	}
	s.logger.Infof("checking last transaction result for sourceId %s", sourceID)
	return s.GetResult(sourceID)
}

// IsPedIdle implements the idle predicate (§4.3, §8 P4): true iff
// inProgress==false AND complete==true AND displayText contains "NO TXN"
// or "SYSTEM IDLE". Any failure to obtain status is treated as not-idle.
func (s *Session) IsPedIdle() bool {
	frame := s.GetStatus()
	if frame.InProgress() {
		return false
	}
	if !frame.Complete() {
		return false
	}
	display, ok := frame.DisplayText()
	if !ok {
		return false
	}
	return strings.Contains(display, IdleTextNoTxn) || strings.Contains(display, IdleTextSystemIdle)
}
