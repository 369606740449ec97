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
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Endpoint is an immutable (host, port) pair, owned by a Session for its
// whole lifetime (§3).
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// connState models the Connection states of §3: Absent or Open.
type connState int

const (
	stateAbsent connState = iota
	stateOpen
)

// LineTransport owns the TCP socket and the line-oriented send/receive
// discipline (C1). At most one send/receive is outstanding at a time: the
// mutex is held for the whole of each Connect, Disconnect and SendAndRecv
// call, so a single write+read exchange never interleaves with another on
// the wire. Ordering a sequence of commands (one transaction's flow) is
// still the caller's contract (Design Notes §9 "half-duplex ownership
// without locks").
type LineTransport struct {
	endpoint Endpoint
	dialer   func(network, address string) (net.Conn, error)
	cfg      Config
	backoff  Backoff
	logger   *Logger

	mu    sync.Mutex
	state connState
	conn  net.Conn

	stats *Stats
}

// NewLineTransport creates a transport for endpoint using cfg's retry/
// backoff/buffer settings. A nil logger discards all log lines. stats may
// be nil to disable connect-latency recording.
func NewLineTransport(endpoint Endpoint, cfg Config, logger *Logger, stats *Stats) *LineTransport {
	if logger == nil {
		logger = discardLogger
	}
	return &LineTransport{
		endpoint: endpoint,
		dialer:   net.Dial,
		cfg:      cfg,
		backoff:  NewBackoff(cfg),
		logger:   logger,
		state:    stateAbsent,
		stats:    stats,
	}
}

// Connect establishes the TCP socket and performs the connect() handshake
// (§4.1). A no-op if already Open. Retries up to
// MaxConnectionRetryAttempts times with capped-exponential backoff;
// exhaustion returns *ConnectExhausted wrapping the last cause (P1).
func (t *LineTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connectLocked()
}

func (t *LineTransport) connectLocked() error {
	if t.state == stateOpen {
		return nil
	}

	attemptID := uuid.NewString()[:8]
	connectStart := time.Now()
	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxConnectionRetryAttempts; attempt++ {
		t.teardownLocked()

		conn, err := t.dialer("tcp", t.endpoint.String())
		if err != nil {
			lastErr = err
			t.logger.Warnf("[%s] connect attempt %d/%d to %s failed: %v", attemptID, attempt, t.cfg.MaxConnectionRetryAttempts, t.endpoint, err)
			if attempt < t.cfg.MaxConnectionRetryAttempts {
				time.Sleep(t.backoff.Connect(attempt))
			}
			continue
		}

		t.conn = conn
		t.state = stateOpen

		// Handshake: send connect() and discard the reply as the first
		// framed exchange (§4.1).
		if _, err := t.sendAndRecvLocked("connect()"); err != nil {
			lastErr = err
			t.logger.Warnf("[%s] connect handshake attempt %d/%d failed: %v", attemptID, attempt, t.cfg.MaxConnectionRetryAttempts, err)
			t.teardownLocked()
			if attempt < t.cfg.MaxConnectionRetryAttempts {
				time.Sleep(t.backoff.Connect(attempt))
			}
			continue
		}

		t.logger.Infof("[%s] connected to %s after %d attempt(s)", attemptID, t.endpoint, attempt)
		t.stats.recordConnect(time.Since(connectStart))
		return nil
	}

	return &ConnectExhausted{Attempts: t.cfg.MaxConnectionRetryAttempts, Cause: lastErr}
}

// Disconnect tears down the socket, best-effort, never raising (§3).
func (t *LineTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.teardownLocked()
}

func (t *LineTransport) teardownLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	t.state = stateAbsent
}

// SendAndRecv writes line+"\n" and reads one response frame (up to
// ReceiveBufferSize bytes — the protocol delivers one frame per read; the
// engine does not reassemble). Retries up to MaxRetryAttempts times on
// network-class failures, force-disconnecting and reconnecting between
// attempts, with linear backoff. Exhaustion returns *SendExhausted (P2).
func (t *LineTransport) SendAndRecv(line string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= t.cfg.MaxRetryAttempts; attempt++ {
		if t.state != stateOpen {
			if err := t.connectLocked(); err != nil {
				return "", err
			}
		}

		reply, err := t.sendAndRecvLocked(line)
		if err == nil {
			return reply, nil
		}

		if !isRetryableTransportError(err) {
			return "", err
		}

		lastErr = err
		t.logger.Warnf("send_and_recv attempt %d/%d failed, forcing reconnect: %v", attempt, t.cfg.MaxRetryAttempts, err)
		t.teardownLocked()
		if attempt < t.cfg.MaxRetryAttempts {
			time.Sleep(t.backoff.Linear(attempt))
		}
	}

	return "", &SendExhausted{Attempts: t.cfg.MaxRetryAttempts, Cause: lastErr}
}

// sendAndRecvLocked performs one raw write+read over the (already open)
// connection. Caller must hold t.mu and have verified t.state == stateOpen.
func (t *LineTransport) sendAndRecvLocked(line string) (string, error) {
	if t.conn == nil {
		return "", errInvalidConnState
	}

	t.logger.Send(line)
	if _, err := io.WriteString(t.conn, line+"\n"); err != nil {
		return "", fmt.Errorf("ped: write failed: %w", err)
	}

	buf := make([]byte, t.cfg.ReceiveBufferSize)
	n, err := t.conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("ped: read failed: %w", err)
	}

	payload := string(buf[:n])
	t.logger.Recv(payload)
	return payload, nil
}

// errInvalidConnState is the "use-after-close / invalid state" network-
// class error named in §7's taxonomy.
var errInvalidConnState = errors.New("ped: connection is not open")

// isRetryableTransportError classifies §7's TransportTransient kind:
// socket error, I/O error, use-after-close, or invalid-state.
func isRetryableTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errInvalidConnState) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
