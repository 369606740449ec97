package ped

import (
	"strings"
	"testing"
	"time"
)

func TestEngineRunHandlesParameterPromptThenCompletes(t *testing.T) {
	idleReply := `{"inProgress":false,"complete":true,"displayText":"NO TXN"}`
	promptReply := `{"inProgress":true,"complete":false,"parameter":"language","parameterType":"alphanumeric","amount":"1000","cashback":"0","currency":"840","displayText":"SELECT LANGUAGE"}`
	completeReply := `{"inProgress":false,"complete":true}`
	resultReply := `{"success":true,"authCode":"000111"}`

	session, server := dialSession(t, []scriptedStep{
		{reply: idleReply},   // waitForIdle call #1 (discarded)
		{reply: idleReply},   // waitForIdle call #2 (IsPedIdle's own GetStatus)
		{reply: `{}`},        // startTransaction ack
		{reply: promptReply}, // poll iteration 1
		{reply: `{}`},        // updateTransaction ack
		{reply: completeReply}, // poll iteration 2
		{reply: resultReply},   // final getResult
	})
	defer server.Close()
	defer session.Disconnect()

	engine := NewEngine(session, fastTestConfig(), nil, nil)
	result, err := engine.Run("sourceXYZ", map[string]string{"amount": "1000"}, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Success() {
		t.Error("expected Success() == true on the final result frame")
	}
	if auth, ok := result.AuthCode(); !ok || auth != "000111" {
		t.Errorf("AuthCode() = %q, %v", auth, ok)
	}

	server.nextRequest(t) // waitForIdle #1
	server.nextRequest(t) // waitForIdle #2
	if req := server.nextRequest(t); !strings.HasPrefix(req, "startTransaction ") {
		t.Errorf("request = %q, want startTransaction prefix", req)
	}
	server.nextRequest(t) // poll iteration 1 getStatus

	updateReq := server.nextRequest(t)
	if !strings.HasPrefix(updateReq, "updateTransaction ") {
		t.Fatalf("request = %q, want updateTransaction prefix", updateReq)
	}
	if !strings.Contains(updateReq, `"sourceid":"sourceXYZ"`) {
		t.Errorf("updateTransaction payload missing lower-case sourceid echo: %s", updateReq)
	}
	if !strings.Contains(updateReq, `"amount":"1000"`) {
		t.Errorf("updateTransaction payload missing echoed amount: %s", updateReq)
	}
	if !strings.Contains(updateReq, `"parameterValue":"ok"`) {
		t.Errorf("updateTransaction payload missing default alphanumeric parameterValue: %s", updateReq)
	}
}

func TestDefaultParameterValuePolicy(t *testing.T) {
	cases := []struct {
		parameter, parameterType, want string
	}{
		{"checkCard", "boolean", "continue"},
		{"language", "alphanumeric", "ok"},
		{"tipPercent", "numeric", "0"},
		{"confirm", "boolean", "true"},
		{"unknownField", "unknownType", ""},
	}
	for _, c := range cases {
		if got := defaultParameterValue(c.parameter, c.parameterType); got != c.want {
			t.Errorf("defaultParameterValue(%q, %q) = %q, want %q", c.parameter, c.parameterType, got, c.want)
		}
	}
}

func TestEngineRunCancelsOnPhaseDeadline(t *testing.T) {
	idleReply := `{"inProgress":false,"complete":true,"displayText":"SYSTEM IDLE"}`
	stillRunningReply := `{"inProgress":true,"complete":false,"displayText":"PROCESSING"}`
	resultReply := `{"success":false}`

	session, server := dialSession(t, []scriptedStep{
		{reply: idleReply},
		{reply: idleReply},
		{reply: `{}`},             // startTransaction ack
		{reply: stillRunningReply}, // the single poll iteration fitting before the deadline
		{reply: stillRunningReply}, // loop-exit re-check, still not complete
		{reply: `{}`},              // cancelTransaction ack
		{reply: resultReply},       // final getResult
	})
	defer server.Close()
	defer session.Disconnect()

	engine := NewEngine(session, fastTestConfig(), nil, nil)
	// A baseTimeout much shorter than pollInterval guarantees the deadline
	// check at the top of the second lap fires before any scheduling
	// jitter could make it ambiguous: one poll happens, then a 50ms sleep
	// blows well past the 3ms deadline.
	result, err := engine.Run("sourceABC", map[string]string{}, 50*time.Millisecond, 3*time.Millisecond)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Success() {
		t.Error("expected the cancelled transaction's result to report success == false")
	}
}
