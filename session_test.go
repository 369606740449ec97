package ped

import (
	"testing"
)

func dialSession(t *testing.T, script []scriptedStep) (*Session, *fakeLineServer) {
	t.Helper()
	server := newFakeLineServer(t, append([]scriptedStep{{reply: `{"connected":true}`}}, script...))
	endpoint, err := fakeEndpoint(server.Addr())
	if err != nil {
		t.Fatalf("fakeEndpoint() error = %v", err)
	}
	transport := NewLineTransport(endpoint, fastTestConfig(), nil, nil)
	session := NewSession(transport, fastTestConfig(), nil)
	if err := session.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	server.nextRequest(t) // consume the connect() handshake line
	return session, server
}

func TestSessionStartTransactionEmitsPayload(t *testing.T) {
	session, server := dialSession(t, []scriptedStep{{reply: `{}`}})
	defer server.Close()
	defer session.Disconnect()

	if err := session.StartTransaction(map[string]string{"amount": "1000"}); err != nil {
		t.Fatalf("StartTransaction() error = %v", err)
	}
	req := server.nextRequest(t)
	want := `startTransaction {"amount":"1000"}`
	if req != want {
		t.Errorf("request = %q, want %q", req, want)
	}
}

func TestSessionGetStatusParsesReply(t *testing.T) {
	session, server := dialSession(t, []scriptedStep{
		{reply: `{"complete":true,"inProgress":false}`},
	})
	defer server.Close()
	defer session.Disconnect()

	frame := session.GetStatus()
	if !frame.Complete() {
		t.Error("expected Complete() == true")
	}
	if req := server.nextRequest(t); req != "getStatus()" {
		t.Errorf("request = %q, want getStatus()", req)
	}
}

func TestSessionGetStatusRetriesOnEmptyThenSucceeds(t *testing.T) {
	session, server := dialSession(t, []scriptedStep{
		{reply: `{}`},
		{reply: `{"complete":true}`},
	})
	defer server.Close()
	defer session.Disconnect()

	frame := session.GetStatus()
	if !frame.Complete() {
		t.Fatal("expected GetStatus() to retry past the empty reply and observe complete=true")
	}
}

func TestSessionGetResultNoRetry(t *testing.T) {
	session, server := dialSession(t, []scriptedStep{
		{reply: `{"success":true,"authCode":"123456"}`},
	})
	defer server.Close()
	defer session.Disconnect()

	frame, err := session.GetResult("abc123")
	if err != nil {
		t.Fatalf("GetResult() error = %v", err)
	}
	if auth, ok := frame.AuthCode(); !ok || auth != "123456" {
		t.Errorf("AuthCode() = %q, %v, want 123456, true", auth, ok)
	}
	if req := server.nextRequest(t); req != "getResult(abc123)" {
		t.Errorf("request = %q, want getResult(abc123)", req)
	}
}

func TestSessionCancelAndUpdateTransaction(t *testing.T) {
	session, server := dialSession(t, []scriptedStep{
		{reply: `{}`},
		{reply: `{}`},
	})
	defer server.Close()
	defer session.Disconnect()

	if err := session.UpdateTransaction(`{"parameterValue":"ok"}`); err != nil {
		t.Fatalf("UpdateTransaction() error = %v", err)
	}
	if req := server.nextRequest(t); req != `updateTransaction {"parameterValue":"ok"}` {
		t.Errorf("request = %q", req)
	}

	if err := session.CancelTransaction(); err != nil {
		t.Fatalf("CancelTransaction() error = %v", err)
	}
	if req := server.nextRequest(t); req != "cancelTransaction()" {
		t.Errorf("request = %q, want cancelTransaction()", req)
	}
}

func TestSessionIsPedIdle(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  bool
	}{
		{"idle no txn", `{"inProgress":false,"complete":true,"displayText":"NO TXN"}`, true},
		{"idle system idle", `{"inProgress":false,"complete":true,"displayText":"SYSTEM IDLE"}`, true},
		{"in progress", `{"inProgress":true,"complete":false,"displayText":"PROCESSING"}`, false},
		{"complete but wrong text", `{"inProgress":false,"complete":true,"displayText":"APPROVED"}`, false},
		{"incomplete", `{"inProgress":false,"complete":false,"displayText":"NO TXN"}`, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			session, server := dialSession(t, []scriptedStep{{reply: c.reply}})
			defer server.Close()
			defer session.Disconnect()

			if got := session.IsPedIdle(); got != c.want {
				t.Errorf("IsPedIdle() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestSessionCheckLastTransactionResultEmptySourceID(t *testing.T) {
	session, server := dialSession(t, nil)
	defer server.Close()
	defer session.Disconnect()

	frame, err := session.CheckLastTransactionResult("")
	if err != nil {
		t.Fatalf("CheckLastTransactionResult() error = %v", err)
	}
	if !frame.IsEmpty() {
		t.Errorf("expected an empty frame for an empty sourceId, got %s", frame.Raw())
	}
}
