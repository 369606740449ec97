package ped

import (
	"errors"
	"testing"
	"time"
)

func fastTestConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseBackoffDelay = time.Millisecond
	cfg.MaxBackoffDelay = 5 * time.Millisecond
	cfg.ReceiveBufferSize = 4096
	return cfg
}

func TestLineTransportConnectAndSendAndRecv(t *testing.T) {
	server := newFakeLineServer(t, []scriptedStep{
		{reply: `{"connected":true}`},
		{reply: `{"complete":false,"inProgress":true}`},
	})
	defer server.Close()

	endpoint, err := fakeEndpoint(server.Addr())
	if err != nil {
		t.Fatalf("fakeEndpoint() error = %v", err)
	}

	transport := NewLineTransport(endpoint, fastTestConfig(), nil, nil)
	if err := transport.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer transport.Disconnect()

	if req := server.nextRequest(t); req != "connect()" {
		t.Errorf("handshake request = %q, want connect()", req)
	}

	reply, err := transport.SendAndRecv("getStatus()")
	if err != nil {
		t.Fatalf("SendAndRecv() error = %v", err)
	}
	if reply != `{"complete":false,"inProgress":true}` {
		t.Errorf("SendAndRecv() reply = %q", reply)
	}
	if req := server.nextRequest(t); req != "getStatus()" {
		t.Errorf("second request = %q, want getStatus()", req)
	}
}

func TestLineTransportConnectExhaustedWhenNothingListens(t *testing.T) {
	cfg := fastTestConfig()
	cfg.MaxConnectionRetryAttempts = 2
	transport := NewLineTransport(Endpoint{Host: "127.0.0.1", Port: 1}, cfg, nil, nil)

	err := transport.Connect()
	if err == nil {
		t.Fatal("expected Connect() to fail against a port nothing listens on")
	}
	var exhausted *ConnectExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("Connect() error = %v, want *ConnectExhausted", err)
	}
	if exhausted.Attempts != cfg.MaxConnectionRetryAttempts {
		t.Errorf("Attempts = %d, want %d", exhausted.Attempts, cfg.MaxConnectionRetryAttempts)
	}
}
