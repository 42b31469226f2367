package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

// A dropped connection must hand its classified teardown error to
// OnDisconnect, not a bare nil.
func TestManagerReportsDisconnectError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer ln.Close()

	// Accept one connection and hang up immediately.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	mgr := NewManager(ManagerConfig{
		Addr:           ln.Addr().String(),
		InitialBackoff: 10 * time.Millisecond,
		OnDisconnect: func(err error) {
			select {
			case errCh <- err:
			default:
			}
			cancel()
		},
	})

	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("OnDisconnect received nil, want the teardown error")
		} else if !IsRetryable(err) {
			t.Errorf("disconnect error %v should be retryable", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnDisconnect never fired")
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("manager did not stop after cancellation")
	}
}
