package deriv

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// A dropped connection must not wedge the client in a permanent
// not-connected state: the next call redials before giving up.
func TestCallRedialsAfterConnectionLoss(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", "1089", "")
	c.RedialAttempts = 1 // nothing is listening; fail fast

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := c.Balance(ctx)
	if err == nil {
		t.Fatal("call succeeded against a dead endpoint")
	}
	if strings.Contains(err.Error(), "not connected") {
		t.Fatalf("call gave up without redialing: %v", err)
	}
	if !strings.Contains(err.Error(), "reconnect failed") {
		t.Fatalf("err = %v, want a reconnect failure", err)
	}
}

func TestEnsureConnectedNoopWhenConnected(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1", "1089", "")
	c.conn = &websocket.Conn{} // any live conn short-circuits the redial

	if err := c.ensureConnected(context.Background()); err != nil {
		t.Fatalf("ensureConnected with live conn: %v", err)
	}
}
