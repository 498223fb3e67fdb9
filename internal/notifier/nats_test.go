package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

type fakeNATSConn struct {
	subject  string
	data     []byte
	pubErr   error
	flushErr error
	closed   bool
}

func (c *fakeNATSConn) Publish(subj string, data []byte) error {
	if c.pubErr != nil {
		return c.pubErr
	}
	c.subject, c.data = subj, data
	return nil
}

func (c *fakeNATSConn) FlushTimeout(time.Duration) error { return c.flushErr }
func (c *fakeNATSConn) Close()                           { c.closed = true }

func TestNATSNotifierSend(t *testing.T) {
	conn := &fakeNATSConn{}
	n := newNATSNotifier(conn, NATSConfig{}, nil)

	if n.Name() != "nats" {
		t.Errorf("Name = %q", n.Name())
	}
	if err := n.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if conn.subject != DefaultNATSSubject {
		t.Errorf("subject = %q, want %q", conn.subject, DefaultNATSSubject)
	}

	got, err := models.AlertEventFromJSON(conn.data)
	if err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if *got != *testEvent() {
		t.Errorf("payload = %+v", got)
	}

	n.Close()
	if !conn.closed {
		t.Error("Close should close the connection")
	}
}

func TestNATSNotifierErrors(t *testing.T) {
	tests := []struct {
		name string
		conn *fakeNATSConn
	}{
		{"publish", &fakeNATSConn{pubErr: errors.New("no servers")}},
		{"flush", &fakeNATSConn{flushErr: errors.New("timeout")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newNATSNotifier(tt.conn, NATSConfig{Subject: "custom.alerts"}, nil)
			if err := n.Send(context.Background(), testEvent()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
