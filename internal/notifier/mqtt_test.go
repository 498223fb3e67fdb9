package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/good-yellow-bee/cognifyx/internal/models"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMQTTClient struct {
	open         bool
	topic        string
	qos          byte
	payload      []byte
	token        *fakeToken
	disconnected bool
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.topic, c.qos = topic, qos
	c.payload, _ = payload.([]byte)
	return c.token
}

func (c *fakeMQTTClient) IsConnectionOpen() bool { return c.open }
func (c *fakeMQTTClient) Disconnect(uint)        { c.disconnected = true; c.open = false }

func TestMQTTNotifierSend(t *testing.T) {
	client := &fakeMQTTClient{open: true, token: newFakeToken(nil, true)}
	n := newMQTTNotifier(client, MQTTConfig{DeviceID: "gate-3", QoS: 1}, nil)

	if err := n.Send(context.Background(), testEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if client.topic != "cognifyx/alerts/gate-3" {
		t.Errorf("topic = %q", client.topic)
	}
	if client.qos != 1 {
		t.Errorf("qos = %d, want 1", client.qos)
	}
	got, err := models.AlertEventFromJSON(client.payload)
	if err != nil {
		t.Fatalf("payload is not an alert event: %v", err)
	}
	if *got != *testEvent() {
		t.Errorf("payload = %+v", got)
	}
	if published, failed := n.Stats(); published != 1 || failed != 0 {
		t.Errorf("Stats = (%d, %d)", published, failed)
	}

	n.Close()
	if !client.disconnected {
		t.Error("Close should disconnect")
	}
}

func TestMQTTNotifierFailures(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeMQTTClient
	}{
		{"not connected", &fakeMQTTClient{open: false, token: newFakeToken(nil, true)}},
		{"publish error", &fakeMQTTClient{open: true, token: newFakeToken(errors.New("refused"), true)}},
		{"timeout", &fakeMQTTClient{open: true, token: newFakeToken(nil, false)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newMQTTNotifier(tt.client, MQTTConfig{Timeout: 20 * time.Millisecond}, nil)
			if err := n.Send(context.Background(), testEvent()); err == nil {
				t.Error("expected error")
			}
			if _, failed := n.Stats(); failed != 1 {
				t.Errorf("failed = %d, want 1", failed)
			}
		})
	}
}

type fakeConnector struct {
	token        *fakeToken
	disconnected bool
}

func (c *fakeConnector) Connect() mqtt.Token { return c.token }
func (c *fakeConnector) Disconnect(uint)     { c.disconnected = true }

func TestConnectMQTT(t *testing.T) {
	tests := []struct {
		name           string
		token          *fakeToken
		wantErr        bool
		wantDisconnect bool
	}{
		{"connected", newFakeToken(nil, true), false, false},
		{"timeout", newFakeToken(nil, false), true, true},
		{"refused", newFakeToken(errors.New("not authorized"), true), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeConnector{token: tt.token}
			err := connectMQTT(c, time.Millisecond)
			if (err != nil) != tt.wantErr {
				t.Errorf("connectMQTT() error = %v, wantErr %v", err, tt.wantErr)
			}
			if c.disconnected != tt.wantDisconnect {
				t.Errorf("disconnected = %v, want %v", c.disconnected, tt.wantDisconnect)
			}
		})
	}
}

func TestTopic(t *testing.T) {
	if got := Topic("cognifyx/alerts", ""); got != "cognifyx/alerts" {
		t.Errorf("Topic without device = %q", got)
	}
	if got := Topic("a/b", "dev"); got != "a/b/dev" {
		t.Errorf("Topic = %q", got)
	}
}
