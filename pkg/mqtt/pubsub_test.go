package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPubSubRequiresID(t *testing.T) {
	t.Parallel()

	ps, err := NewPubSub(Config{URL: "tcp://localhost:1883"}, "", slog.Default())
	assert.ErrorIs(t, err, errEmptyID)
	assert.Nil(t, ps)
}

func TestEmptyTopic(t *testing.T) {
	t.Parallel()

	ps := &pubsub{logger: slog.Default()}
	ctx := context.Background()

	cases := []struct {
		desc string
		call func() error
	}{
		{desc: "publish", call: func() error { return ps.Publish(ctx, "", map[string]string{}) }},
		{desc: "subscribe", call: func() error { return ps.Subscribe(ctx, "", nil) }},
		{desc: "unsubscribe", call: func() error { return ps.Unsubscribe(ctx, "") }},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tc.call(), errEmptyTopic)
		})
	}
}

type message struct {
	topic   string
	payload []byte
	acked   bool
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 1 }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 1 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              { m.acked = true }

func TestMessageHandler(t *testing.T) {
	t.Parallel()

	cases := []struct {
		desc string
		err  error
	}{
		{desc: "handled"},
		{desc: "handler failure is acked", err: errors.New("bad event")},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			t.Parallel()

			var topic string
			var payload []byte
			ps := &pubsub{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
			h := ps.mqttHandler(func(tp string, p []byte) error {
				topic, payload = tp, p

				return tc.err
			})

			msg := &message{topic: "contestd/contests/c1/round", payload: []byte(`{"kind":"round"}`)}
			h(nil, msg)

			assert.Equal(t, msg.topic, topic)
			assert.JSONEq(t, `{"kind":"round"}`, string(payload))
			assert.True(t, msg.acked)
		})
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	t.Parallel()

	ps := &pubsub{logger: slog.Default()}
	assert.ErrorIs(t, ps.Subscribe(context.Background(), "contestd/status", nil), errNilHandler)
}
