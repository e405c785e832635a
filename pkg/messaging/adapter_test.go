package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanBroker struct {
	msgs      chan []byte
	published [][]byte
}

func (b *chanBroker) Publish(_ context.Context, _ string, payload []byte) error {
	b.published = append(b.published, payload)
	return nil
}

func (b *chanBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.msgs, nil
}

func (b *chanBroker) Close() error { return nil }

func TestPublishEnvelope(t *testing.T) {
	b := &chanBroker{}
	err := PublishEnvelope(context.Background(), b, "c", Envelope{ID: "1", Type: "t", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	require.Len(t, b.published, 1)
	assert.JSONEq(t, `{"id":"1","type":"t","payload":{"a":1}}`, string(b.published[0]))
}

func TestConsume(t *testing.T) {
	b := &chanBroker{msgs: make(chan []byte, 3)}
	b.msgs <- []byte(`{"id":"1","type":"ok","payload":{}}`)
	b.msgs <- []byte(`not json`)
	b.msgs <- []byte(`{"id":"2","type":"fail","payload":{}}`)
	close(b.msgs)

	var handled []string
	var errs []error
	err := Consume(context.Background(), b, "c", func(_ context.Context, env Envelope) error {
		handled = append(handled, env.Type)
		if env.Type == "fail" {
			return errors.New("boom")
		}
		return nil
	}, func(err error) { errs = append(errs, err) })

	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "fail"}, handled)
	assert.Len(t, errs, 2)
}
