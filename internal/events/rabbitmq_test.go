package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	key     string
	msg     amqp.Publishing
	err     error
	closed  bool
	publish int
}

func (c *recordingChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.publish++
	c.key = key
	c.msg = msg
	return c.err
}

func (c *recordingChannel) Close() error {
	c.closed = true
	return nil
}

func TestRabbitSink_SnapCreatedEnvelope(t *testing.T) {
	ch := &recordingChannel{}
	sink := newRabbitSink(ch, "MetricsQueue", "snaps")

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, sink.SnapCreated(context.Background(), SnapCreated{Content: "hi #go", CreatedAt: created, Hashtags: []string{"#go"}}))

	assert.Equal(t, "MetricsQueue", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var got map[string]any
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "snaps", got["providedBy"])
	body := got["body"].(map[string]any)
	assert.Equal(t, "hi #go", body["content"])
	assert.Equal(t, "2024-01-02T03:04:05Z", body["createdAt"])
	assert.Equal(t, []any{"#go"}, body["hashtags"])
}

func TestRabbitSink_NilHashtagsEncodeAsEmptyList(t *testing.T) {
	ch := &recordingChannel{}
	sink := newRabbitSink(ch, "q", "snaps")
	require.NoError(t, sink.SnapCreated(context.Background(), SnapCreated{Content: "plain"}))
	assert.Contains(t, string(ch.msg.Body), `"hashtags":[]`)
}

func TestRabbitSink_PropagatesPublishError(t *testing.T) {
	ch := &recordingChannel{err: errors.New("channel closed")}
	sink := newRabbitSink(ch, "q", "snaps")

	err := sink.SnapCreated(context.Background(), SnapCreated{Content: "x"})
	assert.Error(t, err)
	require.NoError(t, sink.Close())
	assert.True(t, ch.closed)
}

func TestNoopSink(t *testing.T) {
	assert.NoError(t, NoopSink{}.SnapCreated(context.Background(), SnapCreated{}))
}
