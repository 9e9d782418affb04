package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestBridgeMessageDecodesTaskID(t *testing.T) {
	ch := make(chan CallbackMessage, 1)
	bridgeMessage(10001, `{"taskchain":"Fight","taskid":42}`, ch, discardLogger())

	msg := <-ch
	assert.Equal(t, int64(42), msg.TaskID)
	assert.Equal(t, MsgTaskChainStart, msg.Type)
	assert.Equal(t, int32(10001), msg.Code)
}

func TestBridgeMessageTaskIDSpellings(t *testing.T) {
	cases := []struct {
		detail string
		want   int64
	}{
		{`{"taskid":7}`, 7},
		{`{"task_id":8}`, 8},
		{`{"id":9}`, 9},
		{`{"taskid":"not-a-number"}`, 0},
		{`{"other":1}`, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, taskIDFromDetail(tc.detail), "detail %s", tc.detail)
	}
}

func TestBridgeMessageMalformedDetailDegradesToEmptyObject(t *testing.T) {
	ch := make(chan CallbackMessage, 2)
	bridgeMessage(2, `{"broken`, ch, discardLogger())
	bridgeMessage(2, "", ch, discardLogger())

	first := <-ch
	second := <-ch
	assert.Equal(t, "{}", first.Content)
	assert.Equal(t, "{}", second.Content)
	assert.Equal(t, int64(0), first.TaskID)
}

func TestBridgeMessageUnknownCode(t *testing.T) {
	ch := make(chan CallbackMessage, 1)
	bridgeMessage(31337, `{}`, ch, discardLogger())

	msg := <-ch
	assert.Equal(t, MessageType("unknown(31337)"), msg.Type)
}

func TestBridgeMessageDropsWhenChannelFull(t *testing.T) {
	ch := make(chan CallbackMessage, 1)
	bridgeMessage(3, `{}`, ch, discardLogger())
	// Channel is full now; this must not block.
	bridgeMessage(3, `{"second":true}`, ch, discardLogger())

	require.Len(t, ch, 1)
	msg := <-ch
	assert.Equal(t, "{}", msg.Content)
}

func TestBridgeMessageSwallowsPanics(t *testing.T) {
	// A nil channel send would block forever, so close a channel instead and
	// let the send panic; the fault barrier must contain it.
	ch := make(chan CallbackMessage)
	close(ch)

	require.NotPanics(t, func() {
		bridgeMessage(0, `{}`, ch, discardLogger())
	})
}

func TestMessageTypeIsError(t *testing.T) {
	assert.True(t, MsgInternalError.IsError())
	assert.True(t, MsgTaskChainError.IsError())
	assert.True(t, MsgSubTaskError.IsError())
	assert.False(t, MsgTaskChainCompleted.IsError())
	assert.False(t, MsgConnectionInfo.IsError())
}
