package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameType_String(t *testing.T) {
	assert.Equal(t, "message", FrameMessage.String())
	assert.Equal(t, "receipt", FrameReceipt.String())
	assert.Equal(t, "unknown", FrameUnknown.String())
}

func TestParseFrameType(t *testing.T) {
	ft, err := ParseFrameType("message")
	require.NoError(t, err)
	assert.Equal(t, FrameMessage, ft)

	ft, err = ParseFrameType("receipt")
	require.NoError(t, err)
	assert.Equal(t, FrameReceipt, ft)

	_, err = ParseFrameType("asap_message")
	assert.ErrorIs(t, err, ErrUnknownFrameType)
}

func TestFrame_Validate(t *testing.T) {
	msg := &QueuedMessage{ID: "alarm_1", MessageKey: "alarm", Deadline: time.Now()}
	assert.NoError(t, NewMessageFrame(msg).Validate())
	assert.NoError(t, NewReceiptFrame("alarm_1").Validate())

	var nilFrame *Frame
	assert.ErrorIs(t, nilFrame.Validate(), ErrNilFrame)
	assert.ErrorIs(t, NewReceiptFrame("").Validate(), ErrInvalidFrame)
	assert.ErrorIs(t, (&Frame{Type: FrameMessage, ID: "x"}).Validate(), ErrInvalidFrame)
	assert.ErrorIs(t, (&Frame{ID: "x"}).Validate(), ErrUnknownFrameType)
}

func TestQueuedMessage_Expired(t *testing.T) {
	now := time.Now()
	msg := &QueuedMessage{Deadline: now}

	assert.False(t, msg.Expired(now))
	assert.False(t, msg.Expired(now.Add(-time.Millisecond)))
	assert.True(t, msg.Expired(now.Add(time.Millisecond)))
}
