package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Respond(t *testing.T) {
	var sent []byte
	msg := NewMessage("foo.get", "_INBOX.42", []byte("ping"), func(payload []byte) error {
		sent = payload
		return nil
	})

	require.NoError(t, msg.Respond([]byte("pong")))
	assert.Equal(t, []byte("pong"), sent)
}

func TestMessage_RespondWithoutReplySubject(t *testing.T) {
	msg := NewMessage("foo.get", "", []byte("ping"), nil)

	err := msg.Respond([]byte("pong"))
	assert.ErrorIs(t, err, ErrNoReplySubject)
}
