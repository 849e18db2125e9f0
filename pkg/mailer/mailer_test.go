package mailer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partypool/partypool/pkg/log"
)

// TestLogMailerSend tests that the log mailer accepts a send
func TestLogMailerSend(t *testing.T) {
	m := NewLogMailer(log.Nop())

	err := m.SendJoinMail(context.Background(), JoinMail{
		UserID:  "alice",
		Address: "party-1.example.dev",
		Port:    8505,
		Expires: time.Now().Add(time.Hour),
	})
	assert.NoError(t, err)
}

// TestLogMailerCancelled tests that a cancelled context refuses the send
func TestLogMailerCancelled(t *testing.T) {
	m := NewLogMailer(log.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.SendJoinMail(ctx, JoinMail{UserID: "alice"})
	assert.ErrorIs(t, err, context.Canceled)
}

// TestRecordingMailer tests capture and forced failure
func TestRecordingMailer(t *testing.T) {
	m := &RecordingMailer{}

	require.NoError(t, m.SendJoinMail(context.Background(), JoinMail{UserID: "alice", Port: 8505}))
	require.Equal(t, 1, m.SentCount())
	assert.Equal(t, "alice", m.Sent[0].UserID)

	m.Fail = errors.New("smtp down")
	err := m.SendJoinMail(context.Background(), JoinMail{UserID: "bob"})
	assert.Error(t, err)
	assert.Equal(t, 1, m.SentCount(), "failed sends are not recorded")
}
