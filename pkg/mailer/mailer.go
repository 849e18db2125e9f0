package mailer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JoinMail carries the details a user needs to reach their cluster
type JoinMail struct {
	UserID  string
	Address string
	Port    int
	Expires time.Time
}

// Mailer notifies a user of a successful cluster assignment. A send failure
// aborts the join; a user must never be admitted without being told where to
// connect.
type Mailer interface {
	SendJoinMail(ctx context.Context, mail JoinMail) error
}

// LogMailer writes the notification to the log. It stands in for the real
// delivery backend, which is wired at the process boundary.
type LogMailer struct {
	logger zerolog.Logger
}

// NewLogMailer creates a mailer that logs instead of sending
func NewLogMailer(logger zerolog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) SendJoinMail(ctx context.Context, mail JoinMail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info().
		Str("user_id", mail.UserID).
		Str("address", mail.Address).
		Int("port", mail.Port).
		Time("expires", mail.Expires).
		Msg("join notification")
	return nil
}

// RecordingMailer captures sent mail for tests. Setting Fail makes every
// send return that error.
type RecordingMailer struct {
	mu   sync.Mutex
	Sent []JoinMail
	Fail error
}

func (m *RecordingMailer) SendJoinMail(ctx context.Context, mail JoinMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.Sent = append(m.Sent, mail)
	return nil
}

// SentCount returns how many notifications were delivered
func (m *RecordingMailer) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
