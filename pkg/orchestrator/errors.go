package orchestrator

import (
	"errors"
	"fmt"
)

// JoinReason classifies why a join was refused. Reasons are part of the
// public surface: the HTTP layer maps each to a distinct status and payload.
type JoinReason string

const (
	ReasonUserAlreadyJoined   JoinReason = "user_already_joined"
	ReasonClusterDoesNotExist JoinReason = "cluster_does_not_exist"
	ReasonClusterExpired      JoinReason = "cluster_expired"
	ReasonClusterNotReady     JoinReason = "cluster_not_ready"
	ReasonClusterFull         JoinReason = "cluster_full"
	ReasonNoPortsAvailable    JoinReason = "no_ports_available"
	ReasonSendMailFailed      JoinReason = "send_mail_failed"
)

// JoinError is a user-facing operation failure. It is never retried
// automatically; the caller decides what to do with the reason.
type JoinError struct {
	Reason JoinReason
	Err    error
}

func (e *JoinError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("join refused (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("join refused (%s)", e.Reason)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}

// AsJoinError extracts a JoinError from an error chain
func AsJoinError(err error) (*JoinError, bool) {
	var joinErr *JoinError
	if errors.As(err, &joinErr) {
		return joinErr, true
	}
	return nil, false
}

func refuse(reason JoinReason) error {
	return &JoinError{Reason: reason}
}
