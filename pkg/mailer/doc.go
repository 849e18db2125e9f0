// Package mailer notifies users of successful cluster assignments. The real
// delivery backend is wired at the process boundary; LogMailer stands in
// for it, and RecordingMailer captures sends for tests.
package mailer
