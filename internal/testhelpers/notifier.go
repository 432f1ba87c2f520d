package testhelpers

import (
	"context"
	"sync"
)

type SentMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// RecordingNotifier records every message it is asked to send.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []SentMessage

	// FailFor makes Send fail for the given recipients.
	FailFor map[string]error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{FailFor: make(map[string]error)}
}

func (n *RecordingNotifier) Send(_ context.Context, from, to, subject, html string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.FailFor[to]; ok {
		return err
	}
	n.sent = append(n.sent, SentMessage{From: from, To: to, Subject: subject, HTML: html})
	return nil
}

func (n *RecordingNotifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.sent...)
}
