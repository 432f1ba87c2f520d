package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownStatus = errors.New("unknown status")

// Status is the persisted document-completion state of a transaction.
type Status string

const (
	StatusAwaitingDocuments Status = "awaiting_documents"
	StatusDocumentsAdded    Status = "documents_added"
)

// View is a query-time classification. Overdue is never stored.
type View string

const (
	ViewAwaitingDocuments View = "awaiting_documents"
	ViewOverdue           View = "overdue"
	ViewDocumentsAdded    View = "documents_added"
)

var statusLabels = map[Status]string{
	StatusAwaitingDocuments: "Chưa bổ sung",
	StatusDocumentsAdded:    "Đã bổ sung",
}

var viewLabels = map[View]string{
	ViewAwaitingDocuments: "Chưa bổ sung",
	ViewOverdue:           "Quá hạn",
	ViewDocumentsAdded:    "Đã bổ sung",
}

// forward transitions; a status may always be re-applied to itself
var transitions = map[Status][]Status{
	StatusAwaitingDocuments: {StatusDocumentsAdded},
	StatusDocumentsAdded:    {},
}

// ParseStatus accepts the status code or its Vietnamese label.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for st, label := range statusLabels {
		if strings.EqualFold(s, string(st)) || s == label {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// ParseView accepts the view code or its Vietnamese label.
func ParseView(s string) (View, error) {
	s = strings.TrimSpace(s)
	for v, label := range viewLabels {
		if strings.EqualFold(s, string(v)) || s == label {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s Status) Label() string {
	return statusLabels[s]
}

func (v View) Label() string {
	return viewLabels[v]
}

// CanTransition reports whether a stored status may move from s to next.
func (s Status) CanTransition(next Status) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
