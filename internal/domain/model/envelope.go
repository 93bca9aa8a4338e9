package model

import (
	"errors"
	"fmt"
)

// EnvelopePriority maps message levels onto sink transport priorities.
type EnvelopePriority string

const (
	PriorityNormal EnvelopePriority = "normal"
	PriorityHigh   EnvelopePriority = "high"
)

// Envelope is the rendered, channel-agnostic payload handed to a sink.
// Exactly one of the recipient fields is meaningful per channel kind; the
// correlation NotificationID lets sinks and the recorder deduplicate.
type Envelope struct {
	NotificationID string
	UserID         string
	Channel        ChannelKind
	Recipient      string // email address, phone number, webhook URL, slack channel
	DeviceID       string // push only
	PushToken      string // push only
	Subject        string
	BodyHTML       string
	BodyText       string
	Priority       EnvelopePriority
	TTLSeconds     int
	Data           map[string]string
}

// SinkErrorKind is the closed failure taxonomy shared by every sink.
// Callers treat only Permanent and InvalidRecipient as terminal.
type SinkErrorKind int

const (
	SinkTransient SinkErrorKind = iota + 1
	SinkPermanent
	SinkRateLimited
	SinkInvalidRecipient
)

func (k SinkErrorKind) String() string {
	switch k {
	case SinkTransient:
		return "transient"
	case SinkPermanent:
		return "permanent"
	case SinkRateLimited:
		return "rate_limited"
	case SinkInvalidRecipient:
		return "invalid_recipient"
	}
	return "unknown"
}

// SinkError carries the taxonomy kind alongside the underlying cause.
type SinkError struct {
	Kind SinkErrorKind
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Kind, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// NewSinkError wraps err with a failure kind.
func NewSinkError(kind SinkErrorKind, err error) *SinkError {
	return &SinkError{Kind: kind, Err: err}
}

// SinkErrorKindOf classifies an arbitrary sink error. Unclassified errors
// default to transient so they stay retryable.
func SinkErrorKindOf(err error) SinkErrorKind {
	var se *SinkError
	if errors.As(err, &se) {
		return se.Kind
	}
	return SinkTransient
}

// Retryable reports whether the dispatcher should attempt the send again.
func Retryable(err error) bool {
	switch SinkErrorKindOf(err) {
	case SinkPermanent, SinkInvalidRecipient:
		return false
	}
	return true
}
