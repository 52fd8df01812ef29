package models

// FailureKind classifies why a notification produced no (or less) content.
type FailureKind string

const (
	// FailureUnresolvable: an identity reference (project or component version) no longer exists.
	FailureUnresolvable FailureKind = "UNRESOLVABLE"
	// FailureTransport: the hub could not be reached while resolving the event.
	FailureTransport FailureKind = "TRANSPORT_ERROR"
	// FailureUnsupportedType: no transformer is registered for the notification type.
	FailureUnsupportedType FailureKind = "UNSUPPORTED_TYPE"
	// FailureValidation: the payload is malformed or a required collection came out empty.
	FailureValidation FailureKind = "VALIDATION_ERROR"
	// FailureTimeout: the batch deadline passed before the event was resolved.
	FailureTimeout FailureKind = "TIMEOUT"
	// FailureInternal: an unexpected error or panic inside a transformer.
	FailureInternal FailureKind = "INTERNAL"
)

// Retryable reports whether fetching the same event again later may succeed.
func (k FailureKind) Retryable() bool {
	return k == FailureTransport || k == FailureTimeout
}

// FailureEntry accounts for one dropped or partially dropped notification.
type FailureEntry struct {
	EventID string           `json:"event_id" yaml:"event_id"`
	Type    NotificationType `json:"type"     yaml:"type"`
	Kind    FailureKind      `json:"kind"     yaml:"kind"`
	Reason  string           `json:"reason"   yaml:"reason"`
}
