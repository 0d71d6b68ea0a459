package models

// Phase is the current step of the sign-in and unread flows as seen by the UI
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingProvider  Phase = "awaiting_provider"
	PhaseRejected          Phase = "rejected"
	PhaseExchangingCode    Phase = "exchanging_code"
	PhaseExchangeSucceeded Phase = "exchange_succeeded"
	PhaseExchangeFailed    Phase = "exchange_failed"
	PhaseFetchingUnread    Phase = "fetching_unread"
	PhaseUnreadFetched     Phase = "unread_fetched"
	PhaseUnreadFetchFailed Phase = "unread_fetch_failed"
)

// Busy reports whether a network call or the consent screen is outstanding
func (p Phase) Busy() bool {
	switch p {
	case PhaseAwaitingProvider, PhaseExchangingCode, PhaseFetchingUnread:
		return true
	}
	return false
}

// Failed reports whether the phase is a terminal failure
func (p Phase) Failed() bool {
	switch p {
	case PhaseRejected, PhaseExchangeFailed, PhaseUnreadFetchFailed:
		return true
	}
	return false
}

// ErrorKind classifies a failure surfaced through Status
type ErrorKind string

const (
	KindConfigurationMissing     ErrorKind = "configuration_missing"
	KindProviderRejected         ErrorKind = "provider_rejected"
	KindResponseMalformed        ErrorKind = "response_malformed"
	KindExchangeTransportFailure ErrorKind = "exchange_transport_failure"
	KindExchangeBackendFailure   ErrorKind = "exchange_backend_failure"
	KindUnreadFetchFailure       ErrorKind = "unread_fetch_failure"
)

// Status is the single observable value consumed by the presentation layer
type Status struct {
	Phase     Phase
	Message   string
	Kind      ErrorKind
	Unread    int
	AttemptID string
}

// IdleStatus is the initial status
func IdleStatus() Status {
	return Status{Phase: PhaseIdle, Message: "Idle"}
}
