package metrics

import (
	"context"
	"errors"
	"time"

	drepo "FinResolve/internal/domain/repository"
)

// Provider call outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeTimeout = "timeout"
	OutcomeError   = "error"
	OutcomeInvalid = "invalid"
)

// Classify maps a provider call result to an outcome label.
func Classify(err error, n int) string {
	switch {
	case err == nil && n == 0:
		return OutcomeEmpty
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return OutcomeTimeout
	default:
		return OutcomeError
	}
}

// ObserveProvider records outcome and latency of one provider call.
func ObserveProvider(m drepo.Metrics, provider string, start time.Time, err error, n int) string {
	outcome := Classify(err, n)
	if m == nil {
		return outcome
	}
	m.RecordProviderCall(provider, outcome)
	m.RecordLatency("provider_"+provider, time.Since(start).Seconds())
	return outcome
}

// Nop discards every measurement.
type Nop struct{}

var _ drepo.Metrics = Nop{}

func (Nop) RecordProviderCall(string, string) {}
func (Nop) RecordError(string)                {}
func (Nop) RecordLatency(string, float64)     {}
func (Nop) RecordCacheLookup(string, bool)    {}
func (Nop) RecordBreakerState(bool)           {}
func (Nop) RecordEnrichment(string)           {}
func (Nop) RecordResolution(string)           {}
func (Nop) RecordEventSent(string)            {}
