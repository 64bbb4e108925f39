// Package agents implements the three downstream processors a routed
// transcript can reach: the journal appender, the memory archiver, and the
// repository creator. Each processor performs its side effects against the
// blob store (and, for the repository processor, an external code-hosting
// service) and reports a structured result the orchestrator aggregates.
package agents

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/scribe/internal/classify"
	"github.com/haasonsaas/scribe/internal/errkind"
)

// Status is a processor's terminal outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Request carries one transcript into a processor.
type Request struct {
	// Key is the triggering transcript's object key.
	Key string
	// Transcript is the verbatim transcript text.
	Transcript string
	// CorrelationID identifies the event invocation.
	CorrelationID string
	// Timestamp is the event time the orchestrator derived; all keys and
	// record timestamps flow from it.
	Timestamp time.Time
}

// Result is the per-agent outcome persisted inside the aggregate. The JSON
// shape is stable.
type Result struct {
	Agent         string  `json:"agent"`
	Status        Status  `json:"status"`
	CorrelationID string  `json:"-"`
	StartedAt     string  `json:"started_at"`
	DurationMS    int64   `json:"duration_ms"`
	Payload       any     `json:"payload"`
	ErrorKind     *string `json:"error_kind"`
}

// Processor is the common operation all agents implement. Process never
// panics and never returns; every failure is captured in the Result.
type Processor interface {
	Agent() classify.Agent
	Process(ctx context.Context, req Request) Result
}

// resultClock lets tests pin durations; production uses time.Now.
var resultClock = time.Now

func successResult(agent classify.Agent, req Request, started time.Time, payload any) Result {
	return Result{
		Agent:         string(agent),
		Status:        StatusSuccess,
		CorrelationID: req.CorrelationID,
		StartedAt:     started.UTC().Format(time.RFC3339),
		DurationMS:    resultClock().Sub(started).Milliseconds(),
		Payload:       payload,
	}
}

func skippedResult(agent classify.Agent, req Request, started time.Time, payload any) Result {
	result := successResult(agent, req, started, payload)
	result.Status = StatusSkipped
	return result
}

func failureResult(agent classify.Agent, req Request, started time.Time, err error) Result {
	kind := errorKind(err)
	kindStr := string(kind)
	return Result{
		Agent:         string(agent),
		Status:        StatusFailure,
		CorrelationID: req.CorrelationID,
		StartedAt:     started.UTC().Format(time.RFC3339),
		DurationMS:    resultClock().Sub(started).Milliseconds(),
		ErrorKind:     &kindStr,
	}
}

// errorKind maps an error to its taxonomy kind, treating untagged context
// expiry as a timeout and anything else as external breakage.
func errorKind(err error) errkind.Kind {
	if kind, ok := errkind.Of(err); ok {
		return kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errkind.Timeout
	}
	return errkind.External
}
