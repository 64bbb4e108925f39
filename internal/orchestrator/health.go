package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/model"
	"github.com/haasonsaas/scribe/internal/observability"
	"github.com/haasonsaas/scribe/internal/secrets"
)

// DefaultHealthSentinel is the key probed to prove the blob store answers.
// The object does not need to exist; a clean not-found is a healthy answer.
const DefaultHealthSentinel = ".scribe-health"

const healthCheckTimeout = 10 * time.Second

// HealthCheck probes the orchestrator's dependencies.
type HealthCheck struct {
	Store       blob.Store
	SentinelKey string

	Secrets     secrets.Provider
	SecretNames []string

	// Invoker is probed with a no-op prompt. Nil skips the model check (the
	// path-hint classifier never touches the model).
	Invoker model.Invoker

	Logger *observability.Logger
}

// Report is the health probe's outcome.
type Report struct {
	OK     bool             `json:"ok"`
	Checks map[string]Check `json:"checks"`
}

// Check is one dependency's verdict.
type Check struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Run probes each dependency and never returns an error; failures land in the
// report.
func (h *HealthCheck) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	report := Report{OK: true, Checks: make(map[string]Check)}
	add := func(name string, check Check) {
		if !check.OK {
			report.OK = false
			h.Logger.Warn(ctx, "health check failed", "check", name, "detail", check.Detail)
		}
		report.Checks[name] = check
	}

	add("blob", h.checkBlob(ctx))
	add("secrets", h.checkSecrets(ctx))
	if h.Invoker != nil {
		add("model", h.checkModel(ctx))
	} else {
		report.Checks["model"] = Check{OK: true, Detail: "skipped"}
	}
	return report
}

func (h *HealthCheck) checkBlob(ctx context.Context) Check {
	sentinel := h.SentinelKey
	if sentinel == "" {
		sentinel = DefaultHealthSentinel
	}
	err := h.Store.Head(ctx, sentinel)
	if err != nil && !errors.Is(err, blob.ErrNotFound) {
		return Check{Detail: err.Error()}
	}
	return Check{OK: true}
}

func (h *HealthCheck) checkSecrets(ctx context.Context) Check {
	for _, name := range h.SecretNames {
		if _, err := h.Secrets.Fetch(ctx, name); err != nil {
			return Check{Detail: name + ": " + err.Error()}
		}
	}
	return Check{OK: true}
}

func (h *HealthCheck) checkModel(ctx context.Context) Check {
	if _, err := h.Invoker.Invoke(ctx, "Reply with the single word: ok", 8); err != nil {
		return Check{Detail: err.Error()}
	}
	return Check{OK: true}
}
