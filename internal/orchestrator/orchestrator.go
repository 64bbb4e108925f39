// Package orchestrator is the per-event entry point: it reads the transcript,
// classifies it, fans out to the selected agent processors, and persists the
// aggregate result. One orchestrator run handles one object key; a
// notification with several records produces several independent runs.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/haasonsaas/scribe/internal/agents"
	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/classify"
	"github.com/haasonsaas/scribe/internal/errkind"
	"github.com/haasonsaas/scribe/internal/observability"
)

// Defaults for the deadlines and the transcript size guard.
const (
	DefaultEventDeadline     = 120 * time.Second
	DefaultProcessorDeadline = 30 * time.Second
	DefaultMaxTranscript     = 1 << 20
)

// aggregateWriteTimeout bounds the aggregate write, which runs detached from
// the event deadline.
const aggregateWriteTimeout = 10 * time.Second

// state names the phases of an event run; transitions are logged at debug.
type state string

const (
	stateReading     state = "reading"
	stateClassifying state = "classifying"
	stateDispatching state = "dispatching"
	stateAggregating state = "aggregating"
	stateWriting     state = "writing"
)

// Config carries the orchestrator's tunables.
type Config struct {
	// EventDeadline bounds one whole event run.
	EventDeadline time.Duration

	// ProcessorDeadline bounds each agent processor inside the event deadline.
	ProcessorDeadline time.Duration

	// MaxTranscriptBytes is the size guard; larger transcripts fail fast with
	// an oversize aggregate.
	MaxTranscriptBytes int
}

func (c Config) withDefaults() Config {
	if c.EventDeadline <= 0 {
		c.EventDeadline = DefaultEventDeadline
	}
	if c.ProcessorDeadline <= 0 {
		c.ProcessorDeadline = DefaultProcessorDeadline
	}
	if c.MaxTranscriptBytes <= 0 {
		c.MaxTranscriptBytes = DefaultMaxTranscript
	}
	return c
}

// Aggregate is the persisted per-event result. The JSON shape is stable.
type Aggregate struct {
	CorrelationID string          `json:"correlation_id"`
	TranscriptKey string          `json:"transcript_key"`
	Timestamp     string          `json:"timestamp"`
	Routing       Routing         `json:"routing"`
	Results       []agents.Result `json:"results"`
	ErrorKind     *string         `json:"error_kind,omitempty"`
}

// Routing is the aggregate's view of the classifier's decision.
type Routing struct {
	Primary    string   `json:"primary"`
	Secondary  []string `json:"secondary"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
	Mode       string   `json:"mode"`
}

// Orchestrator routes one transcript event through read, classify, dispatch,
// aggregate, and write.
type Orchestrator struct {
	store      blob.Store
	classifier classify.Classifier
	processors map[classify.Agent]agents.Processor
	cfg        Config
	logger     *observability.Logger
	metrics    *observability.Metrics

	clock func() time.Time
	newID func() string
}

// New creates an orchestrator over the given processors. Every agent the
// classifier can choose must have a processor registered.
func New(store blob.Store, classifier classify.Classifier, processors []agents.Processor, cfg Config, logger *observability.Logger, metrics *observability.Metrics) *Orchestrator {
	byAgent := make(map[classify.Agent]agents.Processor, len(processors))
	for _, p := range processors {
		byAgent[p.Agent()] = p
	}
	return &Orchestrator{
		store:      store,
		classifier: classifier,
		processors: byAgent,
		cfg:        cfg.withDefaults(),
		logger:     logger,
		metrics:    metrics,
		clock:      time.Now,
		newID:      uuid.NewString,
	}
}

// HandleNotification processes every record in a notification independently:
// one record's failure never blocks the others. The joined error is returned
// so the event source can redeliver.
func (o *Orchestrator) HandleNotification(ctx context.Context, n Notification, upstreamCorrelationID string) error {
	var errs []error
	for _, record := range n.Records {
		key, err := record.Key()
		if err != nil {
			o.logger.Warn(ctx, "dropping record with undecodable key", "error", err)
			o.metrics.EventsTotal.WithLabelValues("ignored").Inc()
			continue
		}
		if err := o.ProcessKey(ctx, key, upstreamCorrelationID); err != nil {
			errs = append(errs, fmt.Errorf("record %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// ProcessKey runs the full event state machine for one object key. Keys
// outside transcripts/*.txt are acknowledged and ignored. A returned error
// means the event source should redeliver; the aggregate or an errors/ record
// has already been written best-effort.
func (o *Orchestrator) ProcessKey(ctx context.Context, key, upstreamCorrelationID string) error {
	if !blob.IsTranscriptKey(key) {
		o.logger.Debug(ctx, "ignoring non-transcript key", "key", key)
		o.metrics.EventsTotal.WithLabelValues("ignored").Inc()
		return nil
	}
	parsed, err := blob.ParseTranscriptKey(key)
	if err != nil {
		o.logger.Warn(ctx, "ignoring malformed transcript key", "key", key, "error", err)
		o.metrics.EventsTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	correlationID := upstreamCorrelationID
	idSource := "upstream"
	if correlationID == "" {
		correlationID = o.newID()
		idSource = "generated"
	}

	ctx = observability.WithCorrelationID(ctx, correlationID)
	ctx = observability.WithTranscriptKey(ctx, key)
	ctx, cancel := context.WithTimeout(ctx, o.cfg.EventDeadline)
	defer cancel()

	eventTime := o.clock().UTC()
	aggregate := Aggregate{
		CorrelationID: correlationID,
		TranscriptKey: key,
		Timestamp:     eventTime.Format(time.RFC3339),
		Routing:       Routing{Secondary: []string{}},
		Results:       []agents.Result{},
	}

	o.logger.Info(ctx, "event accepted", "state", stateReading, "correlation_id_source", idSource)

	transcript, fatalKind, err := o.read(ctx, key)
	if fatalKind != "" {
		// source_missing and oversize terminate the run but still produce an
		// aggregate; the event is acknowledged, not redelivered.
		kind := string(fatalKind)
		aggregate.ErrorKind = &kind
		o.metrics.EventsTotal.WithLabelValues("failed").Inc()
		return o.writeAggregate(ctx, parsed.OutputKey(), aggregate, eventTime)
	}
	if err != nil {
		o.metrics.EventsTotal.WithLabelValues("failed").Inc()
		o.writeErrorRecord(ctx, eventTime, correlationID, key, err)
		return err
	}

	o.logger.Debug(ctx, "transcript read", "state", stateClassifying, "bytes", len(transcript))
	decision := o.classifyTranscript(ctx, key, transcript)
	o.metrics.ClassifierDecisions.WithLabelValues(string(decision.Mode), string(decision.Primary)).Inc()
	aggregate.Routing = routingFrom(decision)

	o.logger.Info(ctx, "transcript classified",
		"state", stateDispatching,
		"primary", string(decision.Primary),
		"mode", string(decision.Mode),
		"confidence", decision.Confidence,
		"secondaries", len(decision.Secondary))

	aggregate.Results = o.dispatch(ctx, decision, agents.Request{
		Key:           key,
		Transcript:    transcript,
		CorrelationID: correlationID,
		Timestamp:     eventTime,
	})

	o.logger.Debug(ctx, "results aggregated", "state", stateAggregating, "results", len(aggregate.Results))

	o.logger.Debug(ctx, "writing aggregate", "state", stateWriting, "output_key", parsed.OutputKey())
	if err := o.writeAggregate(ctx, parsed.OutputKey(), aggregate, eventTime); err != nil {
		o.metrics.EventsTotal.WithLabelValues("failed").Inc()
		return err
	}

	o.metrics.EventsTotal.WithLabelValues("done").Inc()
	o.logger.Info(ctx, "event processed", "output_key", parsed.OutputKey())
	return nil
}

// read fetches and size-guards the transcript. A non-empty Kind means the run
// terminates with that kind recorded in the aggregate; a non-nil error means
// the read itself broke and the event should be redelivered.
func (o *Orchestrator) read(ctx context.Context, key string) (string, errkind.Kind, error) {
	data, err := o.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		o.logger.Warn(ctx, "transcript object missing")
		return "", errkind.SourceMissing, nil
	}
	if err != nil {
		return "", "", errkind.Wrap(errkind.Storage, fmt.Errorf("read transcript: %w", err))
	}
	if len(data) > o.cfg.MaxTranscriptBytes {
		o.logger.Warn(ctx, "transcript exceeds size guard", "bytes", len(data), "limit", o.cfg.MaxTranscriptBytes)
		return "", errkind.Oversize, nil
	}
	return string(data), "", nil
}

// classifyTranscript is total: the configured classifier already carries its
// own fallback chain, and any residual error drops to the keyword heuristic.
func (o *Orchestrator) classifyTranscript(ctx context.Context, key, transcript string) classify.Decision {
	decision, err := o.classifier.Classify(ctx, key, transcript)
	if err != nil {
		o.logger.Error(ctx, "classifier failed; using keyword fallback", "error", err)
		return classify.KeywordFallback(transcript)
	}
	return decision
}

// dispatch fans out to the primary and secondary processors concurrently.
// Each processor gets its own deadline; one processor's cancellation or
// failure never cancels the others, and results keep the routing order
// (primary first).
func (o *Orchestrator) dispatch(ctx context.Context, decision classify.Decision, req agents.Request) []agents.Result {
	order := make([]classify.Agent, 0, 1+len(decision.Secondary))
	order = append(order, decision.Primary)
	order = append(order, decision.Secondary...)

	results := make([]agents.Result, len(order))
	var group errgroup.Group
	for i, agent := range order {
		processor, ok := o.processors[agent]
		if !ok {
			// Defensive; the agent set is closed and New registers all three.
			kind := string(errkind.Config)
			results[i] = agents.Result{
				Agent:     string(agent),
				Status:    agents.StatusFailure,
				StartedAt: o.clock().UTC().Format(time.RFC3339),
				ErrorKind: &kind,
			}
			continue
		}
		group.Go(func() error {
			procCtx, cancel := context.WithTimeout(observability.WithAgent(ctx, string(agent)), o.cfg.ProcessorDeadline)
			defer cancel()

			started := o.clock()
			results[i] = processor.Process(procCtx, req)
			o.metrics.AgentResults.WithLabelValues(results[i].Agent, string(results[i].Status)).Inc()
			o.metrics.AgentDuration.WithLabelValues(results[i].Agent).Observe(o.clock().Sub(started).Seconds())
			return nil
		})
	}
	group.Wait() //nolint:errcheck // closures never return errors
	return results
}

// writeAggregate persists the aggregate on its own deadline: by the time the
// write happens the event deadline may already be spent, and the aggregate is
// written regardless of how the run ended.
func (o *Orchestrator) writeAggregate(ctx context.Context, outputKey string, aggregate Aggregate, eventTime time.Time) error {
	data, err := json.Marshal(aggregate)
	if err != nil {
		return errkind.Wrap(errkind.Storage, fmt.Errorf("marshal aggregate: %w", err))
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), aggregateWriteTimeout)
	defer cancel()
	if err := o.store.Put(writeCtx, outputKey, data, "application/json"); err != nil {
		wrapped := errkind.Wrap(errkind.Storage, fmt.Errorf("write aggregate: %w", err))
		o.logger.Error(ctx, "aggregate write failed", "output_key", outputKey, "error", err)
		o.writeErrorRecord(ctx, eventTime, aggregate.CorrelationID, aggregate.TranscriptKey, wrapped)
		return wrapped
	}
	return nil
}

type errorRecord struct {
	CorrelationID string `json:"correlation_id"`
	TranscriptKey string `json:"transcript_key"`
	Timestamp     string `json:"timestamp"`
	ErrorKind     string `json:"error_kind"`
	Message       string `json:"message"`
}

// writeErrorRecord persists a fatal-failure breadcrumb under errors/. Best
// effort: it runs on a fresh deadline because the event deadline may already
// be spent, and its own failure is only logged.
func (o *Orchestrator) writeErrorRecord(ctx context.Context, eventTime time.Time, correlationID, key string, cause error) {
	kind, ok := errkind.Of(cause)
	if !ok {
		kind = errkind.External
	}
	record := errorRecord{
		CorrelationID: correlationID,
		TranscriptKey: key,
		Timestamp:     eventTime.Format(time.RFC3339),
		ErrorKind:     string(kind),
		Message:       cause.Error(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	errorKey := blob.ErrorKey(eventTime, correlationID)
	if err := o.store.Put(writeCtx, errorKey, data, "application/json"); err != nil {
		o.logger.Error(ctx, "error record write failed", "error_key", errorKey, "error", err)
	}
}

func routingFrom(decision classify.Decision) Routing {
	secondary := make([]string, 0, len(decision.Secondary))
	for _, agent := range decision.Secondary {
		secondary = append(secondary, string(agent))
	}
	return Routing{
		Primary:    string(decision.Primary),
		Secondary:  secondary,
		Confidence: decision.Confidence,
		Rationale:  decision.Rationale,
		Mode:       string(decision.Mode),
	}
}
