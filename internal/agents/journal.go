package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/classify"
	"github.com/haasonsaas/scribe/internal/observability"
)

// JournalPayload is the journal processor's output payload.
type JournalPayload struct {
	JournalKey       string `json:"journal_key"`
	Week             string `json:"week"`
	EntryLengthBytes int    `json:"entry_length_bytes"`
}

// Journal appends a timestamped entry to the shared weekly journal object.
// Concurrency across events is handled entirely by the store's conditional
// append; the processor holds no locks.
type Journal struct {
	store  blob.Store
	logger *observability.Logger
}

// NewJournal creates the journal processor.
func NewJournal(store blob.Store, logger *observability.Logger) *Journal {
	return &Journal{store: store, logger: logger}
}

func (j *Journal) Agent() classify.Agent {
	return classify.AgentJournal
}

// Process appends "## <timestamp>\n<body>\n\n" to the ISO-week journal for
// the event timestamp. The transcript body is written verbatim, never
// rewritten.
func (j *Journal) Process(ctx context.Context, req Request) Result {
	started := resultClock()

	journalKey := blob.JournalKey(req.Timestamp)
	isoYear, isoWeek := req.Timestamp.UTC().ISOWeek()
	entry := fmt.Sprintf("## %s\n%s\n\n", req.Timestamp.UTC().Format(time.RFC3339), req.Transcript)

	if err := j.store.AppendLine(ctx, journalKey, entry); err != nil {
		j.logger.Error(ctx, "journal append failed", "journal_key", journalKey, "error", err)
		return failureResult(classify.AgentJournal, req, started, err)
	}

	j.logger.Info(ctx, "journal entry appended", "journal_key", journalKey, "bytes", len(entry))
	return successResult(classify.AgentJournal, req, started, JournalPayload{
		JournalKey:       journalKey,
		Week:             blob.ISOWeek(isoYear, isoWeek),
		EntryLengthBytes: len(entry),
	})
}
