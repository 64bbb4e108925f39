package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/scribe/internal/blob"
	"github.com/haasonsaas/scribe/internal/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.LogConfig{Level: "error"})
}

func testRequest(transcript string, at time.Time) Request {
	return Request{
		Key:           "transcripts/work/2024/01/15/mon.txt",
		Transcript:    transcript,
		CorrelationID: "corr-1",
		Timestamp:     at,
	}
}

func TestJournalAppendsEntry(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemStore()
	processor := NewJournal(store, testLogger())

	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	result := processor.Process(ctx, testRequest("Finished the authentication module; meeting with Priya tomorrow.", at))

	if result.Status != StatusSuccess {
		t.Fatalf("status = %q, want success (error_kind=%v)", result.Status, result.ErrorKind)
	}

	payload, ok := result.Payload.(JournalPayload)
	if !ok {
		t.Fatalf("payload type = %T, want JournalPayload", result.Payload)
	}
	if payload.JournalKey != "work/weekly_logs/2024-W03.md" {
		t.Errorf("journal_key = %q, want work/weekly_logs/2024-W03.md", payload.JournalKey)
	}
	if payload.Week != "2024-W03" {
		t.Errorf("week = %q, want 2024-W03", payload.Week)
	}

	data, err := store.Get(ctx, payload.JournalKey)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "## 2024-01-15T10:30:00Z\n") {
		t.Errorf("entry header missing, got %q", content)
	}
	if !strings.Contains(content, "Finished the authentication module; meeting with Priya tomorrow.\n") {
		t.Errorf("entry body missing, got %q", content)
	}
	if !strings.HasSuffix(content, "\n\n") {
		t.Errorf("entry should end with a blank separator line, got %q", content)
	}
}

func TestJournalEmptyTranscript(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemStore()
	processor := NewJournal(store, testLogger())

	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	result := processor.Process(ctx, testRequest("", at))
	if result.Status != StatusSuccess {
		t.Fatalf("status = %q, want success", result.Status)
	}

	data, err := store.Get(ctx, "work/weekly_logs/2024-W03.md")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "## 2024-01-15T10:30:00Z\n\n\n" {
		t.Errorf("journal content = %q", data)
	}
}

func TestJournalTwoEventsSameWeek(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemStore()
	processor := NewJournal(store, testLogger())

	monday := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	friday := time.Date(2024, 1, 19, 17, 0, 0, 0, time.UTC)

	if r := processor.Process(ctx, testRequest("standup notes", monday)); r.Status != StatusSuccess {
		t.Fatalf("first append status = %q", r.Status)
	}
	if r := processor.Process(ctx, testRequest("sprint retro", friday)); r.Status != StatusSuccess {
		t.Fatalf("second append status = %q", r.Status)
	}

	data, err := store.Get(ctx, "work/weekly_logs/2024-W03.md")
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "standup notes") || !strings.Contains(content, "sprint retro") {
		t.Errorf("both entries should land in the same weekly object, got %q", content)
	}
}

func TestJournalConflictSurfacesAsFailure(t *testing.T) {
	ctx := context.Background()
	store := blob.NewMemStore()
	store.FailNextAppends(blob.DefaultAppendRetries + 1)
	processor := NewJournal(store, testLogger())

	result := processor.Process(ctx, testRequest("text", time.Now()))
	if result.Status != StatusFailure {
		t.Fatalf("status = %q, want failure", result.Status)
	}
	if result.ErrorKind == nil || *result.ErrorKind != "conflict" {
		t.Errorf("error_kind = %v, want conflict", result.ErrorKind)
	}
}
